// Package run wires the ingest adapter, state engine, coordinator, and
// bridge text generator into a runnable process, and registers the
// `brovakt run` subcommand.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/projectqai/brovakt/bridgetext"
	"github.com/projectqai/brovakt/cmd"
	"github.com/projectqai/brovakt/config"
	"github.com/projectqai/brovakt/coordinator"
	"github.com/projectqai/brovakt/ingest/ais"
	"github.com/projectqai/brovakt/metrics"
	"github.com/projectqai/brovakt/orchestrator"
	"github.com/projectqai/brovakt/stateengine"
	"github.com/projectqai/brovakt/vessel"
	"github.com/projectqai/brovakt/version"
)

var (
	bridgeTablePath string
	aisAddr         string
	metricsAddr     string
)

// CMD is the `run` subcommand: starts the AIS ingest loop and logs the
// bridge text on every change.
var CMD = &cobra.Command{
	Use:   "run",
	Short: "ingest AIS traffic and narrate bridge status",
	RunE:  runE,
}

func init() {
	CMD.Flags().StringVar(&bridgeTablePath, "bridge-table", "", "path to a YAML bridge table; defaults to the built-in Trollhätte kanal catalogue")
	CMD.Flags().StringVar(&aisAddr, "ais-addr", "", "host:port of the NMEA/AIS feed; defaults to BROVAKT_AIS_HOST:BROVAKT_AIS_PORT")
	CMD.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on")
	cmd.CMD.AddCommand(CMD)
}

func runE(c *cobra.Command, args []string) error {
	logger := slog.Default().With("module", "run")

	cfg, closeWatcher, err := config.Load(bridgeTablePath, logger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if closeWatcher != nil {
		defer closeWatcher()
	}

	addr := aisAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.AISHost, cfg.AISPort)
	}

	metricsHandler, err := metrics.InitPrometheus()
	if err != nil {
		return fmt.Errorf("init prometheus exporter: %w", err)
	}
	if err := metrics.Init(); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	go serveMetrics(metricsAddr, metricsHandler, logger)

	engine := stateengine.New(stateengine.Config{Registry: cfg.Registry, BoundingBox: cfg.BoundingBox})
	coord := coordinator.New(coordinator.Config{})
	generator := bridgetext.New(cfg.Registry)
	publisher := orchestrator.NewLogPublisher(logger)
	classify := func(mmsi string, snap vessel.Snapshot) coordinator.PositionAnalysis {
		if engine.HasGPSJumpHold(mmsi) {
			metrics.IncGPSJump()
			return coordinator.PositionAnalysis{Class: coordinator.MoveGPSJump}
		}
		return coordinator.PositionAnalysis{Class: coordinator.MoveNormal}
	}
	orch := orchestrator.New(engine, coord, generator, publisher, classify)

	printBanner(addr, metricsAddr)

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go periodicCleanup(ctx, orch)
	go periodicVesselCount(ctx, engine)

	reader := ais.NewReader(logger)
	err = reader.DialAndRun(ctx, addr, orchestratorSink{orch})
	orch.Shutdown()
	engine.ClearAllTimers()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// orchestratorSink adapts *orchestrator.Orchestrator to ais.Sink.
type orchestratorSink struct {
	o *orchestrator.Orchestrator
}

func (s orchestratorSink) Ingest(mmsi string, report vessel.PositionReport) error {
	return s.o.Ingest(mmsi, report)
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server error", "error", err)
	}
}

func periodicCleanup(ctx context.Context, orch *orchestrator.Orchestrator) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orch.Cleanup()
		}
	}
}

func periodicVesselCount(ctx context.Context, engine *stateengine.Engine) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetVesselCount(len(engine.All()))
		}
	}
}

func printBanner(aisAddr, metricsAddr string) {
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	bold := color.New(color.Bold)

	fmt.Println()
	_, _ = green.Print("  ➜ ")
	_, _ = bold.Print("Brovakt Canal Watch ")
	fmt.Printf("(%s)\n", version.Version)
	_, _ = green.Print("  ➜ ")
	fmt.Print("AIS feed:  ")
	_, _ = cyan.Println(aisAddr)
	_, _ = green.Print("  ➜ ")
	fmt.Print("Metrics:   ")
	_, _ = cyan.Printf("http://localhost%s/metrics\n", metricsAddr)
	fmt.Println()
}
