package metrics

import (
	"context"
	"runtime"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	vesselCount       atomic.Int64
	publishCount      atomic.Int64
	debounceCount     atomic.Int64
	gpsJumpCount      atomic.Int64
	lastGenerateNanos atomic.Int64

	meter metric.Meter

	// Application metrics
	vesselCountGauge     metric.Int64ObservableGauge
	publishCounter       metric.Int64ObservableCounter
	debounceCounter      metric.Int64ObservableCounter
	gpsJumpCounter       metric.Int64ObservableCounter
	generateLatencyGauge metric.Int64ObservableGauge

	// Go runtime metrics
	goroutinesGauge     metric.Int64ObservableGauge
	memAllocGauge       metric.Int64ObservableGauge
	memTotalAllocGauge  metric.Int64ObservableGauge
	memSysGauge         metric.Int64ObservableGauge
	memHeapAllocGauge   metric.Int64ObservableGauge
	memHeapSysGauge     metric.Int64ObservableGauge
	memHeapObjectsGauge metric.Int64ObservableGauge
	gcNumGauge          metric.Int64ObservableGauge
	gcPauseTotalGauge   metric.Int64ObservableGauge
	numCPUGauge         metric.Int64ObservableGauge
)

func Init() error {
	meter = otel.Meter("brovakt.metrics")

	var err error
	vesselCountGauge, err = meter.Int64ObservableGauge(
		"brovakt.vessels.tracked",
		metric.WithDescription("Number of vessels currently tracked by the state engine"),
		metric.WithUnit("{vessels}"),
	)
	if err != nil {
		return err
	}

	publishCounter, err = meter.Int64ObservableCounter(
		"brovakt.bridgetext.published",
		metric.WithDescription("Number of bridge-text messages published (after debounce)"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return err
	}

	debounceCounter, err = meter.Int64ObservableCounter(
		"brovakt.bridgetext.debounced",
		metric.WithDescription("Number of bridge-text publishes suppressed by debounce"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		return err
	}

	gpsJumpCounter, err = meter.Int64ObservableCounter(
		"brovakt.vessels.gps_jumps",
		metric.WithDescription("Number of implausible position jumps detected"),
		metric.WithUnit("{events}"),
	)
	if err != nil {
		return err
	}

	generateLatencyGauge, err = meter.Int64ObservableGauge(
		"brovakt.bridgetext.generate_latency",
		metric.WithDescription("Wall time of the last bridge text generation"),
		metric.WithUnit("ns"),
	)
	if err != nil {
		return err
	}

	// Go runtime metrics
	goroutinesGauge, err = meter.Int64ObservableGauge(
		"go.goroutines",
		metric.WithDescription("Number of goroutines"),
		metric.WithUnit("{goroutines}"),
	)
	if err != nil {
		return err
	}

	memAllocGauge, err = meter.Int64ObservableGauge(
		"go.memory.allocated",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	memTotalAllocGauge, err = meter.Int64ObservableGauge(
		"go.memory.total_allocated",
		metric.WithDescription("Cumulative bytes allocated for heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	memSysGauge, err = meter.Int64ObservableGauge(
		"go.memory.sys",
		metric.WithDescription("Total bytes of memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	memHeapAllocGauge, err = meter.Int64ObservableGauge(
		"go.memory.heap.allocated",
		metric.WithDescription("Bytes of allocated heap objects"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	memHeapSysGauge, err = meter.Int64ObservableGauge(
		"go.memory.heap.sys",
		metric.WithDescription("Bytes of heap memory obtained from the OS"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	memHeapObjectsGauge, err = meter.Int64ObservableGauge(
		"go.memory.heap.objects",
		metric.WithDescription("Number of allocated heap objects"),
		metric.WithUnit("{objects}"),
	)
	if err != nil {
		return err
	}

	gcNumGauge, err = meter.Int64ObservableGauge(
		"go.gc.count",
		metric.WithDescription("Number of completed GC cycles"),
		metric.WithUnit("{cycles}"),
	)
	if err != nil {
		return err
	}

	gcPauseTotalGauge, err = meter.Int64ObservableGauge(
		"go.gc.pause_total_ns",
		metric.WithDescription("Cumulative nanoseconds in GC stop-the-world pauses"),
		metric.WithUnit("ns"),
	)
	if err != nil {
		return err
	}

	numCPUGauge, err = meter.Int64ObservableGauge(
		"go.cpu.count",
		metric.WithDescription("Number of logical CPUs"),
		metric.WithUnit("{cpus}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(vesselCountGauge, vesselCount.Load())
			o.ObserveInt64(publishCounter, publishCount.Load())
			o.ObserveInt64(debounceCounter, debounceCount.Load())
			o.ObserveInt64(gpsJumpCounter, gpsJumpCount.Load())
			o.ObserveInt64(generateLatencyGauge, lastGenerateNanos.Load())

			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			o.ObserveInt64(goroutinesGauge, int64(runtime.NumGoroutine()))
			o.ObserveInt64(memAllocGauge, int64(m.Alloc))
			o.ObserveInt64(memTotalAllocGauge, int64(m.TotalAlloc))
			o.ObserveInt64(memSysGauge, int64(m.Sys))
			o.ObserveInt64(memHeapAllocGauge, int64(m.HeapAlloc))
			o.ObserveInt64(memHeapSysGauge, int64(m.HeapSys))
			o.ObserveInt64(memHeapObjectsGauge, int64(m.HeapObjects))
			o.ObserveInt64(gcNumGauge, int64(m.NumGC))
			o.ObserveInt64(gcPauseTotalGauge, int64(m.PauseTotalNs))
			o.ObserveInt64(numCPUGauge, int64(runtime.NumCPU()))

			return nil
		},
		vesselCountGauge,
		publishCounter,
		debounceCounter,
		gpsJumpCounter,
		generateLatencyGauge,
		goroutinesGauge,
		memAllocGauge,
		memTotalAllocGauge,
		memSysGauge,
		memHeapAllocGauge,
		memHeapSysGauge,
		memHeapObjectsGauge,
		gcNumGauge,
		gcPauseTotalGauge,
		numCPUGauge,
	)

	return err
}

// SetVesselCount records the current number of tracked vessels.
func SetVesselCount(count int) {
	vesselCount.Store(int64(count))
}

// IncPublished records a bridge-text publish.
func IncPublished() {
	publishCount.Add(1)
}

// IncDebounced records a suppressed publish.
func IncDebounced() {
	debounceCount.Add(1)
}

// IncGPSJump records a detected implausible position jump.
func IncGPSJump() {
	gpsJumpCount.Add(1)
}

// ObserveGenerateLatency records how long the last Generate call took.
func ObserveGenerateLatency(d int64) {
	lastGenerateNanos.Store(d)
}
