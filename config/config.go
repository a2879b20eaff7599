// Package config assembles the immutable configuration for one run of the
// system from a YAML bridge table plus environment variables, and
// hot-reloads the bridge table on change.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/projectqai/brovakt/bridge"
	"github.com/projectqai/brovakt/geo"
)

// BridgeTable is the YAML-serializable form of the bridge registry's
// configured catalogue: bridges table, sequence, target set, gap table.
// The special bridge name itself (Stallbackabron) is not
// operator-configurable; it carries its own template set and is a constant
// (bridge.StallbackabronName), not a deployment parameter.
type BridgeTable struct {
	Bridges []struct {
		ID     string  `yaml:"id"`
		Name   string  `yaml:"name"`
		Lat    float64 `yaml:"lat"`
		Lon    float64 `yaml:"lon"`
		Radius float64 `yaml:"radius"`
	} `yaml:"bridges"`
	Sequence []string `yaml:"sequence"`
	Targets  []string `yaml:"targets"`
	Gaps     []struct {
		From   string  `yaml:"from"`
		To     string  `yaml:"to"`
		Meters float64 `yaml:"meters"`
	} `yaml:"gaps"`
}

// Config is the fully assembled, immutable configuration for one run of the
// system.
type Config struct {
	Registry    *bridge.Registry
	BoundingBox geo.BoundingBox

	AISHost string
	AISPort int
}

// Load assembles a Config from the environment plus an optional bridge
// table file. An empty path selects the built-in catalogue. The returned
// closer stops the table watcher; it is non-nil only when a path was given.
// Config.Registry is the registry loaded at call time; later reloads by the
// watcher do not change it.
func Load(bridgeTablePath string, logger *slog.Logger) (Config, func(), error) {
	box, host, port := FromEnv()
	cfg := Config{BoundingBox: box, AISHost: host, AISPort: port}

	if bridgeTablePath == "" {
		cfg.Registry = bridge.NewDefault()
		return cfg, nil, nil
	}

	watcher, err := WatchBridgeTable(bridgeTablePath, logger)
	if err != nil {
		return Config{}, nil, err
	}
	cfg.Registry = watcher.Registry()
	return cfg, func() { _ = watcher.Close() }, nil
}

// buildRegistry converts a BridgeTable into a bridge.Registry.
func buildRegistry(t BridgeTable) (*bridge.Registry, error) {
	bridges := make([]bridge.Bridge, 0, len(t.Bridges))
	for _, b := range t.Bridges {
		bridges = append(bridges, bridge.Bridge{ID: b.ID, Name: b.Name, Lat: b.Lat, Lon: b.Lon, Radius: b.Radius})
	}
	gaps := make([]bridge.Gap, 0, len(t.Gaps))
	for _, g := range t.Gaps {
		gaps = append(gaps, bridge.Gap{From: g.From, To: g.To, Meters: g.Meters})
	}

	reg := bridge.New(bridges, t.Sequence, t.Targets, gaps)
	if result := reg.Validate(); !result.OK {
		return nil, fmt.Errorf("invalid bridge table: %v", result.Errors)
	}
	return reg, nil
}

// LoadBridgeTable reads and parses a YAML bridge table file.
func LoadBridgeTable(path string) (BridgeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BridgeTable{}, fmt.Errorf("read bridge table: %w", err)
	}
	var t BridgeTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return BridgeTable{}, fmt.Errorf("parse bridge table: %w", err)
	}
	return t, nil
}

// FromEnv builds the non-bridge portion of Config from environment
// variables, loading a .env file first if present.
func FromEnv() (geo.BoundingBox, string, int) {
	_ = godotenv.Load()

	box := geo.BoundingBox{
		North: envFloat("BROVAKT_BBOX_NORTH", 58.32),
		South: envFloat("BROVAKT_BBOX_SOUTH", 58.26),
		East:  envFloat("BROVAKT_BBOX_EAST", 12.32),
		West:  envFloat("BROVAKT_BBOX_WEST", 12.27),
	}
	host := os.Getenv("BROVAKT_AIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := int(envFloat("BROVAKT_AIS_PORT", 10110))
	return box, host, port
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Watcher holds a hot-reloadable bridge.Registry: the bridge table file is
// re-read and swapped atomically on every write or create. Only later calls
// to Registry see the new table; a registry obtained earlier is not updated.
type Watcher struct {
	path string

	mu      sync.Mutex
	current atomic.Pointer[bridge.Registry]
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// WatchBridgeTable loads path once and starts watching its containing
// directory for changes. Call Close when done.
func WatchBridgeTable(path string, logger *slog.Logger) (*Watcher, error) {
	w := &Watcher{path: path, logger: logger}
	if err := w.reload(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create bridge table watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch bridge table directory: %w", err)
	}
	w.watcher = fw

	go w.loop()
	return w, nil
}

func (w *Watcher) reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	table, err := LoadBridgeTable(w.path)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(table)
	if err != nil {
		return err
	}
	w.current.Store(reg)
	return nil
}

func (w *Watcher) loop() {
	absPath, _ := filepath.Abs(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			eventPath, _ := filepath.Abs(event.Name)
			if eventPath != absPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := w.reload(); err != nil && w.logger != nil {
					w.logger.Warn("failed to reload bridge table, keeping previous", "error", err)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Error("bridge table watcher error", "error", err)
			}
		}
	}
}

// Registry returns the currently active registry, swapped atomically on
// reload.
func (w *Watcher) Registry() *bridge.Registry {
	return w.current.Load()
}

// Close stops the file watcher.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
