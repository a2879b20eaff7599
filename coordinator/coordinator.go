// Package coordinator implements the System Coordinator: a stabilizer that
// suppresses bridge-text churn during GPS anomalies and bursts of
// instability via per-vessel debounce windows and a decaying global
// instability counter.
package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default timing constants.
const (
	DefaultDebounceWindow         = 2 * time.Second
	DefaultGPSCooldown            = 5 * time.Second
	DefaultStabilizationWindow    = 10 * time.Second
	DefaultInstabilityDecayPeriod = 5 * time.Second
)

// InstabilityThreshold is the count of concurrent unstable events that
// triggers system-wide debounce.
const InstabilityThreshold = 3

// MoveClass mirrors the state engine's movement classification; the
// coordinator reasons about it independently so it can be driven by a
// fake clock in tests without importing stateengine.
type MoveClass int

const (
	MoveNormal MoveClass = iota
	MoveLarge
	MoveGPSJump
)

// PositionAnalysis summarizes one ingested report for coordination purposes.
type PositionAnalysis struct {
	Class          MoveClass
	DistanceMeters float64
	CautionAdvised bool // "accept with caution": plausible but unconfirmed
}

// StabilizationLevel ranks how aggressively the coordinator is intervening.
type StabilizationLevel int

const (
	StabilizationNone StabilizationLevel = iota
	StabilizationLight
	StabilizationModerate
	StabilizationEnhanced
)

func (l StabilizationLevel) String() string {
	switch l {
	case StabilizationLight:
		return "light"
	case StabilizationModerate:
		return "moderate"
	case StabilizationEnhanced:
		return "enhanced"
	default:
		return "none"
	}
}

// Decision is the result of coordinating one position update.
type Decision struct {
	ShouldProceed      bool
	ShouldDebounceText bool
	StabilizationLevel StabilizationLevel
	Reason             string
}

// StatusResult is the status classification produced upstream by the state
// engine, passed through for stabilization enhancement.
type StatusResult struct {
	Status     string
	Confidence string
}

// EnhancedStatus layers a stabilization verdict on top of a StatusResult.
type EnhancedStatus struct {
	StatusResult
	StabilizationLevel StabilizationLevel
	Suppressed         bool
}

// DebounceDecision is the verdict from ShouldDebounceBridgeText.
type DebounceDecision struct {
	ShouldDebounce bool
	RemainingTime  time.Duration
	Reason         string
}

type debounceEntry struct {
	token string
	until time.Time
	timer *time.Timer
}

type vesselState struct {
	coordinationActive bool
	coordinationUntil  time.Time
}

// Config is the immutable coordinator configuration.
type Config struct {
	DebounceWindow         time.Duration
	GPSCooldown            time.Duration
	StabilizationWindow    time.Duration
	InstabilityDecayPeriod time.Duration

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) *time.Timer
}

// WithDefaults fills zero-valued fields of cfg with package defaults.
func (c Config) WithDefaults() Config {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = DefaultDebounceWindow
	}
	if c.GPSCooldown <= 0 {
		c.GPSCooldown = DefaultGPSCooldown
	}
	if c.StabilizationWindow <= 0 {
		c.StabilizationWindow = DefaultStabilizationWindow
	}
	if c.InstabilityDecayPeriod <= 0 {
		c.InstabilityDecayPeriod = DefaultInstabilityDecayPeriod
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.AfterFunc == nil {
		c.AfterFunc = time.AfterFunc
	}
	return c
}

// Coordinator is the System Coordinator.
type Coordinator struct {
	mu  sync.Mutex
	cfg Config

	vessels  map[string]*vesselState
	debounce map[string]*debounceEntry

	instabilityCount int
	decayTimer       *time.Timer
}

// New builds a Coordinator from cfg, filling unset fields with defaults.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		cfg:      cfg.WithDefaults(),
		vessels:  make(map[string]*vesselState),
		debounce: make(map[string]*debounceEntry),
	}
}

// CoordinatePositionUpdate classifies one position update's stability impact
// and arms a debounce window when warranted.
func (c *Coordinator) CoordinatePositionUpdate(mmsi string, analysis PositionAnalysis) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cfg.Now()

	vs, ok := c.vessels[mmsi]
	if !ok {
		vs = &vesselState{}
		c.vessels[mmsi] = vs
	}

	var (
		level          StabilizationLevel
		debounceWindow time.Duration
		reason         string
	)

	switch {
	case analysis.Class == MoveGPSJump:
		level = StabilizationEnhanced
		debounceWindow = c.cfg.DebounceWindow
		vs.coordinationActive = true
		vs.coordinationUntil = now.Add(c.cfg.StabilizationWindow)
		reason = "gps jump"
		c.recordUnstableLocked()
	case analysis.CautionAdvised:
		level = StabilizationModerate
		debounceWindow = c.cfg.DebounceWindow
		reason = "accept with caution"
		c.recordUnstableLocked()
	case analysis.Class == MoveLarge:
		level = StabilizationLight
		debounceWindow = c.cfg.DebounceWindow
		reason = "large move"
	default:
		level = StabilizationNone
		reason = "normal"
	}

	shouldDebounce := debounceWindow > 0
	if shouldDebounce {
		c.armDebounceLocked(mmsi, debounceWindow)
	}

	return Decision{
		ShouldProceed:      true,
		ShouldDebounceText: shouldDebounce,
		StabilizationLevel: level,
		Reason:             reason,
	}
}

// CoordinateStatusStabilization layers the vessel's ongoing coordination
// window onto a status classification produced upstream.
func (c *Coordinator) CoordinateStatusStabilization(mmsi string, status StatusResult, analysis PositionAnalysis) EnhancedStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cfg.Now()

	vs, tracked := c.vessels[mmsi]
	active := tracked && vs.coordinationActive && vs.coordinationUntil.After(now)

	level := StabilizationNone
	switch {
	case active:
		level = StabilizationEnhanced
	case analysis.CautionAdvised:
		level = StabilizationModerate
	case analysis.Class == MoveLarge:
		level = StabilizationLight
	}

	return EnhancedStatus{
		StatusResult:       status,
		StabilizationLevel: level,
		Suppressed:         active && analysis.Class == MoveGPSJump,
	}
}

// ShouldDebounceBridgeText reports whether publishing should be suppressed,
// either because of global instability or because any of the given vessels
// is within its own debounce window.
func (c *Coordinator) ShouldDebounceBridgeText(mmsis []string) DebounceDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cfg.Now()

	if c.instabilityCount >= InstabilityThreshold {
		return DebounceDecision{ShouldDebounce: true, RemainingTime: c.cfg.DebounceWindow, Reason: "global instability"}
	}

	var (
		longest time.Duration
		reason  string
	)
	for _, mmsi := range mmsis {
		entry, ok := c.debounce[mmsi]
		if !ok {
			continue
		}
		remaining := entry.until.Sub(now)
		if remaining > longest {
			longest = remaining
			reason = "vessel " + mmsi + " debounced"
		}
	}
	return DebounceDecision{ShouldDebounce: longest > 0, RemainingTime: longest, Reason: reason}
}

// Cleanup prunes expired per-vessel coordination windows and debounce
// entries. Safe to call periodically; it never removes a tracked vessel.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.cfg.Now()

	for _, vs := range c.vessels {
		if vs.coordinationActive && !vs.coordinationUntil.After(now) {
			vs.coordinationActive = false
		}
	}
	for mmsi, e := range c.debounce {
		if !e.until.After(now) {
			if e.timer != nil {
				e.timer.Stop()
			}
			delete(c.debounce, mmsi)
		}
	}
}

// RemoveVessel drops all coordinator state for mmsi and cancels its debounce
// timer synchronously, before any state is deleted.
func (c *Coordinator) RemoveVessel(mmsi string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vessels, mmsi)
	if e, ok := c.debounce[mmsi]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(c.debounce, mmsi)
	}
}

func (c *Coordinator) armDebounceLocked(mmsi string, window time.Duration) {
	if e, ok := c.debounce[mmsi]; ok && e.timer != nil {
		e.timer.Stop()
	}
	token := uuid.NewString()
	entry := &debounceEntry{token: token, until: c.cfg.Now().Add(window)}
	entry.timer = c.cfg.AfterFunc(window, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.debounce[mmsi]; ok && cur.token == token {
			delete(c.debounce, mmsi)
		}
	})
	c.debounce[mmsi] = entry
}

// recordUnstableLocked increments the global instability counter and arms
// its decay timer (one decrement per quiet InstabilityDecayPeriod).
func (c *Coordinator) recordUnstableLocked() {
	c.instabilityCount++
	c.armDecayLocked()
}

func (c *Coordinator) armDecayLocked() {
	if c.decayTimer != nil {
		c.decayTimer.Stop()
		c.decayTimer = nil
	}
	if c.instabilityCount <= 0 {
		return
	}
	c.decayTimer = c.cfg.AfterFunc(c.cfg.InstabilityDecayPeriod, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.instabilityCount > 0 {
			c.instabilityCount--
		}
		c.decayTimer = nil
		c.armDecayLocked()
	})
}
