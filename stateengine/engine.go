// Package stateengine implements the per-vessel tracking state machine:
// ingesting position reports, classifying status against bridge proximity,
// detecting bridge passage, and maintaining the short-lived hold flags the
// bridge text generator consumes.
//
// The map of vessels and their cleanup timers are owned by a single mutex,
// so report handlers and timer callbacks observe serialized state.
package stateengine

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/projectqai/brovakt/bridge"
	"github.com/projectqai/brovakt/geo"
	"github.com/projectqai/brovakt/vessel"
)

// Proximity constants, meters.
const (
	UnderBridgeDistance = 50
	ApproachRadius      = 300
	ApproachingRadius   = 500
)

// RecentPassageSpan is how long a vessel keeps its passed classification
// after clearing a bridge, so the recently-passed announcement survives
// subsequent reports. Inclusive at the boundary.
const RecentPassageSpan = 60 * time.Second

// Default timing constants.
const (
	DefaultStaleWindow        = time.Hour
	DefaultSyntheticHoldSpan  = 20 * time.Second
	DefaultGPSJumpHold        = 5 * time.Second
	DefaultWaitingHoldSpan    = 20 * time.Second
	DefaultJumpThresholdMeter = 300.0
	DefaultRealisticSpeedMps  = 15.0 // ~29 kn, generous upper bound for "time gap explains it"
	DefaultLargeMoveMinSOG    = 5.0  // knots
	DefaultStationarySOG      = 0.5  // knots
)

const knotsToMps = 0.514444

// Config is the immutable configuration the engine is constructed with.
type Config struct {
	Registry    *bridge.Registry
	BoundingBox geo.BoundingBox

	StaleWindow        time.Duration
	SyntheticHoldSpan  time.Duration
	GPSJumpHold        time.Duration
	WaitingHoldSpan    time.Duration
	JumpThresholdMeter float64
	RealisticSpeedMps  float64
	LargeMoveMinSOG    float64
	StationarySOG      float64

	// Now supplies the current time; defaults to time.Now when nil. Tests
	// inject a fixed or stepped clock.
	Now func() time.Time

	// AfterFunc schedules a callback after d; defaults to time.AfterFunc.
	// Tests can override to avoid relying on wall-clock timers.
	AfterFunc func(d time.Duration, f func()) *time.Timer
}

// WithDefaults fills zero-valued fields of cfg with the package defaults.
func (c Config) WithDefaults() Config {
	if c.StaleWindow <= 0 {
		c.StaleWindow = DefaultStaleWindow
	}
	if c.SyntheticHoldSpan <= 0 {
		c.SyntheticHoldSpan = DefaultSyntheticHoldSpan
	}
	if c.GPSJumpHold <= 0 {
		c.GPSJumpHold = DefaultGPSJumpHold
	}
	if c.WaitingHoldSpan <= 0 {
		c.WaitingHoldSpan = DefaultWaitingHoldSpan
	}
	if c.JumpThresholdMeter <= 0 {
		c.JumpThresholdMeter = DefaultJumpThresholdMeter
	}
	if c.RealisticSpeedMps <= 0 {
		c.RealisticSpeedMps = DefaultRealisticSpeedMps
	}
	if c.LargeMoveMinSOG <= 0 {
		c.LargeMoveMinSOG = DefaultLargeMoveMinSOG
	}
	if c.StationarySOG <= 0 {
		c.StationarySOG = DefaultStationarySOG
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.AfterFunc == nil {
		c.AfterFunc = time.AfterFunc
	}
	return c
}

type moveClass int

const (
	moveNormal moveClass = iota
	moveLarge
	moveGPSJump
)

// record is the mutable, internal vessel record. Never exposed directly;
// Engine hands out vessel.Snapshot copies.
type record struct {
	mmsi   string
	name   string
	lat    float64
	lon    float64
	sog    float64
	cog    float64
	hasCOG bool

	lastUpdateTime time.Time

	hasCurrentBridge  bool
	currentBridgeID   string
	currentBridgeName string
	distanceToCurrent float64

	hasTargetBridge bool
	targetBridge    string

	status     vessel.Status
	hasETA     bool
	etaMinutes float64
	isWaiting  bool
	confidence vessel.Confidence

	passedBridges        []string
	passedSet            map[string]bool
	hasLastPassedBridge  bool
	lastPassedBridge     string
	lastPassedBridgeTime time.Time

	hold vessel.Hold

	hasGPSJumpHold   bool
	gpsJumpHoldUntil time.Time

	// passage-detection bookkeeping
	underBridgeID string // bridge id currently in a sub-50m episode, "" if none

	// waiting-hold bookkeeping
	approachBridgeID string
	approachSince    time.Time

	cleanupTimer *time.Timer
}

// Engine is the Vessel State Engine.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	vessels map[string]*record
}

// New builds an Engine from cfg, filling unset fields with defaults.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg.WithDefaults(),
		vessels: make(map[string]*record),
	}
}

// Update ingests a position report for mmsi. It returns the resulting
// snapshot, or (zero, false) if the report was rejected. Non-finite or
// out-of-bounding-box reports never create or mutate a vessel.
func (e *Engine) Update(mmsi string, report vessel.PositionReport) (vessel.Snapshot, bool) {
	if mmsi == "" || !finite(report.Lat, report.Lon) {
		return vessel.Snapshot{}, false
	}
	if !e.cfg.BoundingBox.Contains(geo.Point{Lat: report.Lat, Lon: report.Lon}) {
		return vessel.Snapshot{}, false
	}

	now := report.Timestamp
	if now.IsZero() {
		now = e.cfg.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, existed := e.vessels[mmsi]
	if !existed {
		rec = &record{mmsi: mmsi, passedSet: make(map[string]bool)}
		e.vessels[mmsi] = rec
	}
	if report.Name != "" {
		rec.name = report.Name
	}

	prevLat, prevLon, prevTime := rec.lat, rec.lon, rec.lastUpdateTime
	hadPrev := existed && !prevTime.IsZero()

	rec.sog = valueOr(report.HasSOG, report.SOG, rec.sog)
	rec.cog = report.COG
	rec.hasCOG = report.HasCOG
	rec.lastUpdateTime = now

	if hadPrev {
		dist, ok := geo.Distance(geo.Point{Lat: prevLat, Lon: prevLon}, geo.Point{Lat: report.Lat, Lon: report.Lon})
		if ok {
			switch e.classifyMovement(dist, now.Sub(prevTime), rec.sog, report.HasSOG) {
			case moveGPSJump:
				rec.hasGPSJumpHold = true
				rec.gpsJumpHoldUntil = now.Add(e.cfg.GPSJumpHold)
			case moveNormal, moveLarge:
				// accepted; a large-but-plausible move is advisory only
				// and doesn't change engine behavior here.
			}
		}
	}

	rec.lat = report.Lat
	rec.lon = report.Lon

	e.recomputeCurrentBridge(rec, now)
	e.recomputeStatus(rec, now)
	e.detectPassage(rec, prevLat, prevLon, hadPrev, now)
	e.recomputeTarget(rec)
	e.recomputeETA(rec)

	e.scheduleCleanupLocked(rec, e.cfg.StaleWindow)

	return e.snapshotLocked(rec), true
}

// Get returns the current snapshot for mmsi, if tracked.
func (e *Engine) Get(mmsi string) (vessel.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.vessels[mmsi]
	if !ok {
		return vessel.Snapshot{}, false
	}
	return e.snapshotLocked(rec), true
}

// All returns a consistent snapshot of every tracked vessel, sorted by
// ascending MMSI. The view is consistent: every snapshot is taken under
// the same lock acquisition.
func (e *Engine) All() []vessel.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]vessel.Snapshot, 0, len(e.vessels))
	for _, rec := range e.vessels {
		out = append(out, e.snapshotLocked(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

// Remove deletes a vessel, cancelling its timers synchronously before
// deletion. reason is accepted for logging by callers; the engine itself
// does not log.
func (e *Engine) Remove(mmsi string, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(mmsi)
}

func (e *Engine) removeLocked(mmsi string) {
	rec, ok := e.vessels[mmsi]
	if !ok {
		return
	}
	if rec.cleanupTimer != nil {
		rec.cleanupTimer.Stop()
		rec.cleanupTimer = nil
	}
	delete(e.vessels, mmsi)
}

// ScheduleCleanup (re)schedules removal of mmsi after delay, replacing any
// existing cleanup timer for it.
func (e *Engine) ScheduleCleanup(mmsi string, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.vessels[mmsi]
	if !ok {
		return
	}
	e.scheduleCleanupLocked(rec, delay)
}

func (e *Engine) scheduleCleanupLocked(rec *record, delay time.Duration) {
	if rec.cleanupTimer != nil {
		rec.cleanupTimer.Stop()
	}
	mmsi := rec.mmsi
	rec.cleanupTimer = e.cfg.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.removeLocked(mmsi)
	})
}

// ClearCleanup cancels mmsi's cleanup timer without removing the vessel.
func (e *Engine) ClearCleanup(mmsi string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.vessels[mmsi]
	if !ok || rec.cleanupTimer == nil {
		return
	}
	rec.cleanupTimer.Stop()
	rec.cleanupTimer = nil
}

// ClearAllTimers cancels every outstanding timer across every vessel,
// without removing the vessels themselves. Used on shutdown.
func (e *Engine) ClearAllTimers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range e.vessels {
		if rec.cleanupTimer != nil {
			rec.cleanupTimer.Stop()
			rec.cleanupTimer = nil
		}
	}
}

// HasGPSJumpHold reports whether mmsi is currently under an implausible-jump
// filter hold.
func (e *Engine) HasGPSJumpHold(mmsi string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.vessels[mmsi]
	if !ok {
		return false
	}
	return rec.hasGPSJumpHold && rec.gpsJumpHoldUntil.After(e.cfg.Now())
}

// ConsumeHold clears mmsi's current hold flag after the generator has
// rendered the phrase it governed. The generator never mutates engine
// state itself; it reports which holds it used and the caller consumes
// them here.
func (e *Engine) ConsumeHold(mmsi string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.vessels[mmsi]
	if !ok {
		return
	}
	rec.hold = vessel.Hold{}
}

func (e *Engine) classifyMovement(dist float64, elapsed time.Duration, sog float64, hasSOG bool) moveClass {
	if dist <= e.cfg.JumpThresholdMeter {
		return moveNormal
	}
	if elapsed > 0 {
		explainable := e.cfg.RealisticSpeedMps * elapsed.Seconds()
		if dist <= explainable {
			return moveNormal
		}
	}
	if hasSOG && sog >= e.cfg.LargeMoveMinSOG {
		return moveLarge
	}
	return moveGPSJump
}

func (e *Engine) recomputeCurrentBridge(rec *record, now time.Time) {
	var (
		bestID, bestName string
		bestDist         = math.Inf(1)
		found            bool
	)
	for _, id := range e.cfg.Registry.Sequence() {
		b, ok := e.cfg.Registry.ByID(id)
		if !ok {
			continue
		}
		d, ok := geo.Distance(geo.Point{Lat: rec.lat, Lon: rec.lon}, geo.Point{Lat: b.Lat, Lon: b.Lon})
		if !ok {
			continue
		}
		if d < bestDist {
			bestDist, bestID, bestName, found = d, id, b.Name, true
		}
	}

	if !found || bestDist > ApproachingRadius {
		rec.hasCurrentBridge = false
		rec.currentBridgeID = ""
		rec.currentBridgeName = ""
		rec.distanceToCurrent = 0
		rec.approachBridgeID = ""
		return
	}

	rec.hasCurrentBridge = true
	rec.currentBridgeID = bestID
	rec.currentBridgeName = bestName
	rec.distanceToCurrent = bestDist

	if bestDist <= ApproachRadius {
		if rec.approachBridgeID != bestID {
			rec.approachBridgeID = bestID
			rec.approachSince = now
		}
	} else {
		rec.approachBridgeID = ""
	}
}

func (e *Engine) recomputeStatus(rec *record, now time.Time) {
	// A vessel that cleared a bridge within the last minute stays classified
	// as passed until it closes in on the next bridge, so the display keeps
	// announcing the passage instead of snapping straight back to en-route.
	if rec.hasLastPassedBridge && now.Sub(rec.lastPassedBridgeTime) <= RecentPassageSpan {
		stillClear := !rec.hasCurrentBridge ||
			(rec.currentBridgeName == rec.lastPassedBridge && rec.distanceToCurrent > UnderBridgeDistance)
		if stillClear {
			rec.status = vessel.StatusPassed
			rec.isWaiting = false
			rec.confidence = vessel.ConfidenceHigh
			return
		}
	}

	if !rec.hasCurrentBridge {
		rec.status = vessel.StatusEnRoute
		rec.isWaiting = false
		rec.confidence = vessel.ConfidenceHigh
		return
	}

	d := rec.distanceToCurrent
	special := e.cfg.Registry.IsSpecial(rec.currentBridgeName)

	switch {
	case d <= UnderBridgeDistance:
		rec.status = vessel.StatusUnderBridge
		rec.isWaiting = false
		rec.underBridgeID = rec.currentBridgeID
	case d <= ApproachRadius:
		held := now.Sub(rec.approachSince) >= e.cfg.WaitingHoldSpan
		switch {
		case special:
			rec.status = vessel.StatusStallbackaWaiting
			rec.isWaiting = true
		case rec.sog <= e.cfg.StationarySOG || held:
			rec.status = vessel.StatusWaiting
			rec.isWaiting = true
		default:
			rec.status = vessel.StatusApproaching
			rec.isWaiting = false
		}
	default: // d <= ApproachingRadius
		rec.status = vessel.StatusApproaching
		rec.isWaiting = false
	}

	rec.confidence = vessel.ConfidenceHigh
	if d > ApproachRadius {
		rec.confidence = vessel.ConfidenceMedium
	}
}

// detectPassage looks for a south↔north crossing of the bridge the vessel
// was most recently within UnderBridgeDistance of, confirmed by COG (or lat
// delta, if COG is absent) being consistent with the crossing direction.
func (e *Engine) detectPassage(rec *record, prevLat, prevLon float64, hadPrev bool, now time.Time) {
	if rec.underBridgeID == "" || !hadPrev {
		return
	}
	if rec.hasCurrentBridge && rec.currentBridgeID == rec.underBridgeID && rec.distanceToCurrent <= UnderBridgeDistance {
		return // still under the bridge, no passage yet
	}

	b, ok := e.cfg.Registry.ByID(rec.underBridgeID)
	if !ok {
		rec.underBridgeID = ""
		return
	}

	dist, ok := geo.Distance(geo.Point{Lat: rec.lat, Lon: rec.lon}, geo.Point{Lat: b.Lat, Lon: b.Lon})
	if !ok || dist < UnderBridgeDistance {
		return // not yet "clearly past"
	}

	crossedNorth := prevLat <= b.Lat && rec.lat > b.Lat
	crossedSouth := prevLat >= b.Lat && rec.lat < b.Lat
	if !crossedNorth && !crossedSouth {
		rec.underBridgeID = ""
		return
	}

	goingNorth := directionIsNorth(rec.cog, rec.hasCOG, rec.lat-prevLat)
	if goingNorth != crossedNorth {
		rec.underBridgeID = ""
		return
	}

	if !rec.passedSet[b.Name] {
		rec.passedBridges = append(rec.passedBridges, b.Name)
		rec.passedSet[b.Name] = true
	}
	rec.hasLastPassedBridge = true
	rec.lastPassedBridge = b.Name
	rec.lastPassedBridgeTime = now

	rec.hold = vessel.Hold{Kind: vessel.HoldPendingUnder, Bridge: b.Name, SetAt: now}

	// SOG briefly lost/zero across the bridge: keep a synthetic
	// under-bridge line visible for a short span even without a fresh
	// sub-50m report.
	if rec.sog <= e.cfg.StationarySOG {
		rec.hold = vessel.Hold{Kind: vessel.HoldSyntheticUnder, Bridge: b.Name, Until: now.Add(e.cfg.SyntheticHoldSpan)}
	}

	rec.status = vessel.StatusPassed
	rec.underBridgeID = ""
}

func valueOr(has bool, v, fallback float64) float64 {
	if has {
		return v
	}
	return fallback
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
