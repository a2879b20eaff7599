package stateengine

import (
	"sort"

	"github.com/projectqai/brovakt/geo"
	"github.com/projectqai/brovakt/vessel"
)

type targetCandidate struct {
	name string
	id   string
	idx  int
}

// recomputeTarget selects the next relevant target bridge in the direction
// implied by COG, skipping bridges already passed.
func (e *Engine) recomputeTarget(rec *record) {
	seq := e.cfg.Registry.Sequence()
	indexOf := make(map[string]int, len(seq))
	for i, id := range seq {
		indexOf[id] = i
	}

	var candidates []targetCandidate
	for _, name := range e.cfg.Registry.Targets() {
		b, ok := e.cfg.Registry.ByName(name)
		if !ok {
			continue
		}
		idx, ok := indexOf[b.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, targetCandidate{name: name, id: b.ID, idx: idx})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].idx < candidates[j].idx })

	curIdx := e.projectedIndex(rec, seq, indexOf)
	// target selection has no successive-position context of its own, so
	// an absent COG defaults to north rather than leaving targetBridge
	// unset.
	goingNorth := rec.hasCOG && directionIsNorth(rec.cog, true, 0)
	if !rec.hasCOG {
		goingNorth = true
	}

	if goingNorth {
		for _, c := range candidates {
			if c.idx >= curIdx && !rec.passedSet[c.name] {
				rec.hasTargetBridge = true
				rec.targetBridge = c.name
				return
			}
		}
	} else {
		for i := len(candidates) - 1; i >= 0; i-- {
			c := candidates[i]
			if c.idx <= curIdx && !rec.passedSet[c.name] {
				rec.hasTargetBridge = true
				rec.targetBridge = c.name
				return
			}
		}
	}

	rec.hasTargetBridge = false
	rec.targetBridge = ""
}

// projectedIndex estimates the vessel's position along the bridge sequence
// when it isn't currently within range of any single bridge, by counting
// how many bridges lie at or south of its latitude. The canal sequence runs
// monotonically south to north, so this is a reasonable stand-in for a full
// route projection.
func (e *Engine) projectedIndex(rec *record, seq []string, indexOf map[string]int) int {
	if rec.hasCurrentBridge {
		if idx, ok := indexOf[rec.currentBridgeID]; ok {
			return idx
		}
	}
	count := -1
	for _, id := range seq {
		b, ok := e.cfg.Registry.ByID(id)
		if !ok {
			continue
		}
		if b.Lat <= rec.lat {
			count++
		}
	}
	if count < 0 {
		count = 0
	}
	return count
}

// recomputeETA computes minutes to the target bridge from distance / speed,
// speed floored at a minimum so a stopped vessel still yields a finite ETA
// Waiting vessels still get a numeric ETA here; the generator suppresses
// its display for waiting-at-target templates.
func (e *Engine) recomputeETA(rec *record) {
	if !rec.hasTargetBridge {
		rec.hasETA = false
		rec.etaMinutes = 0
		return
	}
	b, ok := e.cfg.Registry.ByName(rec.targetBridge)
	if !ok {
		rec.hasETA = false
		return
	}
	dist, ok := geo.Distance(geo.Point{Lat: rec.lat, Lon: rec.lon}, geo.Point{Lat: b.Lat, Lon: b.Lon})
	if !ok {
		rec.hasETA = false
		return
	}
	speedKn := rec.sog
	if speedKn < e.cfg.StationarySOG {
		speedKn = e.cfg.StationarySOG
	}
	speedMps := speedKn * knotsToMps
	if speedMps <= 0 {
		rec.hasETA = false
		return
	}
	minutes := dist / speedMps / 60
	if minutes < 0 {
		rec.hasETA = false
		return
	}
	rec.hasETA = true
	rec.etaMinutes = minutes
}

// snapshotLocked builds an immutable snapshot for rec. Caller must hold
// e.mu.
func (e *Engine) snapshotLocked(rec *record) vessel.Snapshot {
	return vessel.Snapshot{
		MMSI:                 rec.mmsi,
		Name:                 rec.name,
		Lat:                  rec.lat,
		Lon:                  rec.lon,
		SOG:                  rec.sog,
		COG:                  rec.cog,
		LastUpdateTime:       rec.lastUpdateTime,
		CurrentBridge:        rec.currentBridgeName,
		HasCurrentBridge:     rec.hasCurrentBridge,
		DistanceToCurrent:    rec.distanceToCurrent,
		TargetBridge:         rec.targetBridge,
		HasTargetBridge:      rec.hasTargetBridge,
		Status:               rec.status,
		ETAMinutes:           rec.etaMinutes,
		HasETA:               rec.hasETA,
		IsWaiting:            rec.isWaiting,
		Confidence:           rec.confidence,
		PassedBridges:        append([]string(nil), rec.passedBridges...),
		LastPassedBridge:     rec.lastPassedBridge,
		HasLastPassedBridge:  rec.hasLastPassedBridge,
		LastPassedBridgeTime: rec.lastPassedBridgeTime,
		Hold:                 rec.hold,
		GPSJumpHoldUntil:     rec.gpsJumpHoldUntil,
		HasGPSJumpHold:       rec.hasGPSJumpHold,
	}
}
