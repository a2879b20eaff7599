package bridgetext

import (
	"sort"
	"time"

	"github.com/projectqai/brovakt/bridge"
	"github.com/projectqai/brovakt/vessel"
)

// recentPassageSpan is how long a just-passed vessel is still announced as
// "precis passerat" rather than folded into its new target group.
const recentPassageSpan = 60 * time.Second

// approachRadius mirrors the state engine's intermediate-bridge proximity
// threshold; the generator needs its own copy to decide whether a vessel is
// "at" a bridge for template selection.
const approachRadius = 300.0

// stallbackaApproachRadius is the wider band in which an approaching vessel
// gets the Stallbackabron-specific phrasing.
const stallbackaApproachRadius = 500.0

// groupKey computes the effective bridge name a vessel is reported under:
// prefer its live target, then its current bridge for an under-bridge
// vessel, then its last passed bridge, else drop it.
func groupKey(v vessel.Snapshot) (string, bool) {
	if v.HasTargetBridge {
		return v.TargetBridge, true
	}
	if v.HasCurrentBridge && v.Status == vessel.StatusUnderBridge {
		return v.CurrentBridge, true
	}
	if v.HasLastPassedBridge {
		return v.LastPassedBridge, true
	}
	return "", false
}

// groupVessels buckets snapshots by groupKey, preserving input order within
// each bucket.
func groupVessels(vessels []vessel.Snapshot) map[string][]vessel.Snapshot {
	groups := make(map[string][]vessel.Snapshot)
	for _, v := range vessels {
		key, ok := groupKey(v)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], v)
	}
	return groups
}

// selectLeader picks the priority vessel within a group: highest status
// priority, ties broken by smaller DistanceToCurrent, then smaller ETA, then
// ascending MMSI for stability. DistanceToCurrent is the distance to the
// vessel's nearest bridge, not to the group's bridge, and is 0 for a vessel
// near no bridge.
func selectLeader(group []vessel.Snapshot) vessel.Snapshot {
	best := group[0]
	for _, v := range group[1:] {
		if betterLeader(v, best) {
			best = v
		}
	}
	return best
}

func betterLeader(a, b vessel.Snapshot) bool {
	if a.Status.Priority() != b.Status.Priority() {
		return a.Status.Priority() > b.Status.Priority()
	}
	if a.DistanceToCurrent != b.DistanceToCurrent {
		return a.DistanceToCurrent < b.DistanceToCurrent
	}
	if a.HasETA != b.HasETA {
		return a.HasETA
	}
	if a.HasETA && a.ETAMinutes != b.ETAMinutes {
		return a.ETAMinutes < b.ETAMinutes
	}
	return a.MMSI < b.MMSI
}

// phraseForGroup renders the template for one bridge group, returning ok=false
// when the group should be silently skipped.
func phraseForGroup(key string, group []vessel.Snapshot, now time.Time, reg *bridge.Registry) (string, bool, []string) {
	leader := selectLeader(group)
	extra := len(group) - 1

	phrase, ok, consumed := phraseForVessel(leader, now, reg)
	if !ok {
		return "", false, nil
	}
	return withMultiSuffix(phrase, extra), true, consumed
}

func phraseForVessel(v vessel.Snapshot, now time.Time, reg *bridge.Registry) (string, bool, []string) {
	// (b) pending under-bridge hold takes priority over the recently-passed
	// phrase below: the engine sets it on the same update that records the
	// passage, and it must render once as "opening in progress" before the
	// vessel is ever described as having passed.
	// Consumed once rendered.
	if v.Hold.Kind == vessel.HoldPendingUnder {
		return phraseForHold(v, v.Hold.Bridge, reg), true, []string{v.MMSI}
	}

	// (c) synthetic under-bridge hold: not consumed, expires on its own.
	if v.Hold.Kind == vessel.HoldSyntheticUnder && v.Hold.Until.After(now) {
		return phraseForHold(v, v.Hold.Bridge, reg), true, nil
	}

	// (a) recently passed.
	if v.Status == vessel.StatusPassed && v.HasLastPassedBridge && now.Sub(v.LastPassedBridgeTime) <= recentPassageSpan {
		if !v.HasTargetBridge {
			return "", false, nil
		}
		return recentlyPassed(v.LastPassedBridge, v.TargetBridge, v.HasETA, v.ETAMinutes), true, nil
	}

	// (d) vessel is physically at a bridge other than its own target.
	if v.HasCurrentBridge && v.CurrentBridge != v.TargetBridge {
		if phrase, ok := phraseForIntermediate(v, reg); ok {
			return phrase, true, nil
		}
	}

	// (e) standard cases against the vessel's own target.
	if v.HasTargetBridge {
		return phraseForTarget(v), true, nil
	}

	return "", false, nil
}

func phraseForHold(v vessel.Snapshot, bridgeName string, reg *bridge.Registry) string {
	if reg.IsSpecial(bridgeName) {
		return stallbackaUnder(v.TargetBridge, v.HasETA, v.ETAMinutes)
	}
	// Openings at a target bridge never carry an ETA clause.
	if reg.IsTarget(bridgeName) || !v.HasTargetBridge {
		return underTarget(bridgeName)
	}
	return underIntermediate(bridgeName, v.TargetBridge, v.HasETA, v.ETAMinutes)
}

func phraseForIntermediate(v vessel.Snapshot, reg *bridge.Registry) (string, bool) {
	if !v.HasTargetBridge {
		return "", false
	}
	if reg.IsSpecial(v.CurrentBridge) {
		switch v.Status {
		case vessel.StatusUnderBridge:
			return stallbackaUnder(v.TargetBridge, v.HasETA, v.ETAMinutes), true
		case vessel.StatusStallbackaWaiting:
			return stallbackaClose(v.TargetBridge, v.HasETA, v.ETAMinutes), true
		case vessel.StatusApproaching:
			if v.DistanceToCurrent <= stallbackaApproachRadius {
				return stallbackaApproach(v.TargetBridge, v.HasETA, v.ETAMinutes), true
			}
		}
		return "", false
	}

	switch v.Status {
	case vessel.StatusUnderBridge:
		if reg.IsTarget(v.CurrentBridge) {
			return underTarget(v.CurrentBridge), true
		}
		return underIntermediate(v.CurrentBridge, v.TargetBridge, v.HasETA, v.ETAMinutes), true
	case vessel.StatusWaiting:
		return waitingAtIntermediate(v.CurrentBridge, v.TargetBridge, v.HasETA, v.ETAMinutes), true
	case vessel.StatusPassed:
		return enRoute(v.TargetBridge, v.HasETA, v.ETAMinutes), true
	case vessel.StatusApproaching:
		if v.DistanceToCurrent <= approachRadius {
			return intermediateApproaching(v.CurrentBridge, v.TargetBridge, v.HasETA, v.ETAMinutes), true
		}
	}
	return "", false
}

func phraseForTarget(v vessel.Snapshot) string {
	switch v.Status {
	case vessel.StatusUnderBridge:
		return underTarget(v.TargetBridge)
	case vessel.StatusWaiting:
		return waitingAtTarget(v.TargetBridge)
	case vessel.StatusStallbackaWaiting:
		return stallbackaClose(v.TargetBridge, v.HasETA, v.ETAMinutes)
	case vessel.StatusApproaching:
		return approachingTarget(v.TargetBridge, v.HasETA, v.ETAMinutes)
	default:
		return enRoute(v.TargetBridge, v.HasETA, v.ETAMinutes)
	}
}

// orderedKeys sorts group keys so Klaffbron leads, Stridsbergsbron follows,
// and anything else falls back to lexicographic order.
func orderedKeys(groups map[string][]vessel.Snapshot) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		switch k {
		case "Klaffbron":
			return 0
		case "Stridsbergsbron":
			return 1
		default:
			return 2
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}
