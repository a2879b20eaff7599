package coordinator

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestCoordinator(clock *fakeClock) *Coordinator {
	return New(Config{Now: clock.Now})
}

func TestCoordinatePositionUpdate_GPSJump_EnhancedAndDebounced(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)

	d := c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveGPSJump})
	if d.StabilizationLevel != StabilizationEnhanced {
		t.Fatalf("got level %s want enhanced", d.StabilizationLevel)
	}
	if !d.ShouldDebounceText {
		t.Fatalf("expected debounce to be armed")
	}
}

func TestCoordinatePositionUpdate_LargeMove_LightDebounceOnly(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)

	d := c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveLarge})
	if d.StabilizationLevel != StabilizationLight {
		t.Fatalf("got level %s want light", d.StabilizationLevel)
	}
	if !d.ShouldDebounceText {
		t.Fatalf("expected a debounce window for a large move")
	}
}

func TestCoordinatePositionUpdate_Normal_NoDebounce(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)

	d := c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveNormal})
	if d.StabilizationLevel != StabilizationNone || d.ShouldDebounceText {
		t.Fatalf("expected no stabilization for a normal move, got %+v", d)
	}
}

func TestShouldDebounceBridgeText_PerVesselWindow(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)
	c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveGPSJump})

	decision := c.ShouldDebounceBridgeText([]string{"1"})
	if !decision.ShouldDebounce {
		t.Fatalf("expected vessel 1's debounce window to be active")
	}

	clock.now = clock.now.Add(DefaultDebounceWindow + time.Millisecond)
	decision = c.ShouldDebounceBridgeText([]string{"1"})
	if decision.ShouldDebounce {
		t.Fatalf("expected debounce window to have elapsed")
	}
}

func TestShouldDebounceBridgeText_GlobalInstability(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)
	for i := 0; i < InstabilityThreshold; i++ {
		c.CoordinatePositionUpdate("v", PositionAnalysis{Class: MoveGPSJump})
	}

	decision := c.ShouldDebounceBridgeText(nil)
	if !decision.ShouldDebounce || decision.Reason != "global instability" {
		t.Fatalf("expected global instability debounce, got %+v", decision)
	}
}

func TestCoordinateStatusStabilization_ActiveWindowEnhances(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)
	c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveGPSJump})

	enhanced := c.CoordinateStatusStabilization("1", StatusResult{Status: "approaching"}, PositionAnalysis{Class: MoveNormal})
	if enhanced.StabilizationLevel != StabilizationEnhanced {
		t.Fatalf("expected enhanced stabilization while coordination window is active, got %s", enhanced.StabilizationLevel)
	}

	clock.now = clock.now.Add(DefaultStabilizationWindow + time.Millisecond)
	enhanced = c.CoordinateStatusStabilization("1", StatusResult{Status: "approaching"}, PositionAnalysis{Class: MoveNormal})
	if enhanced.StabilizationLevel != StabilizationNone {
		t.Fatalf("expected stabilization to lapse, got %s", enhanced.StabilizationLevel)
	}
}

func TestRemoveVessel_ClearsDebounce(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCoordinator(clock)
	c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveGPSJump})

	c.RemoveVessel("1")
	decision := c.ShouldDebounceBridgeText([]string{"1"})
	if decision.ShouldDebounce {
		t.Fatalf("expected no debounce after vessel removal, got %+v", decision)
	}
}

func TestCleanup_PrunesExpiredDebounceEntries(t *testing.T) {
	c := New(Config{})
	c.CoordinatePositionUpdate("1", PositionAnalysis{Class: MoveLarge})

	time.Sleep(DefaultDebounceWindow + 20*time.Millisecond)
	c.Cleanup()

	if len(c.debounce) != 0 {
		t.Fatalf("expected debounce map to be pruned, got %d entries", len(c.debounce))
	}
}
