package stateengine

import (
	"math"
	"testing"
	"time"

	"github.com/projectqai/brovakt/bridge"
	"github.com/projectqai/brovakt/geo"
	"github.com/projectqai/brovakt/vessel"
)

const metersPerDegreeLat = 111320.0

func latOffset(meters float64) float64 {
	return meters / metersPerDegreeLat
}

func singleBridgeRegistry() *bridge.Registry {
	return bridge.New(
		[]bridge.Bridge{{ID: "test", Name: "Test", Lat: 58.0, Lon: 12.0, Radius: 30}},
		[]string{"test"},
		nil,
		nil,
	)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestEngine(clock *fakeClock) *Engine {
	return New(Config{
		Registry:    singleBridgeRegistry(),
		BoundingBox: geo.BoundingBox{North: 60, South: 55, East: 15, West: 10},
		Now:         clock.Now,
	})
}

func TestEngine_Update_RejectsNonFiniteCoordinates(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	if _, ok := e.Update("1", vessel.PositionReport{Lat: 58.0, Lon: 12.0, Timestamp: clock.now}); !ok {
		t.Fatalf("expected in-bounds finite report to be accepted")
	}
	if _, ok := e.Update("2", vessel.PositionReport{Lat: math.NaN(), Lon: 12.0, Timestamp: clock.now}); ok {
		t.Fatalf("expected non-finite latitude to be rejected")
	}
}

func TestEngine_Update_RejectsOutOfBoundingBox(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)
	if _, ok := e.Update("1", vessel.PositionReport{Lat: 90, Lon: 90, Timestamp: clock.now}); ok {
		t.Fatalf("expected out-of-bounds report to be rejected")
	}
	if _, tracked := e.Get("1"); tracked {
		t.Fatalf("rejected report must not create a vessel record")
	}
}

func TestEngine_Update_RejectsEmptyMMSI(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)
	if _, ok := e.Update("", vessel.PositionReport{Lat: 58.0, Lon: 12.0, Timestamp: clock.now}); ok {
		t.Fatalf("expected empty mmsi to be rejected")
	}
}

func TestEngine_Update_StatusByDistance(t *testing.T) {
	clock := &fakeClock{now: time.Now()}

	cases := []struct {
		name   string
		deltaM float64
		sog    float64
		want   vessel.Status
	}{
		{"under bridge", 10, 5, vessel.StatusUnderBridge},
		{"approaching, moving", 100, 5, vessel.StatusApproaching},
		{"waiting, stationary", 100, 0, vessel.StatusWaiting},
		{"outer approach band", 400, 5, vessel.StatusApproaching},
		{"beyond approaching radius", 600, 5, vessel.StatusEnRoute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(clock)
			snap, ok := e.Update("1", vessel.PositionReport{
				Lat: 58.0 + latOffset(tc.deltaM), Lon: 12.0,
				SOG: tc.sog, HasSOG: true,
				Timestamp: clock.now,
			})
			if !ok {
				t.Fatalf("update rejected unexpectedly")
			}
			if snap.Status != tc.want {
				t.Fatalf("got status %s want %s", snap.Status, tc.want)
			}
		})
	}
}

func TestEngine_DetectPassage_ConfirmedByConsistentCOG(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	// Cross under the bridge heading north.
	_, ok := e.Update("1", vessel.PositionReport{
		Lat: 58.0 - latOffset(10), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true,
		Timestamp: clock.now,
	})
	if !ok {
		t.Fatalf("update 1 rejected")
	}

	clock.now = clock.now.Add(5 * time.Second)
	snap, ok := e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(100), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true,
		Timestamp: clock.now,
	})
	if !ok {
		t.Fatalf("update 2 rejected")
	}

	if !snap.HasLastPassedBridge || snap.LastPassedBridge != "Test" {
		t.Fatalf("expected passage of Test bridge, got snapshot %+v", snap)
	}
	if snap.Status != vessel.StatusPassed {
		t.Fatalf("expected status passed, got %s", snap.Status)
	}
	if snap.Hold.Kind != vessel.HoldPendingUnder {
		t.Fatalf("expected pending-under hold, got %v", snap.Hold.Kind)
	}
}

func TestEngine_DetectPassage_RejectedByInconsistentCOG(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	_, ok := e.Update("1", vessel.PositionReport{
		Lat: 58.0 - latOffset(10), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true,
		Timestamp: clock.now,
	})
	if !ok {
		t.Fatalf("update 1 rejected")
	}

	clock.now = clock.now.Add(5 * time.Second)
	// Physically crosses north, but reports a southbound COG: inconsistent,
	// so no passage should be recorded.
	snap, ok := e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(100), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 180, HasCOG: true,
		Timestamp: clock.now,
	})
	if !ok {
		t.Fatalf("update 2 rejected")
	}
	if snap.HasLastPassedBridge {
		t.Fatalf("did not expect a recorded passage, got %+v", snap)
	}
}

func TestEngine_SyntheticHold_WhenStoppedAcrossBridge(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	_, ok := e.Update("1", vessel.PositionReport{
		Lat: 58.0 - latOffset(10), Lon: 12.0,
		SOG: 0, HasSOG: true, COG: 0, HasCOG: true,
		Timestamp: clock.now,
	})
	if !ok {
		t.Fatalf("update 1 rejected")
	}

	clock.now = clock.now.Add(5 * time.Second)
	snap, ok := e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(100), Lon: 12.0,
		SOG: 0, HasSOG: true, COG: 0, HasCOG: true,
		Timestamp: clock.now,
	})
	if !ok {
		t.Fatalf("update 2 rejected")
	}
	if snap.Hold.Kind != vessel.HoldSyntheticUnder {
		t.Fatalf("expected synthetic-under hold for a stationary crossing, got %v", snap.Hold.Kind)
	}
}

func TestEngine_GPSJumpHold(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	_, ok := e.Update("1", vessel.PositionReport{Lat: 58.0, Lon: 12.0, Timestamp: clock.now})
	if !ok {
		t.Fatalf("update 1 rejected")
	}

	clock.now = clock.now.Add(1 * time.Second)
	// A 10km jump in one second, with no SOG reported to explain it.
	_, ok = e.Update("1", vessel.PositionReport{Lat: 58.1, Lon: 12.0, Timestamp: clock.now})
	if !ok {
		t.Fatalf("update 2 rejected")
	}

	if !e.HasGPSJumpHold("1") {
		t.Fatalf("expected GPS jump hold to be active")
	}
}

func TestEngine_ConsumeHold(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	e.Update("1", vessel.PositionReport{
		Lat: 58.0 - latOffset(10), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	clock.now = clock.now.Add(5 * time.Second)
	snap, _ := e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(100), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	if snap.Hold.None() {
		t.Fatalf("expected a hold before consuming")
	}

	e.ConsumeHold("1")
	snap, _ = e.Get("1")
	if !snap.Hold.None() {
		t.Fatalf("expected hold cleared after consume, got %v", snap.Hold)
	}
}

func TestEngine_Remove_DeletesVessel(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)
	e.Update("1", vessel.PositionReport{Lat: 58.0, Lon: 12.0, Timestamp: clock.now})

	e.Remove("1", "test")
	if _, ok := e.Get("1"); ok {
		t.Fatalf("expected vessel to be removed")
	}
}

func TestEngine_ScheduleCleanup_RemovesVesselAfterDelay(t *testing.T) {
	e := New(Config{
		Registry:    singleBridgeRegistry(),
		BoundingBox: geo.BoundingBox{North: 60, South: 55, East: 15, West: 10},
	})
	e.Update("1", vessel.PositionReport{Lat: 58.0, Lon: 12.0})
	e.ScheduleCleanup("1", 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	if _, ok := e.Get("1"); ok {
		t.Fatalf("expected vessel to be cleaned up after delay")
	}
}

func TestEngine_ClearAllTimers(t *testing.T) {
	e := New(Config{
		Registry:    singleBridgeRegistry(),
		BoundingBox: geo.BoundingBox{North: 60, South: 55, East: 15, West: 10},
	})
	e.Update("1", vessel.PositionReport{Lat: 58.0, Lon: 12.0})
	e.ScheduleCleanup("1", 10*time.Millisecond)
	e.ClearAllTimers()

	time.Sleep(50 * time.Millisecond)
	if _, ok := e.Get("1"); !ok {
		t.Fatalf("expected vessel to survive once its cleanup timer was cleared")
	}
}

func TestEngine_All_ReturnsSortedSnapshots(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)
	e.Update("200", vessel.PositionReport{Lat: 58.0, Lon: 12.0, Timestamp: clock.now})
	e.Update("100", vessel.PositionReport{Lat: 58.0, Lon: 12.0, Timestamp: clock.now})

	all := e.All()
	if len(all) != 2 || all[0].MMSI != "100" || all[1].MMSI != "200" {
		t.Fatalf("expected sorted [100 200], got %+v", all)
	}
}

func TestEngine_PassedStatusPersistsThroughRecentWindow(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	e.Update("1", vessel.PositionReport{
		Lat: 58.0 - latOffset(10), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	clock.now = clock.now.Add(5 * time.Second)
	e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(100), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})

	// Further reports inside the window keep the passed classification.
	clock.now = clock.now.Add(10 * time.Second)
	snap, _ := e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(200), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	if snap.Status != vessel.StatusPassed {
		t.Fatalf("expected passed to persist inside the recent window, got %s", snap.Status)
	}

	// Once the window lapses the ordinary proximity classification resumes.
	clock.now = clock.now.Add(70 * time.Second)
	snap, _ = e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(400), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	if snap.Status != vessel.StatusApproaching {
		t.Fatalf("expected approaching after the window lapsed, got %s", snap.Status)
	}
}

func TestEngine_PassedBridgesAppendOnly(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	e := newTestEngine(clock)

	e.Update("1", vessel.PositionReport{
		Lat: 58.0 - latOffset(10), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	clock.now = clock.now.Add(5 * time.Second)
	snap, _ := e.Update("1", vessel.PositionReport{
		Lat: 58.0 + latOffset(100), Lon: 12.0,
		SOG: 5, HasSOG: true, COG: 0, HasCOG: true, Timestamp: clock.now,
	})
	if len(snap.PassedBridges) != 1 || snap.PassedBridges[0] != "Test" {
		t.Fatalf("expected passage history [Test], got %v", snap.PassedBridges)
	}

	// The returned slice is a copy: mutating it must not affect the engine.
	snap.PassedBridges[0] = "mutated"
	again, _ := e.Get("1")
	if again.PassedBridges[0] != "Test" {
		t.Fatalf("snapshot aliased internal passage history")
	}
}
