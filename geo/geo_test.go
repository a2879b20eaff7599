package geo

import (
	"math"
	"testing"
)

func TestDistance_SamePoint(t *testing.T) {
	p := Point{Lat: 58.275, Lon: 12.289}
	d, ok := Distance(p, p)
	if !ok {
		t.Fatal("expected ok")
	}
	if d != 0 {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestDistance_NonFinite(t *testing.T) {
	_, ok := Distance(Point{Lat: math.NaN(), Lon: 0}, Point{Lat: 0, Lon: 0})
	if ok {
		t.Error("expected non-finite input to be rejected")
	}
}

func TestDistance_KnownOffset(t *testing.T) {
	// roughly 1 degree of latitude ~= 111km
	a := Point{Lat: 58.0, Lon: 12.0}
	b := Point{Lat: 59.0, Lon: 12.0}
	d, ok := Distance(a, b)
	if !ok {
		t.Fatal("expected ok")
	}
	if d < 110_000 || d > 112_000 {
		t.Errorf("expected ~111km, got %v", d)
	}
}

func TestBearing_North(t *testing.T) {
	a := Point{Lat: 58.0, Lon: 12.0}
	b := Point{Lat: 59.0, Lon: 12.0}
	brg, ok := Bearing(a, b)
	if !ok {
		t.Fatal("expected ok")
	}
	if brg > 1 && brg < 359 {
		t.Errorf("expected ~0 degrees (north), got %v", brg)
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	box := BoundingBox{North: 58.3, South: 58.2, East: 12.3, West: 12.2}
	if !box.Contains(Point{Lat: 58.25, Lon: 12.25}) {
		t.Error("expected point inside box to match")
	}
	if box.Contains(Point{Lat: 58.35, Lon: 12.25}) {
		t.Error("expected point north of box to be rejected")
	}
	if box.Contains(Point{Lat: 58.25, Lon: 12.35}) {
		t.Error("expected point east of box to be rejected")
	}
}

func TestBoundingBox_ContainsNonFinite(t *testing.T) {
	box := BoundingBox{North: 58.3, South: 58.2, East: 12.3, West: 12.2}
	if box.Contains(Point{Lat: math.Inf(1), Lon: 12.25}) {
		t.Error("expected non-finite point to be rejected")
	}
}
