package geo

import "testing"

func TestProjectUnprojectRoundTrip(t *testing.T) {
	ref := Point{Lon: -157.86, Lat: 21.31, Alt: 0}
	p := Point{Lon: -157.5, Lat: 21.5, Alt: 1200}

	local := Project(p, ref)
	back := Unproject(local, ref)

	if diff := abs(back.Lon - p.Lon); diff > 1e-9 {
		t.Errorf("lon round-trip drift %v", diff)
	}
	if diff := abs(back.Lat - p.Lat); diff > 1e-9 {
		t.Errorf("lat round-trip drift %v", diff)
	}
	if back.Alt != p.Alt {
		t.Errorf("alt round-trip mismatch: got %v want %v", back.Alt, p.Alt)
	}
}

func TestDistance3DOneDegreeLatitude(t *testing.T) {
	a := Point{Lon: 0, Lat: 0, Alt: 0}
	b := Point{Lon: 0, Lat: 1, Alt: 0}

	d := Distance3D(a, b)
	if diff := abs(d - metersPerDegree); diff > 1 {
		t.Errorf("expected ~%v meters, got %v", metersPerDegree, d)
	}
}

func TestHorizontalDistanceIgnoresAltitude(t *testing.T) {
	a := Point{Lon: 0, Lat: 0, Alt: 0}
	b := Point{Lon: 0, Lat: 0, Alt: 5000}

	if d := HorizontalDistance(a, b); d != 0 {
		t.Errorf("expected zero horizontal distance, got %v", d)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	x, y, z := Normalize(0, 0, 0)
	if x != 0 || y != 0 || z != 0 {
		t.Errorf("expected zero vector unchanged, got (%v,%v,%v)", x, y, z)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
