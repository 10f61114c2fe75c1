package geo

import (
	"math"
	"testing"
)

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		p   Point
		err error
	}{
		{Point{0, 0}, nil},
		{Point{-90, 180}, nil},
		{Point{90, -180}, nil},
		{Point{90.01, 0}, ErrInvalidLatitude},
		{Point{-91, 0}, ErrInvalidLatitude},
		{Point{0, 180.5}, ErrInvalidLongitude},
		{Point{0, -181}, ErrInvalidLongitude},
	}
	for _, c := range cases {
		if err := c.p.Validate(); err != c.err {
			t.Errorf("Validate(%+v): expected %v, got %v", c.p, c.err, err)
		}
	}
}

func TestDistanceMeters(t *testing.T) {
	// zero distance
	p := Point{40.7128, -74.0060}
	if d := DistanceMeters(p, p); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}

	// one degree of latitude is ~111.2 km
	a := Point{40, -74}
	b := Point{41, -74}
	d := DistanceMeters(a, b)
	if math.Abs(d-111200) > 1000 {
		t.Errorf("expected ~111.2km, got %.0fm", d)
	}

	// roughly 100m displacement north (used by the broadcaster threshold tests)
	c := Point{40.0009, -74}
	d = DistanceMeters(a, c)
	if d < 90 || d > 110 {
		t.Errorf("expected ~100m, got %.1fm", d)
	}
}
