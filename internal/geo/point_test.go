package geo

import (
	"math"
	"strings"
	"testing"
)

func TestEWKTFormat(t *testing.T) {
	p := Point{Latitude: 42.3601, Longitude: -71.0589}
	got := p.EWKT()
	want := "SRID=4326;POINT(-71.0589 42.3601)"
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []Point{
		{Latitude: 42.3601, Longitude: -71.0589},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 0, Longitude: 0},
		{Latitude: 89.999999, Longitude: -179.999999},
	}

	for _, p := range cases {
		wkt := strings.TrimPrefix(p.EWKT(), "SRID=4326;")
		back, err := ParseWKT(wkt)
		if err != nil {
			t.Fatalf("ParseWKT(%q): %v", wkt, err)
		}
		if back == nil {
			t.Fatalf("ParseWKT(%q) returned nil", wkt)
		}
		if math.Abs(back.Latitude-p.Latitude) > 1e-6 || math.Abs(back.Longitude-p.Longitude) > 1e-6 {
			t.Fatalf("round trip drifted: %+v -> %+v", p, back)
		}
	}
}

func TestParseWKTOrder(t *testing.T) {
	// WKT is longitude-first; the struct is latitude-first.
	p, err := ParseWKT("POINT(-71.0589 42.3601)")
	if err != nil {
		t.Fatal(err)
	}
	if p.Latitude != 42.3601 || p.Longitude != -71.0589 {
		t.Fatalf("axis order swapped: %+v", p)
	}
}

func TestParseWKTEmpty(t *testing.T) {
	p, err := ParseWKT("")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatalf("expected nil for empty input, got %+v", p)
	}
}

func TestParseWKTRejectsGarbage(t *testing.T) {
	for _, s := range []string{"LINESTRING(0 0, 1 1)", "POINT(1)", "POINT(a b)", "POINT(1 2"} {
		if _, err := ParseWKT(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestFromWKTColumn(t *testing.T) {
	if p, err := FromWKTColumn(nil); err != nil || p != nil {
		t.Fatalf("nil column should yield nil point, got %v %v", p, err)
	}
	s := "POINT(2.3522 48.8566)"
	p, err := FromWKTColumn(&s)
	if err != nil || p == nil {
		t.Fatalf("unexpected: %v %v", p, err)
	}
	if p.Latitude != 48.8566 {
		t.Fatalf("bad latitude: %v", p.Latitude)
	}
}
