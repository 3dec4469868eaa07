package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is the single conversion boundary between the public coordinate
// object ({latitude, longitude}) and the store's longitude-first POINT
// encoding. No other package may parse or format WKT.
type Point struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// SRID is the spatial reference system every stored point uses.
const SRID = 4326

// EWKT renders the point for ST_GeomFromEWKT. Longitude comes first.
func (p Point) EWKT() string {
	return fmt.Sprintf("SRID=%d;POINT(%s %s)", SRID,
		strconv.FormatFloat(p.Longitude, 'f', -1, 64),
		strconv.FormatFloat(p.Latitude, 'f', -1, 64))
}

// ParseWKT decodes a "POINT(lng lat)" string as produced by ST_AsText.
// Returns nil for empty input so callers can scan nullable columns
// straight through.
func ParseWKT(s string) (*Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	inner, ok := strings.CutPrefix(s, "POINT(")
	if !ok {
		return nil, fmt.Errorf("geo: not a point: %q", s)
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return nil, fmt.Errorf("geo: not a point: %q", s)
	}

	fields := strings.Fields(inner)
	if len(fields) != 2 {
		return nil, fmt.Errorf("geo: not a point: %q", s)
	}

	lng, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("geo: bad longitude in %q: %w", s, err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, fmt.Errorf("geo: bad latitude in %q: %w", s, err)
	}

	return &Point{Latitude: lat, Longitude: lng}, nil
}

// FromWKTColumn is ParseWKT for a nullable text column.
func FromWKTColumn(col *string) (*Point, error) {
	if col == nil {
		return nil, nil
	}
	return ParseWKT(*col)
}
