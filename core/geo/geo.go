// Package geo answers point-to-point distance questions against the fixed
// coordinates of a center. Points are orb.Point values: [longitude, latitude].
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

var (
	ErrInvalidPoint = errors.New("invalid coordinates")
	ErrInvalidPair  = errors.New("location must be a [latitude, longitude] pair")
)

// NewPoint builds a point from decimal degrees.
func NewPoint(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}

// Validate rejects NaN, infinite and out-of-range degrees.
func Validate(p orb.Point) error {
	lng, lat := p.Lon(), p.Lat()
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return ErrInvalidPoint
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return ErrInvalidPoint
	}
	return nil
}

// IsUnset reports whether p is the zero-value default [0, 0].
func IsUnset(p orb.Point) bool {
	return p.Lon() == 0 && p.Lat() == 0
}

// ParsePair converts a transport [latitude, longitude] pair into a point.
func ParsePair(pair []float64) (orb.Point, error) {
	if len(pair) != 2 {
		return orb.Point{}, ErrInvalidPair
	}
	p := NewPoint(pair[0], pair[1])
	if err := Validate(p); err != nil {
		return orb.Point{}, ErrInvalidPair
	}
	return p, nil
}

// Pair is the inverse of ParsePair.
func Pair(p orb.Point) []float64 {
	return []float64{p.Lat(), p.Lon()}
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b orb.Point) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}
	if a.Equal(b) {
		return 0, nil
	}

	lat1, lat2 := deg2rad(a.Lat()), deg2rad(b.Lat())
	dLat := lat2 - lat1
	dLng := deg2rad(b.Lon() - a.Lon())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding may push h slightly past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadius * math.Asin(math.Sqrt(h)), nil
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
