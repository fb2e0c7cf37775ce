// Package geo computes office proximity for the check-in gate and holds the
// persisted office configuration.
package geo

import (
	"context"
	"math"
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Office is the configured office point and allowed check-in radius.
type Office struct {
	Point
	RadiusMeters float64
}

// Defaults used until an office is configured.
const (
	DefaultLatitude     = 41.311081
	DefaultLongitude    = 69.240562
	DefaultRadiusMeters = 200
)

// DefaultOffice returns the built-in office configuration.
func DefaultOffice() Office {
	return Office{
		Point:        Point{Latitude: DefaultLatitude, Longitude: DefaultLongitude},
		RadiusMeters: DefaultRadiusMeters,
	}
}

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance between two points in meters
// (haversine formula).
func Distance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Validation is the outcome of one proximity check. DistanceMeters is exposed
// for user-facing messaging even when the check passes.
type Validation struct {
	Valid          bool
	DistanceMeters float64
}

// SettingsStore persists the office configuration independent of attendance
// records.
type SettingsStore interface {
	Office(ctx context.Context) (Office, error)
	SetOffice(ctx context.Context, office Office) error
}

// Validator evaluates a single location reading against the configured
// office. One measurement per attempt; retrying is the caller's concern.
type Validator struct {
	settings SettingsStore
}

// NewValidator constructs a Validator reading office configuration from
// settings.
func NewValidator(settings SettingsStore) *Validator {
	return &Validator{settings: settings}
}

// Validate computes the distance from the configured office and whether it
// falls within the allowed radius.
func (v *Validator) Validate(ctx context.Context, loc Point) (Validation, error) {
	office, err := v.settings.Office(ctx)
	if err != nil {
		return Validation{}, err
	}
	distance := Distance(loc, office.Point)
	return Validation{
		Valid:          distance <= office.RadiusMeters,
		DistanceMeters: distance,
	}, nil
}
