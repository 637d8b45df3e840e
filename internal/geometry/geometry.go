// Package geometry turns satellite ephemerides into the receiver-relative
// quantities the derived types need: range, look angles, troposphere,
// ionosphere obliquity and pierce point.
package geometry

import (
	"errors"
	"time"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/transform"
)

// ErrNotFound is returned (wrapped) when no ephemeris covers a satellite at
// the requested time.
var ErrNotFound = errors.New("no ephemeris")

// Ephemeris is what an EphemerisSource knows about a satellite at one
// instant.
type Ephemeris struct {
	Position   transform.ECEF // m
	Velocity   transform.ECEF // m/s
	ClockBias  float64        // s
	GroupDelay float64        // TGD, s
}

// EphemerisSource yields satellite ephemerides. Implementations return an
// error wrapping ErrNotFound when the satellite is not covered.
type EphemerisSource interface {
	Ephemeris(t time.Time, sat gnss.SatID) (Ephemeris, error)
}

// SatelliteState is the satellite-only part of the geometry. All
// corrections are in meters.
type SatelliteState struct {
	Position   transform.ECEF
	Velocity   transform.ECEF
	ClockBias  float64
	Relativity float64
	GroupDelay float64
}

// Geometry is the full receiver-satellite geometry at receive time. The
// embedded state is taken at transmit time.
type Geometry struct {
	SatelliteState
	Range        float64 // geometric, Sagnac corrected
	ElevationDeg float64
	AzimuthDeg   float64
	Troposphere  float64
	Obliquity    float64
	PierceLatDeg float64
	PierceLonDeg float64
}

// Provider answers geometry queries for the pipeline.
type Provider interface {
	Satellite(t time.Time, sat gnss.SatID) (SatelliteState, error)
	Geometry(t time.Time, sat gnss.SatID, rx transform.ECEF) (Geometry, error)
}
