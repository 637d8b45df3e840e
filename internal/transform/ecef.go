// Package transform holds the Earth-frame geometry used by the pipeline:
// ECEF vectors, WGS-84 geodetic conversion, receiver look angles, the
// TEME to ECEF rotation for SGP4 output and the thin-shell ionosphere.
package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	WGS84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ECEF is an Earth-centered Earth-fixed vector in meters (or m/s for
// velocities).
type ECEF struct {
	X, Y, Z float64
}

func (a ECEF) Add(b ECEF) ECEF {
	return ECEF{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func (a ECEF) Sub(b ECEF) ECEF {
	return ECEF{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func (a ECEF) Scale(k float64) ECEF {
	return ECEF{a.X * k, a.Y * k, a.Z * k}
}

func (a ECEF) Dot(b ECEF) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Norm returns the vector magnitude.
func (a ECEF) Norm() float64 {
	return math.Sqrt(a.Dot(a))
}

// IsZero reports whether all components are zero.
func (a ECEF) IsZero() bool {
	return a.X == 0 && a.Y == 0 && a.Z == 0
}

// Finite reports whether no component is NaN or infinite.
func (a ECEF) Finite() bool {
	for _, v := range [3]float64{a.X, a.Y, a.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
