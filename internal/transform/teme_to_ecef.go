package transform

import (
	"math"
	"time"
)

// StateTEME is an SGP4 position and velocity in the TEME frame (True
// Equator Mean Equinox), km and km/s.
type StateTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// State is a position and velocity in ECEF, meters and m/s.
type State struct {
	Position ECEF
	Velocity ECEF
}

// TEMEToECEF rotates an SGP4 state into ECEF at the given UTC time.
//
// Simplified Vallado-style rotation using GMST only (TEME -> PEF ~ ECEF).
// Polar motion and the equation of the equinoxes are ignored, which is
// well inside the accuracy of a TLE-derived orbit.
func TEMEToECEF(teme StateTEME, t time.Time) State {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates TEME to ECEF with a precomputed GMST angle
// (radians).
//
//	r_ECEF = R3(θ) r_TEME
//	v_ECEF = R3(θ) v_TEME - ω × r_ECEF
func TEMEToECEFWithGMST(teme StateTEME, gmst float64) State {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return State{
		Position: ECEF{x, y, z}.Scale(1000.0),
		Velocity: ECEF{vx, vy, vz}.Scale(1000.0),
	}
}

// Orbit radius bounds for a plausible Earth satellite (meters).
const (
	minOrbitRadius = 6200.0e3
	maxOrbitRadius = 50000.0e3
)

// PlausibleOrbit reports whether p is finite and between the Earth's
// surface and beyond GEO. SGP4 can return garbage for decayed or
// malformed element sets.
func PlausibleOrbit(p ECEF) bool {
	if !p.Finite() {
		return false
	}
	r := p.Norm()
	return r >= minOrbitRadius && r <= maxOrbitRadius
}
