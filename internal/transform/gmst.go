package transform

import (
	"math"
	"time"
)

const (
	// jdUnixEpoch is the Julian Date of 1970-01-01T00:00:00Z.
	jdUnixEpoch = 2440587.5
	// j2000 is the Julian Date of 2000-01-01T12:00:00.
	j2000 = 2451545.0

	secondsPerDay = 86400.0
)

// OmegaEarth is the WGS-84 Earth rotation rate, rad/s.
const OmegaEarth = 7.2921151467e-5

// JulianDate returns the Julian Date of t on the UTC scale. UT1-UTC is
// below a second and ignored.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	days := math.Floor(float64(t.Unix()) / secondsPerDay)
	sod := float64(t.Unix()) - days*secondsPerDay + float64(t.Nanosecond())/1e9
	return jdUnixEpoch + days + sod/secondsPerDay
}

// GMST returns the Greenwich Mean Sidereal Time at t in radians, [0, 2π).
// IAU-82 model (Vallado eq. 3-47), in seconds of time:
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³
//
// with T in Julian centuries from J2000.0.
func GMST(t time.Time) float64 {
	T := (JulianDate(t) - j2000) / 36525.0

	sec := 67310.54841 + (876600.0*3600.0+8640184.812866)*T + 0.093104*T*T - 6.2e-6*T*T*T
	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec / secondsPerDay * 2 * math.Pi
}
