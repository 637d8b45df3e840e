package geometry

import (
	"math"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/transform"
)

// geoDist returns the geometric distance from receiver rr to satellite rs,
// including the Sagnac (Earth rotation during transit) correction.
func geoDist(rs, rr transform.ECEF) float64 {
	r := rs.Sub(rr).Norm()
	return r + transform.OmegaEarth*(rs.X*rr.Y-rs.Y*rr.X)/gnss.CLight
}

// saastamoinen returns the slant tropospheric delay (meters) with a
// standard atmosphere at the receiver height. Zero below the horizon and
// for receivers outside -100 m..10 km.
func saastamoinen(rx transform.Geodetic, elDeg, humidity float64) float64 {
	const temp0 = 15.0 // sea level, deg C

	if rx.HeightM < -100.0 || rx.HeightM > 1e4 || elDeg <= 0 {
		return 0
	}
	hgt := math.Max(rx.HeightM, 0)
	lat := rx.LatDeg * math.Pi / 180.0
	el := elDeg * math.Pi / 180.0

	pres := 1013.25 * math.Pow(1.0-2.2557e-5*hgt, 5.2568)
	temp := temp0 - 6.5e-3*hgt + 273.16
	e := 6.108 * humidity * math.Exp((17.15*temp-4684.0)/(temp-38.45))

	z := math.Pi/2.0 - el
	trph := 0.0022768 * pres / (1.0 - 0.00266*math.Cos(2.0*lat) - 0.00028*hgt/1e3) / math.Cos(z)
	trpw := 0.002277 * (1255.0/temp + 0.05) * e / math.Cos(z)
	return trph + trpw
}
