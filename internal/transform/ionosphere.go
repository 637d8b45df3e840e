package transform

import "math"

// Obliquity returns the single-layer ionosphere mapping factor at
// elevation elDeg for a shell at height h meters:
//
//	sqrt(1 - (a·cos(el) / (a+h))²)
//
// Vertical delay is slant delay times this factor.
func Obliquity(elDeg, h float64) float64 {
	c := WGS84A * math.Cos(elDeg*math.Pi/180.0) / (WGS84A + h)
	return math.Sqrt(1 - c*c)
}

// PiercePoint returns the latitude and longitude (degrees) where the line
// of sight from rx at the given azimuth and elevation crosses a thin
// ionosphere shell of height h meters.
func PiercePoint(rx Geodetic, azDeg, elDeg, h float64) (latDeg, lonDeg float64) {
	const re = WGS84A
	lat := rx.LatDeg * math.Pi / 180.0
	lon := rx.LonDeg * math.Pi / 180.0
	az := azDeg * math.Pi / 180.0
	el := elDeg * math.Pi / 180.0

	rp := re / (re + h) * math.Cos(el)
	ap := math.Pi/2 - el - math.Asin(rp)
	sinap := math.Sin(ap)
	tanap := math.Tan(ap)
	cosaz := math.Cos(az)

	plat := math.Asin(math.Sin(lat)*math.Cos(ap) + math.Cos(lat)*sinap*cosaz)

	var plon float64
	if (lat > 70*math.Pi/180 && tanap*cosaz > math.Tan(math.Pi/2-lat)) ||
		(lat < -70*math.Pi/180 && -tanap*cosaz > math.Tan(math.Pi/2+lat)) {
		plon = lon + math.Pi - math.Asin(sinap*math.Sin(az)/math.Cos(plat))
	} else {
		plon = lon + math.Asin(sinap*math.Sin(az)/math.Cos(plat))
	}

	plon = math.Mod(plon+math.Pi, 2*math.Pi)
	if plon < 0 {
		plon += 2 * math.Pi
	}
	plon -= math.Pi

	return plat * 180.0 / math.Pi, plon * 180.0 / math.Pi
}
