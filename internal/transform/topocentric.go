package transform

import "math"

// Geodetic is a WGS-84 position (degrees, degrees east, meters above the
// ellipsoid).
type Geodetic struct {
	LatDeg, LonDeg, HeightM float64
}

// GeodeticToECEF converts a geodetic position to ECEF meters.
func GeodeticToECEF(g Geodetic) ECEF {
	lat := g.LatDeg * math.Pi / 180.0
	lon := g.LonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ECEF{
		X: (N + g.HeightM) * cosLat * math.Cos(lon),
		Y: (N + g.HeightM) * cosLat * math.Sin(lon),
		Z: (N*(1-wgs84E2) + g.HeightM) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates using the
// iterative Bowring method.
func ECEFToGeodetic(p ECEF) Geodetic {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rho*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*N*sinLat, rho)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := WGS84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var h float64
	if math.Abs(cosLat) > 1e-10 {
		h = rho/cosLat - N
	} else {
		h = math.Abs(p.Z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return Geodetic{
		LatDeg:  lat * 180.0 / math.Pi,
		LonDeg:  lon * 180.0 / math.Pi,
		HeightM: h,
	}
}

// Station is a receiver position with its local-frame rotation
// precomputed, so it can be reused for every satellite of an epoch.
type Station struct {
	ECEF     ECEF
	Geodetic Geodetic

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// NewStation builds a Station from an ECEF position.
func NewStation(p ECEF) Station {
	g := ECEFToGeodetic(p)
	lat := g.LatDeg * math.Pi / 180.0
	lon := g.LonDeg * math.Pi / 180.0
	return Station{
		ECEF:     p,
		Geodetic: g,
		sinLat:   math.Sin(lat),
		cosLat:   math.Cos(lat),
		sinLon:   math.Sin(lon),
		cosLon:   math.Cos(lon),
	}
}

// LookAngles holds azimuth, elevation, and range from receiver to satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeM       float64
}

// LookAngles computes azimuth, elevation and range to a satellite at sat.
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado 4.4.
func (s Station) LookAngles(sat ECEF) LookAngles {
	d := sat.Sub(s.ECEF)

	south := s.sinLat*s.cosLon*d.X + s.sinLat*s.sinLon*d.Y - s.cosLat*d.Z
	east := -s.sinLon*d.X + s.cosLon*d.Y
	zenith := s.cosLat*s.cosLon*d.X + s.cosLat*s.sinLon*d.Y + s.sinLat*d.Z

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	el := math.Asin(zenith / rng)

	// North is -South in SEZ.
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * 180.0 / math.Pi,
		ElevationDeg: el * 180.0 / math.Pi,
		RangeM:       rng,
	}
}
