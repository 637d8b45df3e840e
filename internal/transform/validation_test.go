package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want float64
	}{
		{"GPS time origin", time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC), 2444244.5},
		{"J2000.0", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"week rollover 2019", time.Date(2019, 4, 7, 0, 0, 0, 0, time.UTC), 2458580.5},
		{"quarter second", time.Date(2026, 10, 18, 6, 0, 0, 250_000_000, time.UTC), 2461331.7500028936},
		{"non-UTC location", time.Date(2019, 4, 7, 2, 0, 0, 0, time.FixedZone("CEST", 2*3600)), 2458580.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JulianDate(tt.time); math.Abs(got-tt.want) > 1e-8 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f", tt.time, got, tt.want)
			}
		})
	}
}

// go-satellite's JDay only takes whole seconds.
func TestJulianDateMatchesJDay(t *testing.T) {
	for _, tm := range []time.Time{
		time.Date(1999, 8, 22, 0, 0, 0, 0, time.UTC),
		time.Date(2011, 2, 28, 23, 59, 59, 0, time.UTC),
		time.Date(2024, 2, 29, 13, 45, 30, 0, time.UTC),
	} {
		want := satellite.JDay(tm.Year(), int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute(), tm.Second())
		if got := JulianDate(tm); math.Abs(got-want) > 1e-8 {
			t.Errorf("JulianDate(%v) = %.10f, JDay = %.10f", tm, got, want)
		}
	}
}

func TestGMST(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{"GPS time origin", time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)},
		{"J2000.0", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"week rollover 2019", time.Date(2019, 4, 7, 0, 0, 0, 0, time.UTC)},
		{"afternoon 2026", time.Date(2026, 10, 18, 15, 27, 45, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GMST(tt.time)
			want := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			if math.Abs(got-want) > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, GSTimeFromDate = %.12f rad", tt.time, got, want)
			}
			if got < 0 || got >= 2*math.Pi {
				t.Errorf("GMST(%v) = %f outside [0, 2π)", tt.time, got)
			}
		})
	}
}

// Over an hour the sidereal angle advances at the Earth rotation rate.
func TestGMSTRate(t *testing.T) {
	t0 := time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)
	d := GMST(t0.Add(time.Hour)) - GMST(t0)
	if d < 0 {
		d += 2 * math.Pi
	}
	want := OmegaEarth * 3600
	if math.Abs(d-want) > 1e-7 {
		t.Errorf("GMST advance over 1h = %.10f rad, want %.10f", d, want)
	}
}

// GPS orbits: radius near 26 560 km, speed near 3.87 km/s, 55° inclination.
var gpsStates = []struct {
	name string
	teme StateTEME
	time time.Time
}{
	{
		name: "mid-latitude",
		teme: StateTEME{X: 15600, Y: 7540, Z: 20140, VX: -2.58, VY: -1.42, VZ: 2.53},
		time: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
	},
	{
		name: "ascending node",
		teme: StateTEME{X: 26560, VY: 2.222, VZ: 3.173},
		time: time.Date(2019, 4, 7, 12, 0, 0, 0, time.UTC),
	},
	{
		name: "equator crossing second quadrant",
		teme: StateTEME{X: -13280, Y: 23001.6, VX: -1.924, VY: -1.111, VZ: 3.173},
		time: time.Date(2024, 2, 29, 21, 13, 7, 0, time.UTC),
	},
}

func TestTEMEToECEF(t *testing.T) {
	for _, tt := range gpsStates {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			pos := TEMEToECEFWithGMST(tt.teme, gmst).Position
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.teme.X, Y: tt.teme.Y, Z: tt.teme.Z}, gmst)
			want := ECEF{ref.X, ref.Y, ref.Z}.Scale(1000)

			if d := pos.Sub(want).Norm(); d > 1e-3 {
				t.Errorf("position %v, go-satellite %v (|d|=%.6f m)", pos, want, d)
			}
			if r := pos.Norm(); math.Abs(r-tt.teme.norm()*1000) > 1e-3 {
				t.Errorf("rotation changed the radius: %.3f m", r)
			}
			if !PlausibleOrbit(pos) {
				t.Errorf("PlausibleOrbit(%v) = false", pos)
			}

			// The time-based entry point agrees with the explicit angle.
			if d := TEMEToECEF(tt.teme, tt.time).Position.Sub(pos).Norm(); d > 1 {
				t.Errorf("TEMEToECEF differs from TEMEToECEFWithGMST by %.3f m", d)
			}
		})
	}
}

// The ECEF velocity is checked against a central difference of go-satellite
// positions, which carries the ω×r term without modelling it.
func TestTEMEToECEFVelocity(t *testing.T) {
	const dt = 1.0
	for _, tt := range gpsStates {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			at := func(s float64) ECEF {
				v := satellite.ECIToECEF(satellite.Vector3{
					X: tt.teme.X + tt.teme.VX*s,
					Y: tt.teme.Y + tt.teme.VY*s,
					Z: tt.teme.Z + tt.teme.VZ*s,
				}, gmst+OmegaEarth*s)
				return ECEF{v.X, v.Y, v.Z}.Scale(1000)
			}
			want := at(dt).Sub(at(-dt)).Scale(1 / (2 * dt))

			got := TEMEToECEFWithGMST(tt.teme, gmst).Velocity
			if d := got.Sub(want).Norm(); d > 1e-3 {
				t.Errorf("velocity %v, finite difference %v (|d|=%.6f m/s)", got, want, d)
			}
		})
	}
}

func TestPlausibleOrbit(t *testing.T) {
	tests := []struct {
		name  string
		pos   ECEF
		valid bool
	}{
		{"GPS", ECEF{X: 15600e3, Y: 7540e3, Z: 20140e3}, true},
		{"GLONASS", ECEF{Y: -25510e3}, true},
		{"Galileo", ECEF{Z: 29600e3}, true},
		{"BeiDou GEO", ECEF{X: 42164e3}, true},
		{"inside the Earth", ECEF{X: 5000e3}, false},
		{"beyond GEO", ECEF{X: 60000e3}, false},
		{"NaN", ECEF{X: math.NaN(), Y: 20000e3}, false},
		{"Inf", ECEF{Z: math.Inf(-1)}, false},
		{"zero", ECEF{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlausibleOrbit(tt.pos); got != tt.valid {
				t.Errorf("PlausibleOrbit(%v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}

func (s StateTEME) norm() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}
