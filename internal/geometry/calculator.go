package geometry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/transform"
)

// DefaultIonosphereHeight is the thin-shell height used for obliquity and
// pierce points (meters).
const DefaultIonosphereHeight = 400e3

// humidity used by the standard atmosphere.
const relativeHumidity = 0.7

// Calculator implements Provider on top of an EphemerisSource. Ephemeris
// lookups are memoized per satellite and instant, since the RAIM
// pre-filter and the derived types ask for the same states.
type Calculator struct {
	source     EphemerisSource
	ionoHeight float64
	cache      *ristretto.Cache
	logger     *slog.Logger
}

// NewCalculator creates a Calculator. ionoHeight is in meters; zero selects
// DefaultIonosphereHeight.
func NewCalculator(source EphemerisSource, ionoHeight float64, logger *slog.Logger) (*Calculator, error) {
	if ionoHeight < 0 {
		return nil, gnss.ConfigErrorf("iono_height", "must not be negative, got %g", ionoHeight)
	}
	if ionoHeight == 0 {
		ionoHeight = DefaultIonosphereHeight
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 16,
		MaxCost:     1 << 12,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ephemeris cache: %w", err)
	}

	return &Calculator{
		source:     source,
		ionoHeight: ionoHeight,
		cache:      cache,
		logger:     logger,
	}, nil
}

// IonosphereHeight returns the shell height in meters.
func (c *Calculator) IonosphereHeight() float64 {
	return c.ionoHeight
}

// Close releases the cache.
func (c *Calculator) Close() {
	c.cache.Close()
}

func cacheKey(t time.Time, sat gnss.SatID) string {
	return fmt.Sprintf("%s@%d", sat, t.UnixNano())
}

func (c *Calculator) ephemeris(t time.Time, sat gnss.SatID) (Ephemeris, error) {
	key := cacheKey(t, sat)
	if v, ok := c.cache.Get(key); ok {
		return v.(Ephemeris), nil
	}

	eph, err := c.source.Ephemeris(t, sat)
	if err != nil {
		return Ephemeris{}, err
	}
	if !transform.PlausibleOrbit(eph.Position) {
		return Ephemeris{}, fmt.Errorf("%s at %s: implausible position: %w",
			sat, t.UTC().Format(time.RFC3339), ErrNotFound)
	}

	c.cache.Set(key, eph, 1)
	c.cache.Wait()
	return eph, nil
}

func stateOf(eph Ephemeris) SatelliteState {
	return SatelliteState{
		Position:   eph.Position,
		Velocity:   eph.Velocity,
		ClockBias:  eph.ClockBias * gnss.CLight,
		Relativity: -2 * eph.Position.Dot(eph.Velocity) / gnss.CLight,
		GroupDelay: eph.GroupDelay * gnss.CLight,
	}
}

// Satellite returns the satellite state at t.
func (c *Calculator) Satellite(t time.Time, sat gnss.SatID) (SatelliteState, error) {
	eph, err := c.ephemeris(t, sat)
	if err != nil {
		return SatelliteState{}, err
	}
	return stateOf(eph), nil
}

// Geometry computes the geometry between receiver rx and sat for a signal
// received at t. The satellite is taken at transmit time, found by
// iterating on the signal transit time.
func (c *Calculator) Geometry(t time.Time, sat gnss.SatID, rx transform.ECEF) (Geometry, error) {
	if rx.IsZero() || !rx.Finite() {
		return Geometry{}, errors.New("receiver position unset")
	}

	var (
		eph Ephemeris
		rho float64
		err error
	)
	tx := t
	for i := 0; i < 3; i++ {
		eph, err = c.ephemeris(tx, sat)
		if err != nil {
			return Geometry{}, err
		}
		rho = geoDist(eph.Position, rx)
		tx = t.Add(-time.Duration(rho / gnss.CLight * float64(time.Second)))
	}

	st := transform.NewStation(rx)
	la := st.LookAngles(eph.Position)

	g := Geometry{
		SatelliteState: stateOf(eph),
		Range:          rho,
		ElevationDeg:   la.ElevationDeg,
		AzimuthDeg:     la.AzimuthDeg,
		Troposphere:    saastamoinen(st.Geodetic, la.ElevationDeg, relativeHumidity),
		Obliquity:      transform.Obliquity(la.ElevationDeg, c.ionoHeight),
	}
	g.PierceLatDeg, g.PierceLonDeg = transform.PiercePoint(st.Geodetic, la.AzimuthDeg, la.ElevationDeg, c.ionoHeight)

	c.logger.Debug("geometry computed",
		"sat", sat.String(),
		"range", rho,
		"elevation", la.ElevationDeg,
		"azimuth", la.AzimuthDeg,
	)
	return g, nil
}
