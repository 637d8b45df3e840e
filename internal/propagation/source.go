// Package propagation turns GPS TLEs into a coarse ephemeris source.
package propagation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/tle"
	"github.com/star/rescor/internal/transform"
)

// DefaultMaxAge bounds how far from its epoch an element set is used.
const DefaultMaxAge = 14 * 24 * time.Hour

type propKey struct {
	norad int
	epoch int64
}

// Source implements geometry.EphemerisSource with SGP4. Clock bias and
// group delay are not carried by TLEs and are reported as zero.
type Source struct {
	index  *tle.Index
	maxAge time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	props map[propKey]*SGP4Propagator
}

// NewSource creates a Source over idx. maxAge <= 0 selects DefaultMaxAge.
func NewSource(idx *tle.Index, maxAge time.Duration, logger *slog.Logger) *Source {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Source{
		index:  idx,
		maxAge: maxAge,
		logger: logger.With("component", "sgp4"),
		props:  make(map[propKey]*SGP4Propagator),
	}
}

// propagator returns the initialised SGP4 state for e, building it on
// first use.
func (s *Source) propagator(e tle.Element) (*SGP4Propagator, error) {
	key := propKey{norad: e.NORADID, epoch: e.Epoch.UnixNano()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.props[key]; ok {
		return p, nil
	}
	p, err := NewSGP4Propagator(e.Line1, e.Line2, e.PRN)
	if err != nil {
		return nil, err
	}
	s.props[key] = p
	s.logger.Debug("sgp4 initialised", "prn", e.PRN, "norad_id", e.NORADID, "epoch", e.Epoch)
	return p, nil
}

// Ephemeris propagates sat to t and rotates the result to ECEF.
func (s *Source) Ephemeris(t time.Time, sat gnss.SatID) (geometry.Ephemeris, error) {
	if sat.System != gnss.SystemGPS {
		return geometry.Ephemeris{}, fmt.Errorf("%s: %w (TLEs cover GPS only)", sat, geometry.ErrNotFound)
	}
	e, ok := s.index.Nearest(sat.PRN, t)
	if !ok {
		return geometry.Ephemeris{}, fmt.Errorf("%s: %w", sat, geometry.ErrNotFound)
	}
	if age := t.Sub(e.Epoch).Abs(); age > s.maxAge {
		return geometry.Ephemeris{}, fmt.Errorf("%s: %w (nearest element set is %s old)", sat, geometry.ErrNotFound, age.Round(time.Hour))
	}

	p, err := s.propagator(e)
	if err != nil {
		return geometry.Ephemeris{}, err
	}
	teme, err := p.Propagate(t)
	if err != nil {
		return geometry.Ephemeris{}, err
	}
	state := transform.TEMEToECEF(teme, t)
	return geometry.Ephemeris{Position: state.Position, Velocity: state.Velocity}, nil
}
