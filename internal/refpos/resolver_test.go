package refpos

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/transform"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

type fakeSolver struct {
	calls    int
	sats     []gnss.SatID
	prs      []float64
	solution func(sats []gnss.SatID) Solution
	err      error
}

func (f *fakeSolver) Solve(t time.Time, sats []gnss.SatID, prs []float64) (Solution, error) {
	f.calls++
	f.sats = append([]gnss.SatID(nil), sats...)
	f.prs = append([]float64(nil), prs...)
	if f.err != nil {
		return Solution{}, f.err
	}
	return f.solution(sats), nil
}

type fakeProvider struct {
	known map[gnss.SatID]bool
}

func (f fakeProvider) Satellite(t time.Time, sat gnss.SatID) (geometry.SatelliteState, error) {
	if !f.known[sat] {
		return geometry.SatelliteState{}, fmt.Errorf("%s: %w", sat, geometry.ErrNotFound)
	}
	return geometry.SatelliteState{}, nil
}

func (f fakeProvider) Geometry(t time.Time, sat gnss.SatID, rx transform.ECEF) (geometry.Geometry, error) {
	return geometry.Geometry{}, errors.New("not used")
}

func ranges(prns ...int) []Pseudorange {
	var out []Pseudorange
	for _, p := range prns {
		out = append(out, Pseudorange{Sat: gnss.GPS(p), P1: gnss.Some(2e7 + float64(p)), P2: gnss.Some(2e7 + float64(p) + 3)})
	}
	return out
}

func TestNewRejectsMultipleSources(t *testing.T) {
	static := transform.ECEF{X: 6378137}
	_, err := New(Config{Static: &static, Inline: true}, testLogger)
	var cfgErr *gnss.ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = New(Config{Inline: true, Solver: &fakeSolver{}}, testLogger)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestNoneNeverResolves(t *testing.T) {
	r, err := New(Config{}, testLogger)
	require.NoError(t, err)
	assert.Equal(t, ModeNone, r.Mode())
	_, ok := r.Resolve(t0, ranges(1, 2, 3, 4))
	assert.False(t, ok)
}

func TestStatic(t *testing.T) {
	p, err := ParseLLH("40.0,-105.0,1600")
	require.NoError(t, err)
	r, err := New(Config{Static: &p}, testLogger)
	require.NoError(t, err)

	got, ok := r.Resolve(t0, nil)
	require.True(t, ok)
	assert.Equal(t, p, got.ECEF)
	assert.True(t, got.Valid)
}

func TestTableMode(t *testing.T) {
	tbl, err := NewTable([]Entry{entryAt(0, 100), entryAt(30, 130), entryAt(60, 160)})
	require.NoError(t, err)
	r, err := New(Config{Table: tbl}, testLogger)
	require.NoError(t, err)

	got, ok := r.Resolve(t0.Add(33*time.Second), nil)
	require.True(t, ok)
	assert.Equal(t, 130.0, got.X)

	_, ok = r.Resolve(t0.Add(50*time.Second), nil)
	assert.False(t, ok)
}

func TestInlineMode(t *testing.T) {
	r, err := New(Config{Inline: true}, testLogger)
	require.NoError(t, err)

	_, ok := r.Resolve(t0, nil)
	assert.False(t, ok)

	r.Observe([]string{"XYZT -1283000.100 -4726000.200 4074000.300 15.250"})
	_, ok = r.Resolve(t0, nil)
	assert.False(t, ok, "position is valid only after DIAG")

	r.Observe([]string{"some other comment", "DIAG  9  1.80  2.30     0.812 (N,P-,G-Dop,RMS)"})
	got, ok := r.Resolve(t0.Add(time.Second), nil)
	require.True(t, ok)
	assert.Equal(t, -1283000.1, got.X)
	assert.Equal(t, 15.25, got.Clock)
	assert.Equal(t, 9, got.NSats)
	assert.Equal(t, 2.3, got.GDOP)

	// Malformed lines are skipped; the position persists.
	r.Observe([]string{"XYZT 1 2", "DIAG x"})
	got, ok = r.Resolve(t0.Add(2*time.Second), nil)
	require.True(t, ok)
	assert.Equal(t, -1283000.1, got.X)
}

func TestCommentsRoundTrip(t *testing.T) {
	p := Position{ECEF: transform.ECEF{X: -1283000.123, Y: -4726000.456, Z: 4074000.789}, Clock: 1.5, NSats: 7, PDOP: 1.2, GDOP: 2.5, RMS: 0.5, Valid: true}
	lines := p.Comments()
	require.Len(t, lines, 2)
	assert.Equal(t, "XYZT  -1283000.123  -4726000.456   4074000.789         1.500", lines[0])
	assert.Equal(t, "DIAG  7  1.20  2.50     0.500 (N,P-,G-Dop,RMS)", lines[1])

	var q Position
	for _, l := range lines {
		require.NoError(t, q.applyComment(l))
	}
	assert.Equal(t, p, q)
}

func TestRAIMAcceptedSolution(t *testing.T) {
	solver := &fakeSolver{solution: func(sats []gnss.SatID) Solution {
		out := append([]gnss.SatID(nil), sats...)
		out[1] = out[1].Negate()
		return Solution{
			Status:     StatusSuspect,
			Position:   transform.ECEF{X: 1e6, Y: 2e6, Z: 3e6},
			Clock:      4.5,
			Satellites: out,
			PDOP:       1.1, GDOP: 1.9, RMS: 2.2,
		}
	}}
	r, err := New(Config{Solver: solver}, testLogger)
	require.NoError(t, err)

	in := ranges(3, 5, 8, 12, 17)
	in = append(in, Pseudorange{Sat: gnss.GPS(22), P1: gnss.Some(2e7)})
	got, ok := r.Resolve(t0, in)
	require.True(t, ok)

	assert.Equal(t, []gnss.SatID{gnss.GPS(3), gnss.GPS(5), gnss.GPS(8), gnss.GPS(12), gnss.GPS(17)}, solver.sats,
		"satellites without both pseudoranges are not passed to the solver")
	assert.InDelta(t, gnss.IF1R*(2e7+3)+gnss.IF2R*(2e7+6), solver.prs[0], 1e-6)

	assert.Equal(t, 1e6, got.X)
	assert.Equal(t, 4, got.NSats)
	assert.True(t, r.Outlier(gnss.GPS(5)))
	assert.False(t, r.Outlier(gnss.GPS(3)))

	s := r.Summary()
	assert.Equal(t, 1, s.N)
	assert.Equal(t, 1e6, s.Mean.X)
	assert.Zero(t, s.StdDev.X)
}

func TestRAIMRejectedStatuses(t *testing.T) {
	for _, st := range []Status{StatusBadSolution, StatusNoConvergence, StatusSingular, StatusInsufficientData, StatusMissingEphemeris} {
		t.Run(st.String(), func(t *testing.T) {
			solver := &fakeSolver{solution: func(sats []gnss.SatID) Solution {
				return Solution{Status: st, Satellites: []gnss.SatID{gnss.GPS(4).Negate()}}
			}}
			r, err := New(Config{Solver: solver, Verbose: true}, testLogger)
			require.NoError(t, err)

			_, ok := r.Resolve(t0, ranges(1, 2, 3, 4))
			assert.False(t, ok)
			assert.False(t, r.Outlier(gnss.GPS(4)))
			assert.Zero(t, r.Summary().N)
		})
	}
}

func TestRAIMSolverError(t *testing.T) {
	r, err := New(Config{Solver: &fakeSolver{err: errors.New("boom")}}, testLogger)
	require.NoError(t, err)
	_, ok := r.Resolve(t0, ranges(1, 2, 3, 4))
	assert.False(t, ok)
}

func TestRAIMEphemerisPrefilter(t *testing.T) {
	solver := &fakeSolver{solution: func(sats []gnss.SatID) Solution {
		return Solution{Status: StatusOK, Position: transform.ECEF{X: 6378137}, Satellites: sats}
	}}
	prov := fakeProvider{known: map[gnss.SatID]bool{gnss.GPS(1): true, gnss.GPS(3): true}}
	r, err := New(Config{Solver: solver, Provider: prov, ElevationMask: 10}, testLogger)
	require.NoError(t, err)

	// No prior position: everything goes to the solver.
	_, ok := r.Resolve(t0, ranges(1, 2, 3))
	require.True(t, ok)
	assert.Len(t, solver.sats, 3)

	// With a prior position, satellites without ephemeris are dropped.
	_, ok = r.Resolve(t0.Add(time.Second), ranges(1, 2, 3))
	require.True(t, ok)
	assert.Equal(t, []gnss.SatID{gnss.GPS(1), gnss.GPS(3)}, solver.sats)
}

func TestRAIMSummary(t *testing.T) {
	xs := []float64{10, 12, 14}
	i := 0
	solver := &fakeSolver{solution: func(sats []gnss.SatID) Solution {
		x := xs[i]
		i++
		return Solution{Status: StatusOK, Position: transform.ECEF{X: x, Y: 1, Z: -1}, Satellites: sats}
	}}
	r, err := New(Config{Solver: solver}, testLogger)
	require.NoError(t, err)

	for k := range xs {
		_, ok := r.Resolve(t0.Add(time.Duration(k)*time.Second), ranges(1, 2, 3, 4))
		require.True(t, ok)
	}
	s := r.Summary()
	assert.Equal(t, 3, s.N)
	assert.InDelta(t, 12, s.Mean.X, 1e-12)
	assert.InDelta(t, 2, s.StdDev.X, 1e-12)
	assert.Zero(t, s.StdDev.Y)
}

func TestParseTriples(t *testing.T) {
	p, err := ParseXYZ("-1283000.5, -4726000, 4074000")
	require.NoError(t, err)
	assert.Equal(t, -1283000.5, p.X)

	var cfgErr *gnss.ConfigError
	for _, bad := range []string{"", "1,2", "1,2,x", "0,0,0"} {
		_, err := ParseXYZ(bad)
		assert.True(t, errors.As(err, &cfgErr), bad)
	}
	for _, bad := range []string{"91,0,0", "1,2", "a,b,c"} {
		_, err := ParseLLH(bad)
		assert.True(t, errors.As(err, &cfgErr), bad)
	}

	q, err := ParseLLH("0,0,0")
	require.NoError(t, err)
	assert.InDelta(t, transform.WGS84A, q.X, 1e-6)
}
