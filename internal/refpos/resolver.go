package refpos

import (
	"context"
	"log/slog"
	"time"

	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/metrics"
	"github.com/star/rescor/internal/transform"
)

// Mode is the reference position strategy.
type Mode int

const (
	ModeNone Mode = iota
	ModeStatic
	ModeTable
	ModeInline
	ModeRAIM
)

func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeTable:
		return "table"
	case ModeInline:
		return "inline"
	case ModeRAIM:
		return "raim"
	}
	return "none"
}

// Config selects at most one reference source.
type Config struct {
	Static *transform.ECEF
	Table  *Table
	Inline bool
	Solver Solver

	// Provider backs the RAIM ephemeris pre-filter; optional.
	Provider geometry.Provider
	// ElevationMask (degrees) enables the RAIM pre-filter when > 0.
	ElevationMask float64
	// Verbose raises degraded-epoch logs from debug to info.
	Verbose bool
}

// Pseudorange is one satellite's dual-frequency pseudoranges.
type Pseudorange struct {
	Sat    gnss.SatID
	P1, P2 gnss.Obs
}

// Resolver resolves one reference position per epoch. Not safe for
// concurrent use.
type Resolver struct {
	mode     Mode
	cfg      Config
	logger   *slog.Logger
	current  Position
	outliers map[gnss.SatID]bool
	acc      accumulator
}

// New creates a Resolver. Selecting more than one source is a
// ConfigError; selecting none yields a resolver that never resolves.
func New(cfg Config, logger *slog.Logger) (*Resolver, error) {
	var modes []Mode
	if cfg.Static != nil {
		modes = append(modes, ModeStatic)
	}
	if cfg.Table != nil {
		modes = append(modes, ModeTable)
	}
	if cfg.Inline {
		modes = append(modes, ModeInline)
	}
	if cfg.Solver != nil {
		modes = append(modes, ModeRAIM)
	}
	if len(modes) > 1 {
		return nil, gnss.ConfigErrorf("reference", "only one reference position source may be given, got %v", modes)
	}

	r := &Resolver{
		mode:     ModeNone,
		cfg:      cfg,
		logger:   logger.With("component", "refpos"),
		outliers: make(map[gnss.SatID]bool),
	}
	if len(modes) == 1 {
		r.mode = modes[0]
	}
	if r.mode == ModeStatic {
		if !cfg.Static.Finite() || cfg.Static.IsZero() {
			return nil, gnss.ConfigErrorf("reference", "invalid static position %v", *cfg.Static)
		}
		r.current = Position{ECEF: *cfg.Static, Valid: true}
	}

	r.logger.Info("reference position source", "mode", r.mode.String())
	return r, nil
}

// Mode returns the configured strategy.
func (r *Resolver) Mode() Mode {
	return r.mode
}

func (r *Resolver) degraded(msg string, args ...any) {
	level := slog.LevelDebug
	if r.cfg.Verbose {
		level = slog.LevelInfo
	}
	r.logger.Log(context.Background(), level, msg, args...)
}

// Observe consumes the comment lines of a metadata epoch. In inline mode
// an XYZT line sets the position and clock and a DIAG line sets the
// diagnostics and marks the position valid.
func (r *Resolver) Observe(comments []string) {
	if r.mode != ModeInline {
		return
	}
	for _, c := range comments {
		if err := r.current.applyComment(c); err != nil {
			r.logger.Warn("ignoring malformed reference comment", "comment", c, "error", err)
		}
	}
}

// Resolve returns the reference position for the epoch at t. ranges are
// the epoch's pseudoranges, used in RAIM mode only. resolved is false when
// no position is available; this is an expected outcome.
func (r *Resolver) Resolve(t time.Time, ranges []Pseudorange) (Position, bool) {
	var (
		pos Position
		ok  bool
	)
	switch r.mode {
	case ModeStatic:
		pos, ok = r.current, true
	case ModeTable:
		pos, ok = r.cfg.Table.Lookup(t)
		if !ok {
			r.degraded("no reference position in table", "time", t)
		}
	case ModeInline:
		pos, ok = r.current, r.current.Valid
		if !ok {
			r.degraded("no in-line reference position yet", "time", t)
		}
	case ModeRAIM:
		pos, ok = r.solve(t, ranges)
	default:
		return Position{}, false
	}

	metrics.RecordResolution(r.mode.String(), ok)
	if !ok {
		return Position{}, false
	}
	return pos, true
}

func (r *Resolver) solve(t time.Time, ranges []Pseudorange) (Position, bool) {
	clear(r.outliers)

	prefilter := r.cfg.ElevationMask > 0 && r.current.Valid && r.cfg.Provider != nil
	sats := make([]gnss.SatID, 0, len(ranges))
	prs := make([]float64, 0, len(ranges))
	for _, p := range ranges {
		if !p.P1.Valid || !p.P2.Valid {
			continue
		}
		if prefilter {
			if _, err := r.cfg.Provider.Satellite(t, p.Sat); err != nil {
				r.logger.Debug("RAIM skipping satellite", "sat", p.Sat.String(), "error", err)
				continue
			}
		}
		sats = append(sats, p.Sat)
		prs = append(prs, gnss.IF1R*p.P1.Value+gnss.IF2R*p.P2.Value)
	}

	sol, err := r.cfg.Solver.Solve(t, sats, prs)
	if err != nil {
		r.degraded("RAIM solver failed", "time", t, "error", err)
		return Position{}, false
	}
	if !sol.Status.Accepted() {
		args := []any{"time", t, "status", sol.Status.String()}
		if sol.Status == StatusMissingEphemeris {
			var missing []string
			for _, s := range sol.Satellites {
				if s.Excluded() {
					missing = append(missing, s.Abs().String())
				}
			}
			args = append(args, "missing", missing)
		}
		r.degraded("RAIM failed", args...)
		return Position{}, false
	}

	names := make([]string, len(sol.Satellites))
	for i, s := range sol.Satellites {
		names[i] = s.String()
		if s.Excluded() {
			r.outliers[s.Abs()] = true
		}
	}

	pos := Position{
		ECEF:  sol.Position,
		Clock: sol.Clock,
		NSats: sol.Used(),
		PDOP:  sol.PDOP,
		GDOP:  sol.GDOP,
		RMS:   sol.RMS,
		Valid: true,
	}
	r.current = pos
	r.acc.add(pos.ECEF)

	r.degraded("RAIM solution",
		"time", t,
		"status", sol.Status.String(),
		"rejected", len(sol.Satellites)-pos.NSats,
		"used", pos.NSats,
		"x", pos.X, "y", pos.Y, "z", pos.Z, "clock", pos.Clock,
		"rms", pos.RMS,
		"satellites", names,
	)
	return pos, true
}

// Outlier reports whether the latest RAIM solution excluded sat.
func (r *Resolver) Outlier(sat gnss.SatID) bool {
	return r.outliers[sat.Abs()]
}

// Summary returns the running average of accepted RAIM solutions.
func (r *Resolver) Summary() Summary {
	return r.acc.summary()
}
