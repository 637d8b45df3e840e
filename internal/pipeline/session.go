// Package pipeline drives the per-epoch data flow: cache the raw
// observables, resolve the reference position, compute the derived types,
// filter satellites and emit annotated records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/star/rescor/internal/bias"
	"github.com/star/rescor/internal/derived"
	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/metrics"
	"github.com/star/rescor/internal/obscache"
	"github.com/star/rescor/internal/refpos"
	"github.com/star/rescor/internal/satfilter"
)

// Reader yields input epochs in time order. It returns io.EOF after the
// last one.
type Reader interface {
	Read() (gnss.Epoch, error)
}

// Writer accepts annotated epochs.
type Writer interface {
	Write(gnss.AnnotatedEpoch) error
}

// Summary describes a completed (or interrupted) run.
type Summary struct {
	RunID     string
	Epochs    int // data epochs processed
	Metadata  int // metadata epochs consumed
	Skipped   int // epochs out of time order
	Resolved  int // data epochs with a reference position
	Records   int // satellite records written
	Excluded  map[string]int
	Reference refpos.Summary
}

// Session owns every piece of run-scoped state: bias state, reference
// position and the per-epoch cache. Not safe for concurrent use.
type Session struct {
	opts     Options
	runID    string
	logger   *slog.Logger
	engine   *derived.Engine
	resolver *refpos.Resolver
	provider geometry.Provider
	filter   *satfilter.Filter
	cache    *obscache.Cache
	needs    derived.Dep

	last    time.Time
	summary Summary
}

// NewSession validates opts against the available collaborators and
// builds a session. resolver may be nil (no reference position); provider
// may be nil when no requested type needs an ephemeris.
func NewSession(opts Options, resolver *refpos.Resolver, provider geometry.Provider, logger *slog.Logger) (*Session, error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	if resolver == nil {
		var err error
		if resolver, err = refpos.New(refpos.Config{}, logger); err != nil {
			return nil, err
		}
	}

	tracker := bias.NewTracker(derived.Known, logger)
	codes := make([]string, 0, len(opts.BiasLimits))
	for code := range opts.BiasLimits {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if err := tracker.SetLimit(strings.ToUpper(code), opts.BiasLimits[code]); err != nil {
			return nil, err
		}
	}

	engine, err := derived.NewEngine(opts.Types, tracker, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		opts:     opts,
		runID:    runID,
		logger:   logger,
		engine:   engine,
		resolver: resolver,
		provider: provider,
		filter:   satfilter.New(opts.Only, opts.ElevationMask, opts.RAIMEdit && resolver.Mode() == refpos.ModeRAIM),
		needs:    engine.Needs(),
		summary:  Summary{RunID: runID, Excluded: make(map[string]int)},
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	needed := s.needs.Fields()
	if resolver.Mode() == refpos.ModeRAIM {
		needed |= gnss.FieldP1.Mask() | gnss.FieldP2.Mask()
	}
	s.cache = obscache.New(needed)

	limits := make([]string, 0, len(codes))
	for _, c := range tracker.Codes() {
		l, _ := tracker.Limit(c)
		limits = append(limits, fmt.Sprintf("%s=%g", c, l))
	}
	logger.Info("session configured",
		"types", engine.Codes(),
		"debias", limits,
		"reference", resolver.Mode().String(),
		"elevation_mask", opts.ElevationMask,
		"only", onlyString(opts.Only),
		"raim_edit", opts.RAIMEdit,
		"reference_output", opts.OutputReference,
		"c1", opts.C1.String(),
		"cached_fields", needed.String(),
	)
	return s, nil
}

func onlyString(s gnss.SatID) string {
	if s.IsZero() {
		return "all"
	}
	return s.String()
}

// validate checks that every requested type can be fed.
func (s *Session) validate() error {
	var errs []error

	input := s.opts.InputFields
	if input == 0 {
		input = gnss.AllFields
	}
	if input.Has(gnss.FieldC1) && s.opts.C1 != gnss.C1Never {
		input |= gnss.FieldP1.Mask()
	}

	for _, spec := range s.engine.Specs() {
		var missing []string
		if m := spec.Needs.Fields() &^ input; m != 0 {
			missing = append(missing, m.String())
		}
		if spec.Needs&derived.DepEphemeris != 0 && s.provider == nil {
			missing = append(missing, "ephemeris")
		}
		if spec.Needs&derived.DepPosition != 0 && s.resolver.Mode() == refpos.ModeNone {
			missing = append(missing, "reference position")
		}
		if len(missing) > 0 {
			errs = append(errs, gnss.ConfigErrorf("types", "%s needs %s", spec.Code, strings.Join(missing, ", ")))
		}
	}

	if s.resolver.Mode() == refpos.ModeRAIM {
		if m := (gnss.FieldP1.Mask() | gnss.FieldP2.Mask()) &^ input; m != 0 {
			errs = append(errs, gnss.ConfigErrorf("reference", "RAIM needs %s", m))
		}
	}
	if s.opts.ElevationMask > 0 && s.provider == nil {
		errs = append(errs, gnss.ConfigErrorf("elevation_mask", "needs an ephemeris"))
	}
	if s.opts.ElevationMask < 0 || s.opts.ElevationMask >= 90 {
		errs = append(errs, gnss.ConfigErrorf("elevation_mask", "must be in [0, 90), got %g", s.opts.ElevationMask))
	}

	return errors.Join(errs...)
}

// RunID identifies the session in logs.
func (s *Session) RunID() string {
	return s.runID
}

// Types returns the derived type codes in output order.
func (s *Session) Types() []string {
	return s.engine.Codes()
}

// Summary returns the counters so far.
func (s *Session) Summary() Summary {
	out := s.summary
	out.Excluded = make(map[string]int, len(s.summary.Excluded))
	for k, v := range s.summary.Excluded {
		out.Excluded[k] = v
	}
	out.Reference = s.resolver.Summary()
	return out
}

func (s *Session) degraded(msg string, args ...any) {
	level := slog.LevelDebug
	if s.opts.Verbose {
		level = slog.LevelInfo
	}
	s.logger.Log(context.Background(), level, msg, args...)
}

func (s *Session) exclude(sat gnss.SatID, reason string) {
	s.summary.Excluded[reason]++
	s.logger.Debug("satellite excluded", "sat", sat.String(), "reason", reason)
}

// ProcessEpoch runs one epoch through the pipeline. It returns nil for
// epochs that produce no output: metadata epochs, whose comments go to
// the resolver, and epochs earlier than the previous one.
func (s *Session) ProcessEpoch(e gnss.Epoch) *gnss.AnnotatedEpoch {
	if !e.Flag.HasData() {
		s.resolver.Observe(e.Comments)
		s.summary.Metadata++
		metrics.RecordEpoch("metadata")
		return nil
	}
	if !s.last.IsZero() && e.Time.Before(s.last) {
		s.logger.Warn("skipping epoch out of time order", "time", e.Time, "previous", s.last)
		s.summary.Skipped++
		metrics.RecordEpoch("out_of_order")
		return nil
	}

	start := time.Now()
	s.last = e.Time

	// The cache is rebuilt every epoch: first from the fields that are not
	// written out, then from the record about to be emitted.
	s.cache.Reset()
	for _, o := range e.Observations {
		s.cache.UpdateObservation(o, gnss.AllFields&^s.opts.OutputRaw, s.opts.C1)
	}
	for _, o := range e.Observations {
		s.cache.UpdateObservation(o, s.opts.OutputRaw, s.opts.C1)
	}

	var ranges []refpos.Pseudorange
	if s.resolver.Mode() == refpos.ModeRAIM {
		for _, sat := range s.cache.Satellites() {
			c, _ := s.cache.Get(sat)
			ranges = append(ranges, refpos.Pseudorange{Sat: sat, P1: c.P1, P2: c.P2})
		}
	}
	pos, resolved := s.resolver.Resolve(e.Time, ranges)
	if resolved {
		s.summary.Resolved++
	}

	out := &gnss.AnnotatedEpoch{
		Time:  e.Time,
		Flag:  e.Flag,
		Types: s.engine.Codes(),
	}
	for _, o := range e.Observations {
		rec, ok := s.record(e.Time, o, pos, resolved)
		if ok {
			out.Records = append(out.Records, rec)
		}
	}

	mode := s.resolver.Mode()
	if s.opts.OutputReference && resolved && (mode == refpos.ModeRAIM || mode == refpos.ModeTable) {
		out.Comments = pos.Comments()
	}

	s.summary.Epochs++
	s.summary.Records += len(out.Records)
	metrics.RecordEpoch("data")
	metrics.RecordEpochDuration(time.Since(start))
	s.logger.Debug("epoch processed",
		"time", e.Time,
		"satellites", len(e.Observations),
		"records", len(out.Records),
		"resolved", resolved,
	)
	return out
}

// record builds the output record for one satellite, or reports false
// when the satellite is excluded.
func (s *Session) record(t time.Time, o gnss.Observation, pos refpos.Position, resolved bool) (gnss.SatRecord, bool) {
	sat := o.Sat
	if reason := s.filter.Before(sat, s.resolver.Outlier(sat)); reason != "" {
		s.exclude(sat, reason)
		return gnss.SatRecord{}, false
	}

	c, _ := s.cache.Get(sat)
	in := derived.Inputs{
		L1: c.L1, L2: c.L2, P1: c.P1, P2: c.P2,
		LLI1: c.LLI1, LLI2: c.LLI2,
	}

	if s.provider != nil && (s.needs&derived.DepEphemeris != 0 || s.filter.MinElevation() > 0) {
		if resolved {
			geo, err := s.provider.Geometry(t, sat, pos.ECEF)
			if err == nil {
				if reason := s.filter.Elevation(geo.ElevationDeg); reason != "" {
					s.exclude(sat, reason)
					return gnss.SatRecord{}, false
				}
				in.Geo = &geo
			} else {
				s.degraded("no geometry", "sat", sat.String(), "time", t, "error", err)
			}
		}
		if in.Geo == nil && s.needs&derived.DepEphemeris != 0 {
			st, err := s.provider.Satellite(t, sat)
			if err == nil {
				in.Sat = &st
			} else if !errors.Is(err, geometry.ErrNotFound) {
				s.logger.Warn("ephemeris lookup failed", "sat", sat.String(), "time", t, "error", err)
			}
		}
	}

	rec := gnss.SatRecord{
		Sat:     sat,
		Raw:     o.Masked(s.opts.OutputRaw),
		Derived: s.engine.ComputeAll(t, sat, in),
	}
	if reason := s.filter.After(rec); reason != "" {
		s.exclude(sat, reason)
		return gnss.SatRecord{}, false
	}
	return rec, true
}

// Run processes every epoch from r and writes the results to w. ctx is
// checked between epochs; on cancellation the output written so far and
// the bias state stay consistent.
func (s *Session) Run(ctx context.Context, r Reader, w Writer) (Summary, error) {
	for {
		if err := ctx.Err(); err != nil {
			return s.Summary(), err
		}

		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.Summary(), fmt.Errorf("reading epoch %d: %w", s.summary.Epochs+s.summary.Metadata+s.summary.Skipped+1, err)
		}

		out := s.ProcessEpoch(e)
		if out == nil {
			continue
		}
		if err := w.Write(*out); err != nil {
			return s.Summary(), fmt.Errorf("writing epoch %s: %w", e.Time.UTC().Format(time.RFC3339), err)
		}
	}

	sum := s.Summary()
	s.logger.Info("run complete",
		"epochs", sum.Epochs,
		"metadata", sum.Metadata,
		"skipped", sum.Skipped,
		"resolved", sum.Resolved,
		"records", sum.Records,
		"excluded", sum.Excluded,
	)
	if ref := sum.Reference; ref.N > 0 {
		s.logger.Info("average RAIM solution",
			"n", ref.N,
			"x", ref.Mean.X, "x_stddev", ref.StdDev.X,
			"y", ref.Mean.Y, "y_stddev", ref.StdDev.Y,
			"z", ref.Mean.Z, "z_stddev", ref.StdDev.Z,
		)
	}
	return sum, nil
}
