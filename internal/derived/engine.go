package derived

import (
	"log/slog"
	"strings"
	"time"

	"github.com/star/rescor/internal/bias"
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/metrics"
)

// Engine computes a fixed, ordered set of derived types.
type Engine struct {
	specs   []Spec
	tracker *bias.Tracker
	logger  *slog.Logger
}

// NewEngine builds an engine for codes, in order. The tracker holds the
// bias state of debiased types for the whole run.
func NewEngine(codes []string, tracker *bias.Tracker, logger *slog.Logger) (*Engine, error) {
	if tracker == nil {
		tracker = bias.NewTracker(Known, logger)
	}

	e := &Engine{tracker: tracker, logger: logger}
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		s, ok := Lookup(c)
		if !ok {
			return nil, gnss.ConfigErrorf("types", "unknown derived type %q", c)
		}
		if seen[s.Code] {
			return nil, gnss.ConfigErrorf("types", "derived type %s requested twice", s.Code)
		}
		seen[s.Code] = true
		s.Slot = len(e.specs)
		e.specs = append(e.specs, s)
	}
	return e, nil
}

// Specs returns the configured types in output order.
func (e *Engine) Specs() []Spec {
	out := make([]Spec, len(e.specs))
	copy(out, e.specs)
	return out
}

// Codes returns the configured type codes in output order.
func (e *Engine) Codes() []string {
	codes := make([]string, len(e.specs))
	for i, s := range e.specs {
		codes[i] = s.Code
	}
	return codes
}

// Needs returns the union of the dependencies of every configured type.
func (e *Engine) Needs() Dep {
	var d Dep
	for _, s := range e.specs {
		d |= s.Needs
	}
	return d
}

// Tracker returns the bias tracker.
func (e *Engine) Tracker() *bias.Tracker {
	return e.tracker
}

// Compute evaluates one type. ok is false, and the datum absent, when any
// dependency of spec is missing from in.
func (e *Engine) Compute(t time.Time, sat gnss.SatID, spec Spec, in Inputs) (gnss.Datum, bool) {
	if spec.eval == nil || in.Available()&spec.Needs != spec.Needs {
		return gnss.Datum{}, false
	}

	var d gnss.Datum
	v := spec.eval(&in)
	if spec.Debias {
		var reset bool
		v, reset = e.tracker.RemoveBias(spec.Code, sat, t, v)
		if reset {
			d.LLI |= 1
		}
	}

	// Loss of lock on a phase input marks the output.
	if spec.Needs&DepL1 != 0 && in.LLI1&1 != 0 {
		d.LLI |= 1
	}
	if spec.Needs&DepL2 != 0 && in.LLI2&1 != 0 {
		d.LLI |= 1
	}

	d.Obs = gnss.Some(v)
	metrics.RecordDerived(spec.Code)
	return d, true
}

// ComputeAll evaluates every configured type, indexed by slot.
func (e *Engine) ComputeAll(t time.Time, sat gnss.SatID, in Inputs) []gnss.Datum {
	out := make([]gnss.Datum, len(e.specs))
	for _, s := range e.specs {
		if d, ok := e.Compute(t, sat, s, in); ok {
			out[s.Slot] = d
		}
	}
	return out
}

// Describe formats the configured types for logs and help output.
func Describe(specs []Spec) string {
	var b strings.Builder
	for _, s := range specs {
		debias := ""
		if s.Debias {
			debias = " (debiased)"
		}
		b.WriteString(s.Code + "  " + s.Description + " [" + s.Units + "] needs " + s.Needs.String() + debias + "\n")
	}
	return b.String()
}
