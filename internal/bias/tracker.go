// Package bias removes the arbitrary, slip-prone offset carried by
// carrier-phase derived quantities.
package bias

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/metrics"
)

// Epsilon is left in a freshly initialized debiased value so that it is
// never exactly zero (zero means "absent" downstream).
const Epsilon = 0.001

// typeState holds the limit of one derived type and the bias of every
// satellite seen for it. A typeState only exists once a limit is set.
type typeState struct {
	limit float64
	bias  map[gnss.SatID]float64
}

// Tracker keeps per (derived type, satellite) bias for the whole run.
// Not safe for concurrent use.
type Tracker struct {
	types  map[string]*typeState
	known  func(code string) bool
	logger *slog.Logger
}

// NewTracker creates an empty tracker. known validates derived type codes
// passed to SetLimit; nil accepts any non-empty code.
func NewTracker(known func(code string) bool, logger *slog.Logger) *Tracker {
	return &Tracker{
		types:  make(map[string]*typeState),
		known:  known,
		logger: logger,
	}
}

// SetLimit configures the reset limit for a derived type. Setting it again
// replaces the limit and keeps existing biases.
func (t *Tracker) SetLimit(code string, limit float64) error {
	if code == "" || (t.known != nil && !t.known(code)) {
		return gnss.ConfigErrorf("debias", "invalid derived type %q", code)
	}
	if !(limit > 0) {
		return gnss.ConfigErrorf("debias", "bias limit for %s must be positive, got %g", code, limit)
	}

	if st, ok := t.types[code]; ok {
		st.limit = limit
		t.logger.Debug("bias limit replaced", "type", code, "limit", limit)
		return nil
	}
	t.types[code] = &typeState{limit: limit, bias: make(map[gnss.SatID]float64)}
	t.logger.Debug("bias limit set", "type", code, "limit", limit)
	return nil
}

// Limit returns the configured limit for code.
func (t *Tracker) Limit(code string) (float64, bool) {
	st, ok := t.types[code]
	if !ok {
		return 0, false
	}
	return st.limit, true
}

// Limits returns the configured limits keyed by type code.
func (t *Tracker) Limits() map[string]float64 {
	out := make(map[string]float64, len(t.types))
	for code, st := range t.types {
		out[code] = st.limit
	}
	return out
}

// Codes returns the debiased type codes in sorted order.
func (t *Tracker) Codes() []string {
	codes := make([]string, 0, len(t.types))
	for code := range t.types {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Bias returns the current bias for (code, sat).
func (t *Tracker) Bias(code string, sat gnss.SatID) (float64, bool) {
	st, ok := t.types[code]
	if !ok {
		return 0, false
	}
	b, ok := st.bias[sat]
	return b, ok
}

// RemoveBias returns raw minus the current bias for (code, sat) and whether
// the bias was (re)initialized. Types without a limit pass through
// unchanged. The bias is reset when none is stored yet or when raw has
// moved strictly more than the limit away from it.
func (t *Tracker) RemoveBias(code string, sat gnss.SatID, at time.Time, raw float64) (float64, bool) {
	st, ok := t.types[code]
	if !ok {
		return raw, false
	}

	b, found := st.bias[sat]
	switch {
	case !found:
		b = raw - Epsilon
		st.bias[sat] = b
		t.logger.Debug("bias initialized",
			"type", code,
			"sat", sat.String(),
			"time", at.UTC().Format(time.RFC3339Nano),
			"bias", b,
		)
	case math.Abs(raw-b) > st.limit:
		t.logger.Debug("bias limit exceeded",
			"type", code,
			"sat", sat.String(),
			"time", at.UTC().Format(time.RFC3339Nano),
			"delta", raw-b,
			"limit", st.limit,
		)
		b = raw - Epsilon
		st.bias[sat] = b
	default:
		return raw - b, false
	}

	metrics.RecordBiasReset(code)
	return raw - b, true
}
