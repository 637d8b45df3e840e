// Package satfilter decides, per epoch, which satellite records are
// written out.
package satfilter

import (
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/metrics"
)

// Exclusion reasons, also used as metric labels.
const (
	ReasonNotSelected = "not_selected"
	ReasonOutlier     = "raim_outlier"
	ReasonElevation   = "elevation"
	ReasonEmpty       = "empty"
)

// Filter holds the session's exclusion rules.
type Filter struct {
	only     gnss.SatID
	minElev  float64
	raimEdit bool
}

// New creates a Filter. A zero only keeps every satellite; minElev <= 0
// disables the elevation mask; raimEdit drops satellites the RAIM solution
// rejected.
func New(only gnss.SatID, minElev float64, raimEdit bool) *Filter {
	return &Filter{only: only.Abs(), minElev: minElev, raimEdit: raimEdit}
}

// Before decides on a satellite before anything is computed for it.
// outlier reports whether the current RAIM solution excluded the
// satellite. Returns the exclusion reason, or "" to keep it.
func (f *Filter) Before(sat gnss.SatID, outlier bool) string {
	if !f.only.IsZero() && sat != f.only {
		return f.drop(ReasonNotSelected)
	}
	if f.raimEdit && outlier {
		return f.drop(ReasonOutlier)
	}
	return ""
}

// Elevation decides on a satellite once its elevation is known.
func (f *Filter) Elevation(elDeg float64) string {
	if f.minElev > 0 && elDeg < f.minElev {
		return f.drop(ReasonElevation)
	}
	return ""
}

// After decides on a fully computed record.
func (f *Filter) After(rec gnss.SatRecord) string {
	if rec.Empty() {
		return f.drop(ReasonEmpty)
	}
	return ""
}

// MinElevation returns the elevation mask in degrees.
func (f *Filter) MinElevation() float64 {
	return f.minElev
}

func (f *Filter) drop(reason string) string {
	metrics.RecordExcluded(reason)
	return reason
}
