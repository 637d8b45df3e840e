package pipeline

import (
	"github.com/star/rescor/internal/gnss"
)

// Options configures a Session.
type Options struct {
	// Types lists the derived type codes to compute, in output order.
	Types []string
	// BiasLimits maps a derived type code to its debias reset limit.
	BiasLimits map[string]float64
	// ElevationMask drops satellites below this elevation (degrees) when
	// > 0. It needs an ephemeris.
	ElevationMask float64
	// Only keeps a single satellite when non-zero.
	Only gnss.SatID
	// RAIMEdit drops satellites the RAIM solution rejected.
	RAIMEdit bool
	// OutputReference adds the XYZT/DIAG summary to epochs resolved by
	// RAIM or the positions table.
	OutputReference bool
	// C1 selects when C1 stands in for P1.
	C1 gnss.C1Policy
	// InputFields are the observables the input stream carries; zero
	// means all of them.
	InputFields gnss.FieldMask
	// OutputRaw are the raw observables copied to the output.
	OutputRaw gnss.FieldMask
	// Verbose logs degraded epochs at info instead of debug.
	Verbose bool
}

// DefaultOptions returns the defaults: RAIM editing and reference output
// on, C1 used only when P1 is missing, every raw observable kept.
func DefaultOptions() Options {
	return Options{
		RAIMEdit:        true,
		OutputReference: true,
		C1:              gnss.C1Allow,
		OutputRaw:       gnss.AllFields,
	}
}
