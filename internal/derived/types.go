// Package derived computes the derived observables (ionospheric delay,
// multipath, linear combinations, ephemeris geometry) added to each
// satellite record.
package derived

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/gnss"
)

// Dep is a dependency mask over the inputs a derived type needs.
type Dep uint8

const (
	DepL1 Dep = 1 << iota
	DepL2
	DepP1
	DepP2
	DepEphemeris
	DepPosition
)

// Shorthand masks.
const (
	depPhase = DepL1 | DepL2
	depRange = DepP1 | DepP2
	depGeom  = DepEphemeris | DepPosition
)

var depNames = []string{"L1", "L2", "P1", "P2", "EP", "PS"}

func (d Dep) String() string {
	var parts []string
	for i, n := range depNames {
		if d&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "+")
}

// Fields returns the raw observables covered by d.
func (d Dep) Fields() gnss.FieldMask {
	var m gnss.FieldMask
	if d&DepL1 != 0 {
		m |= gnss.FieldL1.Mask()
	}
	if d&DepL2 != 0 {
		m |= gnss.FieldL2.Mask()
	}
	if d&DepP1 != 0 {
		m |= gnss.FieldP1.Mask()
	}
	if d&DepP2 != 0 {
		m |= gnss.FieldP2.Mask()
	}
	return m
}

// Inputs is everything a derived type may be computed from. Sat is set
// when the satellite's ephemeris is known, Geo when a receiver position is
// known too.
type Inputs struct {
	L1, L2 gnss.Obs
	P1, P2 gnss.Obs
	LLI1   uint8
	LLI2   uint8
	Sat    *geometry.SatelliteState
	Geo    *geometry.Geometry
}

// Available returns the dependency bits satisfied by in.
func (in *Inputs) Available() Dep {
	var d Dep
	if in.L1.Valid {
		d |= DepL1
	}
	if in.L2.Valid {
		d |= DepL2
	}
	if in.P1.Valid {
		d |= DepP1
	}
	if in.P2.Valid {
		d |= DepP2
	}
	if in.Sat != nil || in.Geo != nil {
		d |= DepEphemeris
	}
	if in.Geo != nil {
		d |= DepPosition
	}
	return d
}

func (in *Inputs) state() *geometry.SatelliteState {
	if in.Geo != nil {
		return &in.Geo.SatelliteState
	}
	return in.Sat
}

// Spec describes one derived type.
type Spec struct {
	Code        string
	Description string
	Units       string
	Needs       Dep
	Debias      bool
	// Slot is the output position of the type; set by the Engine.
	Slot int

	eval func(in *Inputs) float64
}

// phase and range combinations, meters.
func ionoRange(in *Inputs) float64 { return (in.P2.Value - in.P1.Value) / gnss.Alpha }
func ionoPhase(in *Inputs) float64 {
	return (gnss.WL1*in.L1.Value - gnss.WL2*in.L2.Value) / gnss.Alpha
}
func ifRange(in *Inputs) float64 { return gnss.IF1R*in.P1.Value + gnss.IF2R*in.P2.Value }
func ifPhase(in *Inputs) float64 { return gnss.IF1P*in.L1.Value + gnss.IF2P*in.L2.Value }
func gfRange(in *Inputs) float64 { return gnss.GF1R*in.P1.Value + gnss.GF2R*in.P2.Value }
func gfPhase(in *Inputs) float64 { return gnss.GF1P*in.L1.Value + gnss.GF2P*in.L2.Value }
func wlRange(in *Inputs) float64 { return gnss.WL1R*in.P1.Value + gnss.WL2R*in.P2.Value }
func wlPhase(in *Inputs) float64 { return gnss.WL1P*in.L1.Value + gnss.WL2P*in.L2.Value }

func slantTECRange(in *Inputs) float64 {
	return (in.P2.Value-in.P1.Value)*gnss.TECUPerMeter/gnss.Alpha - in.state().GroupDelay
}
func slantTECPhase(in *Inputs) float64 {
	return (gnss.WL1*in.L1.Value - gnss.WL2*in.L2.Value) * gnss.TECUPerMeter / gnss.Alpha
}

// xrTransform maps [λ1L1, λ2L2, P1, P2] to the range, ionosphere and
// per-band phase bias estimates. Read only.
var xrTransform = func() *mat.Dense {
	a := gnss.Alpha
	m := mat.NewDense(4, 4, []float64{
		a + 1, -1, 0, 0,
		1, -1, 0, 0,
		-(a + 2), 2, a, 0,
		-2 * (a + 1), a + 2, 0, a,
	})
	m.Scale(1/a, m)
	return m
}()

// xr returns row i of the XR transform applied to the inputs.
func xr(i int) func(in *Inputs) float64 {
	return func(in *Inputs) float64 {
		x := mat.NewVecDense(4, []float64{
			gnss.WL1 * in.L1.Value,
			gnss.WL2 * in.L2.Value,
			in.P1.Value,
			in.P2.Value,
		})
		var y mat.VecDense
		y.MulVec(xrTransform, x)
		return y.AtVec(i)
	}
}

var catalog = []Spec{
	{Code: "ER", Description: "Ephemeris range", Units: "m", Needs: depGeom,
		eval: func(in *Inputs) float64 { return in.Geo.Range }},
	{Code: "RI", Description: "Range ionospheric delay", Units: "m", Needs: depRange,
		eval: ionoRange},
	{Code: "PI", Description: "Phase ionospheric delay", Units: "m", Needs: depPhase,
		eval: ionoPhase},
	{Code: "TR", Description: "Tropospheric delay", Units: "m", Needs: depGeom,
		eval: func(in *Inputs) float64 { return in.Geo.Troposphere }},
	{Code: "RL", Description: "Relativity correction", Units: "m", Needs: DepEphemeris,
		eval: func(in *Inputs) float64 { return in.state().Relativity }},
	{Code: "SC", Description: "Satellite clock bias", Units: "m", Needs: DepEphemeris,
		eval: func(in *Inputs) float64 { return in.state().ClockBias }},
	{Code: "EL", Description: "Satellite elevation", Units: "deg", Needs: depGeom,
		eval: func(in *Inputs) float64 { return in.Geo.ElevationDeg }},
	{Code: "AZ", Description: "Satellite azimuth", Units: "deg", Needs: depGeom,
		eval: func(in *Inputs) float64 { return in.Geo.AzimuthDeg }},
	{Code: "SR", Description: "Slant TEC from range", Units: "TECU", Needs: depRange | DepEphemeris,
		eval: slantTECRange},
	{Code: "SP", Description: "Slant TEC from phase", Units: "TECU", Needs: depPhase, Debias: true,
		eval: slantTECPhase},
	{Code: "VR", Description: "Vertical TEC from range", Units: "TECU", Needs: depRange | depGeom,
		eval: func(in *Inputs) float64 { return slantTECRange(in) * in.Geo.Obliquity }},
	{Code: "VP", Description: "Vertical TEC from phase", Units: "TECU", Needs: depPhase | depGeom, Debias: true,
		eval: func(in *Inputs) float64 { return slantTECPhase(in) * in.Geo.Obliquity }},
	{Code: "LA", Description: "Pierce point latitude", Units: "deg", Needs: depGeom,
		eval: func(in *Inputs) float64 { return in.Geo.PierceLatDeg }},
	{Code: "LO", Description: "Pierce point longitude", Units: "deg", Needs: depGeom,
		eval: func(in *Inputs) float64 { return in.Geo.PierceLonDeg }},
	{Code: "P3", Description: "Ionosphere-free range", Units: "m", Needs: depRange,
		eval: ifRange},
	{Code: "L3", Description: "Ionosphere-free phase", Units: "m", Needs: depPhase, Debias: true,
		eval: ifPhase},
	{Code: "P4", Description: "Geometry-free range", Units: "m", Needs: depRange,
		eval: gfRange},
	{Code: "L4", Description: "Geometry-free phase", Units: "m", Needs: depPhase, Debias: true,
		eval: gfPhase},
	{Code: "P5", Description: "Narrow-lane range", Units: "m", Needs: depRange,
		eval: wlRange},
	{Code: "L5", Description: "Wide-lane phase", Units: "m", Needs: depPhase, Debias: true,
		eval: wlPhase},
	{Code: "M1", Description: "L1 range minus phase", Units: "m", Needs: DepP1 | DepL1, Debias: true,
		eval: func(in *Inputs) float64 { return in.P1.Value - gnss.WL1*in.L1.Value }},
	{Code: "M2", Description: "L2 range minus phase", Units: "m", Needs: DepP2 | DepL2, Debias: true,
		eval: func(in *Inputs) float64 { return in.P2.Value - gnss.WL2*in.L2.Value }},
	{Code: "MP", Description: "Ionosphere-free multipath", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: func(in *Inputs) float64 { return ifRange(in) - ifPhase(in) }},
	{Code: "M3", Description: "Ionosphere-free multipath", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: func(in *Inputs) float64 { return ifRange(in) - ifPhase(in) }},
	{Code: "M4", Description: "Geometry-free multipath", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: func(in *Inputs) float64 { return gfRange(in) - gfPhase(in) }},
	{Code: "M5", Description: "Wide-lane multipath", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: func(in *Inputs) float64 { return wlRange(in) - wlPhase(in) }},
	{Code: "XR", Description: "Non-dispersive range", Units: "m", Needs: depRange | depPhase,
		eval: xr(0)},
	{Code: "XI", Description: "Ionospheric delay", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: xr(1)},
	{Code: "X1", Description: "L1 phase bias", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: xr(2)},
	{Code: "X2", Description: "L2 phase bias", Units: "m", Needs: depRange | depPhase, Debias: true,
		eval: xr(3)},
	{Code: "SX", Description: "Satellite ECEF X", Units: "m", Needs: DepEphemeris,
		eval: func(in *Inputs) float64 { return in.state().Position.X }},
	{Code: "SY", Description: "Satellite ECEF Y", Units: "m", Needs: DepEphemeris,
		eval: func(in *Inputs) float64 { return in.state().Position.Y }},
	{Code: "SZ", Description: "Satellite ECEF Z", Units: "m", Needs: DepEphemeris,
		eval: func(in *Inputs) float64 { return in.state().Position.Z }},
}

// All returns every derived type in catalog order.
func All() []Spec {
	out := make([]Spec, len(catalog))
	copy(out, catalog)
	for i := range out {
		out[i].Slot = i
	}
	return out
}

// Lookup returns the spec for a code (case-insensitive).
func Lookup(code string) (Spec, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, s := range catalog {
		if s.Code == code {
			return s, true
		}
	}
	return Spec{}, false
}

// Known reports whether code names a derived type.
func Known(code string) bool {
	_, ok := Lookup(code)
	return ok
}
