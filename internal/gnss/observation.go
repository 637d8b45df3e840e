package gnss

import (
	"strings"
	"time"
)

// Obs is an optional observable value. On the wire a zero value means
// "absent"; inside the pipeline absence is explicit.
type Obs struct {
	Value float64
	Valid bool
}

// Some returns a present observable.
func Some(v float64) Obs {
	return Obs{Value: v, Valid: true}
}

// ObsFromWire converts a wire value, where 0.0 marks a missing
// measurement. A genuine zero measurement cannot be told apart from a
// missing one; that limitation belongs to the input format.
func ObsFromWire(v float64) Obs {
	if v == 0 {
		return Obs{}
	}
	return Some(v)
}

// Wire returns the value in wire form (0.0 when absent).
func (o Obs) Wire() float64 {
	if !o.Valid {
		return 0
	}
	return o.Value
}

// Field names one raw observable.
type Field uint8

const (
	FieldL1 Field = iota
	FieldL2
	FieldP1
	FieldP2
	FieldC1
	numFields
)

var fieldNames = [numFields]string{"L1", "L2", "P1", "P2", "C1"}

func (f Field) String() string {
	if f < numFields {
		return fieldNames[f]
	}
	return "??"
}

// ParseField parses an observable name such as "L1".
func ParseField(s string) (Field, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range fieldNames {
		if n == s {
			return Field(i), true
		}
	}
	return 0, false
}

// FieldMask is a set of raw observables.
type FieldMask uint8

// AllFields contains every raw observable.
const AllFields FieldMask = 1<<numFields - 1

// Mask returns the single-field set for f.
func (f Field) Mask() FieldMask {
	return 1 << f
}

// Has reports whether f is in m.
func (m FieldMask) Has(f Field) bool {
	return m&f.Mask() != 0
}

// Fields lists the members of m in canonical order.
func (m FieldMask) Fields() []Field {
	var out []Field
	for f := Field(0); f < numFields; f++ {
		if m.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (m FieldMask) String() string {
	names := make([]string, 0, numFields)
	for _, f := range m.Fields() {
		names = append(names, f.String())
	}
	return strings.Join(names, ",")
}

// ParseFieldMask parses a comma separated observable list.
func ParseFieldMask(names []string) (FieldMask, error) {
	var m FieldMask
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, ok := ParseField(part)
			if !ok {
				return 0, ConfigErrorf("observables", "unknown observable %q", part)
			}
			m |= f.Mask()
		}
	}
	return m, nil
}

// C1Policy controls when the C/A pseudorange stands in for P1.
type C1Policy int

const (
	// C1Allow uses C1 only when P1 is missing.
	C1Allow C1Policy = iota
	// C1Never ignores C1.
	C1Never
	// C1Force always uses C1 as P1.
	C1Force
)

// ParseC1Policy parses "allow", "never" or "force".
func ParseC1Policy(s string) (C1Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return C1Allow, nil
	case "never":
		return C1Never, nil
	case "force":
		return C1Force, nil
	}
	return 0, ConfigErrorf("c1", "unknown C1 policy %q (want allow, never or force)", s)
}

func (p C1Policy) String() string {
	switch p {
	case C1Never:
		return "never"
	case C1Force:
		return "force"
	}
	return "allow"
}

// Observation is one satellite's raw measurements at one epoch.
type Observation struct {
	Sat  SatID
	L1   Obs // carrier phase, cycles
	L2   Obs
	P1   Obs // pseudorange, meters
	P2   Obs
	C1   Obs
	LLI1 uint8 // loss-of-lock indicator bits for L1
	LLI2 uint8
}

// Get returns the observable named by f.
func (o Observation) Get(f Field) Obs {
	switch f {
	case FieldL1:
		return o.L1
	case FieldL2:
		return o.L2
	case FieldP1:
		return o.P1
	case FieldP2:
		return o.P2
	case FieldC1:
		return o.C1
	}
	return Obs{}
}

// EffectiveP1 returns the P1 value after applying the C1 policy.
func (o Observation) EffectiveP1(p C1Policy) Obs {
	switch p {
	case C1Force:
		if o.C1.Valid {
			return o.C1
		}
	case C1Allow:
		if !o.P1.Valid && o.C1.Valid {
			return o.C1
		}
	}
	return o.P1
}

// Masked returns a copy of o holding only the observables in m.
func (o Observation) Masked(m FieldMask) Observation {
	out := Observation{Sat: o.Sat}
	if m.Has(FieldL1) {
		out.L1, out.LLI1 = o.L1, o.LLI1
	}
	if m.Has(FieldL2) {
		out.L2, out.LLI2 = o.L2, o.LLI2
	}
	if m.Has(FieldP1) {
		out.P1 = o.P1
	}
	if m.Has(FieldP2) {
		out.P2 = o.P2
	}
	if m.Has(FieldC1) {
		out.C1 = o.C1
	}
	return out
}

// Empty reports whether no observable is present.
func (o Observation) Empty() bool {
	return !o.L1.Valid && !o.L2.Valid && !o.P1.Valid && !o.P2.Valid && !o.C1.Valid
}

// EpochFlag is the epoch event flag of the observation stream.
type EpochFlag int

const (
	FlagOK           EpochFlag = 0
	FlagPowerFailure EpochFlag = 1
	FlagHeaderInfo   EpochFlag = 4
)

// HasData reports whether an epoch with this flag carries observations.
// Every other flag marks in-line metadata.
func (f EpochFlag) HasData() bool {
	return f == FlagOK || f == FlagPowerFailure
}

// Epoch is one record of the input stream.
type Epoch struct {
	Time         time.Time
	Flag         EpochFlag
	Observations []Observation
	Comments     []string
}
