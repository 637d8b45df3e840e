package gnss

import "time"

// Datum is one derived output field.
type Datum struct {
	Obs
	LLI uint8
}

// SatRecord is the emitted record for one satellite at one epoch: the raw
// observables carried through plus the derived fields, indexed by output
// slot.
type SatRecord struct {
	Sat     SatID
	Raw     Observation
	Derived []Datum
}

// Empty reports whether every field of the record is absent.
func (r SatRecord) Empty() bool {
	if !r.Raw.Empty() {
		return false
	}
	for _, d := range r.Derived {
		if d.Valid && d.Value != 0 {
			return false
		}
	}
	return true
}

// AnnotatedEpoch is one output record of the pipeline.
type AnnotatedEpoch struct {
	Time     time.Time
	Flag     EpochFlag
	Types    []string // derived type code per output slot
	Records  []SatRecord
	Comments []string // in-line reference summary, when enabled
}
