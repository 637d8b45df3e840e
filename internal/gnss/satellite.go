// Package gnss holds the observation data model shared by every stage of
// the residuals-and-corrections pipeline.
package gnss

import (
	"fmt"
	"strconv"
	"strings"
)

// SystemGPS is the default satellite system letter.
const SystemGPS = 'G'

// SatID identifies a satellite by system letter and PRN.
//
// A negative PRN is the position solver's way of marking a satellite it
// excluded from the solution.
type SatID struct {
	System byte
	PRN    int
}

// GPS returns the GPS satellite with the given PRN.
func GPS(prn int) SatID {
	return SatID{System: SystemGPS, PRN: prn}
}

// IsZero reports whether s is the zero SatID (no satellite).
func (s SatID) IsZero() bool {
	return s.System == 0 && s.PRN == 0
}

// Excluded reports whether s carries the solver's exclusion mark.
func (s SatID) Excluded() bool {
	return s.PRN < 0
}

// Negate flips the exclusion mark.
func (s SatID) Negate() SatID {
	return SatID{System: s.System, PRN: -s.PRN}
}

// Abs returns s without the exclusion mark.
func (s SatID) Abs() SatID {
	if s.PRN < 0 {
		return s.Negate()
	}
	return s
}

func (s SatID) String() string {
	sys := s.System
	if sys == 0 {
		sys = SystemGPS
	}
	if s.PRN < 0 {
		return fmt.Sprintf("%c-%02d", sys, -s.PRN)
	}
	return fmt.Sprintf("%c%02d", sys, s.PRN)
}

// Less orders satellites by system, then PRN.
func (s SatID) Less(o SatID) bool {
	if s.System != o.System {
		return s.System < o.System
	}
	return s.PRN < o.PRN
}

// ParseSatID parses identifiers like "G05", "R12", "E 3" or a bare PRN "5"
// (taken as GPS).
func ParseSatID(v string) (SatID, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return SatID{}, fmt.Errorf("empty satellite id")
	}

	sys := byte(SystemGPS)
	if c := v[0]; c < '0' || c > '9' {
		if c != '-' {
			sys = byte(strings.ToUpper(v[:1])[0])
			v = strings.TrimSpace(v[1:])
		}
	}
	switch sys {
	case 'G', 'R', 'E', 'C', 'J', 'S':
	default:
		return SatID{}, fmt.Errorf("unknown satellite system %q", string(sys))
	}

	prn, err := strconv.Atoi(v)
	if err != nil {
		return SatID{}, fmt.Errorf("invalid PRN %q: %w", v, err)
	}
	if prn == 0 {
		return SatID{}, fmt.Errorf("PRN must be non-zero")
	}
	return SatID{System: sys, PRN: prn}, nil
}
