package refpos

import (
	"time"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/transform"
)

// Status is the outcome reported by a RAIM position solver.
type Status int

const (
	StatusBadSolution      Status = 2 // residual or slope beyond limits
	StatusSuspect          Status = 1 // large slope
	StatusOK               Status = 0
	StatusNoConvergence    Status = -1
	StatusSingular         Status = -2
	StatusInsufficientData Status = -3
	StatusMissingEphemeris Status = -4
)

// Accepted reports whether a solution with this status may be used.
func (s Status) Accepted() bool {
	return s == StatusOK || s == StatusSuspect
}

func (s Status) String() string {
	switch s {
	case StatusBadSolution:
		return "bad-solution"
	case StatusSuspect:
		return "suspect"
	case StatusOK:
		return "ok"
	case StatusNoConvergence:
		return "no-convergence"
	case StatusSingular:
		return "singular"
	case StatusInsufficientData:
		return "insufficient-data"
	case StatusMissingEphemeris:
		return "missing-ephemeris"
	}
	return "unknown"
}

// Solution is a RAIM solver result. Satellites echoes the input
// satellites, with the ones the solver excluded negated
// (gnss.SatID.Negate).
type Solution struct {
	Status     Status
	Position   transform.ECEF
	Clock      float64
	Satellites []gnss.SatID
	PDOP       float64
	GDOP       float64
	RMS        float64
}

// Used returns the number of satellites kept in the solution.
func (s Solution) Used() int {
	n := 0
	for _, sat := range s.Satellites {
		if !sat.Excluded() {
			n++
		}
	}
	return n
}

// Solver computes a RAIM position from ionosphere-free pseudoranges.
type Solver interface {
	Solve(t time.Time, sats []gnss.SatID, pseudoranges []float64) (Solution, error)
}
