package refpos

import (
	"gonum.org/v1/gonum/stat"

	"github.com/star/rescor/internal/transform"
)

// Summary is the average of every accepted RAIM solution of the run.
type Summary struct {
	N      int
	Mean   transform.ECEF
	StdDev transform.ECEF
}

// accumulator collects solved positions for the run summary.
type accumulator struct {
	x, y, z []float64
}

func (a *accumulator) add(p transform.ECEF) {
	a.x = append(a.x, p.X)
	a.y = append(a.y, p.Y)
	a.z = append(a.z, p.Z)
}

func (a *accumulator) summary() Summary {
	s := Summary{N: len(a.x)}
	if s.N == 0 {
		return s
	}
	s.Mean.X, s.StdDev.X = meanStdDev(a.x)
	s.Mean.Y, s.StdDev.Y = meanStdDev(a.y)
	s.Mean.Z, s.StdDev.Z = meanStdDev(a.z)
	return s
}

func meanStdDev(v []float64) (float64, float64) {
	if len(v) < 2 {
		return v[0], 0
	}
	return stat.MeanStdDev(v, nil)
}
