package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/rescor/internal/transform"
)

// SGP4 library: github.com/joshuaferrara/go-satellite. Pure Go, TEME
// output, deep-space (SDP4) branch for 12 h GPS orbits.
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected from NaN/Inf output and implausible
// radii.

// SGP4Propagator wraps go-satellite for one element set.
type SGP4Propagator struct {
	sat satellite.Satellite
	prn int
}

// NewSGP4Propagator initialises SGP4 from TLE lines.
//
// The lines are checked before they reach the library, because go-satellite
// calls log.Fatal on malformed input.
func NewSGP4Propagator(line1, line2 string, prn int) (*SGP4Propagator, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for PRN %d: %w", prn, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for PRN %d: code=%d %s", prn, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, prn: prn}, nil
}

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Propagate returns the TEME state (km, km/s) at t. go-satellite only takes
// whole seconds, so the sub-second remainder is applied along the velocity.
func (p *SGP4Propagator) Propagate(t time.Time) (transform.StateTEME, error) {
	t = t.UTC()
	whole := t.Truncate(time.Second)
	frac := t.Sub(whole).Seconds()

	pos, vel := satellite.Propagate(p.sat, whole.Year(), int(whole.Month()), whole.Day(), whole.Hour(), whole.Minute(), whole.Second())

	for _, v := range []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return transform.StateTEME{}, fmt.Errorf("sgp4 propagation failed for PRN %d: output is NaN/Inf", p.prn)
		}
	}

	state := transform.StateTEME{
		X:  pos.X + vel.X*frac,
		Y:  pos.Y + vel.Y*frac,
		Z:  pos.Z + vel.Z*frac,
		VX: vel.X,
		VY: vel.Y,
		VZ: vel.Z,
	}
	if mag := math.Sqrt(state.X*state.X + state.Y*state.Y + state.Z*state.Z); mag < 6200.0 || mag > 50000.0 {
		return transform.StateTEME{}, fmt.Errorf("sgp4 propagation failed for PRN %d: unreasonable position magnitude %.1f km", p.prn, mag)
	}
	return state, nil
}
