package refpos

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/star/rescor/internal/transform"
)

// applyComment updates p from one XYZT or DIAG comment line. Other lines
// are ignored.
func (p *Position) applyComment(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case keywordXYZT:
		if len(fields) < 4 {
			return fmt.Errorf("want x y z [clk], got %d values", len(fields)-1)
		}
		end := 5
		if len(fields) < end {
			end = len(fields)
		}
		v, err := parseFloats(fields[1:end])
		if err != nil {
			return err
		}
		p.ECEF = transform.ECEF{X: v[0], Y: v[1], Z: v[2]}
		p.Clock = 0
		if len(v) > 3 {
			p.Clock = v[3]
		}
	case keywordDIAG:
		if len(fields) < 5 {
			return fmt.Errorf("want n pdop gdop rms, got %d values", len(fields)-1)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		v, err := parseFloats(fields[2:5])
		if err != nil {
			return err
		}
		p.NSats = n
		p.PDOP, p.GDOP, p.RMS = v[0], v[1], v[2]
		p.Valid = true
	}
	return nil
}
