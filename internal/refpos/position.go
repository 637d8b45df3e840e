// Package refpos resolves the receiver reference position for each epoch
// from a fixed position, a time-indexed table, in-line stream metadata or
// a per-epoch RAIM solution.
package refpos

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/transform"
)

// Position is a receiver reference position with its solution
// diagnostics.
type Position struct {
	transform.ECEF
	Clock float64 // receiver clock bias, m
	NSats int
	PDOP  float64
	GDOP  float64
	RMS   float64
	Valid bool
}

// Comment line keywords of the in-line reference summary.
const (
	keywordXYZT = "XYZT"
	keywordDIAG = "DIAG"
)

// Comments formats p as the in-line summary lines written after each
// resolved epoch and read back by the inline mode.
func (p Position) Comments() []string {
	return []string{
		fmt.Sprintf("%s %13.3f %13.3f %13.3f %13.3f", keywordXYZT, p.X, p.Y, p.Z, p.Clock),
		fmt.Sprintf("%s %2d %5.2f %5.2f %9.3f (N,P-,G-Dop,RMS)", keywordDIAG, p.NSats, p.PDOP, p.GDOP, p.RMS),
	}
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func splitTriple(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// ParseXYZ parses an ECEF "x,y,z" triple in meters.
func ParseXYZ(s string) (transform.ECEF, error) {
	parts := splitTriple(s)
	if len(parts) != 3 {
		return transform.ECEF{}, gnss.ConfigErrorf("position", "want x,y,z, got %q", s)
	}
	v, err := parseFloats(parts)
	if err != nil {
		return transform.ECEF{}, gnss.ConfigErrorf("position", "invalid x,y,z %q: %v", s, err)
	}
	p := transform.ECEF{X: v[0], Y: v[1], Z: v[2]}
	if !p.Finite() || p.IsZero() {
		return transform.ECEF{}, gnss.ConfigErrorf("position", "invalid x,y,z %q", s)
	}
	return p, nil
}

// ParseLLH parses a geodetic "lat,lon,height" triple (degrees, degrees
// east, meters) and returns it in ECEF.
func ParseLLH(s string) (transform.ECEF, error) {
	parts := splitTriple(s)
	if len(parts) != 3 {
		return transform.ECEF{}, gnss.ConfigErrorf("position", "want lat,lon,height, got %q", s)
	}
	v, err := parseFloats(parts)
	if err != nil {
		return transform.ECEF{}, gnss.ConfigErrorf("position", "invalid lat,lon,height %q: %v", s, err)
	}
	if math.Abs(v[0]) > 90 || math.Abs(v[1]) > 360 || math.IsNaN(v[2]) || math.IsInf(v[2], 0) {
		return transform.ECEF{}, gnss.ConfigErrorf("position", "lat,lon,height out of range: %q", s)
	}
	return transform.GeodeticToECEF(transform.Geodetic{LatDeg: v[0], LonDeg: v[1], HeightM: v[2]}), nil
}
