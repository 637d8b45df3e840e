package refpos

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/star/rescor/internal/transform"
)

// ErrEmptyTable is returned when a positions table holds no entries.
var ErrEmptyTable = errors.New("positions table is empty")

// Entry is one row of a positions table.
type Entry struct {
	Time     time.Time
	Position Position
}

// Table is a time-sorted, read-only set of reference positions.
type Table struct {
	entries  []Entry
	interval float64 // dominant spacing, s
}

// Histogram parameters for the dominant interval estimate.
const (
	maxIntervalBuckets = 15
	intervalTolerance  = 1e-4 // s
)

// NewTable sorts entries by time and estimates the dominant interval. A
// later entry with the same time replaces an earlier one.
func NewTable(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for _, e := range sorted {
		e.Position.Valid = true
		if n := len(out); n > 0 && out[n-1].Time.Equal(e.Time) {
			out[n-1] = e
			continue
		}
		out = append(out, e)
	}

	return &Table{entries: out, interval: dominantInterval(out)}, nil
}

// dominantInterval returns the most frequent spacing between consecutive
// entries, in seconds. At most maxIntervalBuckets distinct spacings are
// tracked; when a new spacing arrives on a full histogram the least
// frequent bucket (the last one on ties) is replaced. The most frequent
// bucket (the first one on ties) wins.
func dominantInterval(entries []Entry) float64 {
	var (
		value [maxIntervalBuckets]float64
		count [maxIntervalBuckets]int
		used  int
	)

	for i := 1; i < len(entries); i++ {
		dt := entries[i].Time.Sub(entries[i-1].Time).Seconds()

		matched := false
		for k := 0; k < used; k++ {
			if math.Abs(dt-value[k]) < intervalTolerance {
				count[k]++
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if used < maxIntervalBuckets {
			value[used], count[used] = dt, 1
			used++
			continue
		}

		least := 0
		for k := 1; k < maxIntervalBuckets; k++ {
			if count[k] <= count[least] {
				least = k
			}
		}
		value[least], count[least] = dt, 1
	}

	if used == 0 {
		return 0
	}
	best := 0
	for k := 1; k < used; k++ {
		if count[k] > count[best] {
			best = k
		}
	}
	return value[best]
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the entries in time order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Interval returns the dominant spacing between entries. Zero for a
// single-entry table.
func (t *Table) Interval() time.Duration {
	return time.Duration(t.interval * float64(time.Second))
}

// Lookup returns the entry nearest to at among the first entry at or after
// at and its predecessor, if it lies within a tenth of the dominant
// interval. On a tie the later entry wins.
func (t *Table) Lookup(at time.Time) (Position, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return !t.entries[i].Time.Before(at)
	})

	tol := 0.1 * t.interval
	best, bestDiff := -1, math.Inf(1)
	for _, k := range [2]int{i, i - 1} {
		if k < 0 || k >= len(t.entries) {
			continue
		}
		d := math.Abs(t.entries[k].Time.Sub(at).Seconds())
		if d <= tol && d < bestDiff {
			best, bestDiff = k, d
		}
	}
	if best < 0 {
		return Position{}, false
	}
	return t.entries[best].Position, true
}

// LoadTable reads a flat positions table. Each non-comment line is
//
//	<RFC3339 time> x y z [clk [n pdop gdop rms]]
//
// with ECEF coordinates in meters. Lines starting with '#' and blank lines
// are skipped.
func LoadTable(r io.Reader) (*Table, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		e, err := parseTableLine(line)
		if err != nil {
			return nil, fmt.Errorf("positions table line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading positions table: %w", err)
	}

	return NewTable(entries)
}

func parseTableLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 4, 5, 9:
	default:
		return Entry{}, fmt.Errorf("want 4, 5 or 9 fields, got %d", len(fields))
	}

	t, err := time.Parse(time.RFC3339Nano, fields[0])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid time: %w", err)
	}

	v, err := parseFloats(fields[1:4])
	if err != nil {
		return Entry{}, fmt.Errorf("invalid position: %w", err)
	}
	p := Position{ECEF: transform.ECEF{X: v[0], Y: v[1], Z: v[2]}}
	if !p.ECEF.Finite() {
		return Entry{}, fmt.Errorf("invalid position %v", p.ECEF)
	}

	if len(fields) >= 5 {
		if p.Clock, err = strconv.ParseFloat(fields[4], 64); err != nil {
			return Entry{}, fmt.Errorf("invalid clock: %w", err)
		}
	}
	if len(fields) == 9 {
		if p.NSats, err = strconv.Atoi(fields[5]); err != nil {
			return Entry{}, fmt.Errorf("invalid satellite count: %w", err)
		}
		d, err := parseFloats(fields[6:9])
		if err != nil {
			return Entry{}, fmt.Errorf("invalid diagnostics: %w", err)
		}
		p.PDOP, p.GDOP, p.RMS = d[0], d[1], d[2]
	}

	return Entry{Time: t.UTC(), Position: p}, nil
}
