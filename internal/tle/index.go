package tle

import (
	"slices"
	"time"
)

// Index groups elements by PRN, each list ordered by epoch.
type Index struct {
	byPRN map[int][]Element
}

// NewIndex builds an Index from parsed elements.
func NewIndex(elements []Element) *Index {
	idx := &Index{byPRN: make(map[int][]Element)}
	for _, e := range elements {
		idx.byPRN[e.PRN] = append(idx.byPRN[e.PRN], e)
	}
	for _, list := range idx.byPRN {
		slices.SortStableFunc(list, func(a, b Element) int {
			return a.Epoch.Compare(b.Epoch)
		})
	}
	return idx
}

// Len returns the number of distinct PRNs.
func (x *Index) Len() int {
	return len(x.byPRN)
}

// PRNs returns the indexed PRNs in ascending order.
func (x *Index) PRNs() []int {
	out := make([]int, 0, len(x.byPRN))
	for prn := range x.byPRN {
		out = append(out, prn)
	}
	slices.Sort(out)
	return out
}

// Nearest returns the element for prn whose epoch is closest to t.
func (x *Index) Nearest(prn int, t time.Time) (Element, bool) {
	list := x.byPRN[prn]
	if len(list) == 0 {
		return Element{}, false
	}
	best := list[0]
	bestDist := absDuration(t.Sub(best.Epoch))
	for _, e := range list[1:] {
		if d := absDuration(t.Sub(e.Epoch)); d < bestDist {
			best, bestDist = e, d
		}
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
