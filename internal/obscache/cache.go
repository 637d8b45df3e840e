// Package obscache holds the raw dual-frequency observables of the current
// epoch, per satellite, that derived types are computed from.
package obscache

import (
	"sort"

	"github.com/star/rescor/internal/gnss"
)

// Entry is the cached raw data for one satellite.
type Entry struct {
	L1, L2 gnss.Obs
	P1, P2 gnss.Obs
	LLI1   uint8
	LLI2   uint8
}

// Cache stores only the fields some consumer needs. It is reset at every
// epoch boundary.
type Cache struct {
	needed  gnss.FieldMask
	entries map[gnss.SatID]*Entry
}

// New creates a cache storing the fields in needed. C1 is never stored on
// its own; it is folded into P1 by UpdateObservation.
func New(needed gnss.FieldMask) *Cache {
	return &Cache{
		needed:  needed &^ gnss.FieldC1.Mask(),
		entries: make(map[gnss.SatID]*Entry),
	}
}

// Needs reports whether field f is stored.
func (c *Cache) Needs(f gnss.Field) bool {
	return c.needed.Has(f)
}

// Needed returns the stored field set.
func (c *Cache) Needed() gnss.FieldMask {
	return c.needed
}

// Update stores one observable. Fields that are not needed, and absent
// values, are ignored. The lli bits apply to phase fields only. Reports
// whether anything was stored.
func (c *Cache) Update(sat gnss.SatID, f gnss.Field, v gnss.Obs, lli uint8) bool {
	if !c.needed.Has(f) || !v.Valid {
		return false
	}

	e, ok := c.entries[sat]
	if !ok {
		e = &Entry{}
		c.entries[sat] = e
	}
	switch f {
	case gnss.FieldL1:
		e.L1, e.LLI1 = v, lli
	case gnss.FieldL2:
		e.L2, e.LLI2 = v, lli
	case gnss.FieldP1:
		e.P1 = v
	case gnss.FieldP2:
		e.P2 = v
	default:
		return false
	}
	return true
}

// UpdateObservation merges the fields of o selected by fields. P1 is taken
// through the C1 policy whenever P1 or C1 is selected.
func (c *Cache) UpdateObservation(o gnss.Observation, fields gnss.FieldMask, policy gnss.C1Policy) {
	if fields.Has(gnss.FieldL1) {
		c.Update(o.Sat, gnss.FieldL1, o.L1, o.LLI1)
	}
	if fields.Has(gnss.FieldL2) {
		c.Update(o.Sat, gnss.FieldL2, o.L2, o.LLI2)
	}
	if fields.Has(gnss.FieldP1) || fields.Has(gnss.FieldC1) {
		c.Update(o.Sat, gnss.FieldP1, o.EffectiveP1(policy), 0)
	}
	if fields.Has(gnss.FieldP2) {
		c.Update(o.Sat, gnss.FieldP2, o.P2, 0)
	}
}

// Get returns the entry for sat.
func (c *Cache) Get(sat gnss.SatID) (Entry, bool) {
	e, ok := c.entries[sat]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Satellites lists the cached satellites in order.
func (c *Cache) Satellites() []gnss.SatID {
	sats := make([]gnss.SatID, 0, len(c.entries))
	for s := range c.entries {
		sats = append(sats, s)
	}
	sort.Slice(sats, func(i, j int) bool { return sats[i].Less(sats[j]) })
	return sats
}

// Len returns the number of cached satellites.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Reset discards every entry.
func (c *Cache) Reset() {
	clear(c.entries)
}
