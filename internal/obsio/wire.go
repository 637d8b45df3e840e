// Package obsio reads observation epochs and writes annotated epochs as
// JSON lines or MessagePack streams.
//
// On the wire an observable of 0 means "absent".
package obsio

import (
	"fmt"
	"strings"
	"time"

	"github.com/star/rescor/internal/gnss"
)

// Format is a stream encoding.
type Format string

const (
	FormatJSONLines Format = "jsonl"
	FormatMsgpack   Format = "msgpack"
)

// ParseFormat accepts "jsonl" (or "json") and "msgpack".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jsonl", "json":
		return FormatJSONLines, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	}
	return "", gnss.ConfigErrorf("format", "unknown stream format %q (want jsonl or msgpack)", s)
}

type wireObservation struct {
	Sat  string  `json:"sat"`
	L1   float64 `json:"L1,omitempty"`
	L2   float64 `json:"L2,omitempty"`
	P1   float64 `json:"P1,omitempty"`
	P2   float64 `json:"P2,omitempty"`
	C1   float64 `json:"C1,omitempty"`
	LLI1 uint8   `json:"lli1,omitempty"`
	LLI2 uint8   `json:"lli2,omitempty"`
}

type wireEpoch struct {
	Time     time.Time         `json:"time"`
	Flag     int               `json:"flag"`
	Obs      []wireObservation `json:"obs,omitempty"`
	Comments []string          `json:"comments,omitempty"`
}

type wireDatum struct {
	V   float64 `json:"v"`
	LLI uint8   `json:"lli,omitempty"`
}

type wireRecord struct {
	wireObservation
	Derived map[string]wireDatum `json:"derived,omitempty"`
}

type wireAnnotated struct {
	Time     time.Time    `json:"time"`
	Flag     int          `json:"flag"`
	Records  []wireRecord `json:"records"`
	Comments []string     `json:"comments,omitempty"`
}

func observationFromWire(w wireObservation) (gnss.Observation, error) {
	sat, err := gnss.ParseSatID(w.Sat)
	if err != nil {
		return gnss.Observation{}, err
	}
	return gnss.Observation{
		Sat:  sat,
		L1:   gnss.ObsFromWire(w.L1),
		L2:   gnss.ObsFromWire(w.L2),
		P1:   gnss.ObsFromWire(w.P1),
		P2:   gnss.ObsFromWire(w.P2),
		C1:   gnss.ObsFromWire(w.C1),
		LLI1: w.LLI1,
		LLI2: w.LLI2,
	}, nil
}

func observationToWire(o gnss.Observation) wireObservation {
	return wireObservation{
		Sat:  o.Sat.String(),
		L1:   o.L1.Wire(),
		L2:   o.L2.Wire(),
		P1:   o.P1.Wire(),
		P2:   o.P2.Wire(),
		C1:   o.C1.Wire(),
		LLI1: o.LLI1,
		LLI2: o.LLI2,
	}
}

func epochFromWire(w wireEpoch) (gnss.Epoch, error) {
	e := gnss.Epoch{
		Time:     w.Time.UTC(),
		Flag:     gnss.EpochFlag(w.Flag),
		Comments: w.Comments,
	}
	for i, wo := range w.Obs {
		o, err := observationFromWire(wo)
		if err != nil {
			return gnss.Epoch{}, fmt.Errorf("observation %d: %w", i, err)
		}
		e.Observations = append(e.Observations, o)
	}
	return e, nil
}

func epochToWire(e gnss.Epoch) wireEpoch {
	w := wireEpoch{Time: e.Time.UTC(), Flag: int(e.Flag), Comments: e.Comments}
	for _, o := range e.Observations {
		w.Obs = append(w.Obs, observationToWire(o))
	}
	return w
}

func annotatedToWire(a gnss.AnnotatedEpoch) wireAnnotated {
	w := wireAnnotated{
		Time:     a.Time.UTC(),
		Flag:     int(a.Flag),
		Records:  make([]wireRecord, 0, len(a.Records)),
		Comments: a.Comments,
	}
	for _, r := range a.Records {
		wr := wireRecord{wireObservation: observationToWire(r.Raw)}
		wr.Sat = r.Sat.String()
		for slot, d := range r.Derived {
			if !d.Valid || slot >= len(a.Types) {
				continue
			}
			if wr.Derived == nil {
				wr.Derived = make(map[string]wireDatum)
			}
			wr.Derived[a.Types[slot]] = wireDatum{V: d.Value, LLI: d.LLI}
		}
		w.Records = append(w.Records, wr)
	}
	return w
}
