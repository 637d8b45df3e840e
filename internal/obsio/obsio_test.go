package obsio

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/star/rescor/internal/gnss"
)

var epochTime = time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)

func sampleEpoch() gnss.Epoch {
	return gnss.Epoch{
		Time: epochTime,
		Flag: gnss.FlagOK,
		Observations: []gnss.Observation{
			{Sat: gnss.GPS(5), L1: gnss.Some(1.1e8), L2: gnss.Some(8.6e7), P1: gnss.Some(2.1e7), P2: gnss.Some(2.1e7 + 3), LLI1: 1},
			{Sat: gnss.GPS(12), C1: gnss.Some(2.2e7)},
		},
	}
}

func sampleAnnotated() gnss.AnnotatedEpoch {
	return gnss.AnnotatedEpoch{
		Time:  epochTime,
		Types: []string{"RI", "L3"},
		Records: []gnss.SatRecord{
			{
				Sat:     gnss.GPS(5),
				Raw:     gnss.Observation{Sat: gnss.GPS(5), P1: gnss.Some(2.1e7)},
				Derived: []gnss.Datum{{Obs: gnss.Some(4.5), LLI: 0}, {Obs: gnss.Some(0.001), LLI: 1}},
			},
			{
				Sat:     gnss.GPS(9),
				Derived: []gnss.Datum{{}, {Obs: gnss.Some(-2)}},
			},
		},
		Comments: []string{"XYZT 1 2 3 4"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSONLines, "JSON": FormatJSONLines, "jsonl": FormatJSONLines, "msgpack": FormatMsgpack} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("rinex")
	var ce *gnss.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestEpochRoundTrip(t *testing.T) {
	for _, f := range []Format{FormatJSONLines, FormatMsgpack} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(f, &buf)
			require.NoError(t, w.WriteEpoch(sampleEpoch()))
			meta := gnss.Epoch{Time: epochTime.Add(time.Second), Flag: gnss.FlagHeaderInfo, Comments: []string{"XYZT 1 2 3 4"}}
			require.NoError(t, w.WriteEpoch(meta))

			r := NewReader(f, &buf)
			got, err := r.Read()
			require.NoError(t, err)
			assert.True(t, got.Time.Equal(epochTime))
			require.Len(t, got.Observations, 2)
			assert.Equal(t, sampleEpoch().Observations, got.Observations)

			got, err = r.Read()
			require.NoError(t, err)
			assert.Equal(t, gnss.FlagHeaderInfo, got.Flag)
			assert.Equal(t, meta.Comments, got.Comments)
			assert.Empty(t, got.Observations)

			_, err = r.Read()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestJSONZeroIsAbsent(t *testing.T) {
	in := `{"time":"2024-03-01T12:00:30Z","flag":0,"obs":[{"sat":"G07","L1":0,"P1":2.3e7}]}` + "\n"
	e, err := NewJSONReader(strings.NewReader(in)).Read()
	require.NoError(t, err)
	require.Len(t, e.Observations, 1)
	o := e.Observations[0]
	assert.Equal(t, gnss.GPS(7), o.Sat)
	assert.False(t, o.L1.Valid)
	assert.False(t, o.L2.Valid)
	assert.True(t, o.P1.Valid)
	assert.Equal(t, 2.3e7, o.P1.Value)
}

func TestReadErrors(t *testing.T) {
	r := NewJSONReader(strings.NewReader(`{"time":"2024-03-01T12:00:30Z","obs":[{"sat":"X01"}]}`))
	_, err := r.Read()
	assert.ErrorContains(t, err, "epoch 1")

	r = NewJSONReader(strings.NewReader(`{"time":`))
	_, err = r.Read()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestJSONAnnotatedOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(sampleAnnotated()))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	var got wireAnnotated
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Records, 2)
	assert.Equal(t, "G05", got.Records[0].Sat)
	assert.Equal(t, 2.1e7, got.Records[0].P1)
	assert.Equal(t, map[string]wireDatum{"RI": {V: 4.5}, "L3": {V: 0.001, LLI: 1}}, got.Records[0].Derived)
	assert.Equal(t, "G09", got.Records[1].Sat)
	assert.Equal(t, map[string]wireDatum{"L3": {V: -2}}, got.Records[1].Derived)
	assert.Equal(t, []string{"XYZT 1 2 3 4"}, got.Comments)
	assert.NotContains(t, buf.String(), `"L1"`)
}

func TestMsgpackAnnotatedOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewMsgpackWriter(&buf)
	require.NoError(t, w.Write(sampleAnnotated()))

	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(buf.Bytes(), &got))
	assert.Contains(t, got, "records")
	assert.Contains(t, got, "comments")

	records, ok := got["records"].([]any)
	require.True(t, ok)
	require.Len(t, records, 2)
	first, ok := records[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "G05", first["sat"])
	assert.Contains(t, first, "derived")
}
