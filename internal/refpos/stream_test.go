package refpos

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/rescor/internal/gnss"
)

type epochSlice []gnss.Epoch

func (s *epochSlice) Read() (gnss.Epoch, error) {
	if len(*s) == 0 {
		return gnss.Epoch{}, io.EOF
	}
	e := (*s)[0]
	*s = (*s)[1:]
	return e, nil
}

func commentEpoch(sec int, flag gnss.EpochFlag, comments ...string) gnss.Epoch {
	return gnss.Epoch{Time: t0.Add(time.Duration(sec) * time.Second), Flag: flag, Comments: comments}
}

func TestLoadTableFromStream(t *testing.T) {
	src := epochSlice{
		commentEpoch(0, gnss.FlagOK, "XYZT 100 1 2 0.5", "DIAG  6  1.20  1.90     0.300 (N,P-,G-Dop,RMS)"),
		commentEpoch(30, gnss.FlagOK, "XYZT 130 1 2 0.5"),
		commentEpoch(60, gnss.FlagHeaderInfo, "some header", "XYZT 160 1 2", "DIAG  5  1.00  1.50     0.200"),
		commentEpoch(90, gnss.FlagOK),
		commentEpoch(120, gnss.FlagOK, "DIAG  5  1.00  1.50     0.200"),
	}
	tbl, err := LoadTableFromStream(&src)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len(), "only epochs with both lines count")
	assert.Equal(t, 60*time.Second, tbl.Interval())

	p, ok := tbl.Lookup(t0)
	require.True(t, ok)
	assert.Equal(t, 100.0, p.X)
	assert.Equal(t, 0.5, p.Clock)
	assert.Equal(t, 6, p.NSats)
	assert.Equal(t, 0.3, p.RMS)

	p, ok = tbl.Lookup(t0.Add(60 * time.Second))
	require.True(t, ok)
	assert.Equal(t, 160.0, p.X)
	assert.Zero(t, p.Clock)
}

func TestLoadTableFromStreamErrors(t *testing.T) {
	empty := epochSlice{commentEpoch(0, gnss.FlagOK)}
	_, err := LoadTableFromStream(&empty)
	assert.ErrorIs(t, err, ErrEmptyTable)

	bad := epochSlice{commentEpoch(0, gnss.FlagOK, "XYZT 1 2")}
	_, err = LoadTableFromStream(&bad)
	assert.ErrorContains(t, err, "epoch 1")

	boom := errors.New("boom")
	_, err = LoadTableFromStream(failingReader{boom})
	assert.ErrorIs(t, err, boom)
}

type failingReader struct{ err error }

func (r failingReader) Read() (gnss.Epoch, error) { return gnss.Epoch{}, r.err }
