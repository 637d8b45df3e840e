package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/refpos"
)

type nopSolver struct{}

func (nopSolver) Solve(time.Time, []gnss.SatID, []float64) (refpos.Solution, error) {
	return refpos.Solution{}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	opts, err := cfg.SessionOptions()
	require.NoError(t, err)
	assert.True(t, opts.RAIMEdit)
	assert.True(t, opts.OutputReference)
	assert.Equal(t, gnss.C1Allow, opts.C1)
	assert.Equal(t, gnss.AllFields, opts.OutputRaw)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "rescor.yaml", `
types: [RI, "L3,P3"]
debias: ["l3,10", "P4, 2.5"]
elevation_mask: 10
only: G05
raim_edit: false
c1: force
output_raw: [none]
reference:
  xyz: "4027893.6,307045.6,4919475.0"
input:
  path: obs.msgpack
  format: msgpack
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "msgpack", cfg.Input.Format)
	assert.Equal(t, "jsonl", cfg.Output.Format, "unset fields keep defaults")
	assert.True(t, cfg.OutputReference)

	opts, err := cfg.SessionOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"RI", "L3", "P3"}, opts.Types)
	assert.Equal(t, map[string]float64{"L3": 10, "P4": 2.5}, opts.BiasLimits)
	assert.Equal(t, gnss.GPS(5), opts.Only)
	assert.False(t, opts.RAIMEdit)
	assert.Equal(t, gnss.C1Force, opts.C1)
	assert.Zero(t, opts.OutputRaw)
	assert.Equal(t, 10.0, opts.ElevationMask)

	rc, err := cfg.ResolverConfig(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rc.Static)
	assert.Equal(t, 4027893.6, rc.Static.X)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "types: [unclosed"))
	assert.Error(t, err)
}

func TestParseDebias(t *testing.T) {
	code, limit, err := ParseDebias(" l3 , 10 ")
	require.NoError(t, err)
	assert.Equal(t, "L3", code)
	assert.Equal(t, 10.0, limit)

	for _, bad := range []string{"L3", "L3,x", "L3,0", "L3,-1", ",5"} {
		_, _, err := ParseDebias(bad)
		var ce *gnss.ConfigError
		assert.ErrorAs(t, err, &ce, bad)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Input.Format = "rinex"
	cfg.Only = "Q99"
	cfg.C1 = "sometimes"
	cfg.Debias = []string{"L3,-2"}
	cfg.Reference = Reference{XYZ: "1,2,3", Inline: true}

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"format", "only", "c1", "debias", "reference"} {
		assert.ErrorContains(t, err, field)
	}
	var ce *gnss.ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestValidateBadPosition(t *testing.T) {
	cfg := Default()
	cfg.Reference.LLH = "95,0,0"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.IonosphereHeight = -1
	assert.ErrorContains(t, cfg.Validate(), "ionosphere_height")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RESCOR_TYPES", "RI, XR")
	t.Setenv("RESCOR_DEBIAS", "L3,10;P4,3")
	t.Setenv("RESCOR_ELEVATION_MASK", "15")
	t.Setenv("RESCOR_IONOSPHERE_HEIGHT", "-5")
	t.Setenv("RESCOR_VERBOSE", "yes")
	t.Setenv("RESCOR_ONLY", "G12")

	cfg := Default()
	cfg.ApplyEnv(quietLogger())

	assert.Equal(t, []string{"RI", "XR"}, cfg.Types)
	assert.Equal(t, []string{"L3,10", "P4,3"}, cfg.Debias)
	assert.Equal(t, 15.0, cfg.ElevationMask)
	assert.Equal(t, Default().IonosphereHeight, cfg.IonosphereHeight, "invalid value ignored")
	assert.False(t, cfg.Verbose, "invalid boolean ignored")
	assert.Equal(t, "G12", cfg.Only)
}

func TestResolverConfig(t *testing.T) {
	table := writeFile(t, "pos.txt", "# positions\n2024-03-01T00:00:00Z 1 2 3\n2024-03-01T00:00:30Z 1 2 4\n")

	cfg := Default()
	cfg.Reference.Table = table
	rc, err := cfg.ResolverConfig(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rc.Table)
	assert.Equal(t, 2, rc.Table.Len())

	cfg.Reference = Reference{Table: filepath.Join(t.TempDir(), "nope.txt")}
	_, err = cfg.ResolverConfig(nil, nil)
	assert.Error(t, err)

	cfg.Reference = Reference{Inline: true}
	rc, err = cfg.ResolverConfig(nil, nil)
	require.NoError(t, err)
	assert.True(t, rc.Inline)

	cfg.Reference = Reference{RAIM: true}
	_, err = cfg.ResolverConfig(nil, nil)
	var ce *gnss.ConfigError
	assert.ErrorAs(t, err, &ce)

	rc, err = cfg.ResolverConfig(nopSolver{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, rc.Solver)
}

func TestResolverConfigFromStream(t *testing.T) {
	stream := writeFile(t, "previous.jsonl",
		`{"time":"2024-03-01T00:00:00Z","flag":0,"records":[],"comments":["XYZT 4027893.600 307045.600 4919475.000 1.000","DIAG  7  1.10  1.70     0.250 (N,P-,G-Dop,RMS)"]}`+"\n"+
			`{"time":"2024-03-01T00:00:30Z","flag":0,"records":[],"comments":["XYZT 4027893.700 307045.600 4919475.000 1.100","DIAG  7  1.10  1.70     0.250 (N,P-,G-Dop,RMS)"]}`+"\n")

	cfg := Default()
	cfg.Reference.Stream = Stream{Path: stream}
	require.NoError(t, cfg.Validate())
	rc, err := cfg.ResolverConfig(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rc.Table)
	assert.Equal(t, 2, rc.Table.Len())

	cfg.Reference.Inline = true
	assert.ErrorContains(t, cfg.Validate(), "reference")

	cfg.Reference = Reference{Stream: Stream{Path: stream, Format: "rinex"}}
	assert.ErrorContains(t, cfg.Validate(), "format")
}
