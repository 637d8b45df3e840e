// Package config loads rescor run settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/gnss"
	"github.com/star/rescor/internal/obsio"
	"github.com/star/rescor/internal/pipeline"
	"github.com/star/rescor/internal/refpos"
	"github.com/star/rescor/internal/tle"
)

// Config is the complete run configuration.
type Config struct {
	Input  Stream `yaml:"input"`
	Output Stream `yaml:"output"`

	Types  []string `yaml:"types"`
	Debias []string `yaml:"debias"` // "CODE,limit"

	ElevationMask    float64 `yaml:"elevation_mask"`
	IonosphereHeight float64 `yaml:"ionosphere_height"`
	Only             string  `yaml:"only"`

	Reference Reference `yaml:"reference"`

	RAIMEdit        bool     `yaml:"raim_edit"`
	OutputReference bool     `yaml:"output_reference"`
	C1              string   `yaml:"c1"`
	InputFields     []string `yaml:"input_fields"`
	OutputRaw       []string `yaml:"output_raw"`
	Verbose         bool     `yaml:"verbose"`

	TLE         TLE    `yaml:"tle"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Stream names a file (or "-" for stdio) and its encoding.
type Stream struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// Reference selects the reference position source. At most one may be set.
type Reference struct {
	XYZ    string `yaml:"xyz"`
	LLH    string `yaml:"llh"`
	Table  string `yaml:"table"`
	// Stream is a previous rescor output whose XYZT/DIAG comments serve
	// as the positions table.
	Stream Stream `yaml:"stream"`
	Inline bool   `yaml:"inline"`
	RAIM   bool   `yaml:"raim"`
}

// TLE configures the SGP4 ephemeris source.
type TLE struct {
	File     string `yaml:"file"`
	CacheDir string `yaml:"cache_dir"`
	URL      string `yaml:"url"`
	MaxFiles int    `yaml:"max_files"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Input:            Stream{Path: "-", Format: string(obsio.FormatJSONLines)},
		Output:           Stream{Path: "-", Format: string(obsio.FormatJSONLines)},
		IonosphereHeight: geometry.DefaultIonosphereHeight,
		RAIMEdit:         true,
		OutputReference:  true,
		C1:               gnss.C1Allow.String(),
		TLE: TLE{
			CacheDir: "tle-cache",
			URL:      tle.DefaultSourceURL,
			MaxFiles: 5,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from RESCOR_* environment variables.
// Malformed values are logged and ignored.
func (c *Config) ApplyEnv(logger *slog.Logger) {
	if v := os.Getenv("RESCOR_TYPES"); v != "" {
		c.Types = splitList(v)
	}
	if v := os.Getenv("RESCOR_DEBIAS"); v != "" {
		c.Debias = strings.Split(v, ";")
	}
	if v := os.Getenv("RESCOR_ELEVATION_MASK"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			logger.Warn("invalid RESCOR_ELEVATION_MASK value, ignoring", "value", v)
		} else {
			c.ElevationMask = f
		}
	}
	if v := os.Getenv("RESCOR_IONOSPHERE_HEIGHT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			logger.Warn("invalid RESCOR_IONOSPHERE_HEIGHT value, using default", "value", v, "default", c.IonosphereHeight)
		} else {
			c.IonosphereHeight = f
		}
	}
	if v := os.Getenv("RESCOR_ONLY"); v != "" {
		c.Only = v
	}
	if v := os.Getenv("RESCOR_C1"); v != "" {
		c.C1 = v
	}
	if v := os.Getenv("RESCOR_VERBOSE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("RESCOR_VERBOSE must be a boolean value (true/false/1/0)", "value", v)
		} else {
			c.Verbose = b
		}
	}
	if v := os.Getenv("RESCOR_TLE_FILE"); v != "" {
		c.TLE.File = v
	}
	if v := os.Getenv("RESCOR_TLE_CACHE_DIR"); v != "" {
		c.TLE.CacheDir = v
	}
	if v := os.Getenv("RESCOR_TLE_URL"); v != "" {
		c.TLE.URL = v
	}
	if v := os.Getenv("RESCOR_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseDebias parses a "CODE,limit" pair such as "L3,10".
func ParseDebias(s string) (string, float64, error) {
	code, limit, ok := strings.Cut(s, ",")
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ok || code == "" {
		return "", 0, gnss.ConfigErrorf("debias", "want CODE,limit, got %q", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(limit), 64)
	if err != nil {
		return "", 0, gnss.ConfigErrorf("debias", "invalid limit in %q", s)
	}
	if !(v > 0) {
		return "", 0, gnss.ConfigErrorf("debias", "limit for %s must be positive, got %g", code, v)
	}
	return code, v, nil
}

// count returns how many reference sources are selected.
func (r Reference) count() int {
	n := 0
	for _, set := range []bool{r.XYZ != "", r.LLH != "", r.Table != "", r.Stream.Path != "", r.Inline, r.RAIM} {
		if set {
			n++
		}
	}
	return n
}

// Validate checks every setting and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	if _, err := obsio.ParseFormat(c.Input.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := obsio.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Reference.Stream.Path != "" {
		if _, err := obsio.ParseFormat(c.Reference.Stream.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := c.SessionOptions(); err != nil {
		errs = append(errs, err)
	}
	if c.IonosphereHeight < 0 {
		errs = append(errs, gnss.ConfigErrorf("ionosphere_height", "must not be negative, got %g", c.IonosphereHeight))
	}
	if n := c.Reference.count(); n > 1 {
		errs = append(errs, gnss.ConfigErrorf("reference", "only one reference position source may be given, got %d", n))
	}
	if c.Reference.XYZ != "" {
		if _, err := refpos.ParseXYZ(c.Reference.XYZ); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Reference.LLH != "" {
		if _, err := refpos.ParseLLH(c.Reference.LLH); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SessionOptions converts the configuration to pipeline options.
func (c Config) SessionOptions() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	var errs []error

	for _, t := range c.Types {
		opts.Types = append(opts.Types, splitList(t)...)
	}
	for _, d := range c.Debias {
		if strings.TrimSpace(d) == "" {
			continue
		}
		code, limit, err := ParseDebias(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if opts.BiasLimits == nil {
			opts.BiasLimits = make(map[string]float64)
		}
		opts.BiasLimits[code] = limit
	}

	opts.ElevationMask = c.ElevationMask
	if c.Only != "" {
		sat, err := gnss.ParseSatID(c.Only)
		if err != nil {
			errs = append(errs, gnss.ConfigErrorf("only", "%v", err))
		} else {
			opts.Only = sat
		}
	}
	opts.RAIMEdit = c.RAIMEdit
	opts.OutputReference = c.OutputReference
	opts.Verbose = c.Verbose

	policy, err := gnss.ParseC1Policy(c.C1)
	if err != nil {
		errs = append(errs, err)
	}
	opts.C1 = policy

	if opts.InputFields, err = gnss.ParseFieldMask(c.InputFields); err != nil {
		errs = append(errs, err)
	}
	switch {
	case len(c.OutputRaw) == 1 && strings.EqualFold(strings.TrimSpace(c.OutputRaw[0]), "none"):
		opts.OutputRaw = 0
	case len(c.OutputRaw) > 0:
		if opts.OutputRaw, err = gnss.ParseFieldMask(c.OutputRaw); err != nil {
			errs = append(errs, err)
		}
	}
	return opts, errors.Join(errs...)
}

// ResolverConfig builds the reference position source. solver is only
// consulted when RAIM is selected.
func (c Config) ResolverConfig(solver refpos.Solver, provider geometry.Provider) (refpos.Config, error) {
	rc := refpos.Config{
		Provider:      provider,
		ElevationMask: c.ElevationMask,
		Verbose:       c.Verbose,
		Inline:        c.Reference.Inline,
	}
	r := c.Reference
	if r.count() > 1 {
		return rc, gnss.ConfigErrorf("reference", "only one reference position source may be given")
	}
	switch {
	case r.XYZ != "":
		p, err := refpos.ParseXYZ(r.XYZ)
		if err != nil {
			return rc, err
		}
		rc.Static = &p
	case r.LLH != "":
		p, err := refpos.ParseLLH(r.LLH)
		if err != nil {
			return rc, err
		}
		rc.Static = &p
	case r.Table != "":
		f, err := os.Open(r.Table)
		if err != nil {
			return rc, fmt.Errorf("opening positions table: %w", err)
		}
		defer f.Close()
		tbl, err := refpos.LoadTable(f)
		if err != nil {
			return rc, fmt.Errorf("loading positions table %s: %w", r.Table, err)
		}
		rc.Table = tbl
	case r.Stream.Path != "":
		format, err := obsio.ParseFormat(r.Stream.Format)
		if err != nil {
			return rc, err
		}
		f, err := os.Open(r.Stream.Path)
		if err != nil {
			return rc, fmt.Errorf("opening reference stream: %w", err)
		}
		defer f.Close()
		tbl, err := refpos.LoadTableFromStream(obsio.NewReader(format, f))
		if err != nil {
			return rc, fmt.Errorf("loading reference positions from %s: %w", r.Stream.Path, err)
		}
		rc.Table = tbl
	case r.RAIM:
		if solver == nil {
			return rc, gnss.ConfigErrorf("reference", "RAIM needs a position solver and none is available")
		}
		rc.Solver = solver
	}
	return rc, nil
}

// LogSummary logs the effective settings.
func (c Config) LogSummary(logger *slog.Logger) {
	logger.Info("config loaded",
		"types", c.Types,
		"debias", c.Debias,
		"elevation_mask", c.ElevationMask,
		"ionosphere_height", c.IonosphereHeight,
		"only", c.Only,
		"raim_edit", c.RAIMEdit,
		"output_reference", c.OutputReference,
		"c1", c.C1,
		"input_format", c.Input.Format,
		"output_format", c.Output.Format,
	)
}
