package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/rescor/internal/config"
	"github.com/star/rescor/internal/derived"
	"github.com/star/rescor/internal/geometry"
	"github.com/star/rescor/internal/health"
	"github.com/star/rescor/internal/metrics"
	"github.com/star/rescor/internal/obsio"
	"github.com/star/rescor/internal/pipeline"
	"github.com/star/rescor/internal/propagation"
	"github.com/star/rescor/internal/refpos"
	"github.com/star/rescor/internal/tle"
)

type runFlags struct {
	in, out     string
	format      string
	types       []string
	debias      []string
	only        string
	elevation   float64
	ionoHeight  float64
	xyz, llh    string
	table       string
	tableStream string
	tsFormat    string
	inline      bool
	raim        bool
	noRAIMEdit  bool
	noRefout    bool
	c1          string
	inputFields []string
	outputRaw   []string
	tleFile     string
	tleCacheDir string
	verbose     bool
	metricsAddr string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process an observation stream",
		Example: "  rescor run --in obs.jsonl --out out.jsonl --type RI --type L3 --debias L3,10 --xyz 4027893.6,307045.6,4919475.0 --tle gps.tle\n" +
			"  rescor run --format msgpack --inline --type P3,L3 < obs.msgpack > out.msgpack",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr(), g)
			cfg, err := loadConfig(g, logger)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)
			return run(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.in, "in", "-", "input stream, - for stdin")
	fl.StringVar(&f.out, "out", "-", "output stream, - for stdout")
	fl.StringVar(&f.format, "format", "jsonl", "stream encoding: jsonl or msgpack")
	fl.StringSliceVar(&f.types, "type", nil, "derived type to compute (repeatable, comma separated)")
	fl.StringArrayVar(&f.debias, "debias", nil, "debias a type with a reset limit, CODE,limit (repeatable)")
	fl.StringVar(&f.only, "only", "", "keep a single satellite, e.g. G05")
	fl.Float64Var(&f.elevation, "elevation", 0, "elevation mask in degrees")
	fl.Float64Var(&f.ionoHeight, "iono-height", geometry.DefaultIonosphereHeight, "ionosphere shell height in meters")
	fl.StringVar(&f.xyz, "xyz", "", "static reference position, ECEF x,y,z meters")
	fl.StringVar(&f.llh, "llh", "", "static reference position, lat,lon,height")
	fl.StringVar(&f.table, "table", "", "positions table file")
	fl.StringVar(&f.tableStream, "table-stream", "", "previous rescor output to take XYZT/DIAG reference positions from")
	fl.StringVar(&f.tsFormat, "table-stream-format", "jsonl", "encoding of --table-stream: jsonl or msgpack")
	fl.BoolVar(&f.inline, "inline", false, "take reference positions from in-stream comments")
	fl.BoolVar(&f.raim, "raim", false, "solve the reference position with RAIM")
	fl.BoolVar(&f.noRAIMEdit, "noRAIMedit", false, "keep satellites RAIM rejected")
	fl.BoolVar(&f.noRefout, "noRefout", false, "do not add reference position comments")
	fl.StringVar(&f.c1, "c1", "allow", "C1 for P1: allow, never or force")
	fl.StringSliceVar(&f.inputFields, "input-fields", nil, "observables the input carries (default all)")
	fl.StringSliceVar(&f.outputRaw, "output-raw", nil, "raw observables to copy to the output, or none")
	fl.StringVar(&f.tleFile, "tle", "", "GPS TLE file (default: newest cached file)")
	fl.StringVar(&f.tleCacheDir, "tle-cache-dir", "", "TLE cache directory")
	fl.BoolVar(&f.verbose, "verbose", false, "log degraded epochs at info")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	return cmd
}

// apply copies explicitly set flags over cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("in") {
		cfg.Input.Path = f.in
	}
	if set("out") {
		cfg.Output.Path = f.out
	}
	if set("format") {
		cfg.Input.Format = f.format
		cfg.Output.Format = f.format
	}
	if set("type") {
		cfg.Types = f.types
	}
	if set("debias") {
		cfg.Debias = f.debias
	}
	if set("only") {
		cfg.Only = f.only
	}
	if set("elevation") {
		cfg.ElevationMask = f.elevation
	}
	if set("iono-height") {
		cfg.IonosphereHeight = f.ionoHeight
	}
	if set("xyz") || set("llh") || set("table") || set("table-stream") || set("inline") || set("raim") {
		cfg.Reference = config.Reference{
			XYZ:    f.xyz,
			LLH:    f.llh,
			Table:  f.table,
			Stream: config.Stream{Path: f.tableStream, Format: f.tsFormat},
			Inline: f.inline,
			RAIM:   f.raim,
		}
	}
	if set("noRAIMedit") {
		cfg.RAIMEdit = !f.noRAIMEdit
	}
	if set("noRefout") {
		cfg.OutputReference = !f.noRefout
	}
	if set("c1") {
		cfg.C1 = f.c1
	}
	if set("input-fields") {
		cfg.InputFields = f.inputFields
	}
	if set("output-raw") {
		cfg.OutputRaw = f.outputRaw
	}
	if set("tle") {
		cfg.TLE.File = f.tleFile
	}
	if set("tle-cache-dir") {
		cfg.TLE.CacheDir = f.tleCacheDir
	}
	if set("verbose") {
		cfg.Verbose = f.verbose
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = f.metricsAddr
	}
}

func loadConfig(g *globalFlags, logger *slog.Logger) (config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(logger)
	return cfg, nil
}

// needsEphemeris reports whether any part of the run asks for satellite
// positions.
func needsEphemeris(cfg config.Config, types []string) bool {
	if cfg.TLE.File != "" || cfg.ElevationMask > 0 {
		return true
	}
	for _, code := range types {
		if spec, ok := derived.Lookup(code); ok && spec.Needs&(derived.DepEphemeris|derived.DepPosition) != 0 {
			return true
		}
	}
	return false
}

func run(ctx context.Context, cfg config.Config, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.LogSummary(logger)

	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}

	var provider geometry.Provider
	if needsEphemeris(cfg, opts.Types) {
		idx, err := tle.Load(cfg.TLE.File, tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles), logger)
		if err != nil {
			if errors.Is(err, tle.ErrNoCache) {
				return fmt.Errorf("%w: pass --tle or run `rescor tle fetch`", err)
			}
			return err
		}
		calc, err := geometry.NewCalculator(propagation.NewSource(idx, 0, logger), cfg.IonosphereHeight, logger)
		if err != nil {
			return err
		}
		defer calc.Close()
		provider = calc
	}

	// No position solver ships with rescor, so RAIM is rejected here.
	rc, err := cfg.ResolverConfig(nil, provider)
	if err != nil {
		return err
	}
	resolver, err := refpos.New(rc, logger)
	if err != nil {
		return err
	}
	session, err := pipeline.NewSession(opts, resolver, provider, logger)
	if err != nil {
		return err
	}

	in, closeIn, err := openInput(cfg.Input.Path, stdin)
	if err != nil {
		return err
	}
	defer closeIn()
	out, closeOut, err := openOutput(cfg.Output.Path, stdout)
	if err != nil {
		return err
	}

	inFormat, _ := obsio.ParseFormat(cfg.Input.Format)
	outFormat, _ := obsio.ParseFormat(cfg.Output.Format)
	bw := bufio.NewWriter(out)

	var state health.State
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, &state, logger)
		defer stopMetrics()
	}

	start := time.Now()
	state.Set(health.PhaseRunning)
	sum, runErr := session.Run(ctx, obsio.NewReader(inFormat, bufio.NewReader(in)), obsio.NewWriter(outFormat, bw))
	if err := bw.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flushing output: %w", err)
	}
	if err := closeOut(); err != nil && runErr == nil {
		runErr = fmt.Errorf("closing output: %w", err)
	}
	if runErr != nil {
		state.Set(health.PhaseFailed)
	} else {
		state.Set(health.PhaseDone)
	}
	logger.Info("done", "run_id", sum.RunID, "records", sum.Records, "duration_ms", time.Since(start).Milliseconds())
	return runErr
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output: %w", err)
	}
	return f, f.Close, nil
}

// serveMetrics exposes /metrics and the health checks until the returned
// stop function runs.
func serveMetrics(addr string, state *health.State, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", state.Readyz)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listen error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics shutdown error", "error", err)
		}
	}
}
