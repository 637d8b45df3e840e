package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/rescor/internal/tle"
)

func newTLECmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tle",
		Short: "Manage GPS two-line element sets",
	}

	var (
		url      string
		dir      string
		maxFiles int
		extra    []string
	)
	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download GPS TLEs into the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(cmd.ErrOrStderr(), g)
			cfg, err := loadConfig(g, logger)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("url") {
				cfg.TLE.URL = url
			}
			if cmd.Flags().Changed("cache-dir") {
				cfg.TLE.CacheDir = dir
			}
			if cmd.Flags().Changed("max-files") {
				cfg.TLE.MaxFiles = maxFiles
			}

			fetcher := tle.NewFetcher(cfg.TLE.URL, logger, extra...)
			data, err := fetcher.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			elements, err := tle.Parse(bytes.NewReader(data), logger)
			if err != nil {
				return err
			}
			if len(elements) == 0 {
				return fmt.Errorf("no GPS elements in data from %s", fetcher.SourceURL())
			}

			path, err := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles).Write(data, time.Now())
			if err != nil {
				return err
			}
			logger.Info("TLE cache updated", "path", path, "elements", len(elements), "satellites", tle.NewIndex(elements).Len())
			return nil
		},
	}
	fetch.Flags().StringVar(&url, "url", tle.DefaultSourceURL, "TLE source URL")
	fetch.Flags().StringVar(&dir, "cache-dir", "tle-cache", "cache directory")
	fetch.Flags().IntVar(&maxFiles, "max-files", 5, "cached files to keep")
	fetch.Flags().StringSliceVar(&extra, "extra-url", nil, "additional TLE sources to append")
	cmd.AddCommand(fetch)
	return cmd
}

