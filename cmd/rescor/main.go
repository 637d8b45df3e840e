// Command rescor computes GNSS observation residuals and combinations from
// an epoch stream.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	debug      bool
	quiet      bool
}

func newLogger(w io.Writer, g *globalFlags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case g.debug:
		level = slog.LevelDebug
	case g.quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "rescor",
		Short:         "Derive residuals and combinations from GNSS observations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&g.debug, "debug", false, "log at debug level")
	root.PersistentFlags().BoolVar(&g.quiet, "quiet", false, "log warnings and errors only")

	root.AddCommand(newRunCmd(g), newTypesCmd(), newTLECmd(g))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rescor:", err)
		os.Exit(1)
	}
}
