// Package cli implements the facelapse command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rpggio/facelapse/internal/config"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	version    string
	configPath string
	logLevel   string

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

// engine opens the storage and services described by the loaded config.
func (a *app) engine() (*engine, error) {
	return openEngine(a.cfg, a.logger)
}

func newRootCmd(a *app, logOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "facelapse",
		Short: "Assemble an aligned face-lapse video from a pile of portraits",
		Long: `facelapse ingests portrait photos of one person, aligns every face onto a
common canvas, orders the photos on a timeline and encodes them into a video.

Examples:
  # Add photos and align them
  facelapse ingest ~/Pictures/daily/*.jpg
  facelapse align

  # Check the order, pin a photo to the front, fill in missing dates
  facelapse list
  facelapse order 17 0
  facelapse interpolate

  # Build a video with date labels
  facelapse video --frame-duration 0.2 --dates --birthday 2015-06-01

  # Serve the MCP tools over stdio
  facelapse serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			logger, closeLog, err := newLogger(logOut, cfg.Log.Level, cfg.Log.Path, cfg.Log.MaxBytes)
			if err != nil {
				return fmt.Errorf("log file error: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			a.closeLog = closeLog
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file (default $FACELAPSE_CONFIG_PATH)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(a),
		newIngestCmd(a),
		newWatchCmd(a),
		newAlignCmd(a),
		newListCmd(a),
		newOrderCmd(a),
		newInterpolateCmd(a),
		newIncludeCmd(a),
		newDeleteCmd(a),
		newPruneCmd(a),
		newDuplicatesCmd(a),
		newVideoCmd(a),
		newActivityCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the command line and returns the process exit code. SIGINT
// and SIGTERM cancel the command context.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{version: version}
	root := newRootCmd(a, os.Stderr)
	err := root.ExecuteContext(ctx)
	if a.closeLog != nil {
		_ = a.closeLog()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
