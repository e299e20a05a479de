// Package main provides the gaudi command: it compiles a blueprint directory
// into a Definition, creates its tables, runs populators and serves its APIs.
//
// Usage:
//
//	gaudi check                  # Validate the blueprint
//	gaudi compile                # Write the compiled Definition
//	gaudi migrate [--dry-run]    # Create missing tables
//	gaudi populate <name>        # Run a populator
//	gaudi serve [--watch]        # Serve the APIs, reloading on changes
//	gaudi version                # Show version information
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gauditech/gaudi-sub004/internal/cli"

	// Database drivers
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// errReported marks an error already printed by its command.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprint(os.Stderr, cli.FormatError(err))
		}
		os.Exit(1)
	}
}

// app carries the loaded configuration to every subcommand.
type app struct {
	cfg    *Config
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "gaudi",
		Short:         "Compile blueprints and serve their APIs",
		Long:          `Gaudi compiles a directory of YAML blueprints (models, APIs, populators and hooks) into a Definition and serves it as a REST API over PostgreSQL or SQLite.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			level, err := cli.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(cli.NewLogHandler(a.stderr, level)))
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				cli.SetColors(false)
			}
			a.cfg = cfg
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringP("database-url", "d", "", "Database connection URL")
	rootCmd.PersistentFlags().StringP("config", "c", "gaudi.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringP("blueprint-dir", "b", "", "Blueprint directory (default ./blueprint)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		checkCmd(a),
		compileCmd(a),
		migrateCmd(a),
		populateCmd(a),
		serveCmd(a),
		versionCmd(a),
	)
	return rootCmd
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "gaudi %s\n", version)
			return nil
		},
	}
}
