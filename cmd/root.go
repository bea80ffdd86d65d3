// Package cmd provides the command-line interface of dynet.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sarchlab/dynet/simulation"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Flags are shared by every command.
type Flags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
	Seed       int64
	Nodes      int

	Config *simulation.Config
}

// NewRootCmd creates the dynet command with all its subcommands.
func NewRootCmd() *cobra.Command {
	flags := &Flags{}

	rootCmd := &cobra.Command{
		Use:   "dynet",
		Short: "dynet simulates dynamic wireless networks round by round.",
		Long: `dynet runs distributed algorithms on topologies whose nodes move, ` +
			`appear and disappear. Links follow the communication ranges of ` +
			`nodes, or are played from traces and random dynamic graphs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "dynet.yaml", "configuration file")
	pf.StringVar(&flags.LogLevel, "log-level", "",
		"log level (debug, info, warn, error), overrides DYNET_LOG_LEVEL")
	pf.StringVar(&flags.LogFile, "log-file", "", "also write logs to this file")
	pf.Int64Var(&flags.Seed, "seed", 0, "random seed, 0 picks one")
	pf.IntVar(&flags.Nodes, "nodes", 0, "number of nodes placed at random")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newReplayCmd(flags),
		newExportCmd(flags),
		newReportCmd(),
	)

	return rootCmd
}

func (f *Flags) load(cmd *cobra.Command) error {
	cfg, err := simulation.Load(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pf := cmd.Flags()
	if pf.Changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}

	if pf.Changed("seed") {
		cfg.Seed = f.Seed
	}

	if pf.Changed("nodes") {
		cfg.Topology.Nodes = f.Nodes
	}

	if err := setupLogger(cfg.LogLevel, f.LogFile); err != nil {
		return err
	}

	f.Config = cfg

	return nil
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile,
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		atexit.Register(func() { file.Close() })

		output = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
	}

	log.Logger = log.Output(output).Level(parsedLevel)

	return nil
}

// Execute runs the command line and returns the exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}

	return 0
}
