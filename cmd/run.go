package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/sarchlab/dynet/dygraph"
	"github.com/sarchlab/dynet/simulation"
	"github.com/spf13/cobra"
)

type runOptions struct {
	rounds        int
	player        string
	trace         string
	monitor       bool
	port          int
	open          bool
	record        bool
	recordTrace   bool
	output        string
	movementTrace string
}

func (o *runOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.rounds, "rounds", 0, "number of rounds, 0 runs until interrupted")
	f.BoolVar(&o.monitor, "monitor", false, "serve the HTTP monitor")
	f.IntVar(&o.port, "port", 0, "port of the monitor, 0 picks one")
	f.BoolVar(&o.open, "open", false, "open the monitor in a browser")
	f.BoolVar(&o.record, "record", false, "record the run in SQLite")
	f.BoolVar(&o.recordTrace, "record-trace", false,
		"record the run with a tracing session from the first round")
	f.StringVar(&o.output, "output", "", "recording file name, without extension")
	f.StringVar(&o.movementTrace, "movement-trace", "",
		"write the node operations of the run to this trace file")
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *simulation.Config) {
	f := cmd.Flags()

	if f.Changed("rounds") {
		cfg.Rounds = o.rounds
	}

	if f.Changed("player") {
		cfg.Player.Kind = o.player
	}

	if f.Changed("trace") {
		cfg.Player.Trace = o.trace
	}

	if o.monitor || o.open {
		cfg.Monitor.Enabled = true
	}

	if f.Changed("port") {
		cfg.Monitor.Port = o.port
	}

	if o.record || o.recordTrace {
		cfg.Recording.Enabled = true
	}

	if o.recordTrace {
		cfg.Recording.Trace = true
	}

	if o.movementTrace != "" {
		cfg.Recording.MovementTrace = o.movementTrace
	}
}

func newRunCmd(flags *Flags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := *flags.Config
			opts.apply(cmd, &cfg)

			return runSimulation(cmd, cfg, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.player, "player", simulation.PlayerNone,
		"dynamic graph player (none, trace, random, emeg)")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "trace file of the trace player")

	return cmd
}

func newReplayCmd(flags *Flags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "replay TRACE",
		Short: "Replay a movement trace.",
		Long: `Replay applies the node insertions, removals and moves of a ` +
			`trace file. Unless --rounds is given, it stops after the last ` +
			`operation of the trace.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *flags.Config
			opts.apply(cmd, &cfg)
			cfg.Player.Kind = simulation.PlayerTrace
			cfg.Player.Trace = args[0]

			if !cmd.Flags().Changed("rounds") {
				last, err := lastRound(args[0])
				if err != nil {
					return err
				}

				cfg.Rounds = last + 1
			}

			return runSimulation(cmd, cfg, opts)
		},
	}

	opts.register(cmd)

	return cmd
}

func lastRound(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	ops, err := dygraph.ParseTrace(f)
	if err != nil {
		return 0, err
	}

	last := 0
	for _, op := range ops {
		last = max(last, op.Round)
	}

	return last, nil
}

func runSimulation(
	cmd *cobra.Command,
	cfg simulation.Config,
	opts *runOptions,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	b := simulation.MakeBuilder().WithConfig(cfg).WithLogger(log.Logger)
	if opts.output != "" {
		b = b.WithOutputFileName(opts.output)
	}

	s, err := b.Build()
	if err != nil {
		return err
	}
	defer s.Terminate()

	if opts.open && s.Monitor() != nil {
		if err := browser.OpenURL(s.Monitor().URL()); err != nil {
			log.Warn().Err(err).Msg("cannot open the monitor")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = s.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	printSummary(cmd.OutOrStdout(), s.Summary())

	return nil
}

func printSummary(w io.Writer, s simulation.Summary) {
	fmt.Fprintf(w, "rounds:    %d\n", s.Rounds)
	fmt.Fprintf(w, "nodes:     %d\n", s.Nodes)
	fmt.Fprintf(w, "links:     %d (%d arcs)\n", s.Links, s.Arcs)
	fmt.Fprintf(w, "messages:  %d sent, %d delivered, %d dropped\n",
		s.Messages.Sent, s.Messages.Delivered, s.Messages.Dropped)
	fmt.Fprintf(w, "latency:   %.2f rounds\n", s.AverageMessageLatency)
	fmt.Fprintf(w, "connected: %d rounds, %d arc rounds\n",
		s.ConnectedRounds, s.ArcRounds)

	kinds := slices.Sorted(maps.Keys(s.MessagesByKind))
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %-10s %d\n", kind, s.MessagesByKind[kind])
	}
}
