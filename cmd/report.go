package cmd

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/sarchlab/dynet/datarecording"
	"github.com/sarchlab/dynet/tracing"
	"github.com/spf13/cobra"
)

type reportOptions struct {
	session string
	list    bool
	query   tracing.TaskQuery
}

func newReportCmd() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report <recording.sqlite3>",
		Short: "Summarize a recorded run and its tracing sessions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return report(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.session, "session", "", "only report this session, such as trace1")
	f.BoolVar(&opts.list, "tasks", false, "list the tasks of the sessions")
	f.StringVar(&opts.query.Kind, "kind", "", "only list tasks of this kind")
	f.StringVar(&opts.query.Outcome, "outcome", "", "only list tasks with this outcome")
	f.IntVar(&opts.query.Limit, "limit", 50, "maximum number of tasks listed per session")

	return cmd
}

func report(cmd *cobra.Command, path string, opts *reportOptions) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open recording: %w", err)
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	tables, err := reader.StoredTables(ctx)
	if err != nil {
		return err
	}

	if slices.Contains(tables, "exec_info") {
		info, err := datarecording.ReadExecInfo(ctx, reader)
		if err != nil {
			return err
		}

		fmt.Fprintln(w, "execution:")
		for _, i := range info {
			fmt.Fprintf(w, "  %s: %s\n", i.Property, i.Value)
		}
	}

	if !slices.Contains(tables, "trace") {
		fmt.Fprintln(w, "no tracing sessions")
		return nil
	}

	traces := tracing.NewTraceReader(reader)

	sessions, err := traces.Sessions(ctx)
	if err != nil {
		return err
	}

	found := false

	for _, s := range sessions {
		if opts.session != "" && s.TableName != opts.session {
			continue
		}

		found = true

		if err := reportSession(cmd, w, traces, s, opts); err != nil {
			return err
		}
	}

	if opts.session != "" && !found {
		return errors.New("no session " + opts.session)
	}

	return nil
}

func reportSession(
	cmd *cobra.Command,
	w io.Writer,
	traces *tracing.TraceReader,
	s tracing.Session,
	opts *reportOptions,
) error {
	all, total, err := traces.Tasks(cmd.Context(), s, tracing.TaskQuery{})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: rounds %d-%d, %d tasks\n",
		s.TableName, s.SessionStart, s.SessionEnd, total)

	counts := make(map[string]map[string]int)
	for _, t := range all {
		if counts[t.Kind] == nil {
			counts[t.Kind] = make(map[string]int)
		}

		counts[t.Kind][t.Outcome]++
	}

	for _, kind := range slices.Sorted(maps.Keys(counts)) {
		fmt.Fprintf(w, "  %s:", kind)

		for _, outcome := range slices.Sorted(maps.Keys(counts[kind])) {
			fmt.Fprintf(w, " %s %d", outcome, counts[kind][outcome])
		}

		fmt.Fprintln(w)
	}

	if !opts.list {
		return nil
	}

	tasks, matching, err := traces.Tasks(cmd.Context(), s, opts.query)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		fmt.Fprintf(w, "    [%d, %d] %s %s %s (%s)\n",
			t.StartRound, t.EndRound, t.Kind, t.What, t.Location, t.Outcome)
	}

	if matching > len(tasks) {
		fmt.Fprintf(w, "    ... %d more\n", matching-len(tasks))
	}

	return nil
}
