package tracing

import (
	"context"
	"fmt"
	"strings"

	"github.com/sarchlab/dynet/datarecording"
)

// TaskQuery selects recorded tasks. Empty fields are ignored.
type TaskQuery struct {
	Kind     string
	Location string
	Outcome  string

	// EnableRoundRange keeps the tasks overlapping [StartRound, EndRound].
	EnableRoundRange     bool
	StartRound, EndRound int

	Limit int
}

// TraceReader reads the sessions written by a DBTracer.
type TraceReader struct {
	reader datarecording.DataReader
}

// NewTraceReader creates a TraceReader on a recording.
func NewTraceReader(reader datarecording.DataReader) *TraceReader {
	reader.MapTable(traceIndexTable, Session{})

	return &TraceReader{reader: reader}
}

// Sessions returns the closed sessions in the order they were closed.
func (r *TraceReader) Sessions(ctx context.Context) ([]Session, error) {
	results, _, err := r.reader.Query(ctx, traceIndexTable,
		datarecording.QueryParams{OrderBy: "rowid"})
	if err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}

	sessions := make([]Session, 0, len(results))
	for _, s := range results {
		sessions = append(sessions, *s.(*Session))
	}

	return sessions, nil
}

// Tasks returns the tasks of a session matching the query, ordered by start
// round, and the number of matches regardless of the limit.
func (r *TraceReader) Tasks(
	ctx context.Context,
	session Session,
	query TaskQuery,
) ([]TaskRecord, int, error) {
	r.reader.MapTable(session.TableName, TaskRecord{})

	results, total, err := r.reader.Query(ctx, session.TableName,
		query.params())
	if err != nil {
		return nil, 0, fmt.Errorf("reading session %s: %w",
			session.TableName, err)
	}

	tasks := make([]TaskRecord, 0, len(results))
	for _, t := range results {
		tasks = append(tasks, *t.(*TaskRecord))
	}

	return tasks, total, nil
}

func (q TaskQuery) params() datarecording.QueryParams {
	var (
		conds []string
		args  []any
	)

	for _, c := range []struct{ column, value string }{
		{"Kind", q.Kind},
		{"Location", q.Location},
		{"Outcome", q.Outcome},
	} {
		if c.value != "" {
			conds = append(conds, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	if q.EnableRoundRange {
		conds = append(conds, "EndRound >= ? AND StartRound <= ?")
		args = append(args, q.StartRound, q.EndRound)
	}

	return datarecording.QueryParams{
		Where:   strings.Join(conds, " AND "),
		Args:    args,
		OrderBy: "StartRound, ID",
		Limit:   q.Limit,
	}
}
