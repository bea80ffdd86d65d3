package dygraph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/dynet/sim"
)

// OpKind is the kind of a trace operation.
type OpKind string

// Trace operations.
const (
	OpAddNode    OpKind = "an"
	OpDeleteNode OpKind = "dn"
	OpChangeNode OpKind = "cn"
)

// Errors wrapped by ParseError.
var (
	ErrMissingField     = errors.New("missing field")
	ErrExtraField       = errors.New("unexpected field")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrNegativeRound    = errors.New("negative round")
)

// A ParseError locates a malformed trace line.
type ParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d, field %s: %v", e.Line, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// A TraceOp is one line of a trace.
type TraceOp struct {
	Round    int
	Kind     OpKind
	ID       int
	Location sim.Point
}

func (op TraceOp) String() string {
	if op.Kind == OpDeleteNode {
		return fmt.Sprintf("%d %s %d", op.Round, op.Kind, op.ID)
	}

	return fmt.Sprintf("%d %s %d %s %s", op.Round, op.Kind, op.ID,
		formatCoord(op.Location.X), formatCoord(op.Location.Y))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseTrace reads a whole trace. Blank lines and lines starting with # are
// skipped. Nothing is returned if any line is malformed.
func ParseTrace(r io.Reader) ([]TraceOp, error) {
	var ops []TraceOp

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		op, err := parseLine(lineNo, strings.Fields(line))
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	return ops, nil
}

func parseLine(lineNo int, fields []string) (TraceOp, error) {
	var op TraceOp

	fail := func(field string, err error) (TraceOp, error) {
		return TraceOp{}, &ParseError{Line: lineNo, Field: field, Err: err}
	}

	if len(fields) < 3 {
		names := []string{"round", "operation", "id"}
		return fail(names[len(fields)], ErrMissingField)
	}

	round, err := strconv.Atoi(fields[0])
	if err != nil {
		return fail("round", err)
	}

	if round < 0 {
		return fail("round", ErrNegativeRound)
	}

	op.Round = round
	op.Kind = OpKind(fields[1])

	op.ID, err = strconv.Atoi(fields[2])
	if err != nil {
		return fail("id", err)
	}

	want := 5
	switch op.Kind {
	case OpAddNode, OpChangeNode:
	case OpDeleteNode:
		want = 3
	default:
		return fail("operation", fmt.Errorf("%w %q", ErrUnknownOperation, fields[1]))
	}

	if len(fields) < want {
		return fail([]string{"x", "y"}[len(fields)-3], ErrMissingField)
	}

	if len(fields) > want {
		return fail(fields[want], ErrExtraField)
	}

	if want == 5 {
		if op.Location.X, err = strconv.ParseFloat(fields[3], 64); err != nil {
			return fail("x", err)
		}

		if op.Location.Y, err = strconv.ParseFloat(fields[4], 64); err != nil {
			return fail("y", err)
		}
	}

	return op, nil
}

// A TracePlayer applies trace operations to a topology. At every round, it
// applies, in trace order, all the operations whose round has been reached.
type TracePlayer struct {
	topo *sim.Topology
	ops  []TraceOp
	next int
	sub  *sim.Subscription
}

// NewTracePlayer creates a player for already parsed operations.
func NewTracePlayer(topo *sim.Topology, ops []TraceOp) *TracePlayer {
	return &TracePlayer{topo: topo, ops: ops}
}

// LoadTracePlayer parses a trace and creates a player for it.
func LoadTracePlayer(topo *sim.Topology, r io.Reader) (*TracePlayer, error) {
	ops, err := ParseTrace(r)
	if err != nil {
		return nil, err
	}

	return NewTracePlayer(topo, ops), nil
}

// Start resets the topology time and begins the replay from the first
// operation.
func (p *TracePlayer) Start() {
	p.topo.ResetTime()
	p.next = 0
	p.sub = p.topo.AddClockListener(p, 1)
}

// Stop ends the replay.
func (p *TracePlayer) Stop() {
	if p.sub != nil {
		p.sub.Cancel()
	}
}

// Done tells whether every operation has been applied.
func (p *TracePlayer) Done() bool {
	return p.next >= len(p.ops)
}

// OnClock implements sim.ClockListener.
func (p *TracePlayer) OnClock() {
	now := p.topo.Time()

	for p.next < len(p.ops) && p.ops[p.next].Round <= now {
		p.apply(p.ops[p.next])
		p.next++
	}
}

func (p *TracePlayer) apply(op TraceOp) {
	switch op.Kind {
	case OpAddNode:
		if p.topo.FindNodeByID(op.ID) != nil {
			p.topo.Logger().Warn().
				Stringer("op", op).
				Msg("trace adds a node that already exists")

			return
		}

		n := p.topo.NewNodeOfModel(sim.DefaultModel)
		n.SetID(op.ID)
		p.topo.AddNodeAt(op.Location, n)
	case OpDeleteNode:
		n := p.topo.FindNodeByID(op.ID)
		if n == nil {
			p.warnMissing(op)
			return
		}

		p.topo.RemoveNode(n)
	case OpChangeNode:
		n := p.topo.FindNodeByID(op.ID)
		if n == nil {
			p.warnMissing(op)
			return
		}

		n.SetLocation(op.Location)
	}
}

func (p *TracePlayer) warnMissing(op TraceOp) {
	p.topo.Logger().Warn().
		Stringer("op", op).
		Msg("trace refers to a missing node")
}
