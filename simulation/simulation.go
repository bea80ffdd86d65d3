// Package simulation assembles a topology with its recording, tracing,
// monitoring and dynamic-graph player, and runs it.
package simulation

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sarchlab/dynet/datarecording"
	"github.com/sarchlab/dynet/dygraph"
	"github.com/sarchlab/dynet/monitoring"
	"github.com/sarchlab/dynet/sim"
	"github.com/sarchlab/dynet/tracing"
)

// A Player drives the topology over time.
type Player interface {
	Start()
	Stop()
}

// pollInterval is how often Run checks a clock driven in the background, or
// a paused one.
const pollInterval = 10 * time.Millisecond

// A Simulation is a topology plus everything that observes or drives it.
type Simulation struct {
	id     string
	config Config
	logger zerolog.Logger

	topo   *sim.Topology
	player Player

	recorder datarecording.DataRecorder
	exec     *datarecording.ExecRecorder
	tracer   *tracing.DBTracer
	latency  *tracing.AverageTimeTracer
	messages *tracing.OutcomeCountTracer
	arcTime  *tracing.TotalTimeTracer
	linked   *tracing.BusyTimeTracer

	monitor *monitoring.Monitor
	metrics *monitoring.MetricsCollector

	movement     *dygraph.TraceRecorder
	movementFile io.Closer

	terminateOnce sync.Once
}

// Summary describes the state of a simulation.
type Summary struct {
	Rounds   int
	Nodes    int
	Links    int
	Arcs     int
	Messages sim.MessageStats
	// AverageMessageLatency is the average number of rounds between the
	// sending of a message and its delivery or drop.
	AverageMessageLatency float64
	// MessagesByKind counts sent messages by flag, or by content type for
	// messages without a flag.
	MessagesByKind map[string]uint64
	// ArcRounds sums the rounds each arc has been present.
	ArcRounds int
	// ConnectedRounds counts the rounds with at least one arc.
	ConnectedRounds int
}

// ID returns the unique identifier of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() Config {
	return s.config
}

// Topology returns the simulated topology.
func (s *Simulation) Topology() *sim.Topology {
	return s.topo
}

// Player returns the player, or nil if the simulation has none.
func (s *Simulation) Player() Player {
	return s.player
}

// Monitor returns the monitor, or nil if monitoring is disabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// DataRecorder returns the recorder, or nil if recording is disabled.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// Tracer returns the database tracer, or nil if recording is disabled.
func (s *Simulation) Tracer() *tracing.DBTracer {
	return s.tracer
}

// Run starts the player and the topology, then runs until the configured
// number of rounds is reached or ctx is done. With zero rounds, it runs until
// ctx is done. Rounds are ticked here unless the clock has a time unit.
func (s *Simulation) Run(ctx context.Context) error {
	if s.player != nil {
		s.player.Start()
		defer s.player.Stop()
	}

	s.topo.Start()

	var bar *monitoring.ProgressBar
	if s.monitor != nil && s.config.Rounds > 0 {
		bar = s.monitor.CreateProgressBar("Rounds", uint64(s.config.Rounds))
		defer s.monitor.CompleteProgressBar(bar)
	}

	s.logger.Info().
		Int("rounds", s.config.Rounds).
		Int("nodes", s.topo.NodeCount()).
		Msg("simulation started")

	var err error
	if s.topo.Clock().TimeUnit() > 0 {
		err = s.wait(ctx, bar)
	} else {
		err = s.drive(ctx, bar)
	}

	s.logger.Info().Int("round", s.topo.Time()).Msg("simulation stopped")

	return err
}

// pauseAtLastRound keeps a background clock from running past the configured
// number of rounds.
func (s *Simulation) pauseAtLastRound(ctx sim.HookCtx) {
	if ctx.Pos == sim.HookPosRoundEnd && ctx.Round+1 >= s.config.Rounds {
		s.topo.Pause()
	}
}

func (s *Simulation) done() bool {
	return s.config.Rounds > 0 && s.topo.Time() >= s.config.Rounds
}

func (s *Simulation) drive(ctx context.Context, bar *monitoring.ProgressBar) error {
	for !s.done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !s.topo.Clock().Tick() {
			// Paused from the monitor.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}

			continue
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}

	return nil
}

func (s *Simulation) wait(ctx context.Context, bar *monitoring.ProgressBar) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	defer s.topo.Stop()

	for !s.done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if bar != nil {
			bar.SetFinished(uint64(s.topo.Time()))
		}
	}

	return nil
}

// Summary reports the current state of the simulation.
func (s *Simulation) Summary() Summary {
	var summary Summary

	s.topo.Do(func() {
		now := s.topo.Time()
		summary = Summary{
			Rounds:                now,
			Nodes:                 s.topo.NodeCount(),
			Links:                 len(s.topo.Links()),
			Arcs:                  len(s.topo.DirectedLinks()),
			Messages:              s.topo.MessageEngine().Stats(),
			AverageMessageLatency: s.latency.AverageTime(),
			MessagesByKind:        make(map[string]uint64),
			ArcRounds:             s.arcTime.TotalTimeAt(now),
			ConnectedRounds:       s.linked.BusyTimeAt(now),
		}

		for _, name := range s.messages.TaskNames() {
			summary.MessagesByKind[name] = s.messages.TaskCount(name)
		}
	})

	return summary
}

// Terminate stops the simulation and releases its outputs. It can be called
// more than once.
func (s *Simulation) Terminate() {
	s.terminateOnce.Do(s.terminate)
}

func (s *Simulation) terminate() {
	if s.topo == nil {
		return
	}

	s.topo.Stop()

	if s.exec != nil {
		summary := s.Summary()
		s.exec.Set("Rounds", strconv.Itoa(summary.Rounds))
		s.exec.Set("Messages Sent", strconv.FormatUint(summary.Messages.Sent, 10))
		s.exec.Set("Messages Delivered",
			strconv.FormatUint(summary.Messages.Delivered, 10))
		s.exec.End()
	}

	if s.tracer != nil {
		s.tracer.Terminate()
	}

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			s.logger.Error().Err(err).Msg("closing recording")
		}
	}

	if s.movement != nil {
		err := errors.Join(s.movement.Close(), s.movementFile.Close())
		if err != nil {
			s.logger.Error().Err(err).Msg("closing movement trace")
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := s.monitor.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("stopping monitor")
		}
	}
}
