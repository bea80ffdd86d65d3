package simulation

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sarchlab/dynet/datarecording"
	"github.com/sarchlab/dynet/dygraph"
	"github.com/sarchlab/dynet/monitoring"
	"github.com/sarchlab/dynet/serialization"
	"github.com/sarchlab/dynet/sim"
	"github.com/sarchlab/dynet/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	config            Config
	disableMonitoring bool
	disableRecording  bool
	outputFileName    string
	monitorPort       int
	registry          prometheus.Registerer
	logger            *zerolog.Logger
	player            Player
}

// MakeBuilder creates a new Builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithoutMonitoring sets the simulation to not use the monitor.
func (b Builder) WithoutMonitoring() Builder {
	b.disableMonitoring = true
	return b
}

// WithoutRecording disables the SQLite recording even if the configuration
// enables it.
func (b Builder) WithoutRecording() Builder {
	b.disableRecording = true
	return b
}

// WithOutputFileName sets the output file name of the recording, without
// extension.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMonitorPort sets the port number of the monitor. It overrides the
// configuration.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithMetricsRegistry sets where the Prometheus metrics are registered. The
// global registry is used otherwise.
func (b Builder) WithMetricsRegistry(reg prometheus.Registerer) Builder {
	b.registry = reg
	return b
}

// WithLogger sets the logger of the simulation and its topology. The global
// zerolog logger is used otherwise.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = &l
	return b
}

// WithPlayer sets the player, replacing the one of the configuration.
func (b Builder) WithPlayer(p Player) Builder {
	b.player = p
	return b
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger := log.Logger
	if b.logger != nil {
		logger = *b.logger
	}

	id := xid.New().String()
	s := &Simulation{
		id:     id,
		config: b.config,
		logger: logger.With().Str("simulation", id).Logger(),
	}

	topo := b.buildTopology(logger)
	s.topo = topo

	if b.config.Rounds > 0 {
		topo.AcceptHook(sim.HookFunc(s.pauseAtLastRound))
	}

	s.latency = tracing.NewAverageTimeTracer(
		tracing.KindFilter(tracing.KindMessage))
	s.messages = tracing.NewOutcomeCountTracer(
		tracing.KindFilter(tracing.KindMessage))
	s.arcTime = tracing.NewTotalTimeTracer(isArc)
	s.linked = tracing.NewBusyTimeTracer(isArc)

	for _, t := range []tracing.Tracer{s.latency, s.messages, s.arcTime, s.linked} {
		tracing.CollectTrace(topo, t)
	}

	if err := b.setupRecording(s); err != nil {
		s.Terminate()
		return nil, err
	}

	if err := b.populate(topo); err != nil {
		s.Terminate()
		return nil, err
	}

	if err := b.setupMetrics(s); err != nil {
		s.Terminate()
		return nil, err
	}

	if err := b.setupMonitor(s); err != nil {
		s.Terminate()
		return nil, err
	}

	s.player = b.player
	if s.player == nil {
		player, err := b.buildPlayer(topo)
		if err != nil {
			s.Terminate()
			return nil, err
		}

		s.player = player
	}

	return s, nil
}

func isArc(t tracing.Task) bool {
	return t.Kind == tracing.KindLink &&
		strings.HasPrefix(t.What, sim.Directed.String())
}

func (b Builder) buildTopology(logger zerolog.Logger) *sim.Topology {
	c := b.config
	mode, _ := parseRefreshMode(c.Topology.RefreshMode)

	var delivery sim.DeliveryPolicy = sim.DirectLinkPolicy{}
	if c.Messages.Delivery == DeliveryPath {
		delivery = sim.PathPolicy{}
	}

	tb := sim.MakeTopologyBuilder().
		WithCommunicationRange(c.Topology.CommunicationRange).
		WithSensingRange(c.Topology.SensingRange).
		WithDimensions(c.Topology.Width, c.Topology.Height).
		WithRefreshMode(mode).
		WithTimeUnit(c.Clock.TimeUnit).
		WithDelayPolicy(sim.FixedDelay(c.Messages.Delay)).
		WithDeliveryPolicy(delivery).
		WithLogger(logger)

	if !c.Topology.Wireless {
		tb = tb.WithoutWireless()
	}

	if c.Seed != 0 {
		tb = tb.WithSeed(c.Seed)
	}

	topo := tb.Build()
	topo.AcceptHook(sim.NewEventLogger(logger))

	return topo
}

func (b Builder) populate(topo *sim.Topology) error {
	c := b.config

	if c.Topology.File != "" {
		data, err := os.ReadFile(c.Topology.File)
		if err != nil {
			return fmt.Errorf("read topology file: %w", err)
		}

		if err := (serialization.YAML{}).Import(topo, data); err != nil {
			return fmt.Errorf("import topology %s: %w", c.Topology.File, err)
		}

		return nil
	}

	for i := 0; i < c.Topology.Nodes; i++ {
		topo.AddNodeRandom(nil)
	}

	return nil
}

func (b Builder) setupRecording(s *Simulation) error {
	c := b.config.Recording

	if c.MovementTrace != "" {
		f, err := os.Create(c.MovementTrace)
		if err != nil {
			return fmt.Errorf("create movement trace: %w", err)
		}

		s.movementFile = f
		s.movement = dygraph.NewTraceRecorder(s.topo, f)
	}

	if !c.Enabled || b.disableRecording {
		return nil
	}

	path := c.Path
	if b.outputFileName != "" {
		path = b.outputFileName
	}

	s.recorder = datarecording.New(path)

	s.exec = datarecording.NewExecRecorder(s.recorder)
	s.exec.Start()
	s.exec.Set("Simulation ID", s.id)
	s.exec.Set("Seed", strconv.FormatInt(b.config.Seed, 10))
	s.exec.Set("Player", b.config.Player.Kind)

	s.tracer = tracing.NewDBTracer(s.topo, s.recorder)
	tracing.CollectTrace(s.topo, s.tracer)

	if c.Trace {
		s.tracer.EnableTracing()
	}

	return nil
}

func (b Builder) setupMetrics(s *Simulation) error {
	if !b.config.Monitor.Metrics {
		return nil
	}

	metrics, err := monitoring.NewMetricsCollector(b.registry)
	if err != nil {
		return err
	}

	metrics.Attach(s.topo)
	s.metrics = metrics

	return nil
}

func (b Builder) setupMonitor(s *Simulation) error {
	if !b.config.Monitor.Enabled || b.disableMonitoring {
		return nil
	}

	port := b.config.Monitor.Port
	if b.monitorPort != 0 {
		port = b.monitorPort
	}

	s.monitor = monitoring.NewMonitor(s.topo).WithPortNumber(port)

	if s.tracer != nil {
		s.monitor.RegisterTracer(s.tracer)
	}

	if s.metrics != nil {
		s.monitor.RegisterMetrics(s.metrics)
	}

	return s.monitor.StartServer()
}

func (b Builder) buildPlayer(topo *sim.Topology) (Player, error) {
	c := b.config.Player

	switch c.Kind {
	case PlayerTrace:
		f, err := os.Open(c.Trace)
		if err != nil {
			return nil, fmt.Errorf("open trace: %w", err)
		}
		defer f.Close()

		return dygraph.LoadTracePlayer(topo, f)
	case PlayerRandom:
		return dygraph.NewRandomPlayer(dygraph.CompleteTVG(c.Nodes), topo,
			c.TimeBound, c.PresenceBound)
	case PlayerEMEG:
		return dygraph.NewEMEGPlayer(dygraph.CompleteTVG(c.Nodes), topo,
			c.BirthRate, c.DeathRate)
	}

	return nil, nil
}
