package sim

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

// Default topology parameters.
const (
	DefaultCommunicationRange = 100.0
	DefaultSensingRange       = 0.0
	DefaultWidth              = 600.0
	DefaultHeight             = 400.0
)

// TopologyBuilder can build topologies.
type TopologyBuilder struct {
	commRange    float64
	sensingRange float64
	width        float64
	height       float64
	wireless     bool
	refreshMode  RefreshMode
	timeUnit     time.Duration
	seed         int64
	seeded       bool
	resolver     LinkResolver
	scheduler    Scheduler
	delay        DelayPolicy
	delivery     DeliveryPolicy
	logger       zerolog.Logger
}

// MakeTopologyBuilder creates a builder with default parameters.
func MakeTopologyBuilder() TopologyBuilder {
	return TopologyBuilder{
		commRange:    DefaultCommunicationRange,
		sensingRange: DefaultSensingRange,
		width:        DefaultWidth,
		height:       DefaultHeight,
		wireless:     true,
		refreshMode:  RefreshEventBased,
		resolver:     DefaultLinkResolver{},
		scheduler:    DefaultScheduler{},
		delay:        FixedDelay(1),
		delivery:     DirectLinkPolicy{},
		logger:       zerolog.Nop(),
	}
}

// WithCommunicationRange sets the default communication range of nodes.
func (b TopologyBuilder) WithCommunicationRange(r float64) TopologyBuilder {
	b.commRange = r
	return b
}

// WithSensingRange sets the default sensing range of nodes.
func (b TopologyBuilder) WithSensingRange(r float64) TopologyBuilder {
	b.sensingRange = r
	return b
}

// WithDimensions sets the size of the area used for random placement.
func (b TopologyBuilder) WithDimensions(width, height float64) TopologyBuilder {
	b.width = width
	b.height = height
	return b
}

// WithoutWireless disables wireless links for every inserted node.
func (b TopologyBuilder) WithoutWireless() TopologyBuilder {
	b.wireless = false
	return b
}

// WithRefreshMode sets when geometry changes are resolved into links.
func (b TopologyBuilder) WithRefreshMode(m RefreshMode) TopologyBuilder {
	b.refreshMode = m
	return b
}

// WithTimeUnit sets the wall-clock duration of a round. Zero leaves rounds
// to be driven by hand.
func (b TopologyBuilder) WithTimeUnit(d time.Duration) TopologyBuilder {
	b.timeUnit = d
	return b
}

// WithSeed fixes the seed of the topology random source.
func (b TopologyBuilder) WithSeed(seed int64) TopologyBuilder {
	b.seed = seed
	b.seeded = true
	return b
}

// WithLinkResolver replaces the default link resolver.
func (b TopologyBuilder) WithLinkResolver(r LinkResolver) TopologyBuilder {
	b.resolver = r
	return b
}

// WithScheduler replaces the default round scheduler.
func (b TopologyBuilder) WithScheduler(s Scheduler) TopologyBuilder {
	b.scheduler = s
	return b
}

// WithDelayPolicy sets how long messages stay in transit.
func (b TopologyBuilder) WithDelayPolicy(p DelayPolicy) TopologyBuilder {
	b.delay = p
	return b
}

// WithDeliveryPolicy sets the check applied to due messages.
func (b TopologyBuilder) WithDeliveryPolicy(p DeliveryPolicy) TopologyBuilder {
	b.delivery = p
	return b
}

// WithLogger sets the logger used for diagnostics.
func (b TopologyBuilder) WithLogger(l zerolog.Logger) TopologyBuilder {
	b.logger = l
	return b
}

// Build creates the topology.
func (b TopologyBuilder) Build() *Topology {
	seed := b.seed
	if !b.seeded {
		seed = time.Now().UnixNano()
	}

	t := &Topology{
		commRange:    b.commRange,
		sensingRange: b.sensingRange,
		width:        b.width,
		height:       b.height,
		wireless:     b.wireless,
		refreshMode:  b.refreshMode,
		resolver:     b.resolver,
		scheduler:    b.scheduler,
		logger:       b.logger,
		rand:         rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		edgeIndex:    make(map[*Node]map[*Node]*Link),
		pendingSet:   make(map[*Node]bool),
		models:       make(map[string]NodeFactory),
	}

	t.clock = NewClock(b.timeUnit, t.runRound)
	t.messages = newMessageEngine(t)
	t.messages.SetDelayPolicy(b.delay)
	t.messages.SetDeliveryPolicy(b.delivery)
	t.models[DefaultModel] = genericNode

	return t
}

// NewTopology creates a topology with default parameters.
func NewTopology() *Topology {
	return MakeTopologyBuilder().Build()
}
