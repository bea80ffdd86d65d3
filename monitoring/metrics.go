package monitoring

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sarchlab/dynet/sim"
)

// MetricsCollector bundles the Prometheus metrics of a topology. It is a hook
// that keeps them up to date.
type MetricsCollector struct {
	gatherer prometheus.Gatherer

	Rounds        prometheus.Counter
	RoundDuration prometheus.Histogram
	Nodes         prometheus.Gauge
	Links         *prometheus.GaugeVec
	Messages      *prometheus.CounterVec
	NodeFailures  prometheus.Counter

	lock       sync.Mutex
	roundStart time.Time
}

// NewMetricsCollector registers the metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewMetricsCollector(reg prometheus.Registerer) (*MetricsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &MetricsCollector{
		gatherer: gatherer,
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynet_rounds_total",
			Help: "Number of rounds run.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dynet_round_duration_seconds",
			Help:    "Wall-clock duration of a round.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dynet_nodes",
			Help: "Current number of nodes in the topology.",
		}),
		Links: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dynet_links",
			Help: "Current number of links, by type. Directed counts arcs.",
		}, []string{"type"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynet_messages_total",
			Help: "Number of messages, by outcome.",
		}, []string{"outcome"}),
		NodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dynet_node_failures_total",
			Help: "Number of panics recovered from node logic.",
		}),
	}

	collectors := map[string]prometheus.Collector{
		"dynet_rounds_total":           c.Rounds,
		"dynet_round_duration_seconds": c.RoundDuration,
		"dynet_nodes":                  c.Nodes,
		"dynet_links":                  c.Links,
		"dynet_messages_total":         c.Messages,
		"dynet_node_failures_total":    c.NodeFailures,
	}

	for name, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("registering %s: %w", name, err)
		}
	}

	return c, nil
}

// Attach initializes the gauges from the current content of the topology and
// registers the collector as a hook.
func (c *MetricsCollector) Attach(t *sim.Topology) {
	t.Do(func() {
		c.Nodes.Set(float64(t.NodeCount()))
		c.Links.WithLabelValues(sim.Directed.String()).
			Set(float64(len(t.DirectedLinks())))
		c.Links.WithLabelValues(sim.Undirected.String()).
			Set(float64(len(t.Links())))
		t.AcceptHook(c)
	})
}

// Func implements sim.Hook.
func (c *MetricsCollector) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosRoundStart:
		c.lock.Lock()
		c.roundStart = time.Now()
		c.lock.Unlock()
	case sim.HookPosRoundEnd:
		c.lock.Lock()
		c.RoundDuration.Observe(time.Since(c.roundStart).Seconds())
		c.lock.Unlock()
		c.Rounds.Inc()
	case sim.HookPosNodeAdded:
		c.Nodes.Inc()
	case sim.HookPosNodeRemoved:
		c.Nodes.Dec()
	case sim.HookPosLinkAdded:
		c.Links.WithLabelValues(ctx.Item.(*sim.Link).Type.String()).Inc()
	case sim.HookPosLinkRemoved:
		c.Links.WithLabelValues(ctx.Item.(*sim.Link).Type.String()).Dec()
	case sim.HookPosMsgSent:
		c.Messages.WithLabelValues("sent").Inc()
	case sim.HookPosMsgDelivered:
		c.Messages.WithLabelValues("delivered").Inc()
	case sim.HookPosMsgDropped:
		c.Messages.WithLabelValues("dropped").Inc()
	case sim.HookPosNodeFailure:
		c.NodeFailures.Inc()
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
