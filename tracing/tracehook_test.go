package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dynet/sim"
)

type taskLog struct {
	started []Task
	ended   []Task
}

func (l *taskLog) StartTask(task Task) {
	l.started = append(l.started, task)
}

func (l *taskLog) EndTask(task Task) {
	l.ended = append(l.ended, task)
}

var _ = Describe("CollectTrace", func() {
	var (
		topo *sim.Topology
		log  *taskLog
		a, b *sim.Node
	)

	BeforeEach(func() {
		topo = sim.MakeTopologyBuilder().WithoutWireless().WithSeed(1).Build()
		log = &taskLog{}
		CollectTrace(topo, log)
		a = topo.AddNode(nil)
		b = topo.AddNode(nil)
	})

	It("should start node tasks", func() {
		Expect(log.started).To(HaveLen(2))
		Expect(log.started[1].Kind).To(Equal(KindNode))
		Expect(log.started[1].Location).To(Equal("node 1"))
	})

	It("should end tasks with the id they started with", func() {
		topo.RemoveNode(b)

		Expect(log.ended).To(HaveLen(1))
		Expect(log.ended[0].ID).To(Equal(log.started[1].ID))
		Expect(log.ended[0].What).To(Equal("removed"))
	})

	It("should follow messages to their delivery", func() {
		topo.AddLink(sim.NewLink(a, b))
		topo.Start()
		log.started, log.ended = nil, nil

		a.SendWithFlag(b, 1, "ping")
		topo.Clock().Tick()

		Expect(log.started).To(HaveLen(1))
		Expect(log.started[0].Kind).To(Equal(KindMessage))
		Expect(log.started[0].What).To(Equal("ping"))
		Expect(log.ended).To(ConsistOf(
			HaveField("What", "delivered")))
	})

	It("should report dropped messages", func() {
		topo.AddLink(sim.NewLink(a, b))
		topo.Start()
		a.Send(b, "x")
		topo.RemoveLink(sim.NewLink(a, b))
		log.ended = nil

		topo.Clock().Tick()

		Expect(log.ended).To(ConsistOf(HaveField("What", "dropped")))
	})
})

var _ = Describe("AverageTimeTracer", func() {
	It("should average message latency", func() {
		topo := sim.MakeTopologyBuilder().
			WithoutWireless().
			WithDelayPolicy(sim.FixedDelay(3)).
			WithSeed(1).
			Build()
		tracer := NewAverageTimeTracer(KindFilter(KindMessage))
		CollectTrace(topo, tracer)
		a := topo.AddNode(nil)
		b := topo.AddNode(nil)
		topo.AddLink(sim.NewLink(a, b))
		topo.Start()

		a.Send(b, "x")
		b.Send(a, "y")
		topo.Clock().Advance(5)

		Expect(tracer.TotalCount()).To(Equal(uint64(2)))
		Expect(tracer.AverageTime()).To(Equal(3.0))
	})
})
