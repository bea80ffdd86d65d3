package tracing

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dynet/datarecording"
	"github.com/sarchlab/dynet/sim"
)

var _ = Describe("TraceReader", func() {
	var (
		ctx    context.Context
		reader *TraceReader
	)

	BeforeEach(func() {
		ctx = context.Background()
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		recorder := datarecording.New(path)
		DeferCleanup(recorder.Close)

		topo := sim.MakeTopologyBuilder().WithoutWireless().WithSeed(1).Build()
		tracer := NewDBTracer(topo, recorder)
		CollectTrace(topo, tracer)

		tracer.EnableTracing()
		a := topo.AddNode(nil)
		b := topo.AddNode(nil)
		topo.AddLink(sim.NewDirectedLink(a, b))
		topo.Start()
		topo.Clock().Advance(3)
		topo.RemoveLink(sim.NewDirectedLink(a, b))
		tracer.StopTracing()

		tracer.EnableTracing()
		topo.AddNode(nil)
		topo.Clock().Advance(2)
		tracer.StopTracing()

		dr, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(dr.Close)

		reader = NewTraceReader(dr)
	})

	It("should list the sessions", func() {
		sessions, err := reader.Sessions(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(Equal([]Session{
			{TableName: "trace1", SessionStart: 0, SessionEnd: 3},
			{TableName: "trace2", SessionStart: 3, SessionEnd: 5},
		}))
	})

	It("should filter tasks", func() {
		sessions, err := reader.Sessions(ctx)
		Expect(err).NotTo(HaveOccurred())

		links, total, err := reader.Tasks(ctx, sessions[0],
			TaskQuery{Kind: KindLink})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(1))
		Expect(links[0].Location).To(Equal("0 --> 1"))
		Expect(links[0].Outcome).To(Equal("removed"))

		ongoing, _, err := reader.Tasks(ctx, sessions[0],
			TaskQuery{Outcome: "ongoing"})
		Expect(err).NotTo(HaveOccurred())
		Expect(ongoing).To(HaveLen(2))
		for _, t := range ongoing {
			Expect(t.Kind).To(Equal(KindNode))
		}

		later, _, err := reader.Tasks(ctx, sessions[0],
			TaskQuery{EnableRoundRange: true, StartRound: 4, EndRound: 9})
		Expect(err).NotTo(HaveOccurred())
		Expect(later).To(BeEmpty())
	})

	It("should page tasks", func() {
		sessions, err := reader.Sessions(ctx)
		Expect(err).NotTo(HaveOccurred())

		tasks, total, err := reader.Tasks(ctx, sessions[0], TaskQuery{Limit: 1})

		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))
		Expect(total).To(Equal(3))
	})

	It("should only keep tasks started in the session", func() {
		sessions, err := reader.Sessions(ctx)
		Expect(err).NotTo(HaveOccurred())

		tasks, _, err := reader.Tasks(ctx, sessions[1], TaskQuery{})

		Expect(err).NotTo(HaveOccurred())
		Expect(tasks).To(HaveLen(1))
		Expect(tasks[0].Location).To(Equal("node 2"))
		Expect(tasks[0].StartRound).To(Equal(3))
	})
})
