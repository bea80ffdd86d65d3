package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/dynet/sim"
)

type fakeTracer struct {
	tracing bool
}

func (t *fakeTracer) EnableTracing() { t.tracing = true }

func (t *fakeTracer) StopTracing() { t.tracing = false }

func (t *fakeTracer) IsTracing() bool { return t.tracing }

var _ = Describe("Monitor", func() {
	var (
		topo   *sim.Topology
		m      *Monitor
		router http.Handler
	)

	BeforeEach(func() {
		topo = sim.MakeTopologyBuilder().WithSeed(1).Build()
		topo.AddNodeAt(sim.Point{X: 0, Y: 0}, nil)
		topo.AddNodeAt(sim.Point{X: 50, Y: 0}, nil)
		m = NewMonitor(topo)
		router = m.Router()
	})

	AfterEach(func() {
		topo.Stop()
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		router.ServeHTTP(rec, req)

		return rec
	}

	It("should list nodes", func() {
		rec := serve(http.MethodGet, "/api/nodes", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var nodes []nodeRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &nodes)).To(Succeed())
		Expect(nodes).To(HaveLen(2))
		Expect(nodes[1].X).To(Equal(50.0))
		Expect(nodes[1].Model).To(Equal(sim.DefaultModel))
	})

	It("should list links", func() {
		rec := serve(http.MethodGet, "/api/links", "")

		var links []linkRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &links)).To(Succeed())
		Expect(links).To(HaveLen(1))
		Expect(links[0].Directed).To(BeFalse())
		Expect(links[0].Wireless).To(BeTrue())

		rec = serve(http.MethodGet, "/api/links?directed=true", "")
		Expect(json.Unmarshal(rec.Body.Bytes(), &links)).To(Succeed())
		Expect(links).To(HaveLen(2))
	})

	It("should describe a node", func() {
		rec := serve(http.MethodGet, "/api/node/1", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))

		Expect(serve(http.MethodGet, "/api/node/9", "").Code).
			To(Equal(http.StatusNotFound))
		Expect(serve(http.MethodGet, "/api/node/x", "").Code).
			To(Equal(http.StatusBadRequest))
	})

	It("should drive the topology with commands", func() {
		rec := serve(http.MethodGet, "/api/commands", "")
		Expect(rec.Body.String()).To(MatchJSON(`["Start execution"]`))

		Expect(serve(http.MethodPost, "/api/start", "").Code).
			To(Equal(http.StatusNoContent))
		Expect(topo.IsRunning()).To(BeTrue())

		serve(http.MethodPost, "/api/pause", "")
		Expect(topo.IsRunning()).To(BeFalse())

		rec = serve(http.MethodPost,
			"/api/command/"+url.PathEscape(sim.CommandStep), "")
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(topo.Clock().Advance(3)).To(Equal(1))

		rec = serve(http.MethodGet, "/api/now", "")
		Expect(rec.Body.String()).To(MatchJSON(
			`{"round": 1, "started": true, "running": false}`))
	})

	It("should reject unknown commands", func() {
		rec := serve(http.MethodPost, "/api/command/Fly", "")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should forward custom commands", func() {
		var got []string
		topo.AddCommand("Reset colors")
		topo.AddCommandListener(sim.CommandListenerFunc(func(c string) {
			got = append(got, c)
		}))

		serve(http.MethodPost, "/api/command/Reset%20colors", "")

		Expect(got).To(Equal([]string{"Reset colors"}))
	})

	It("should export and import the topology", func() {
		rec := serve(http.MethodGet, "/api/topology", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("nodes:"))

		rec = serve(http.MethodPut, "/api/topology",
			"nodes:\n  - {id: 3, x: 1, y: 1}\n")
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(topo.NodeCount()).To(Equal(1))

		rec = serve(http.MethodPut, "/api/topology",
			"nodes:\n  - {id: 3}\n  - {id: 3}\n")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(topo.NodeCount()).To(Equal(1))
	})

	It("should report message statistics", func() {
		a, b := topo.Nodes()[0], topo.Nodes()[1]
		topo.Start()
		a.Send(b, "x")

		rec := serve(http.MethodGet, "/api/stats", "")

		Expect(rec.Body.String()).To(MatchJSON(
			`{"sent": 1, "delivered": 0, "dropped": 0, "pending": 1}`))
	})

	It("should control tracing sessions", func() {
		Expect(serve(http.MethodPost, "/api/trace/start", "").Code).
			To(Equal(http.StatusNotFound))

		tracer := &fakeTracer{}
		m.RegisterTracer(tracer)

		rec := serve(http.MethodPost, "/api/trace/start", "")
		Expect(rec.Body.String()).To(MatchJSON(`{"tracing": true}`))

		rec = serve(http.MethodPost, "/api/trace/stop", "")
		Expect(rec.Body.String()).To(MatchJSON(`{"tracing": false}`))
		Expect(serve(http.MethodPost, "/api/trace/jump", "").Code).
			To(Equal(http.StatusNotFound))
	})

	It("should list progress bars", func() {
		bar := m.CreateProgressBar("rounds", 10)
		bar.IncrementFinished(4)
		m.CreateProgressBar("other", 1)
		m.CompleteProgressBar(m.progressBars[1])

		rec := serve(http.MethodGet, "/api/progress", "")

		var bars []ProgressBar
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("rounds"))
		Expect(bars[0].Finished).To(Equal(uint64(4)))
	})

	It("should report process resources", func() {
		rec := serve(http.MethodGet, "/api/resource", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve metrics once registered", func() {
		reg := prometheus.NewRegistry()
		metrics, err := NewMetricsCollector(reg)
		Expect(err).NotTo(HaveOccurred())
		metrics.Attach(topo)
		m.RegisterMetrics(metrics)
		router = m.Router()

		rec := serve(http.MethodGet, "/metrics", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("dynet_nodes 2"))
	})

	It("should serve over TCP", func() {
		Expect(m.StartServer()).To(Succeed())
		DeferCleanup(func() {
			Expect(m.Shutdown(context.Background())).To(Succeed())
		})

		rsp, err := http.Get(m.URL() + "/api/now")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})

	It("should refuse reserved ports", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})
})
