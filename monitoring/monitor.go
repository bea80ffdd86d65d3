// Package monitoring turns a topology into a server that can be inspected
// and controlled over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/sarchlab/dynet/serialization"
	"github.com/sarchlab/dynet/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// A SessionTracer can open and close tracing sessions.
type SessionTracer interface {
	EnableTracing()
	StopTracing()
	IsTracing() bool
}

// Monitor exposes the state of a topology and its commands over HTTP.
type Monitor struct {
	topo       *sim.Topology
	logger     zerolog.Logger
	portNumber int
	serializer serialization.Serializer
	tracer     SessionTracer
	metrics    *MetricsCollector

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor(topo *sim.Topology) *Monitor {
	return &Monitor{
		topo:       topo,
		logger:     *topo.Logger(),
		serializer: serialization.YAML{},
	}
}

// WithPortNumber sets the port number of the monitor. Port numbers below
// 1000 are replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("port number not allowed for the monitor, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithSerializer replaces the serializer used by /api/topology.
func (m *Monitor) WithSerializer(s serialization.Serializer) *Monitor {
	m.serializer = s
	return m
}

// RegisterTracer enables the /api/trace endpoints.
func (m *Monitor) RegisterTracer(t SessionTracer) {
	m.tracer = t
}

// RegisterMetrics enables the /metrics endpoint.
func (m *Monitor) RegisterMetrics(c *MetricsCollector) {
	m.metrics = c
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = slices.DeleteFunc(m.progressBars,
		func(b *ProgressBar) bool { return b == pb })
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/nodes", m.listNodes)
	r.HandleFunc("/api/links", m.listLinks)
	r.HandleFunc("/api/node/{id}", m.nodeDetails)
	r.HandleFunc("/api/stats", m.messageStats)
	r.HandleFunc("/api/topology", m.exportTopology).Methods(http.MethodGet)
	r.HandleFunc("/api/topology", m.importTopology).Methods(http.MethodPut)
	r.HandleFunc("/api/commands", m.listCommands)
	r.HandleFunc("/api/command/{name}", m.executeNamedCommand).
		Methods(http.MethodPost)
	r.HandleFunc("/api/start", m.command(sim.CommandStart))
	r.HandleFunc("/api/pause", m.command(sim.CommandPause))
	r.HandleFunc("/api/resume", m.command(sim.CommandResume))
	r.HandleFunc("/api/step", m.command(sim.CommandStep))
	r.HandleFunc("/api/restart", m.command(sim.CommandRestart))
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.HandleFunc("/api/trace/{action}", m.trace)

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics.Handler())
	}

	return r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.logger.Info().Str("url", m.URL()).Msg("monitoring topology")

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	return nil
}

// URL returns the address of the running server.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		m.logger.Error().Err(err).Msg("writing monitor response")
	}
}

func (m *Monitor) writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintf(w, "Error: %s", err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	var rsp struct {
		Round   int  `json:"round"`
		Started bool `json:"started"`
		Running bool `json:"running"`
	}

	m.topo.Do(func() {
		rsp.Round = m.topo.Time()
		rsp.Started = m.topo.IsStarted()
	})
	rsp.Running = m.topo.IsRunning()

	m.writeJSON(w, rsp)
}

type nodeRsp struct {
	ID                 int     `json:"id"`
	X                  float64 `json:"x"`
	Y                  float64 `json:"y"`
	Model              string  `json:"model"`
	CommunicationRange float64 `json:"communication_range"`
	SensingRange       float64 `json:"sensing_range"`
	Wireless           bool    `json:"wireless"`
	Mailbox            int     `json:"mailbox"`
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := []nodeRsp{}

	m.topo.Do(func() {
		for _, n := range m.topo.Nodes() {
			nodes = append(nodes, nodeRsp{
				ID:                 n.ID(),
				X:                  n.Location().X,
				Y:                  n.Location().Y,
				Model:              n.Model(),
				CommunicationRange: n.CommunicationRange(),
				SensingRange:       n.SensingRange(),
				Wireless:           n.IsWirelessEnabled(),
				Mailbox:            len(n.Mailbox()),
			})
		}
	})

	m.writeJSON(w, nodes)
}

type linkRsp struct {
	Source      int  `json:"source"`
	Destination int  `json:"destination"`
	Directed    bool `json:"directed"`
	Wireless    bool `json:"wireless"`
}

func (m *Monitor) listLinks(w http.ResponseWriter, r *http.Request) {
	links := []linkRsp{}
	directed := r.URL.Query().Get("directed") == "true"

	m.topo.Do(func() {
		all := m.topo.Links()
		if directed {
			all = m.topo.DirectedLinks()
		}

		for _, l := range all {
			links = append(links, linkRsp{
				Source:      l.Source.ID(),
				Destination: l.Destination.ID(),
				Directed:    l.IsDirected(),
				Wireless:    l.IsWireless(),
			})
		}
	})

	m.writeJSON(w, links)
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		m.writeError(w, http.StatusBadRequest, err)
		return
	}

	var buf bytes.Buffer

	m.topo.Do(func() {
		n := m.topo.FindNodeByID(id)
		if n == nil {
			err = fmt.Errorf("%w: %d", sim.ErrNodeNotFound, id)
			return
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(describeNode(n))
		serializer.SetMaxDepth(2)
		err = serializer.Serialize(&buf)
	})

	switch {
	case errors.Is(err, sim.ErrNodeNotFound):
		m.writeError(w, http.StatusNotFound, err)
	case err != nil:
		m.writeError(w, http.StatusInternalServerError, err)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(buf.Bytes())
	}
}

type nodeDetail struct {
	ID                 int
	Location           sim.Point
	Model              string
	Behavior           string
	CommunicationRange float64
	SensingRange       float64
	Wireless           bool
	Dying              bool
	OutNeighbors       []int
	InNeighbors        []int
	SensedNodes        []int
	Mailbox            int
}

func describeNode(n *sim.Node) *nodeDetail {
	return &nodeDetail{
		ID:                 n.ID(),
		Location:           n.Location(),
		Model:              n.Model(),
		Behavior:           fmt.Sprintf("%T", n.Behavior),
		CommunicationRange: n.CommunicationRange(),
		SensingRange:       n.SensingRange(),
		Wireless:           n.IsWirelessEnabled(),
		Dying:              n.IsDying(),
		OutNeighbors:       ids(n.OutNeighbors()),
		InNeighbors:        ids(n.InNeighbors()),
		SensedNodes:        ids(n.SensedNodes()),
		Mailbox:            len(n.Mailbox()),
	}
}

func ids(nodes []*sim.Node) []int {
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID())
	}

	return out
}

func (m *Monitor) messageStats(w http.ResponseWriter, _ *http.Request) {
	var rsp struct {
		sim.MessageStats
		Pending int `json:"pending"`
	}

	m.topo.Do(func() {
		rsp.MessageStats = m.topo.MessageEngine().Stats()
		rsp.Pending = m.topo.MessageEngine().Pending()
	})

	m.writeJSON(w, rsp)
}

func (m *Monitor) exportTopology(w http.ResponseWriter, _ *http.Request) {
	var (
		data []byte
		err  error
	)

	m.topo.Do(func() {
		data, err = m.serializer.Export(m.topo)
	})

	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func (m *Monitor) importTopology(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer

	if _, err := buf.ReadFrom(r.Body); err != nil {
		m.writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error

	m.topo.Do(func() {
		err = m.serializer.Import(m.topo, buf.Bytes())
	})

	if err != nil {
		m.writeError(w, http.StatusBadRequest, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) listCommands(w http.ResponseWriter, _ *http.Request) {
	var commands []string

	m.topo.Do(func() {
		commands = m.topo.Commands()
	})

	m.writeJSON(w, commands)
}

func (m *Monitor) executeCommand(w http.ResponseWriter, command string) {
	var err error

	m.topo.Do(func() {
		err = m.topo.ExecuteCommand(command)
	})

	if errors.Is(err, sim.ErrUnknownCommand) {
		m.writeError(w, http.StatusNotFound, err)
		return
	}

	m.logger.Debug().Str("command", command).Msg("command executed")
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) executeNamedCommand(w http.ResponseWriter, r *http.Request) {
	m.executeCommand(w, mux.Vars(r)["name"])
}

func (m *Monitor) command(command string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		m.executeCommand(w, command)
	}
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := []*ProgressBar{}

	for _, b := range m.progressBars {
		b.Lock()
		bars = append(bars, &ProgressBar{
			ID:        b.ID,
			Name:      b.Name,
			StartTime: b.StartTime,
			Total:     b.Total,
			Finished:  b.Finished,
		})
		b.Unlock()
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		m.writeError(w, http.StatusConflict, err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) trace(w http.ResponseWriter, r *http.Request) {
	if m.tracer == nil {
		m.writeError(w, http.StatusNotFound, errors.New("no tracer registered"))
		return
	}

	switch mux.Vars(r)["action"] {
	case "start":
		m.topo.Do(m.tracer.EnableTracing)
	case "stop":
		m.topo.Do(m.tracer.StopTracing)
	case "status":
	default:
		m.writeError(w, http.StatusNotFound,
			fmt.Errorf("unknown trace action %q", mux.Vars(r)["action"]))
		return
	}

	m.writeJSON(w, map[string]bool{"tracing": m.tracer.IsTracing()})
}
