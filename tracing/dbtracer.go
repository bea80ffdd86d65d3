package tracing

import (
	"fmt"
	"sync"

	"github.com/sarchlab/dynet/datarecording"
	"github.com/tebeka/atexit"
)

// A TaskRecord is a task as written in a session table. Outcome is how the
// task ended, or "ongoing" if it was still running when the session closed.
type TaskRecord struct {
	ID         string
	Kind       string
	What       string
	Location   string
	Outcome    string
	StartRound int
	EndRound   int
}

// A Session is a tracing session: the rounds it covered and the table its
// tasks were written to.
type Session struct {
	TableName    string
	SessionStart int
	SessionEnd   int
}

const traceIndexTable = "trace"

// DBTracer is a tracer that stores tasks into a DataRecorder. Tasks are
// written once they end, into one table per tracing session.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller TimeTeller
	backend    datarecording.DataRecorder

	tracingTasks map[string]Task
	isTracing    bool

	traceCount       int
	currentTableName string
	sessionStart     int
}

// NewDBTracer creates a new DBTracer. Tracing starts disabled.
func NewDBTracer(
	timeTeller TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(traceIndexTable, Session{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// IsTracing tells whether a session is open.
func (t *DBTracer) IsTracing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isTracing
}

// CurrentTable returns the table of the open session, or of the last one.
func (t *DBTracer) CurrentTable() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.currentTableName
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	t.tracingTasks[task.ID] = task
}

// EndTask marks the end of a task. The task is written if a session is open.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	if !t.isTracing || originalTask.StartRound < t.sessionStart {
		return
	}

	originalTask.EndRound = task.EndRound
	t.writeTask(originalTask, task.What)
}

// EnableTracing opens a new session, written to its own table.
func (t *DBTracer) EnableTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isTracing {
		return
	}

	t.isTracing = true
	t.traceCount++
	t.sessionStart = t.timeTeller.Time()
	t.currentTableName = fmt.Sprintf("trace%d", t.traceCount)
	t.backend.CreateTable(t.currentTableName, TaskRecord{})
}

// StopTracing closes the session. The tasks still running are written with
// the current round as their end.
func (t *DBTracer) StopTracing() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTracing()
}

func (t *DBTracer) stopTracing() {
	if !t.isTracing {
		return
	}

	now := t.timeTeller.Time()

	for _, task := range t.tracingTasks {
		if task.StartRound >= t.sessionStart {
			task.EndRound = now
			t.writeTask(task, "ongoing")
		}
	}

	t.backend.InsertData(traceIndexTable, Session{
		TableName:    t.currentTableName,
		SessionStart: t.sessionStart,
		SessionEnd:   now,
	})

	t.isTracing = false
	t.backend.Flush()
}

// Terminate closes the open session and flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTracing()
	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}

func (t *DBTracer) writeTask(task Task, outcome string) {
	t.backend.InsertData(t.currentTableName, TaskRecord{
		ID:         task.ID,
		Kind:       task.Kind,
		What:       task.What,
		Location:   task.Location,
		Outcome:    outcome,
		StartRound: task.StartRound,
		EndRound:   task.EndRound,
	})
}
