package tracing

import (
	"sync"
)

// OutcomeCountTracer counts tasks by what they are when they start, and by
// how they end.
type OutcomeCountTracer struct {
	filter        TaskFilter
	lock          sync.Mutex
	inflightTasks map[string]Task
	names         []string
	taskCount     map[string]uint64
	outcomes      []string
	outcomeCount  map[string]uint64
}

// NewOutcomeCountTracer creates a new OutcomeCountTracer
func NewOutcomeCountTracer(filter TaskFilter) *OutcomeCountTracer {
	return &OutcomeCountTracer{
		filter:        filter,
		inflightTasks: make(map[string]Task),
		taskCount:     make(map[string]uint64),
		outcomeCount:  make(map[string]uint64),
	}
}

// TaskNames returns the What of the started tasks, in order of appearance.
func (t *OutcomeCountTracer) TaskNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.names...)
}

// TaskCount returns the number of started tasks with the given What.
func (t *OutcomeCountTracer) TaskCount(what string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount[what]
}

// Outcomes returns the outcomes seen so far, in order of appearance.
func (t *OutcomeCountTracer) Outcomes() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.outcomes...)
}

// OutcomeCount returns the number of tasks that ended with the outcome.
func (t *OutcomeCountTracer) OutcomeCount(outcome string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.outcomeCount[outcome]
}

// StartTask counts the task by its What.
func (t *OutcomeCountTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.taskCount[task.What]; !ok {
		t.names = append(t.names, task.What)
	}

	t.taskCount[task.What]++
	t.inflightTasks[task.ID] = task
}

// EndTask counts the outcome, which tasks carry in What when they end.
func (t *OutcomeCountTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, ok := t.inflightTasks[task.ID]; !ok {
		return
	}

	if _, ok := t.outcomeCount[task.What]; !ok {
		t.outcomes = append(t.outcomes, task.What)
	}

	t.outcomeCount[task.What]++
	delete(t.inflightTasks, task.ID)
}
