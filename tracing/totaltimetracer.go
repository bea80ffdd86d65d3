package tracing

import (
	"sync"
)

// TotalTimeTracer can collect the total number of rounds spent in a certain
// type of task. If two tasks overlap, this tracer simply adds their durations
// together.
type TotalTimeTracer struct {
	filter        TaskFilter
	lock          sync.Mutex
	totalTime     int
	inflightTasks map[string]Task
}

// NewTotalTimeTracer creates a new TotalTimeTracer
func NewTotalTimeTracer(filter TaskFilter) *TotalTimeTracer {
	t := &TotalTimeTracer{
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
	return t
}

// TotalTime returns the rounds spent in the ended tasks.
func (t *TotalTimeTracer) TotalTime() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// TotalTimeAt also counts the tasks still running, as if they ended at now.
func (t *TotalTimeTracer) TotalTimeAt(now int) int {
	t.lock.Lock()
	defer t.lock.Unlock()

	total := t.totalTime
	for _, task := range t.inflightTasks {
		total += max(0, now-task.StartRound)
	}

	return total
}

// StartTask records the task start time
func (t *TotalTimeTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task
	t.lock.Unlock()
}

// EndTask records the end of the task
func (t *TotalTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	t.totalTime += task.EndRound - originalTask.StartRound
	delete(t.inflightTasks, task.ID)
}
