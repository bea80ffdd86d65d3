package tracing

import (
	"slices"
	"sync"
)

type interval struct {
	start, end int
}

// BusyTimeTracer counts the rounds during which at least one task of a kind is
// running. Overlapping tasks count once.
type BusyTimeTracer struct {
	filter        TaskFilter
	lock          sync.Mutex
	inflightTasks map[string]int
	done          []interval
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(filter TaskFilter) *BusyTimeTracer {
	return &BusyTimeTracer{
		filter:        filter,
		inflightTasks: make(map[string]int),
	}
}

// BusyTime returns the busy rounds covered by the ended tasks.
func (t *BusyTimeTracer) BusyTime() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return busyTime(t.done)
}

// BusyTimeAt also covers the tasks still running, as if they ended at now.
func (t *BusyTimeTracer) BusyTimeAt(now int) int {
	t.lock.Lock()
	defer t.lock.Unlock()

	all := slices.Clone(t.done)
	for _, start := range t.inflightTasks {
		all = append(all, interval{start: start, end: now})
	}

	return busyTime(all)
}

func busyTime(intervals []interval) int {
	sorted := slices.Clone(intervals)
	slices.SortFunc(sorted, func(a, b interval) int { return a.start - b.start })

	total := 0
	var current *interval

	for i := range sorted {
		in := sorted[i]
		if in.end <= in.start {
			continue
		}

		if current != nil && in.start <= current.end {
			current.end = max(current.end, in.end)
			continue
		}

		if current != nil {
			total += current.end - current.start
		}

		current = &sorted[i]
	}

	if current != nil {
		total += current.end - current.start
	}

	return total
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.inflightTasks[task.ID] = task.StartRound
	t.lock.Unlock()
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	t.done = append(t.done, interval{start: start, end: task.EndRound})
	delete(t.inflightTasks, task.ID)
}
