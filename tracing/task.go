// Package tracing turns topology events into tasks with a start and an end
// round, and collects them.
package tracing

// Task kinds.
const (
	KindNode    = "node"
	KindLink    = "link"
	KindMessage = "message"
)

// A Task is something that lasts a number of rounds: a node staying in the
// topology, a link staying present, or a message in transit.
type Task struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	What       string `json:"what"`
	Location   string `json:"location"`
	StartRound int    `json:"start_round"`
	EndRound   int    `json:"end_round"`
	Detail     any    `json:"-"`
}

// Duration returns the number of rounds between the start and the end of the
// task.
func (t Task) Duration() int {
	return t.EndRound - t.StartRound
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// KindFilter keeps the tasks of the given kind.
func KindFilter(kind string) TaskFilter {
	return func(t Task) bool { return t.Kind == kind }
}
