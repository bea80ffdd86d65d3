package tracing

// A Tracer can collect task traces
type Tracer interface {
	StartTask(task Task)
	EndTask(task Task)
}

// A TimeTeller tells the current round.
type TimeTeller interface {
	Time() int
}
