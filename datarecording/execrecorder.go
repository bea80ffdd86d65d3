package datarecording

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const execTableName = "exec_info"

const timeLayout = "2006-01-02 15:04:05.000000000"

// ExecInfo is a property of a program run.
type ExecInfo struct {
	Property string
	Value    string
}

// An ExecRecorder records when and how the program ran, next to the data of
// the run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(execTableName, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start records the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", time.Now().Format(timeLayout))
	e.Set("Command", strings.Join(os.Args, " "))

	if cwd, err := os.Getwd(); err == nil {
		e.Set("Working Directory", cwd)
	}
}

// Set adds a property, such as a seed or a configuration file.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes the properties along with the end time.
func (e *ExecRecorder) End() {
	e.Set("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(execTableName, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}

// ReadExecInfo returns the properties recorded by an ExecRecorder, in the
// order they were set.
func ReadExecInfo(ctx context.Context, reader DataReader) ([]ExecInfo, error) {
	reader.MapTable(execTableName, ExecInfo{})

	results, _, err := reader.Query(ctx, execTableName,
		QueryParams{OrderBy: "rowid"})
	if err != nil {
		return nil, fmt.Errorf("reading exec info: %w", err)
	}

	info := make([]ExecInfo, 0, len(results))
	for _, r := range results {
		info = append(info, *r.(*ExecInfo))
	}

	return info, nil
}
