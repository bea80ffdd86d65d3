package sim

import (
	"fmt"
	"slices"
)

// Default command strings, as shown to users.
const (
	CommandStart   = "Start execution"
	CommandPause   = "Pause execution"
	CommandResume  = "Resume execution"
	CommandStep    = "Execute a single step"
	CommandRestart = "Restart nodes"
)

// Time returns the current round.
func (t *Topology) Time() int {
	return t.clock.Round()
}

// ResetTime sets the round counter back to zero.
func (t *Topology) ResetTime() {
	t.clock.ResetTime()
}

// IsStarted tells whether Start has been called.
func (t *Topology) IsStarted() bool {
	return t.clock.IsStarted()
}

// IsRunning tells whether rounds are being generated.
func (t *Topology) IsRunning() bool {
	return t.clock.IsRunning()
}

// Start starts the clock and (re)starts the nodes. Starting twice has no
// effect.
func (t *Topology) Start() {
	if t.IsStarted() {
		return
	}

	t.clock.Start()
	t.Restart()
}

// Restart resets the round counter, drops every message in transit and runs
// the start hooks of all nodes and the start listeners.
func (t *Topology) Restart() {
	t.Pause()
	defer t.Resume()

	t.ResetTime()
	t.messages.clear()

	for _, n := range slices.Clone(t.nodes) {
		t.callStart(n)
	}

	t.notifyStart()
}

// Pause stops the generation of rounds. Pauses nest.
func (t *Topology) Pause() {
	t.clock.Pause()
}

// Resume undoes one Pause.
func (t *Topology) Resume() {
	t.clock.Resume()
}

// Step runs a single round and pauses again, starting the topology if needed.
func (t *Topology) Step() {
	t.clock.Step()

	if !t.IsStarted() {
		t.Start()
	}
}

// Stop terminates the background goroutine generating rounds.
func (t *Topology) Stop() {
	t.clock.Stop()
}

// Do runs fn while no round is in progress. Goroutines other than the one
// running rounds must use it to read or change the topology. It must not be
// called from node logic or listeners.
func (t *Topology) Do(fn func()) {
	t.clock.Do(fn)
}

// runRound is called by the clock once per round.
func (t *Topology) runRound() {
	t.invokeHook(HookPosRoundStart, nil, nil)

	if t.refreshMode == RefreshClockBased {
		t.processPendingUpdates()
	}

	t.scheduler.OnClock(t, t.clock.ExpiredListeners())
	t.removeDyingNodes()

	t.invokeHook(HookPosRoundEnd, nil, nil)
}

// AddCommand registers a custom command string.
func (t *Topology) AddCommand(command string) {
	if !slices.Contains(t.commands, command) {
		t.commands = append(t.commands, command)
	}
}

// RemoveCommand unregisters a custom command string.
func (t *Topology) RemoveCommand(command string) {
	t.commands = slices.DeleteFunc(t.commands,
		func(c string) bool { return c == command })
}

// Commands returns the default commands valid in the current state, followed
// by the custom commands.
func (t *Topology) Commands() []string {
	var commands []string

	switch {
	case !t.IsStarted():
		commands = []string{CommandStart}
	case t.IsRunning():
		commands = []string{CommandPause, CommandRestart}
	default:
		commands = []string{CommandResume, CommandStep, CommandRestart}
	}

	return append(commands, t.commands...)
}

// ExecuteCommand runs a default command or forwards a custom one to the
// command listeners. Default commands are forwarded too.
func (t *Topology) ExecuteCommand(command string) error {
	switch command {
	case CommandStart:
		t.Start()
	case CommandPause:
		t.Pause()
	case CommandResume:
		t.Resume()
	case CommandStep:
		t.Step()
	case CommandRestart:
		t.Restart()
	default:
		if !slices.Contains(t.commands, command) {
			return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
		}
	}

	t.notifyCommand(command)

	return nil
}
