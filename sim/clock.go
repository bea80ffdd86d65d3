package sim

import (
	"sync"
	"time"
)

type clockEntry struct {
	listener ClockListener
	period   int
}

// A Clock generates rounds. It starts stopped. Once started it runs rounds
// while its pause counter is zero: N calls to Pause need N calls to Resume
// before rounds run again.
//
// With a positive time unit a background goroutine triggers one round per
// unit. Rounds can also be driven by hand with Tick and Advance. Every round
// runs while holding the execution lock, which Do also takes.
type Clock struct {
	stateLock  sync.Mutex
	started    bool
	pauseCount int
	step       bool
	round      int
	inRound    bool
	timeUnit   time.Duration

	execLock sync.Mutex
	roundFn  func()

	listeners listenerSet[clockEntry]

	stop chan struct{}
	done chan struct{}
}

// NewClock creates a clock that calls roundFn once per round.
func NewClock(timeUnit time.Duration, roundFn func()) *Clock {
	return &Clock{
		timeUnit: timeUnit,
		roundFn:  roundFn,
	}
}

// Start marks the clock as started and launches the driver goroutine if the
// time unit is positive. Starting twice has no effect.
func (c *Clock) Start() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	if c.started {
		return
	}

	c.started = true
	c.startDriver()
}

func (c *Clock) startDriver() {
	if c.timeUnit <= 0 || c.stop != nil {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.drive(c.timeUnit, c.stop, c.done)
}

func (c *Clock) drive(unit time.Duration, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(unit)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Stop terminates the driver goroutine and waits for it to exit. The clock
// stays started and can still be advanced by hand.
func (c *Clock) Stop() {
	c.stateLock.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.stateLock.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done
}

// IsStarted tells whether Start has been called.
func (c *Clock) IsStarted() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.started
}

// IsRunning tells whether rounds are currently being generated.
func (c *Clock) IsRunning() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.started && c.pauseCount == 0
}

// Pause increments the pause counter.
func (c *Clock) Pause() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.pauseCount++
}

// Resume decrements the pause counter. It never goes below zero.
func (c *Clock) Resume() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	if c.pauseCount > 0 {
		c.pauseCount--
	}
}

// PauseCount returns the current pause nesting level.
func (c *Clock) PauseCount() int {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.pauseCount
}

// Step lets exactly one more round run, after which the clock pauses again.
func (c *Clock) Step() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	if c.pauseCount > 0 {
		c.pauseCount--
	}
	c.step = true
}

// Round returns the current round.
func (c *Clock) Round() int {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.round
}

// ResetTime sets the round counter back to zero.
func (c *Clock) ResetTime() {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.round = 0
}

// TimeUnit returns the wall-clock duration of a round.
func (c *Clock) TimeUnit() time.Duration {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	return c.timeUnit
}

// SetTimeUnit changes the duration of a round, restarting the driver if it
// is running. A non-positive unit leaves the clock to manual driving.
func (c *Clock) SetTimeUnit(d time.Duration) {
	c.Stop()

	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	c.timeUnit = d
	if c.started {
		c.startDriver()
	}
}

// AddListener registers a listener called every period rounds.
func (c *Clock) AddListener(l ClockListener, period int) *Subscription {
	if period < 1 {
		period = 1
	}

	return c.listeners.add(clockEntry{listener: l, period: period})
}

// NumListeners returns the number of registered clock listeners.
func (c *Clock) NumListeners() int {
	return c.listeners.len()
}

// ExpiredListeners returns the listeners due at the current round.
func (c *Clock) ExpiredListeners() []ClockListener {
	round := c.Round()

	var expired []ClockListener
	for _, e := range c.listeners.snapshot() {
		if round%e.period == 0 {
			expired = append(expired, e.listener)
		}
	}

	return expired
}

// Tick runs one round if the clock is running. It reports whether a round ran.
func (c *Clock) Tick() bool {
	c.execLock.Lock()
	defer c.execLock.Unlock()

	c.stateLock.Lock()
	if !c.started || c.pauseCount > 0 {
		c.stateLock.Unlock()
		return false
	}

	if c.step {
		c.step = false
		c.pauseCount++
	}
	c.inRound = true
	c.stateLock.Unlock()

	c.roundFn()

	c.stateLock.Lock()
	c.inRound = false
	c.round++
	c.stateLock.Unlock()

	return true
}

// Advance tries to run n rounds and returns how many actually ran.
func (c *Clock) Advance(n int) int {
	ran := 0
	for i := 0; i < n; i++ {
		if !c.Tick() {
			break
		}
		ran++
	}

	return ran
}

// Do runs fn with the clock paused and no round in progress. It must not be
// called from inside a round.
func (c *Clock) Do(fn func()) {
	c.Pause()
	c.execLock.Lock()

	defer func() {
		c.execLock.Unlock()
		c.Resume()
	}()

	fn()
}

// sendRound is the round stamped on new messages. Outside of a round, it is
// the round before the next one to run.
func (c *Clock) sendRound() int {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()

	if c.inRound {
		return c.round
	}

	return c.round - 1
}
