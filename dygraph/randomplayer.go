package dygraph

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/dynet/sim"
)

// Default bounds of the random player.
const (
	DefaultTimeBound     = 50
	DefaultPresenceBound = 20
)

// ErrInvalidBounds is returned for bounds that leave no room to draw
// presence or absence durations.
var ErrInvalidBounds = errors.New("invalid random player bounds")

type linkSchedule struct {
	nextApp int
	nextDis int
}

// A RandomPlayer makes every link of a TVG appear and disappear at random.
//
// A link first appears within [0, timeBound-presenceBound). Each appearance
// at round t schedules a disappearance within [t+1, t+presenceBound-1] and
// the next appearance within [t+presenceBound+1, t+timeBound-1].
type RandomPlayer struct {
	stage

	timeBound     int
	presenceBound int
	rand          *rand.Rand
	schedules     map[*TVLink]*linkSchedule
	sub           *sim.Subscription
}

// NewRandomPlayer creates a player. It requires presenceBound >= 2 and
// timeBound >= presenceBound+2.
func NewRandomPlayer(
	tvg *TVG,
	topo *sim.Topology,
	timeBound, presenceBound int,
) (*RandomPlayer, error) {
	if presenceBound < 2 || timeBound < presenceBound+2 {
		return nil, fmt.Errorf("%w: time bound %d, presence bound %d",
			ErrInvalidBounds, timeBound, presenceBound)
	}

	return &RandomPlayer{
		stage:         newStage(tvg, topo),
		timeBound:     timeBound,
		presenceBound: presenceBound,
		rand:          topo.Rand(),
		schedules:     make(map[*TVLink]*linkSchedule),
	}, nil
}

// WithRand replaces the random source, which defaults to the topology's.
func (p *RandomPlayer) WithRand(r *rand.Rand) *RandomPlayer {
	p.rand = r
	return p
}

// Start resets the topology time, draws the first appearance of every link
// and begins playing.
func (p *RandomPlayer) Start() {
	p.topo.ResetTime()

	for _, l := range p.tvg.links {
		p.schedules[l] = &linkSchedule{
			nextApp: p.rand.IntN(p.timeBound - p.presenceBound),
			nextDis: -1,
		}
	}

	p.sub = p.topo.AddClockListener(p, 1)
	p.updateLinks()
}

// Stop ends the play. Links stay as they are.
func (p *RandomPlayer) Stop() {
	if p.sub != nil {
		p.sub.Cancel()
	}
}

// OnClock implements sim.ClockListener.
func (p *RandomPlayer) OnClock() {
	p.updateLinks()
}

// NextAppearance returns the round at which the link appears next.
func (p *RandomPlayer) NextAppearance(l *TVLink) int {
	if s := p.schedules[l]; s != nil {
		return s.nextApp
	}

	return -1
}

func (p *RandomPlayer) updateLinks() {
	now := p.topo.Time()

	for _, l := range p.tvg.links {
		s := p.schedules[l]

		switch now {
		case s.nextApp:
			p.add(l)
			s.nextDis = now + p.rand.IntN(p.presenceBound-1) + 1
			s.nextApp = now + p.rand.IntN(p.timeBound-p.presenceBound-1) +
				p.presenceBound + 1
		case s.nextDis:
			p.remove(l)
		}
	}
}
