package dygraph

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/sarchlab/dynet/sim"
)

// ErrInvalidRate is returned for birth or death rates outside [0, 1].
var ErrInvalidRate = errors.New("invalid edge-markovian rate")

// An EMEGPlayer plays the links of a TVG as an edge-markovian evolving
// graph: every round, an absent link appears with the birth rate and a
// present link disappears with the death rate.
type EMEGPlayer struct {
	stage

	birthRate float64
	deathRate float64
	rand      *rand.Rand
	sub       *sim.Subscription
}

// NewEMEGPlayer creates a player with the given rates.
func NewEMEGPlayer(
	tvg *TVG,
	topo *sim.Topology,
	birthRate, deathRate float64,
) (*EMEGPlayer, error) {
	for _, r := range []float64{birthRate, deathRate} {
		if r < 0 || r > 1 {
			return nil, fmt.Errorf("%w: %g", ErrInvalidRate, r)
		}
	}

	if birthRate+deathRate == 0 {
		return nil, fmt.Errorf("%w: both rates are zero", ErrInvalidRate)
	}

	return &EMEGPlayer{
		stage:     newStage(tvg, topo),
		birthRate: birthRate,
		deathRate: deathRate,
		rand:      topo.Rand(),
	}, nil
}

// WithRand replaces the random source, which defaults to the topology's.
func (p *EMEGPlayer) WithRand(r *rand.Rand) *EMEGPlayer {
	p.rand = r
	return p
}

// SteadyStateProbability is the long-run probability of a link being
// present.
func (p *EMEGPlayer) SteadyStateProbability() float64 {
	return p.birthRate / (p.birthRate + p.deathRate)
}

// Start resets the topology time, draws the initial links from the steady
// state and begins playing.
func (p *EMEGPlayer) Start() {
	p.topo.ResetTime()
	p.sub = p.topo.AddClockListener(p, 1)

	steady := p.SteadyStateProbability()
	for _, l := range p.tvg.links {
		p.setPresence(l, p.rand.Float64() < steady)
	}
}

// Stop ends the play. Links stay as they are.
func (p *EMEGPlayer) Stop() {
	if p.sub != nil {
		p.sub.Cancel()
	}
}

// OnClock implements sim.ClockListener.
func (p *EMEGPlayer) OnClock() {
	for _, l := range p.tvg.links {
		if p.isPresent(l) {
			if p.rand.Float64() < p.deathRate {
				p.remove(l)
			}

			continue
		}

		if p.rand.Float64() < p.birthRate {
			p.add(l)
		}
	}
}
