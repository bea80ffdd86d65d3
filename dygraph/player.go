package dygraph

import "github.com/sarchlab/dynet/sim"

// A TVGPlayer replays the appearances and disappearances of the links of a
// TVG, round by round.
type TVGPlayer struct {
	stage

	period int
	sub    *sim.Subscription
}

// NewTVGPlayer inserts the nodes of the TVG that the topology lacks and
// disables wireless links in the topology.
func NewTVGPlayer(tvg *TVG, topo *sim.Topology) *TVGPlayer {
	return &TVGPlayer{stage: newStage(tvg, topo)}
}

// WithPeriod makes the player loop over the first period rounds of the TVG.
func (p *TVGPlayer) WithPeriod(period int) *TVGPlayer {
	p.period = period
	return p
}

// Start resets the topology time and begins the replay.
func (p *TVGPlayer) Start() {
	p.topo.ResetTime()
	p.sub = p.topo.AddClockListener(p, 1)
	p.updateLinks()
}

// Stop ends the replay. Links stay as they are.
func (p *TVGPlayer) Stop() {
	if p.sub != nil {
		p.sub.Cancel()
	}
}

// OnClock implements sim.ClockListener.
func (p *TVGPlayer) OnClock() {
	p.updateLinks()
}

func (p *TVGPlayer) updateLinks() {
	round := p.topo.Time()
	if p.period > 0 {
		round %= p.period
	}

	for _, l := range p.tvg.links {
		p.setPresence(l, l.IsPresentAt(round))
	}
}
