// Package dygraph plays time-varying graphs on a topology, either from a
// deterministic timeline, from random presence processes or from a trace of
// node operations.
package dygraph

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrUnknownEndpoint is returned when a link refers to a node the graph does
// not have.
var ErrUnknownEndpoint = errors.New("link endpoint not in graph")

// A TVLink is a link between two node ids whose presence changes over time.
// It is present from each appearance round until the next disappearance
// round.
type TVLink struct {
	Source      int
	Destination int
	Directed    bool

	appearances    []int
	disappearances []int
}

// NewTVLink creates an undirected time-varying link.
func NewTVLink(src, dst int) *TVLink {
	return &TVLink{Source: src, Destination: dst}
}

// NewDirectedTVLink creates a directed time-varying link.
func NewDirectedTVLink(src, dst int) *TVLink {
	return &TVLink{Source: src, Destination: dst, Directed: true}
}

// AddAppearance records that the link appears at the given round.
func (l *TVLink) AddAppearance(round int) *TVLink {
	l.appearances = insertSorted(l.appearances, round)
	return l
}

// AddDisappearance records that the link disappears at the given round.
func (l *TVLink) AddDisappearance(round int) *TVLink {
	l.disappearances = insertSorted(l.disappearances, round)
	return l
}

// Appearances returns the appearance rounds, sorted.
func (l *TVLink) Appearances() []int {
	return slices.Clone(l.appearances)
}

// Disappearances returns the disappearance rounds, sorted.
func (l *TVLink) Disappearances() []int {
	return slices.Clone(l.disappearances)
}

// IsPresentAt tells whether the latest event at or before round is an
// appearance. A disappearance wins over an appearance at the same round.
func (l *TVLink) IsPresentAt(round int) bool {
	app := latestAtOrBefore(l.appearances, round)
	dis := latestAtOrBefore(l.disappearances, round)

	return app >= 0 && app > dis
}

func (l *TVLink) String() string {
	sep := "<-->"
	if l.Directed {
		sep = "-->"
	}

	return fmt.Sprintf("%d %s %d", l.Source, sep, l.Destination)
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	if i < len(s) && s[i] == v {
		return s
	}

	return slices.Insert(s, i, v)
}

func latestAtOrBefore(s []int, round int) int {
	i := sort.SearchInts(s, round+1)
	if i == 0 {
		return -1
	}

	return s[i-1]
}

// A TVG is a set of node ids and time-varying links between them.
type TVG struct {
	nodes []int
	links []*TVLink
}

// NewTVG creates an empty graph.
func NewTVG() *TVG {
	return &TVG{}
}

// CompleteTVG creates a graph with n nodes, numbered from 0, and one
// undirected link per pair of nodes. The links have no appearance.
func CompleteTVG(n int) *TVG {
	g := NewTVG()
	for i := 0; i < n; i++ {
		g.AddNode(i)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			g.links = append(g.links, NewTVLink(i, j))
		}
	}

	return g
}

// AddNode adds a node id. Adding an id twice has no effect.
func (g *TVG) AddNode(id int) {
	if !slices.Contains(g.nodes, id) {
		g.nodes = append(g.nodes, id)
	}
}

// AddLink adds a link. Both endpoints must already be in the graph.
func (g *TVG) AddLink(l *TVLink) error {
	for _, id := range []int{l.Source, l.Destination} {
		if !slices.Contains(g.nodes, id) {
			return fmt.Errorf("%w: %d in %s", ErrUnknownEndpoint, id, l)
		}
	}

	g.links = append(g.links, l)

	return nil
}

// Nodes returns the node ids.
func (g *TVG) Nodes() []int {
	return slices.Clone(g.nodes)
}

// Links returns the links.
func (g *TVG) Links() []*TVLink {
	return slices.Clone(g.links)
}

// LinksAt returns the links present at the given round.
func (g *TVG) LinksAt(round int) []*TVLink {
	var present []*TVLink
	for _, l := range g.links {
		if l.IsPresentAt(round) {
			present = append(present, l)
		}
	}

	return present
}
