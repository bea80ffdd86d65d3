// Package serialization imports and exports topologies.
package serialization

import (
	"errors"

	"github.com/sarchlab/dynet/sim"
)

// A Serializer converts a topology to and from bytes.
type Serializer interface {
	// Import replaces the content of the topology. Nothing is changed if the
	// data is invalid.
	Import(t *sim.Topology, data []byte) error

	// Export encodes the nodes, the links and the defaults of the topology.
	Export(t *sim.Topology) ([]byte, error)
}

var (
	// ErrDuplicateNode is returned when two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrInvalidLink is returned for links from a node to itself.
	ErrInvalidLink = errors.New("invalid link")
)
