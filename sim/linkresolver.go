package sim

// A LinkResolver decides whether a node can hear another one. The decision
// may be asymmetric.
type LinkResolver interface {
	// IsHeardBy tells whether a message emitted by from reaches to.
	IsHeardBy(from, to *Node) bool
}

// LinkResolverFunc adapts a function into a LinkResolver.
type LinkResolverFunc func(from, to *Node) bool

// IsHeardBy calls f.
func (f LinkResolverFunc) IsHeardBy(from, to *Node) bool {
	return f(from, to)
}

// DefaultLinkResolver connects two wireless-enabled nodes when the distance
// between them is within the communication range of the emitter.
type DefaultLinkResolver struct{}

// IsHeardBy implements LinkResolver.
func (DefaultLinkResolver) IsHeardBy(from, to *Node) bool {
	if !from.IsWirelessEnabled() || !to.IsWirelessEnabled() {
		return false
	}

	return from.Distance(to) <= from.CommunicationRange()
}
