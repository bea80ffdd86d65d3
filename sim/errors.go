package sim

import "errors"

var (
	// ErrLinkNotFound is raised when a link to remove has no stored
	// structural counterpart.
	ErrLinkNotFound = errors.New("link not found")

	// ErrNodeNotFound is returned when a node id cannot be resolved.
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnknownModel is reported when a node model name is not registered.
	ErrUnknownModel = errors.New("unknown node model")

	// ErrModelFactory is reported when a node factory fails to build a node.
	ErrModelFactory = errors.New("node factory failed")

	// ErrInvalidRange is returned for negative communication or sensing
	// ranges.
	ErrInvalidRange = errors.New("invalid range")

	// ErrUnknownCommand is returned by ExecuteCommand for unregistered
	// command strings.
	ErrUnknownCommand = errors.New("unknown command")
)
