// Package portid knows the PortId naming conventions shared by the
// registry and route manager: the "virtual:" prefix that marks a
// caller-chosen virtual endpoint, and the "input-"/"output-" prefixes
// physical ports are enumerated under.
package portid

import "strings"

// VirtualPrefix marks a PortId as belonging to the virtual namespace.
const VirtualPrefix = "virtual:"

// Direction is which way a port moves bytes.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionInput {
		return "input"
	}
	return "output"
}

// IsVirtual reports whether id belongs to the virtual namespace.
func IsVirtual(id string) bool {
	return strings.HasPrefix(id, VirtualPrefix)
}

// StripVirtualPrefix removes a leading "virtual:" if present.
func StripVirtualPrefix(id string) string {
	return strings.TrimPrefix(id, VirtualPrefix)
}

// WithVirtualPrefix ensures id carries the "virtual:" prefix exactly once.
func WithVirtualPrefix(id string) string {
	if IsVirtual(id) {
		return id
	}
	return VirtualPrefix + id
}

// InferDirection guesses a physical port's direction from its
// conventional "input-"/"output-" PortId prefix, defaulting to output
// when the prefix is absent or ambiguous.
func InferDirection(physicalPortID string) Direction {
	if strings.HasPrefix(physicalPortID, "input-") {
		return DirectionInput
	}
	return DirectionOutput
}
