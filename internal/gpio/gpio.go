// Package gpio delivers hardware edge events to per-channel callbacks.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"strings"
)

// Edge selects which signal transitions produce events.
type Edge string

const (
	// EdgeRising fires when the line goes from low to high.
	EdgeRising Edge = "rising"
	// EdgeFalling fires when the line goes from high to low.
	EdgeFalling Edge = "falling"
	// EdgeBoth fires on every transition.
	EdgeBoth Edge = "both"
)

// ParseEdge converts config text to an Edge. Empty means falling, which is
// what an open-collector IR receiver pulls to when the beam is detected.
func ParseEdge(s string) (Edge, error) {
	switch e := Edge(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return EdgeFalling, nil
	case EdgeRising, EdgeFalling, EdgeBoth:
		return e, nil
	default:
		return "", fmt.Errorf("unknown edge %q (want rising, falling or both)", s)
	}
}

// Source watches input pins and invokes a handler on every edge.
type Source interface {
	// Watch starts delivering edges on pin to handler. The handler is
	// called from the source's event context and must not block.
	Watch(pin int, edge Edge, handler func()) error

	// Close releases GPIO resources.
	Close() error
}

// Default sensor pins (BCM numbering).
const (
	PinIR1 = 5
	PinIR2 = 6
	PinIR3 = 13
	PinIR4 = 19
)

// DefaultChip is the GPIO character device used when none is configured.
const DefaultChip = "gpiochip0"
