package gpio

import (
	"fmt"

	"github.com/sweeney/ir-sensor/internal/channel"
)

// Binding ties a physical pin to its edge selection.
type Binding struct {
	Pin  int
	Edge Edge
}

// Bind resolves each pin to its channel once and attaches the channel's
// edge handler to src. It stops at the first failure.
func Bind(src Source, table *channel.Table, bindings []Binding) error {
	for _, b := range bindings {
		idx, err := table.IndexForPin(b.Pin)
		if err != nil {
			return fmt.Errorf("bind pin %d: %w", b.Pin, err)
		}
		if err := src.Watch(b.Pin, b.Edge, table.Handler(idx)); err != nil {
			return fmt.Errorf("watch pin %d: %w", b.Pin, err)
		}
	}
	return nil
}
