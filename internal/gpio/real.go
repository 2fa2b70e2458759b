//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// consumer is the label shown against requested lines in gpioinfo.
const consumer = "ir-sensor"

// RealSource delivers edges from actual hardware using the Linux GPIO
// character device.
type RealSource struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealSource opens the named GPIO chip (e.g. "gpiochip0").
func NewRealSource(chipName string) (*RealSource, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &RealSource{chip: chip, lines: make(map[int]*gpiocdev.Line)}, nil
}

func edgeOption(e Edge) (gpiocdev.LineReqOption, error) {
	switch e {
	case EdgeRising:
		return gpiocdev.WithRisingEdge, nil
	case EdgeFalling, "":
		return gpiocdev.WithFallingEdge, nil
	case EdgeBoth:
		return gpiocdev.WithBothEdges, nil
	}
	return nil, fmt.Errorf("unknown edge %q", e)
}

// Watch requests pin as an input with pull-up and edge detection.
// The kernel timestamps events, but handler reads its own clock so the
// table sees one time base regardless of source.
func (r *RealSource) Watch(pin int, edge Edge, handler func()) error {
	opt, err := edgeOption(edge)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}

	line, err := r.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		opt,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
	)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	r.lines[pin] = line
	return nil
}

// Close releases all lines and the chip.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so the pins are left in a clean state for reboot.
func (r *RealSource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for pin, line := range r.lines {
		if e := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); e != nil {
			err = multierr.Append(err, fmt.Errorf("reconfigure pin %d: %w", pin, e))
		}
		if e := line.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("close pin %d: %w", pin, e))
		}
		delete(r.lines, pin)
	}
	if r.chip != nil {
		if e := r.chip.Close(); e != nil {
			err = multierr.Append(err, fmt.Errorf("close chip: %w", e))
		}
		r.chip = nil
	}
	return err
}
