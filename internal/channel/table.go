// Package channel holds the per-sensor edge counting table shared between
// edge-event context and the main loop.
//
// Edge handlers run asynchronously (from a GPIO event goroutine or an
// interrupt-like callback) and must never block, fail, or allocate. All
// per-channel mutable state lives in a single 64-bit word that is only
// changed with compare-and-swap, so readers never see a count without its
// matching timestamp and a reset never interleaves with an accept.
package channel

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// MaxChannels is the largest number of sensors a table can hold.
const MaxChannels = 16

var (
	// ErrConfiguration is returned by New for an invalid sensor table.
	ErrConfiguration = errors.New("invalid channel configuration")
	// ErrIndexOutOfRange is returned for a channel index outside [0, ChannelCount()).
	ErrIndexOutOfRange = errors.New("channel index out of range")
	// ErrNotFound is returned by IndexForPin when no channel watches the pin.
	ErrNotFound = errors.New("no channel for pin")
)

// Config describes one sensor channel.
type Config struct {
	Pin      int
	Debounce time.Duration
}

// Reading is a consistent view of one channel.
type Reading struct {
	Index    int
	Pin      int
	Debounce time.Duration
	Count    uint32
	LastEdge Ticks
	Seen     bool   // at least one edge has been accepted since startup
	Rejected uint32 // edges dropped as bounce since startup
}

type sensor struct {
	pin      int
	debounce time.Duration
	window   Ticks
	state    atomic.Uint64
	rejected atomic.Uint32
}

// Table is the fixed set of sensor channels. It is created once at startup
// and handed to both the edge source and the application.
type Table struct {
	clock    Clock
	channels []sensor
}

// New builds a table with one channel per config, in order.
// It returns no table at all if any config is invalid.
func New(clk Clock, configs []Config) (*Table, error) {
	if clk == nil {
		return nil, fmt.Errorf("%w: nil clock", ErrConfiguration)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrConfiguration)
	}
	if len(configs) > MaxChannels {
		return nil, fmt.Errorf("%w: %d channels exceeds maximum of %d", ErrConfiguration, len(configs), MaxChannels)
	}

	seen := make(map[int]int, len(configs))
	channels := make([]sensor, len(configs))
	for i, cfg := range configs {
		if prev, dup := seen[cfg.Pin]; dup {
			return nil, fmt.Errorf("%w: pin %d used by channels %d and %d", ErrConfiguration, cfg.Pin, prev, i)
		}
		seen[cfg.Pin] = i

		if cfg.Debounce < 0 {
			return nil, fmt.Errorf("%w: channel %d: negative debounce %v", ErrConfiguration, i, cfg.Debounce)
		}
		us := cfg.Debounce / time.Microsecond
		if us > math.MaxUint32 {
			return nil, fmt.Errorf("%w: channel %d: debounce %v exceeds timer range", ErrConfiguration, i, cfg.Debounce)
		}

		channels[i].pin = cfg.Pin
		channels[i].debounce = cfg.Debounce
		channels[i].window = Ticks(us)
	}

	return &Table{clock: clk, channels: channels}, nil
}

// ChannelCount returns the number of configured channels.
func (t *Table) ChannelCount() int {
	return len(t.channels)
}

// IndexForPin returns the channel index watching pin.
// Intended for registration time; edge handling uses a pre-bound index.
func (t *Table) IndexForPin(pin int) (int, error) {
	for i := range t.channels {
		if t.channels[i].pin == pin {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %d", ErrNotFound, pin)
}

// Now returns the current tick value of the table's clock.
func (t *Table) Now() Ticks {
	return t.clock.Ticks()
}

// Handler returns the edge callback for channel index. The binding is done
// once here; invoking the callback performs no lookup and no allocation.
// An invalid index is a wiring bug and panics rather than letting edges
// land on the wrong channel.
func (t *Table) Handler(index int) func() {
	if index < 0 || index >= len(t.channels) {
		panic(fmt.Sprintf("channel: handler bound to index %d of %d channels", index, len(t.channels)))
	}
	c := &t.channels[index]
	return func() { t.edge(c) }
}

func (t *Table) edge(c *sensor) {
	now := t.clock.Ticks()
	for {
		old := c.state.Load()
		s := unpack(old)
		if s.seen && now.Sub(s.last) < c.window {
			c.rejected.Add(1)
			return
		}
		next := state{last: now, count: s.count, seen: true}
		if next.count < MaxCount {
			next.count++
		}
		if c.state.CompareAndSwap(old, next.pack()) {
			return
		}
	}
}

func (t *Table) lookup(index int) (*sensor, error) {
	if index < 0 || index >= len(t.channels) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(t.channels))
	}
	return &t.channels[index], nil
}

// Count returns the number of accepted edges since the last reset.
func (t *Table) Count(index int) (uint32, error) {
	c, err := t.lookup(index)
	if err != nil {
		return 0, err
	}
	return unpack(c.state.Load()).count, nil
}

// LastTimestamp returns the tick of the most recently accepted edge,
// or zero if none has been accepted.
func (t *Table) LastTimestamp(index int) (Ticks, error) {
	c, err := t.lookup(index)
	if err != nil {
		return 0, err
	}
	return unpack(c.state.Load()).last, nil
}

// ResetCount zeroes the accepted-edge count. The last edge timestamp is
// kept so debouncing continues across the reset.
func (t *Table) ResetCount(index int) error {
	_, err := t.TakeCount(index)
	return err
}

// TakeCount atomically returns the accepted-edge count and zeroes it.
// Every accepted edge is reported by exactly one TakeCount or remains in
// the count.
func (t *Table) TakeCount(index int) (uint32, error) {
	c, err := t.lookup(index)
	if err != nil {
		return 0, err
	}
	for {
		old := c.state.Load()
		s := unpack(old)
		n := s.count
		s.count = 0
		if c.state.CompareAndSwap(old, s.pack()) {
			return n, nil
		}
	}
}

// Snapshot returns a consistent reading of one channel.
func (t *Table) Snapshot(index int) (Reading, error) {
	c, err := t.lookup(index)
	if err != nil {
		return Reading{}, err
	}
	return t.read(index, c), nil
}

// Readings returns a snapshot of every channel. Each reading is consistent
// on its own; no ordering holds across channels.
func (t *Table) Readings() []Reading {
	out := make([]Reading, len(t.channels))
	for i := range t.channels {
		out[i] = t.read(i, &t.channels[i])
	}
	return out
}

func (t *Table) read(index int, c *sensor) Reading {
	s := unpack(c.state.Load())
	return Reading{
		Index:    index,
		Pin:      c.pin,
		Debounce: c.debounce,
		Count:    s.count,
		LastEdge: s.last,
		Seen:     s.seen,
		Rejected: c.rejected.Load(),
	}
}
