package gpio

import (
	"fmt"
	"sync"
)

// FakeSource is a test double that lets tests fire edges by pin.
type FakeSource struct {
	mu       sync.Mutex
	handlers map[int]func()
	edges    map[int]Edge

	// WatchError, if set, will be returned by Watch.
	WatchError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSource creates an empty FakeSource.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		handlers: make(map[int]func()),
		edges:    make(map[int]Edge),
	}
}

// Watch records the handler for pin.
func (f *FakeSource) Watch(pin int, edge Edge, handler func()) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}
	f.handlers[pin] = handler
	f.edges[pin] = edge
	return nil
}

// Fire invokes the handler watching pin, as the hardware would on an edge.
// Firing an unwatched pin is a no-op and returns false.
func (f *FakeSource) Fire(pin int) bool {
	f.mu.Lock()
	h := f.handlers[pin]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h()
	return true
}

// Edge returns the edge selection pin was watched with.
func (f *FakeSource) Edge(pin int) (Edge, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.edges[pin]
	return e, ok
}

// Close marks the source as closed and drops all handlers.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	f.handlers = make(map[int]func())
	f.edges = make(map[int]Edge)
	return nil
}
