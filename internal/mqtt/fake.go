package mqtt

import (
	"github.com/sweeney/ir-sensor/internal/logic"
)

// FakePublisher records what would have gone to the broker.
type FakePublisher struct {
	Events         []logic.Event
	Payloads       [][]byte
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError fail the matching call without
	// recording anything.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the sensor event and its payload.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event and its payload.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// ChannelEvents returns the recorded sensor events for one channel, in order.
func (f *FakePublisher) ChannelEvents(channel int) []logic.Event {
	var out []logic.Event
	for _, e := range f.Events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// SystemEventsNamed returns the recorded system events with the given name.
func (f *FakePublisher) SystemEventsNamed(name string) []SystemEvent {
	var out []SystemEvent
	for _, e := range f.SystemEvents {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected returns Connected.
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset forgets everything recorded and clears injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
