package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/ir-sensor/internal/logic"
)

func sampleEvent() logic.Event {
	return logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventTrigger,
		Channel:   1,
		Name:      "door",
		Pin:       6,
		Count:     7,
		Delta:     2,
		LastEdge:  123456,
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(sampleEvent())
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))

	assert.Equal(t, SensorPayload{
		Timestamp: "2026-02-02T22:18:12Z",
		Event:     "TRIGGER",
		Channel:   1,
		Name:      "door",
		Pin:       6,
		Count:     7,
		Delta:     2,
		LastEdge:  123456,
	}, parsed.IR)
}

func TestFormatPayloadExactJSON(t *testing.T) {
	payload, err := FormatPayload(sampleEvent())
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"ir":{"timestamp":"2026-02-02T22:18:12Z","event":"TRIGGER","channel":1,"name":"door","pin":6,"count":7,"delta":2,"last_edge_us":123456}}`,
		string(payload))
}

func TestFormatPayloadOmitsEmptyName(t *testing.T) {
	ev := sampleEvent()
	ev.Name = ""
	payload, err := FormatPayload(ev)
	require.NoError(t, err)

	var parsed map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.NotContains(t, parsed["ir"], "name")
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	ev := sampleEvent()
	ev.Timestamp = time.Date(2026, 2, 3, 0, 30, 0, 0, time.FixedZone("UTC+2", 2*60*60))

	payload, err := FormatPayload(ev)
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "2026-02-02T22:30:00Z", parsed.IR.Timestamp)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "sensors/ir/events", Topic)
	assert.Equal(t, "sensors/ir/system", TopicSystem)
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(payload))
}

func TestFormatSystemPayloadReconnectedOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`, string(payload))
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	body := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: body})
	require.NoError(t, err)
	assert.Equal(t, body, payload)
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.Publish(sampleEvent()))
	require.Len(t, f.Events, 1)
	assert.Equal(t, logic.EventTrigger, f.Events[0].Type)
	assert.Len(t, f.Payloads, 1)
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	assert.Error(t, f.Publish(sampleEvent()))
	assert.Empty(t, f.Events, "nothing recorded on error")
}

func TestFakePublisherPublishSystem(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}))
	require.Len(t, f.SystemEvents, 1)
	assert.True(t, f.SystemEvents[0].Retained)

	f.PublishSystemError = errors.New("boom")
	assert.Error(t, f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}))
	assert.Len(t, f.SystemEvents, 1, "failed publish is not recorded")
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(sampleEvent())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("error")

	f.Reset()

	assert.Equal(t, FakePublisher{}, *f)
}

func TestFakePublisherFilters(t *testing.T) {
	f := NewFakePublisher()
	for _, ch := range []int{0, 1, 0} {
		ev := sampleEvent()
		ev.Channel = ch
		f.Publish(ev)
	}
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.PublishSystem(SystemEvent{Event: "HEARTBEAT"})
	f.PublishSystem(SystemEvent{Event: "HEARTBEAT"})

	assert.Len(t, f.ChannelEvents(0), 2)
	assert.Empty(t, f.ChannelEvents(3))
	assert.Len(t, f.SystemEventsNamed("HEARTBEAT"), 2)
}
