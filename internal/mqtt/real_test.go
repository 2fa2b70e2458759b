package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doneToken is an already-completed publish.
type doneToken struct{ paho.Token }

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

// recordingClient records publishes in the order the broker would see them.
// Only the methods RealPublisher uses after construction are implemented.
type recordingClient struct {
	paho.Client

	mu        sync.Mutex
	sent      []pendingMsg
	onPublish func(n int)
}

func (c *recordingClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	c.sent = append(c.sent, pendingMsg{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	n := len(c.sent)
	hook := c.onPublish
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return doneToken{}
}

func (c *recordingClient) IsConnectionOpen() bool { return true }

func (c *recordingClient) payloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = string(m.payload)
	}
	return out
}

func newTestPublisher(c paho.Client) *RealPublisher {
	return &RealPublisher{client: c, topic: Topic, outbox: newOutbox(8)}
}

func rawEvent(event, body string, retained bool) SystemEvent {
	return SystemEvent{Event: event, Retained: retained, RawPayload: []byte(body)}
}

func TestRealPublisherQueuesWhileDisconnected(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)

	require.NoError(t, p.PublishSystem(rawEvent("STARTUP", "startup", true)))
	assert.Empty(t, c.payloads(), "nothing sent while disconnected")
	assert.Equal(t, 1, p.Queued())
}

func TestRealPublisherReplayKeepsOrder(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)

	p.PublishSystem(rawEvent("STARTUP", "startup", true))
	p.PublishSystem(rawEvent("HEARTBEAT", "heartbeat", false))

	// The main loop publishes while the first queued message is on the wire.
	c.onPublish = func(n int) {
		if n == 1 {
			assert.NoError(t, p.PublishSystem(rawEvent("SHUTDOWN", "shutdown", true)))
		}
	}
	p.onConnect(c)
	c.onPublish = nil

	assert.Equal(t, []string{"startup", "heartbeat", "shutdown"}, c.payloads())
	assert.True(t, c.sent[2].retained, "SHUTDOWN stays retained through the outbox")
	assert.Zero(t, p.Queued())

	// Once the replay is over publishes go straight out.
	p.PublishSystem(rawEvent("HEARTBEAT", "live", false))
	assert.Equal(t, []string{"startup", "heartbeat", "shutdown", "live"}, c.payloads())
}

func TestRealPublisherReconnectAnnouncesFirst(t *testing.T) {
	c := &recordingClient{}
	p := newTestPublisher(c)

	p.onConnect(c)
	p.onConnectionLost(c, errors.New("link down"))
	require.False(t, p.IsConnected())

	p.PublishSystem(rawEvent("HEARTBEAT", "queued", false))
	p.onConnect(c)

	got := c.payloads()
	require.Len(t, got, 2)

	var first SystemPayload
	require.NoError(t, json.Unmarshal([]byte(got[0]), &first))
	assert.Equal(t, "RECONNECTED", first.System.Event)
	assert.Equal(t, "queued", got[1])
}
