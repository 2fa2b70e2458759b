package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadBytes(msgs []pendingMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10)
	got, dropped := o.drain()
	assert.Nil(t, got)
	assert.Zero(t, dropped)
}

func TestOutboxPushAndDrain(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 5; i++ {
		o.push(pendingMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got, _ := o.drain()
	require.Len(t, got, 5)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloadBytes(got))

	got, _ = o.drain()
	assert.Nil(t, got, "second drain")
}

func TestOutboxOverflowDropsOldest(t *testing.T) {
	o := newOutbox(5)

	// 0..7 into five slots keeps 3..7.
	for i := 0; i < 8; i++ {
		o.push(pendingMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got, dropped := o.drain()
	require.Len(t, got, 5)
	assert.Equal(t, 3, dropped)
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloadBytes(got))

	_, dropped = o.drain()
	assert.Zero(t, dropped, "dropped count resets after drain")
}

func TestOutboxMultipleCycles(t *testing.T) {
	o := newOutbox(5)

	for i := 0; i < 3; i++ {
		o.push(pendingMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got, _ := o.drain()
	require.Len(t, got, 3)

	for i := 10; i < 14; i++ {
		o.push(pendingMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got, _ = o.drain()
	assert.Equal(t, []byte{10, 11, 12, 13}, payloadBytes(got))
}

func TestOutboxLen(t *testing.T) {
	o := newOutbox(10)
	assert.Zero(t, o.len())

	o.push(pendingMsg{topic: "t"})
	o.push(pendingMsg{topic: "t"})
	assert.Equal(t, 2, o.len())

	o.drain()
	assert.Zero(t, o.len())
}

func TestOutboxMinimumCapacity(t *testing.T) {
	o := newOutbox(0)
	o.push(pendingMsg{topic: "a"})
	o.push(pendingMsg{topic: "b"})

	got, dropped := o.drain()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].topic)
	assert.Equal(t, 1, dropped)
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(10)
	msg := pendingMsg{
		topic:    "sensors/test",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	}
	o.push(msg)

	got, _ := o.drain()
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0])
}
