package mqtt

import "log"

// pendingMsg is a serialized publish held until the broker is reachable.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of publishes made while disconnected.
// When full the oldest message is dropped.
// Not safe for concurrent use; the publisher holds its mutex around it.
type outbox struct {
	buf     []pendingMsg
	head    int // next write position
	count   int
	dropped int // messages lost since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{buf: make([]pendingMsg, capacity)}
}

func (o *outbox) push(msg pendingMsg) {
	c := len(o.buf)
	if o.count == c {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", c)
		}
		o.dropped++
		o.buf[o.head] = msg
		o.head = (o.head + 1) % c
		return
	}
	o.buf[o.head] = msg
	o.head = (o.head + 1) % c
	o.count++
}

// drain returns queued messages oldest first and how many were dropped,
// then empties the outbox.
func (o *outbox) drain() ([]pendingMsg, int) {
	dropped := o.dropped
	o.dropped = 0
	if o.count == 0 {
		return nil, dropped
	}

	c := len(o.buf)
	out := make([]pendingMsg, o.count)
	start := (o.head - o.count + c) % c
	for i := range out {
		out[i] = o.buf[(start+i)%c]
		o.buf[(start+i)%c] = pendingMsg{}
	}
	o.count = 0
	o.head = 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.count
}
