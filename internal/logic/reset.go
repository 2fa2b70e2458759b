package logic

import (
	"errors"
	"sync"
)

// ErrResetQueueClosed is returned by ResetQueue.TakeCount after Close.
var ErrResetQueueClosed = errors.New("reset queue closed")

// ResetRequest asks the loop that owns a Detector to reset one channel.
// The loop must answer every request it receives with Reply.
type ResetRequest struct {
	Index int
	reply chan resetReply
}

type resetReply struct {
	previous uint32
	err      error
}

// Reply hands the result back to the waiting caller. It never blocks.
func (r ResetRequest) Reply(previous uint32, err error) {
	r.reply <- resetReply{previous: previous, err: err}
}

// ResetQueue carries resets from other goroutines (HTTP handlers) to the
// polling loop, which applies them with Detector.TakeCount.
type ResetQueue struct {
	requests chan ResetRequest
	done     chan struct{}
	once     sync.Once
}

// NewResetQueue creates an open queue.
func NewResetQueue() *ResetQueue {
	return &ResetQueue{
		requests: make(chan ResetRequest),
		done:     make(chan struct{}),
	}
}

// C returns the channel the polling loop receives requests on.
func (q *ResetQueue) C() <-chan ResetRequest {
	return q.requests
}

// TakeCount blocks until the polling loop has reset channel index, and
// returns the count it held.
func (q *ResetQueue) TakeCount(index int) (uint32, error) {
	req := ResetRequest{Index: index, reply: make(chan resetReply, 1)}
	select {
	case q.requests <- req:
	case <-q.done:
		return 0, ErrResetQueueClosed
	}
	select {
	case r := <-req.reply:
		return r.previous, r.err
	case <-q.done:
		select {
		case r := <-req.reply:
			return r.previous, r.err
		default:
			return 0, ErrResetQueueClosed
		}
	}
}

// Close fails pending and future TakeCount calls. It is safe to call more
// than once.
func (q *ResetQueue) Close() {
	q.once.Do(func() { close(q.done) })
}
