// Package logic turns polled channel readings into publishable events.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/ir-sensor/internal/channel"
)

// EventType represents a change in a channel's count.
type EventType string

const (
	// EventTrigger means new edges were accepted since the last poll.
	EventTrigger EventType = "TRIGGER"
	// EventReset means the count was reset since the last poll.
	EventReset EventType = "RESET"
)

// Sensor names a channel for events and status output.
type Sensor struct {
	Name string
	Pin  int
}

// Event represents a count change to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Channel   int
	Name      string
	Pin       int
	Count     uint32        // count after the change
	Delta     uint64        // edges counted since the previous poll, including any taken by a reset
	LastEdge  channel.Ticks // tick of the most recent accepted edge
}

// Totals tracks triggers seen per channel since startup. Resets do not
// clear it.
type Totals []uint64

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Totals    Totals
}
