// Package status provides a thread-safe status tracker for the ir-sensor daemon.
// It is read by HTTP handlers and used to build MQTT lifecycle payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ir-sensor/internal/channel"
	"github.com/sweeney/ir-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Chip        string
}

// Channel is the displayed state of one sensor channel.
type Channel struct {
	Index       int
	Name        string
	Pin         int
	DebounceMs  int64
	Count       uint32
	Total       uint64 // triggers since startup, across resets
	Rejected    uint32
	Seen        bool
	LastEdge    channel.Ticks
	LastEdgeAgo time.Duration // age of LastEdge when the readings were taken
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Channels      []Channel
	Ready         bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, sensors and config.
func NewTracker(startTime time.Time, sensors []logic.Sensor, cfg Config) *Tracker {
	chans := make([]Channel, len(sensors))
	for i, s := range sensors {
		chans[i] = Channel{Index: i, Name: s.Name, Pin: s.Pin}
	}
	return &Tracker{
		snap: Snapshot{
			Channels:  chans,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies channel readings into the tracker. now is the table's tick
// at the time of the readings and is used to age the last edge.
// Called from runLoop on every tick.
func (t *Tracker) Update(readings []channel.Reading, now channel.Ticks, totals logic.Totals, ready bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range readings {
		if r.Index < 0 || r.Index >= len(t.snap.Channels) {
			continue
		}
		c := &t.snap.Channels[r.Index]
		c.Pin = r.Pin
		c.DebounceMs = r.Debounce.Milliseconds()
		c.Count = r.Count
		c.Rejected = r.Rejected
		c.Seen = r.Seen
		c.LastEdge = r.LastEdge
		c.LastEdgeAgo = 0
		if r.Seen {
			c.LastEdgeAgo = now.Sub(r.LastEdge).Duration()
		}
		if r.Index < len(totals) {
			c.Total = totals[r.Index]
		}
	}
	t.snap.Ready = ready
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]Channel(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
