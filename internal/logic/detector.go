package logic

import (
	"time"

	"github.com/sweeney/ir-sensor/internal/channel"
)

// CountTaker resets a channel and returns the count it held.
type CountTaker interface {
	TakeCount(index int) (uint32, error)
}

// Detector remembers the last reading of each channel and reports changes.
// It is not safe for concurrent use; resets must go through TakeCount on the
// goroutine that calls Process.
type Detector struct {
	sensors       []Sensor
	prev          []channel.Reading
	taken         []uint64
	primed        bool
	totals        Totals
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a detector for the given sensors, indexed like the
// channel table. The startTime is used for calculating uptime in heartbeat
// events.
func NewDetector(sensors []Sensor, startTime time.Time) *Detector {
	return &Detector{
		sensors:       sensors,
		taken:         make([]uint64, len(sensors)),
		totals:        make(Totals, len(sensors)),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// TakeCount resets channel index through t and remembers the count taken,
// so the next Process reports every edge counted since the previous poll.
func (d *Detector) TakeCount(t CountTaker, index int) (uint32, error) {
	n, err := t.TakeCount(index)
	if err != nil {
		return 0, err
	}
	if index >= 0 && index < len(d.taken) {
		d.taken[index] += uint64(n)
	}
	return n, nil
}

// Process compares readings with the previous poll and returns one event per
// channel whose count changed, in channel order. The first call only records
// a baseline; edges counted before the first poll are folded into totals but
// not emitted.
func (d *Detector) Process(readings []channel.Reading, now time.Time) []Event {
	if !d.primed {
		d.prev = append(d.prev[:0], readings...)
		for i, r := range readings {
			if i < len(d.totals) {
				d.totals[i] += uint64(r.Count) + d.taken[i]
				d.taken[i] = 0
			}
		}
		d.primed = true
		return nil
	}

	var events []Event
	for i, r := range readings {
		if i >= len(d.prev) || i >= len(d.totals) {
			break
		}
		p := d.prev[i]
		taken := d.taken[i]
		d.taken[i] = 0
		if taken == 0 && r.Count == p.Count && r.LastEdge == p.LastEdge {
			continue
		}

		ev := Event{
			Timestamp: now,
			Channel:   r.Index,
			Pin:       r.Pin,
			Count:     r.Count,
			LastEdge:  r.LastEdge,
		}
		if i < len(d.sensors) {
			ev.Name = d.sensors[i].Name
		}

		switch cur, prev := uint64(r.Count), uint64(p.Count); {
		case taken > 0:
			// The taken count already includes everything seen at the
			// previous poll.
			ev.Type = EventReset
			if taken+cur >= prev {
				ev.Delta = taken + cur - prev
			} else {
				ev.Delta = cur
			}
		case cur > prev:
			ev.Type = EventTrigger
			ev.Delta = cur - prev
		case r.Count == channel.MaxCount:
			// Saturated: the timestamp moved but the count cannot.
			ev.Type = EventTrigger
		default:
			// Reset outside TakeCount: anything counted after it is new.
			ev.Type = EventReset
			ev.Delta = cur
		}
		d.totals[i] += ev.Delta
		events = append(events, ev)
	}

	d.prev = append(d.prev[:0], readings...)
	return events
}

// IsPrimed returns whether a baseline reading has been recorded.
func (d *Detector) IsPrimed() bool {
	return d.primed
}

// TotalsSnapshot returns a copy of the per-channel trigger totals.
func (d *Detector) TotalsSnapshot() Totals {
	out := make(Totals, len(d.totals))
	copy(out, d.totals)
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet primed, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.primed {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Totals:    d.TotalsSnapshot(),
	}
}
