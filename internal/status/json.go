package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Channels      []ChannelJSON `json:"channels"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is the JSON representation of one sensor channel.
type ChannelJSON struct {
	Index         int     `json:"index"`
	Name          string  `json:"name,omitempty"`
	Pin           int     `json:"pin"`
	DebounceMs    int64   `json:"debounce_ms"`
	Count         uint32  `json:"count"`
	Total         uint64  `json:"total"`
	Rejected      uint32  `json:"rejected"`
	LastEdgeUs    *uint32 `json:"last_edge_us,omitempty"`
	LastEdgeAgoMs *int64  `json:"last_edge_ago_ms,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Chip        string `json:"chip"`
}

func buildChannels(snap Snapshot) []ChannelJSON {
	out := make([]ChannelJSON, len(snap.Channels))
	for i, c := range snap.Channels {
		cj := ChannelJSON{
			Index:      c.Index,
			Name:       c.Name,
			Pin:        c.Pin,
			DebounceMs: c.DebounceMs,
			Count:      c.Count,
			Total:      c.Total,
			Rejected:   c.Rejected,
		}
		// Omit edge timing until a channel has fired; tick 0 is a valid edge time.
		if c.Seen {
			us := uint32(c.LastEdge)
			ago := c.LastEdgeAgo.Milliseconds()
			cj.LastEdgeUs = &us
			cj.LastEdgeAgoMs = &ago
		}
		out[i] = cj
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Channels:      buildChannels(snap),
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Chip:        snap.Config.Chip,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
