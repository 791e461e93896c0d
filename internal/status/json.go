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
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	LastWord      string     `json:"last_word,omitempty"`
	LastCommand   string     `json:"last_command,omitempty"`
	Finished      bool       `json:"finished"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"decode_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of decode counters.
type CountsJSON struct {
	Resets   int `json:"resets"`
	ZeroBits int `json:"zero_bits"`
	OneBits  int `json:"one_bits"`
	Skipped  int `json:"skipped_intervals"`
	Words    int `json:"words"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleRateHz float64 `json:"sample_rate_hz"`
	Source       string  `json:"source"`
	Broker       string  `json:"broker"`
	HTTPAddr     string  `json:"http_addr"`
	WSBroker     string  `json:"ws_broker,omitempty"`
	HeartbeatMs  int64   `json:"heartbeat_ms"`
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		LastWord:      snap.LastWord,
		LastCommand:   snap.LastCommand,
		Finished:      snap.Finished,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Resets:   snap.Counts.Resets,
			ZeroBits: snap.Counts.ZeroBits,
			OneBits:  snap.Counts.OneBits,
			Skipped:  snap.Counts.Skipped,
			Words:    snap.Counts.Words,
		},
		Config: ConfigJSON{
			SampleRateHz: snap.Config.SampleRateHz,
			Source:       snap.Config.Source,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			WSBroker:     snap.Config.WSBroker,
			HeartbeatMs:  snap.Config.HeartbeatMs,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
