// Package mqtt publishes decoded annotations with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/kripton/syscontrol/internal/decode"
)

// Topic is the MQTT topic for decoded annotations.
const Topic = "hifi/syscontrol/annotations"

// TopicSystem is the MQTT topic for decoder lifecycle events.
const TopicSystem = "hifi/syscontrol/system"

// Publisher publishes decoder output to MQTT.
type Publisher interface {
	// Publish sends one annotation to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(ann decode.Annotation) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a decoder lifecycle event.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g. "STARTUP", "SHUTDOWN", "COMPLETE", "HEARTBEAT"
	Reason     string // e.g. "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the MQTT message envelope for one annotation.
type Payload struct {
	Annotation AnnotationPayload `json:"annotation"`
}

// AnnotationPayload carries one decoded annotation. The timestamp is
// publish time; the sample positions locate the annotation within the
// capture.
type AnnotationPayload struct {
	Timestamp   string `json:"timestamp"`
	Level       string `json:"level"`
	Text        string `json:"text"`
	StartSample int64  `json:"start_sample"`
	EndSample   int64  `json:"end_sample"`
}

// FormatPayload creates the JSON payload for an annotation published
// at the given time.
func FormatPayload(ann decode.Annotation, now time.Time) ([]byte, error) {
	payload := Payload{
		Annotation: AnnotationPayload{
			Timestamp:   now.UTC().Format(time.RFC3339),
			Level:       ann.Level.String(),
			Text:        ann.Text,
			StartSample: ann.StartSample,
			EndSample:   ann.EndSample,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the MQTT message envelope for lifecycle events that
// do not carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the lifecycle event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a lifecycle event.
// If event.RawPayload is set, it is returned directly (used for full
// status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
