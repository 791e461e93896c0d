// Package status provides a thread-safe status tracker for the decoder
// daemon. It is read by HTTP handlers and serialized into MQTT
// lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/kripton/syscontrol/internal/decode"
)

// Config contains daemon configuration for display.
type Config struct {
	SampleRateHz float64
	Source       string // capture description, e.g. "wav:session.wav" or "gpio:26"
	Broker       string
	HTTPAddr     string
	WSBroker     string // Websocket broker URL for browser MQTT (empty = disabled)
	HeartbeatMs  int64
}

// Snapshot is a point-in-time view of decoder state. It is a value
// type, safe to use after the lock is released.
type Snapshot struct {
	Counts        decode.Counts
	LastWord      string
	LastCommand   string
	Finished      bool // offline capture fully decoded
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
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

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the decode counters. Called after every emitted
// annotation batch.
func (t *Tracker) Update(counts decode.Counts) {
	t.mu.Lock()
	t.snap.Counts = counts
	t.mu.Unlock()
}

// Observe records word and command annotations as they are emitted so
// the status page can show the most recent decode.
func (t *Tracker) Observe(ann decode.Annotation) {
	t.mu.Lock()
	switch ann.Level {
	case decode.LevelWord:
		t.snap.LastWord = ann.Text
	case decode.LevelCommand:
		t.snap.LastCommand = ann.Text
	}
	t.mu.Unlock()
}

// SetFinished marks the capture as fully decoded.
func (t *Tracker) SetFinished() {
	t.mu.Lock()
	t.snap.Finished = true
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
