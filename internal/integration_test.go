package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kripton/syscontrol/internal/decode"
	"github.com/kripton/syscontrol/internal/mqtt"
	"github.com/kripton/syscontrol/internal/source"
	"github.com/kripton/syscontrol/internal/status"
)

const testRate = 10000 // 100us per sample

// frameEdges builds the edge stream for one reset pulse followed by a
// 16-bit word, MSB first. A zero bit is a 3500us falling-to-falling
// interval, a one bit 7000us.
func frameEdges(start int64, word uint16) []decode.Edge {
	edges := []decode.Edge{
		{Pos: start, Polarity: decode.Rising},
		{Pos: start + 50, Polarity: decode.Falling},
	}
	pos := start + 50
	for i := 15; i >= 0; i-- {
		step := int64(35)
		if word&(1<<uint(i)) != 0 {
			step = 70
		}
		edges = append(edges, decode.Edge{Pos: pos + 20, Polarity: decode.Rising})
		pos += step
		edges = append(edges, decode.Edge{Pos: pos, Polarity: decode.Falling})
	}
	return edges
}

// TestIntegrationFullFlow runs the complete flow from edge source to
// MQTT using fakes: one captured frame becomes a reset, sixteen bits,
// a word, and a command, all published in order.
func TestIntegrationFullFlow(t *testing.T) {
	src := source.NewFakeSource(testRate, frameEdges(0, 0x1000))
	publisher := mqtt.NewFakePublisher()
	publisher.Now = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	decoder := decode.NewDecoder(src.SampleRate())

	err := decoder.Run(src, func(ann decode.Annotation) {
		if err := publisher.Publish(ann); err != nil {
			t.Fatalf("publish error: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Reset + 16 bits + word + command.
	if len(publisher.Annotations) != 19 {
		t.Fatalf("expected 19 annotations, got %d", len(publisher.Annotations))
	}

	first := publisher.Annotations[0]
	if first.Text != "RESET" || first.Level != decode.LevelBit {
		t.Errorf("annotation 0: got %s %q, want bit RESET", first.Level, first.Text)
	}

	word := publisher.Annotations[17]
	if word.Level != decode.LevelWord || word.Text != "0x1000" {
		t.Errorf("annotation 17: got %s %q, want word 0x1000", word.Level, word.Text)
	}

	cmd := publisher.Annotations[18]
	if cmd.Level != decode.LevelCommand || cmd.Text != "System ON" {
		t.Errorf("annotation 18: got %s %q, want command \"System ON\"", cmd.Level, cmd.Text)
	}
	if cmd.StartSample != 0 {
		t.Errorf("command start: got %d, want 0 (reset start)", cmd.StartSample)
	}

	// Every payload is valid JSON with the full envelope.
	for i, payload := range publisher.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Errorf("payload %d: invalid JSON: %v", i, err)
			continue
		}
		if parsed.Annotation.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Annotation.Level == "" {
			t.Errorf("payload %d: missing level", i)
		}
	}
}

// TestIntegrationBackToBackFrames decodes two frames from one capture.
func TestIntegrationBackToBackFrames(t *testing.T) {
	edges := frameEdges(0, 0x1000)
	edges = append(edges, frameEdges(edges[len(edges)-1].Pos+100, 0x1080)...)
	src := source.NewFakeSource(testRate, edges)
	publisher := mqtt.NewFakePublisher()
	decoder := decode.NewDecoder(src.SampleRate())

	err := decoder.Run(src, func(ann decode.Annotation) {
		publisher.Publish(ann)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var commands []string
	for _, ann := range publisher.Annotations {
		if ann.Level == decode.LevelCommand {
			commands = append(commands, ann.Text)
		}
	}
	if len(commands) != 2 || commands[0] != "System ON" || commands[1] != "System OFF" {
		t.Errorf("commands: got %v, want [System ON, System OFF]", commands)
	}
}

// TestIntegrationTrackerFollowsDecode verifies the status tracker sees
// the same stream the publisher does.
func TestIntegrationTrackerFollowsDecode(t *testing.T) {
	src := source.NewFakeSource(testRate, frameEdges(0, 0x857b))
	publisher := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), status.Config{
		SampleRateHz: testRate,
		Source:       "fake",
		Broker:       "tcp://mqtt.local:1883",
	})
	decoder := decode.NewDecoder(src.SampleRate())

	err := decoder.Run(src, func(ann decode.Annotation) {
		tracker.Observe(ann)
		tracker.Update(decoder.CountsSnapshot())
		publisher.Publish(ann)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	tracker.SetFinished()

	snap := tracker.Snapshot()
	if snap.LastWord != "0x857b" {
		t.Errorf("LastWord: got %q, want %q", snap.LastWord, "0x857b")
	}
	if snap.LastCommand != "Seek Rev" {
		t.Errorf("LastCommand: got %q, want %q", snap.LastCommand, "Seek Rev")
	}
	if snap.Counts.Words != 1 || snap.Counts.Resets != 1 {
		t.Errorf("counts: got %+v, want 1 word and 1 reset", snap.Counts)
	}
	if snap.Counts.OneBits+snap.Counts.ZeroBits != 16 {
		t.Errorf("bit counts: got %d ones + %d zeros, want 16 total",
			snap.Counts.OneBits, snap.Counts.ZeroBits)
	}
	if !snap.Finished {
		t.Error("tracker not finished")
	}
}

// TestIntegrationPublishFailureDoesNotCrash verifies publish errors are
// tolerated mid-stream: decoding continues and later publishes succeed.
func TestIntegrationPublishFailureDoesNotCrash(t *testing.T) {
	src := source.NewFakeSource(testRate, frameEdges(0, 0x1000))
	publisher := mqtt.NewFakePublisher()
	decoder := decode.NewDecoder(src.SampleRate())

	seen := 0
	err := decoder.Run(src, func(ann decode.Annotation) {
		seen++
		// Fail the first few publishes, then recover.
		if seen <= 3 {
			publisher.PublishError = errors.New("broker disconnected")
		} else {
			publisher.PublishError = nil
		}
		_ = publisher.Publish(ann)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if seen != 19 {
		t.Errorf("decode stopped early: saw %d annotations, want 19", seen)
	}
	if len(publisher.Annotations) != 16 {
		t.Errorf("expected 16 recorded annotations after 3 failures, got %d", len(publisher.Annotations))
	}
}

// TestIntegrationLifecyclePayloads verifies the full STARTUP/COMPLETE
// lifecycle carries a status snapshot over the system topic.
func TestIntegrationLifecyclePayloads(t *testing.T) {
	publisher := mqtt.NewFakePublisher()
	startTime := time.Date(2026, 2, 3, 19, 5, 51, 0, time.UTC)
	tracker := status.NewTracker(startTime, status.Config{
		SampleRateHz: testRate,
		Source:       "wav:capture.wav",
		Broker:       "tcp://192.168.1.200:1883",
	})

	startup := mqtt.SystemEvent{
		Timestamp:  startTime,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		t.Fatalf("startup publish: %v", err)
	}

	src := source.NewFakeSource(testRate, frameEdges(0, 0x1000))
	decoder := decode.NewDecoder(src.SampleRate())
	if err := decoder.Run(src, func(ann decode.Annotation) {
		tracker.Observe(ann)
		tracker.Update(decoder.CountsSnapshot())
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	tracker.SetFinished()

	complete := mqtt.SystemEvent{
		Timestamp:  startTime.Add(2 * time.Second),
		Event:      "COMPLETE",
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "COMPLETE", ""),
	}
	if err := publisher.PublishSystem(complete); err != nil {
		t.Fatalf("complete publish: %v", err)
	}

	if len(publisher.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(publisher.SystemEvents))
	}
	if !publisher.SystemEvents[0].Retained {
		t.Error("STARTUP should be retained")
	}
	if publisher.SystemEvents[1].Retained {
		t.Error("COMPLETE should not be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(publisher.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("startup payload invalid JSON: %v", err)
	}
	if parsed.Status.Event != "STARTUP" {
		t.Errorf("startup payload event: got %q", parsed.Status.Event)
	}
	if parsed.Status.Finished {
		t.Error("startup payload should not be finished")
	}
	if parsed.Status.Config.Source != "wav:capture.wav" {
		t.Errorf("startup payload source: got %q", parsed.Status.Config.Source)
	}

	if err := json.Unmarshal(publisher.SystemPayloads[1], &parsed); err != nil {
		t.Fatalf("complete payload invalid JSON: %v", err)
	}
	if parsed.Status.Event != "COMPLETE" {
		t.Errorf("complete payload event: got %q", parsed.Status.Event)
	}
	if !parsed.Status.Finished {
		t.Error("complete payload should be finished")
	}
	if parsed.Status.LastCommand != "System ON" {
		t.Errorf("complete payload last_command: got %q", parsed.Status.LastCommand)
	}
	if parsed.Status.Counts.Words != 1 {
		t.Errorf("complete payload words: got %d, want 1", parsed.Status.Counts.Words)
	}
}

// TestIntegrationShutdownPayloadFormat verifies the exact JSON for a
// plain shutdown event without a status snapshot.
func TestIntegrationShutdownPayloadFormat(t *testing.T) {
	publisher := mqtt.NewFakePublisher()

	event := mqtt.SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}
	if err := publisher.PublishSystem(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(publisher.SystemPayloads[0]) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(publisher.SystemPayloads[0]), expected)
	}
}

// TestIntegrationMissingSampleRate verifies the configuration error
// surfaces before any edge is consumed.
func TestIntegrationMissingSampleRate(t *testing.T) {
	src := source.NewFakeSource(0, frameEdges(0, 0x1000))
	publisher := mqtt.NewFakePublisher()
	decoder := decode.NewDecoder(src.SampleRate())

	err := decoder.Run(src, func(ann decode.Annotation) {
		publisher.Publish(ann)
	})
	if !errors.Is(err, decode.ErrMissingSampleRate) {
		t.Fatalf("expected ErrMissingSampleRate, got %v", err)
	}
	if len(publisher.Annotations) != 0 {
		t.Errorf("expected no annotations, got %d", len(publisher.Annotations))
	}
}
