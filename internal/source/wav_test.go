package source

import (
	"bytes"
	"io"
	"testing"

	"github.com/youpy/go-wav"

	"github.com/kripton/syscontrol/internal/decode"
)

// buildWAV renders logic levels (one entry per sample, nonzero = high)
// as an 8-bit mono WAV at the given rate.
func buildWAV(t *testing.T, rate uint32, levels []byte) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(len(levels)), 1, rate, 8)
	samples := make([]wav.Sample, len(levels))
	for i, l := range levels {
		if l != 0 {
			samples[i].Values[0] = 255
		}
	}
	if err := writer.WriteSamples(samples); err != nil {
		t.Fatalf("write wav fixture: %v", err)
	}
	return &buf
}

// levels appends n samples of the given level.
func levels(dst []byte, level byte, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, level)
	}
	return dst
}

func TestWAVSourceScanEdges(t *testing.T) {
	var lv []byte
	lv = levels(lv, 0, 10)
	lv = levels(lv, 1, 50)
	lv = levels(lv, 0, 35)
	lv = levels(lv, 1, 20)
	lv = levels(lv, 0, 5)

	src, err := NewWAVSourceFromReader(buildWAV(t, 10000, lv))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	if src.SampleRate() != 10000 {
		t.Errorf("expected rate 10000 from the header, got %v", src.SampleRate())
	}
	if src.EdgeCount() != 4 {
		t.Fatalf("expected 4 edges, got %d", src.EdgeCount())
	}

	want := []decode.Edge{
		{Pos: 10, Polarity: decode.Rising},
		{Pos: 60, Polarity: decode.Falling},
		{Pos: 95, Polarity: decode.Rising},
		{Pos: 115, Polarity: decode.Falling},
	}
	for i, w := range want {
		e, err := src.NextEdge(decode.Either)
		if err != nil {
			t.Fatalf("edge %d: unexpected error: %v", i, err)
		}
		if e != w {
			t.Errorf("edge %d: expected %s at %d, got %s at %d",
				i, w.Polarity, w.Pos, e.Polarity, e.Pos)
		}
	}
	if _, err := src.NextEdge(decode.Either); err != io.EOF {
		t.Errorf("expected io.EOF after last edge, got %v", err)
	}
}

func TestWAVSourceMask(t *testing.T) {
	var lv []byte
	lv = levels(lv, 0, 10)
	lv = levels(lv, 1, 50)
	lv = levels(lv, 0, 35)
	lv = levels(lv, 1, 20)
	lv = levels(lv, 0, 5)

	src, err := NewWAVSourceFromReader(buildWAV(t, 10000, lv))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	e, err := src.NextEdge(decode.Falling)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Pos != 60 {
		t.Errorf("expected first falling edge at 60, got %d", e.Pos)
	}
}

// frameLevels renders a full frame for word at 10kHz: idle low, a
// 5000µs reset pulse, then per bit a low phase (2000µs for 0, 5000µs
// for 1) and a 2000µs high phase, so consecutive falling edges are
// 4000µs or 7000µs apart.
func frameLevels(word uint16) []byte {
	var lv []byte
	lv = levels(lv, 0, 10)
	lv = levels(lv, 1, 50)
	for i := 15; i >= 0; i-- {
		if word>>uint(i)&1 == 1 {
			lv = levels(lv, 0, 50)
		} else {
			lv = levels(lv, 0, 20)
		}
		lv = levels(lv, 1, 20)
	}
	return levels(lv, 0, 10)
}

func TestWAVSourceDecodesFullFrame(t *testing.T) {
	src, err := NewWAVSourceFromReader(buildWAV(t, 10000, frameLevels(0x8045)))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	d := decode.NewDecoder(src.SampleRate())
	var words, commands []string
	if err := d.Run(src, func(a decode.Annotation) {
		switch a.Level {
		case decode.LevelWord:
			words = append(words, a.Text)
		case decode.LevelCommand:
			commands = append(commands, a.Text)
		}
	}); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(words) != 1 || words[0] != "0x8045" {
		t.Errorf("expected one word 0x8045, got %v", words)
	}
	if len(commands) != 1 || commands[0] != "CD Play/Pause" {
		t.Errorf("expected command \"CD Play/Pause\", got %v", commands)
	}
}

func TestWAVSourceRejectsGarbage(t *testing.T) {
	if _, err := NewWAVSourceFromReader(bytes.NewReader([]byte("not a wav file"))); err == nil {
		t.Error("expected an error for a non-WAV stream")
	}
}
