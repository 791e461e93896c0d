package source

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"

	"github.com/kripton/syscontrol/internal/decode"
)

// WAVSource replays a WAV recording of the SYSTEM CONTROL DATA line.
// The file is scanned into edge events up front; captures of this
// protocol are at most a few seconds long.
type WAVSource struct {
	f     *os.File
	rate  float64
	edges []decode.Edge
	index int
}

// NewWAVSource opens path and scans the first channel into edges.
func NewWAVSource(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	src, err := NewWAVSourceFromReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.f = f
	return src, nil
}

// NewWAVSourceFromReader scans a WAV stream into edges. Only PCM with
// 8 or 16 bits per sample is supported.
func NewWAVSourceFromReader(r io.Reader) (*WAVSource, error) {
	// wav.NewReader needs a riff.RIFFReader (io.Reader + io.ReaderAt);
	// the whole stream is scanned anyway, so buffer it.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read wav stream: %w", err)
	}
	reader := wav.NewReader(bytes.NewReader(data))
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("read wav format: %w", err)
	}
	if format.AudioFormat != wav.AudioFormatPCM {
		return nil, fmt.Errorf("unsupported wav format %d (PCM only)", format.AudioFormat)
	}
	if format.BitsPerSample != 8 && format.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bits per sample %d", format.BitsPerSample)
	}

	// Hysteresis thresholds at 3/5 and 7/5 of the midpoint level, so
	// noise around the midpoint cannot produce spurious edges. 8-bit
	// WAV is unsigned, 16-bit is signed.
	mid := 1 << (format.BitsPerSample - 1)
	thLo := mid * 3 / 5
	thHi := mid * 7 / 5
	if format.BitsPerSample == 16 {
		thLo -= mid
		thHi -= mid
	}

	src := &WAVSource{rate: float64(format.SampleRate)}
	high := false
	pos := int64(0)
	for {
		samples, err := reader.ReadSamples(2048)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read wav samples: %w", err)
		}
		for _, s := range samples {
			v := reader.IntValue(s, 0) // first channel carries the DATA line
			switch {
			case !high && v > thHi:
				high = true
				src.edges = append(src.edges, decode.Edge{Pos: pos, Polarity: decode.Rising})
			case high && v < thLo:
				high = false
				src.edges = append(src.edges, decode.Edge{Pos: pos, Polarity: decode.Falling})
			}
			pos++
		}
	}
	return src, nil
}

// NextEdge returns the next scanned edge matching mask, or io.EOF once
// the capture is exhausted.
func (s *WAVSource) NextEdge(mask decode.Polarity) (decode.Edge, error) {
	for s.index < len(s.edges) {
		e := s.edges[s.index]
		s.index++
		if e.Polarity&mask != 0 {
			return e, nil
		}
	}
	return decode.Edge{}, io.EOF
}

// SampleRate returns the sample rate declared by the WAV header.
func (s *WAVSource) SampleRate() float64 {
	return s.rate
}

// EdgeCount returns the number of edges found in the capture.
func (s *WAVSource) EdgeCount() int {
	return len(s.edges)
}

// Close closes the underlying file, if any.
func (s *WAVSource) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
