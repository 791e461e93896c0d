package source

import (
	"bufio"
	"fmt"
	"io"

	"github.com/kripton/syscontrol/internal/decode"
)

// LogicSource streams a raw logic capture: one byte per sample,
// nonzero meaning line-high. The sample rate is not part of the format
// and must be supplied by the caller. Unlike WAVSource, this source
// reads incrementally and never holds the capture in memory.
type LogicSource struct {
	r       *bufio.Reader
	c       io.Closer
	rate    float64
	pos     int64
	high    bool
	started bool
}

// NewLogicSource wraps r as a raw logic capture at the given rate. If
// r is also an io.Closer it will be closed by Close.
func NewLogicSource(r io.Reader, sampleRateHz float64) *LogicSource {
	s := &LogicSource{
		r:    bufio.NewReader(r),
		rate: sampleRateHz,
	}
	if c, ok := r.(io.Closer); ok {
		s.c = c
	}
	return s
}

// NextEdge scans forward until a level transition matching mask is
// found, returning io.EOF at the end of the capture.
func (s *LogicSource) NextEdge(mask decode.Polarity) (decode.Edge, error) {
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			return decode.Edge{}, io.EOF
		}
		if err != nil {
			return decode.Edge{}, fmt.Errorf("read sample: %w", err)
		}

		high := b != 0
		pos := s.pos
		s.pos++

		if !s.started {
			// The first sample sets the initial level; there is no
			// edge to report at position 0.
			s.started = true
			s.high = high
			continue
		}
		if high == s.high {
			continue
		}
		s.high = high

		pol := decode.Falling
		if high {
			pol = decode.Rising
		}
		if pol&mask != 0 {
			return decode.Edge{Pos: pos, Polarity: pol}, nil
		}
	}
}

// SampleRate returns the caller-supplied rate.
func (s *LogicSource) SampleRate() float64 {
	return s.rate
}

// Close closes the underlying reader, if it is closable.
func (s *LogicSource) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}
