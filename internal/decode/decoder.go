package decode

import (
	"errors"
	"fmt"
	"io"
)

// Protocol timing in microseconds. The line idles high; a sustained
// high pulse marks a reset, and bit values are encoded in the duration
// of the low phase between consecutive falling edges. High phases
// between bits are a fixed 2ms and carry no information, so only
// falling edges are examined once a reset has been seen.
const (
	resetMinUs = 4000

	zeroMinUs = 3000
	zeroMaxUs = 5000

	oneMinUs = 6000
	oneMaxUs = 8000
)

// wordBits is the payload length following every reset.
const wordBits = 16

// ErrMissingSampleRate is returned by Run when decoding is started
// without a known sample rate.
var ErrMissingSampleRate = errors.New("decode: cannot decode without a sample rate")

// EdgeSource supplies edge events in strictly increasing sample order.
// The decoder is the only consumer and pulls one edge at a time.
type EdgeSource interface {
	// NextEdge blocks until the next edge whose polarity is in mask,
	// discarding edges that do not match. It returns io.EOF when the
	// capture is exhausted.
	NextEdge(mask Polarity) (Edge, error)
}

// Decoder is the edge-timing state machine. It alternates between
// hunting for a reset pulse and reading the 16 bits that follow it,
// for as long as the source keeps supplying edges.
type Decoder struct {
	samplePeriodUs float64

	st           state
	lastRising   int64
	lastFalling  int64
	commandStart int64
	wordStart    int64
	content      uint16
	numBits      int

	counts Counts
}

// NewDecoder creates a decoder for a capture recorded at the given
// sample rate. A rate <= 0 leaves the sample period unset and Run will
// fail with ErrMissingSampleRate.
func NewDecoder(sampleRateHz float64) *Decoder {
	d := &Decoder{
		st:           findReset,
		lastRising:   -1,
		lastFalling:  -1,
		commandStart: -1,
		wordStart:    -1,
	}
	if sampleRateHz > 0 {
		d.samplePeriodUs = 1e6 / sampleRateHz
	}
	return d
}

// SamplePeriodUs returns the duration of one sample in microseconds,
// or 0 if no sample rate was configured.
func (d *Decoder) SamplePeriodUs() float64 {
	return d.samplePeriodUs
}

// CountsSnapshot returns a copy of the session counters.
func (d *Decoder) CountsSnapshot() Counts {
	return d.counts
}

// Run consumes edges from src until it is exhausted, calling emit for
// every annotation produced. Source exhaustion (io.EOF) is clean
// termination, even mid-word; any other source error aborts the
// session. Run checks the sample rate before reading any edge.
func (d *Decoder) Run(src EdgeSource, emit func(Annotation)) error {
	if d.samplePeriodUs <= 0 {
		return ErrMissingSampleRate
	}

	for {
		mask := Falling
		if d.st == findReset {
			mask = Either
		}

		e, err := src.NextEdge(mask)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read edge: %w", err)
		}

		d.processEdge(e, emit)
	}
}

func (d *Decoder) processEdge(e Edge, emit func(Annotation)) {
	switch d.st {
	case findReset:
		d.huntReset(e, emit)
	case readingBits:
		d.readBit(e, emit)
	}
}

// huntReset waits for a falling edge that ends a high pulse longer
// than the reset threshold. Shorter pulses are idle jitter and are
// ignored; rising edges are only remembered.
func (d *Decoder) huntReset(e Edge, emit func(Annotation)) {
	if e.Polarity == Rising {
		d.lastRising = e.Pos
		return
	}

	d.lastFalling = e.Pos
	if d.lastRising < 0 {
		// No rising edge seen yet; the high-phase duration cannot be
		// measured, so no reset can be recognized here.
		return
	}

	timeHigh := float64(e.Pos-d.lastRising) * d.samplePeriodUs
	if timeHigh <= resetMinUs {
		return
	}

	emit(Annotation{StartSample: d.lastRising, EndSample: e.Pos, Level: LevelBit, Text: "RESET"})
	d.commandStart = d.lastRising
	d.wordStart = e.Pos
	d.content = 0
	d.numBits = 0
	d.counts.Resets++
	d.st = readingBits
}

// readBit classifies the low phase ending at the falling edge e.
// Durations outside both bit bands produce no bit, but the interval
// anchor still advances so the next measurement starts here.
func (d *Decoder) readBit(e Edge, emit func(Annotation)) {
	timeLow := float64(e.Pos-d.lastFalling) * d.samplePeriodUs

	switch {
	case timeLow > zeroMinUs && timeLow < zeroMaxUs:
		d.content <<= 1
		d.numBits++
		d.counts.ZeroBits++
		emit(Annotation{StartSample: d.lastFalling, EndSample: e.Pos, Level: LevelBit, Text: "0"})
	case timeLow > oneMinUs && timeLow < oneMaxUs:
		d.content = d.content<<1 | 1
		d.numBits++
		d.counts.OneBits++
		emit(Annotation{StartSample: d.lastFalling, EndSample: e.Pos, Level: LevelBit, Text: "1"})
	default:
		d.counts.Skipped++
	}
	d.lastFalling = e.Pos

	if d.numBits == wordBits {
		emit(Annotation{
			StartSample: d.wordStart,
			EndSample:   d.lastFalling,
			Level:       LevelWord,
			Text:        fmt.Sprintf("0x%04x", d.content),
		})
		emit(Annotation{
			StartSample: d.commandStart,
			EndSample:   d.lastFalling,
			Level:       LevelCommand,
			Text:        Describe(d.content),
		})
		d.counts.Words++
		// The accumulator is cleared by the next reset detection; no
		// word state survives a reset boundary.
		d.st = findReset
	}
}
