//go:build linux

package source

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/kripton/syscontrol/internal/decode"
)

// GPIOSource captures edges of the DATA line live from a GPIO pin via
// the Linux GPIO character device. Kernel event timestamps are
// converted to sample positions at the configured rate, so the decoder
// sees the same position arithmetic as with an offline capture.
type GPIOSource struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	rate float64

	events chan decode.Edge

	mu      sync.Mutex
	started bool
	origin  time.Duration
	lastPos int64
	closed  bool
}

// NewGPIOSource requests the pin with both-edge detection. The rate
// only scales timestamps into sample positions; it does not need to
// match any hardware clock, but must be positive.
func NewGPIOSource(chipName string, pin int, sampleRateHz float64) (*GPIOSource, error) {
	if sampleRateHz <= 0 {
		return nil, fmt.Errorf("gpio capture needs a positive sample rate, got %v", sampleRateHz)
	}

	g := &GPIOSource{
		rate:    sampleRateHz,
		events:  make(chan decode.Edge, 256),
		lastPos: -1,
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(g.handleEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request data pin %d: %w", pin, err)
	}

	g.chip = chip
	g.line = line
	return g, nil
}

// handleEvent runs on the gpiocdev event goroutine. It must not block,
// so a full channel drops the event instead of stalling the kernel
// reader.
func (g *GPIOSource) handleEvent(ev gpiocdev.LineEvent) {
	pol := decode.Falling
	if ev.Type == gpiocdev.LineEventRisingEdge {
		pol = decode.Rising
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if !g.started {
		g.started = true
		g.origin = ev.Timestamp
	}
	pos := int64(float64(ev.Timestamp-g.origin) / float64(time.Second) * g.rate)
	if pos <= g.lastPos {
		// Two edges inside one sample period; positions must stay
		// strictly increasing for the decoder.
		pos = g.lastPos + 1
	}
	g.lastPos = pos
	g.mu.Unlock()

	select {
	case g.events <- decode.Edge{Pos: pos, Polarity: pol}:
	default:
	}
}

// NextEdge blocks until a matching edge arrives on the line. It
// returns io.EOF once the source has been closed, which is how a live
// session is ended.
func (g *GPIOSource) NextEdge(mask decode.Polarity) (decode.Edge, error) {
	for e := range g.events {
		if e.Polarity&mask != 0 {
			return e, nil
		}
	}
	return decode.Edge{}, io.EOF
}

// SampleRate returns the configured rate.
func (g *GPIOSource) SampleRate() float64 {
	return g.rate
}

// Close releases the line and chip and unblocks any pending NextEdge.
// The pin is left as input with pull-down, matching boot defaults.
func (g *GPIOSource) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	var errs []error
	if g.line != nil {
		if err := g.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure data pin: %w", err))
		}
		if err := g.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data pin: %w", err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	close(g.events)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
