package source

import (
	"io"

	"github.com/kripton/syscontrol/internal/decode"
)

// FakeSource is a test double that replays scripted edges.
type FakeSource struct {
	// Edges are returned in order. Edges whose polarity is not in the
	// requested mask are skipped, as a real capture scan would skip
	// them.
	Edges []decode.Edge

	// Rate is the pretend sample rate returned by SampleRate.
	Rate float64

	// NextError, if set, will be returned by NextEdge.
	NextError error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeSource creates a FakeSource replaying the given edges at the
// given sample rate.
func NewFakeSource(rate float64, edges []decode.Edge) *FakeSource {
	return &FakeSource{Edges: edges, Rate: rate}
}

// NextEdge returns the next scripted edge matching mask, or io.EOF
// once the script is exhausted.
func (f *FakeSource) NextEdge(mask decode.Polarity) (decode.Edge, error) {
	if f.NextError != nil {
		return decode.Edge{}, f.NextError
	}
	for f.index < len(f.Edges) {
		e := f.Edges[f.index]
		f.index++
		if e.Polarity&mask != 0 {
			return e, nil
		}
	}
	return decode.Edge{}, io.EOF
}

// SampleRate returns the configured rate.
func (f *FakeSource) SampleRate() float64 {
	return f.Rate
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the source to the beginning of the script.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Closed = false
}
