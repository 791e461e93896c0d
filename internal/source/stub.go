//go:build !linux

package source

import (
	"errors"

	"github.com/kripton/syscontrol/internal/decode"
)

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns an error on non-Linux platforms.
func NewGPIOSource(chipName string, pin int, sampleRateHz float64) (*GPIOSource, error) {
	return nil, errors.New("source: gpio capture not supported on this platform (requires Linux)")
}

// NextEdge is not implemented on non-Linux platforms.
func (g *GPIOSource) NextEdge(mask decode.Polarity) (decode.Edge, error) {
	return decode.Edge{}, errors.New("source: gpio capture not supported")
}

// SampleRate is not implemented on non-Linux platforms.
func (g *GPIOSource) SampleRate() float64 {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (g *GPIOSource) Close() error {
	return nil
}
