// Package source provides edge-event sources for the decoder: offline
// WAV and raw logic captures, live GPIO capture on Linux, and a
// scripted fake for testing without capture files or hardware.
package source

import "github.com/kripton/syscontrol/internal/decode"

// Source is an edge source with a known sample rate and resource
// cleanup. All implementations deliver edges in strictly increasing
// sample order.
type Source interface {
	decode.EdgeSource

	// SampleRate returns the capture's sample rate in Hz.
	SampleRate() float64

	// Close releases the underlying capture resources.
	Close() error
}

// Default GPIO wiring for live capture of the SYSTEM CONTROL DATA line.
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 26
)
