// Package decode contains the pure edge-timing state machine for the
// Kenwood SYSTEM CONTROL protocol. This package has NO external
// dependencies (no WAV parsing, MQTT, OS, or wall-clock time).
// All timing is derived from sample positions and the sample period.
package decode

// Polarity identifies the direction of an edge. Values are bit flags so
// a mask can request either direction at once.
type Polarity uint8

const (
	Rising  Polarity = 1 << iota // low-to-high transition
	Falling                      // high-to-low transition

	// Either matches both directions.
	Either = Rising | Falling
)

// String returns "rising", "falling", or "either".
func (p Polarity) String() string {
	switch p {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	case Either:
		return "either"
	}
	return "invalid"
}

// Edge is a single transition of the DATA line at an absolute sample
// position. Positions are strictly increasing within a capture.
type Edge struct {
	Pos      int64
	Polarity Polarity
}

// Level selects the annotation row an annotation belongs to: individual
// bits (including RESET marks), assembled 16-bit words, or decoded
// commands.
type Level int

const (
	LevelBit Level = iota
	LevelWord
	LevelCommand
)

// String returns "bit", "word", or "command".
func (l Level) String() string {
	switch l {
	case LevelBit:
		return "bit"
	case LevelWord:
		return "word"
	case LevelCommand:
		return "command"
	}
	return "invalid"
}

// Annotation is a decoded output record covering the sample range
// [StartSample, EndSample). Ownership passes to the consumer on
// emission; the decoder keeps no reference.
type Annotation struct {
	StartSample int64
	EndSample   int64
	Level       Level
	Text        string
}

// state of the decoding state machine.
type state int

const (
	// findReset scans for a high pulse longer than the reset threshold.
	findReset state = iota
	// readingBits classifies low-phase durations into bit values.
	readingBits
)

// Counts tracks what the decoder has produced since session start.
type Counts struct {
	Resets   int
	ZeroBits int
	OneBits  int
	// Skipped counts low-phase intervals that fell outside both bit
	// timing bands and produced no bit.
	Skipped int
	Words   int
}
