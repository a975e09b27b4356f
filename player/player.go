// Package player drives varispeed playback of a single audio source into an
// audio output and reports a smooth playback position.
package player

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.aimuz.me/scribe/resample"
)

const (
	// MinSpeed is the slowest speed offered to users.
	MinSpeed = 0.5
	// MaxSpeed is the fastest speed offered to users.
	MaxSpeed = 2.0
	// DefaultPollInterval is the recommended position polling cadence.
	DefaultPollInterval = 100 * time.Millisecond
)

// ErrNotLoaded is returned by control calls made before a successful Load.
var ErrNotLoaded = errors.New("player: no audio loaded")

// State is the transport state of the controller.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Source is a seekable fixed-format PCM decoder.
type Source interface {
	resample.FrameReader
	SampleRate() int
	Duration() time.Duration
	Seek(pos time.Duration) error
	Close() error
}

// OpenFunc opens the audio file at path.
type OpenFunc func(path string) (Source, error)

// Format describes the PCM stream handed to a Sink.
type Format struct {
	SampleRate int
	Channels   int
}

// PullFunc fills out with interleaved frames and returns the number of frames
// written. Fewer frames than requested means the stream has ended.
type PullFunc func(out []float32) int

// Sink is the audio output capability. One implementation exists per
// backend and is chosen when the application is assembled.
type Sink interface {
	// Open prepares a stream for format. pull is called from the audio
	// thread; drained is called once, asynchronously, after pull has
	// reported a short read and the remaining audio has been played.
	Open(format Format, pull PullFunc, drained func()) error
	Play() error
	Pause() error
	Stop() error
	SetVolume(v float64)
	Volume() float64
	// Close releases the stream opened by Open. The sink may be opened again.
	Close() error
}

// LoadError reports a failure to open an audio source.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ClampSpeed limits factor to [MinSpeed, MaxSpeed]. NaN maps to 1.0.
func ClampSpeed(factor float64) float64 {
	if math.IsNaN(factor) {
		return 1
	}
	return min(max(factor, MinSpeed), MaxSpeed)
}

// ClampVolume limits v to [0, 1]. NaN maps to 1.
func ClampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return min(max(v, 0), 1)
}
