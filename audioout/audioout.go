// Package audioout provides the audio output backends used by the player.
package audioout

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"go.aimuz.me/scribe/player"
)

// Backend names accepted by New.
const (
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// ErrUnknownBackend is returned by New for unrecognized backend names.
var ErrUnknownBackend = errors.New("unknown audio backend")

// New creates the sink for backend. An empty name selects PortAudio.
func New(backend string) (player.Sink, error) {
	switch backend {
	case "", BackendPortAudio:
		return NewPortAudio(), nil
	case BackendNull:
		return NewNull(0), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// volume is a float64 shared with the audio thread.
type volume struct {
	bits atomic.Uint64
}

func newVolume() *volume {
	v := &volume{}
	v.Set(1)
	return v
}

func (v *volume) Set(f float64) {
	v.bits.Store(math.Float64bits(player.ClampVolume(f)))
}

func (v *volume) Get() float64 {
	return math.Float64frombits(v.bits.Load())
}

// apply scales samples in place.
func (v *volume) apply(samples []float32) {
	g := float32(v.Get())
	if g == 1 {
		return
	}
	for i := range samples {
		samples[i] *= g
	}
}
