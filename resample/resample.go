// Package resample provides varispeed playback of interleaved PCM streams
// using linear interpolation between adjacent source frames.
//
// Changing the speed changes the pitch, like a tape machine. No attempt is
// made to preserve pitch.
package resample

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
)

const (
	// MinSpeed is the slowest supported rate.
	MinSpeed = 0.25
	// MaxSpeed is the fastest supported rate.
	MaxSpeed = 4.0
	// ChunkFrames is the size of the working buffer in frames.
	ChunkFrames = 4096
)

// FrameReader is a pull-based source of interleaved float32 frames.
type FrameReader interface {
	// ReadFrames fills buf with up to frames frames and returns the number
	// of frames written. io.EOF or (0, nil) signals the end of the stream.
	ReadFrames(buf []float32, frames int) (int, error)
	// Channels returns the number of interleaved channels per frame.
	Channels() int
}

// Resampler reads from a FrameReader at an adjustable speed.
// Read may run on an audio thread while Reset and SetSpeed are called from
// a control thread.
type Resampler struct {
	src      FrameReader
	channels int

	speed atomic.Uint64 // math.Float64bits

	mu       sync.Mutex
	buf      []float32
	buffered int     // frames held in buf
	pos      float64 // fractional read cursor relative to buf[0]
}

// New creates a Resampler reading from src at speed 1.0.
func New(src FrameReader) *Resampler {
	ch := src.Channels()
	if ch < 1 {
		ch = 1
	}
	r := &Resampler{
		src:      src,
		channels: ch,
		buf:      make([]float32, ChunkFrames*ch),
	}
	r.speed.Store(math.Float64bits(1.0))
	return r
}

// Channels returns the interleaved channel count of the output.
func (r *Resampler) Channels() int {
	return r.channels
}

// SetSpeed sets the playback rate, clamped to [MinSpeed, MaxSpeed].
// It takes effect on the next Read.
func (r *Resampler) SetSpeed(factor float64) {
	r.speed.Store(math.Float64bits(ClampSpeed(factor)))
}

// Speed returns the current playback rate.
func (r *Resampler) Speed() float64 {
	return math.Float64frombits(r.speed.Load())
}

// ClampSpeed limits factor to [MinSpeed, MaxSpeed]. NaN maps to 1.0.
func ClampSpeed(factor float64) float64 {
	switch {
	case math.IsNaN(factor):
		return 1.0
	case factor < MinSpeed:
		return MinSpeed
	case factor > MaxSpeed:
		return MaxSpeed
	}
	return factor
}

// Reset drops all buffered frames and rewinds the read cursor.
// Call it whenever the underlying source is repositioned.
func (r *Resampler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffered = 0
	r.pos = 0
}

// Read fills out with len(out)/Channels() frames and returns the number of
// frames written. A short count with a nil error means the source is
// exhausted. Errors other than io.EOF from the source are returned together
// with the frames written before the failure.
func (r *Resampler) Read(out []float32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.channels
	want := len(out) / ch
	speed := r.Speed()

	eof := false
	for n := 0; n < want; n++ {
		idx := int(r.pos)
		for idx+1 >= r.buffered && !eof {
			var err error
			eof, err = r.fill(idx)
			if err != nil {
				return n, err
			}
			idx = int(r.pos)
		}
		if idx+1 >= r.buffered {
			if idx >= r.buffered {
				return n, nil
			}
			// Last frame of the stream has no right neighbour.
			copy(out[n*ch:(n+1)*ch], r.buf[idx*ch:(idx+1)*ch])
			r.pos += speed
			continue
		}

		frac := float32(r.pos - float64(idx))
		a := r.buf[idx*ch : (idx+1)*ch]
		b := r.buf[(idx+1)*ch : (idx+2)*ch]
		dst := out[n*ch : (n+1)*ch]
		for c := range dst {
			dst[c] = a[c] + (b[c]-a[c])*frac
		}
		r.pos += speed
	}
	return want, nil
}

// fill discards frames before idx, shifts the retained tail to the start of
// the buffer and pulls more frames from the source. It reports eof when the
// source produced nothing.
func (r *Resampler) fill(idx int) (eof bool, err error) {
	ch := r.channels

	if idx > 0 {
		drop := min(idx, r.buffered)
		copy(r.buf, r.buf[drop*ch:r.buffered*ch])
		r.buffered -= drop
		r.pos -= float64(drop)
	}

	// The cursor may sit past the buffered frames after a large step.
	for skip := int(r.pos); skip > 0; skip = int(r.pos) {
		n, err := r.discard(skip)
		r.pos -= float64(n)
		if err != nil || n == 0 {
			return true, err
		}
	}

	room := len(r.buf)/ch - r.buffered
	if room == 0 {
		return false, nil
	}

	n, err := r.src.ReadFrames(r.buf[r.buffered*ch:], room)
	n = max(0, min(n, room))
	r.buffered += n
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return n == 0, nil
}

// discard reads and drops up to frames frames from the source.
// It is only used when the buffer is empty.
func (r *Resampler) discard(frames int) (int, error) {
	ch := r.channels
	limit := len(r.buf) / ch
	total := 0
	for total < frames {
		want := min(frames-total, limit)
		n, err := r.src.ReadFrames(r.buf[:want*ch], want)
		total += max(0, n)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
