package decode

import (
	"io"
	"sync"
	"time"
)

// PCM is an in-memory interleaved float32 source.
type PCM struct {
	mu       sync.Mutex
	samples  []float32
	channels int
	rate     int
	pos      int // frames
}

// NewPCM wraps interleaved samples. A trailing partial frame is ignored.
func NewPCM(samples []float32, channels, sampleRate int) *PCM {
	channels = max(1, channels)
	n := len(samples) / channels * channels
	return &PCM{
		samples:  samples[:n],
		channels: channels,
		rate:     max(1, sampleRate),
	}
}

// FromInt16 converts little-endian signed 16-bit PCM bytes to a PCM source.
func FromInt16(data []byte, channels, sampleRate int) *PCM {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return NewPCM(samples, channels, sampleRate)
}

func (p *PCM) frames() int { return len(p.samples) / p.channels }

func (p *PCM) ReadFrames(buf []float32, frames int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pos >= p.frames() {
		return 0, io.EOF
	}
	frames = min(frames, len(buf)/p.channels, p.frames()-p.pos)
	copy(buf, p.samples[p.pos*p.channels:(p.pos+frames)*p.channels])
	p.pos += frames
	return frames, nil
}

func (p *PCM) Channels() int   { return p.channels }
func (p *PCM) SampleRate() int { return p.rate }

func (p *PCM) Duration() time.Duration {
	return time.Duration(p.frames()) * time.Second / time.Duration(p.rate)
}

func (p *PCM) Seek(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := int(pos * time.Duration(p.rate) / time.Second)
	p.pos = min(max(0, frame), p.frames())
	return nil
}

func (p *PCM) Close() error { return nil }
