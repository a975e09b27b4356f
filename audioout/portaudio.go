package audioout

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"go.aimuz.me/scribe/player"
)

// FramesPerBuffer is the PortAudio callback size.
const FramesPerBuffer = 1024

// PortAudio plays through the default output device.
type PortAudio struct {
	mu       sync.Mutex
	stream   *portaudio.Stream
	channels int
	pull     player.PullFunc
	drained  func()
	running  bool

	ended  atomic.Bool
	volume *volume
}

// NewPortAudio creates an unopened PortAudio sink.
func NewPortAudio() *PortAudio {
	return &PortAudio{volume: newVolume()}
}

// Open initializes PortAudio and opens a callback stream for format.
func (p *PortAudio) Open(format player.Format, pull player.PullFunc, drained func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return errors.New("portaudio: stream already open")
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return fmt.Errorf("portaudio: invalid format %+v", format)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	p.channels = format.Channels
	p.pull = pull
	p.drained = drained
	p.ended.Store(false)

	stream, err := portaudio.OpenDefaultStream(
		0,               // input channels
		format.Channels, // output channels
		float64(format.SampleRate),
		FramesPerBuffer,
		p.callback,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open output stream: %w", err)
	}
	p.stream = stream
	return nil
}

func (p *PortAudio) callback(out []float32) {
	if p.ended.Load() {
		clear(out)
		return
	}

	frames := len(out) / p.channels
	n := p.pull(out)
	if n < frames {
		clear(out[n*p.channels:])
		p.ended.Store(true)
		go p.finish()
	}
	p.volume.apply(out[:n*p.channels])
}

// finish waits for queued audio to reach the speaker, then reports drain.
func (p *PortAudio) finish() {
	p.mu.Lock()
	stream, drained := p.stream, p.drained
	p.mu.Unlock()
	if stream == nil || drained == nil {
		return
	}

	time.Sleep(stream.Info().OutputLatency)
	drained()
}

func (p *PortAudio) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return errors.New("portaudio: stream not open")
	}
	p.ended.Store(false)
	if p.running {
		return nil
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	p.running = true
	return nil
}

// Pause halts output immediately, discarding queued buffers.
func (p *PortAudio) Pause() error {
	return p.halt()
}

func (p *PortAudio) Stop() error {
	return p.halt()
}

func (p *PortAudio) halt() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil || !p.running {
		return nil
	}
	p.running = false
	if err := p.stream.Abort(); err != nil {
		return fmt.Errorf("abort stream: %w", err)
	}
	return nil
}

func (p *PortAudio) SetVolume(v float64) { p.volume.Set(v) }
func (p *PortAudio) Volume() float64     { return p.volume.Get() }

// Close releases the stream and the PortAudio reference taken by Open.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	var errs []error
	if p.running {
		if err := p.stream.Abort(); err != nil {
			errs = append(errs, fmt.Errorf("abort stream: %w", err))
		}
		p.running = false
	}
	if err := p.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("portaudio terminate: %w", err))
	}

	p.stream = nil
	p.pull = nil
	p.drained = nil
	return errors.Join(errs...)
}
