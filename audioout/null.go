package audioout

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.aimuz.me/scribe/player"
)

// DefaultNullPeriod is the pull cadence of the null sink.
const DefaultNullPeriod = 20 * time.Millisecond

// Null discards audio at real-time pace. It honors the same pull and drain
// contract as a device backend, for headless runs and tests.
type Null struct {
	period time.Duration
	volume *volume

	mu      sync.Mutex
	format  player.Format
	pull    player.PullFunc
	drained func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewNull creates a null sink pulling every period. Zero uses
// DefaultNullPeriod.
func NewNull(period time.Duration) *Null {
	if period <= 0 {
		period = DefaultNullPeriod
	}
	return &Null{period: period, volume: newVolume()}
}

func (n *Null) Open(format player.Format, pull player.PullFunc, drained func()) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pull != nil {
		return errors.New("null sink: already open")
	}
	n.format, n.pull, n.drained = format, pull, drained
	return nil
}

func (n *Null) Play() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pull == nil {
		return errors.New("null sink: not open")
	}
	if n.done != nil {
		select {
		case <-n.done:
		default:
			return nil // already running
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.loop(ctx, n.pull, n.drained, n.done)
	return nil
}

func (n *Null) loop(ctx context.Context, pull player.PullFunc, drained func(), done chan struct{}) {
	defer close(done)

	frames := max(1, int(time.Duration(n.format.SampleRate)*n.period/time.Second))
	buf := make([]float32, frames*max(1, n.format.Channels))

	ticker := time.NewTicker(n.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			got := pull(buf)
			n.volume.apply(buf[:got*max(1, n.format.Channels)])
			if got < frames {
				if drained != nil {
					go drained()
				}
				return
			}
		}
	}
}

func (n *Null) Pause() error { return n.halt() }
func (n *Null) Stop() error  { return n.halt() }

func (n *Null) halt() error {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (n *Null) SetVolume(v float64) { n.volume.Set(v) }
func (n *Null) Volume() float64     { return n.volume.Get() }

func (n *Null) Close() error {
	err := n.halt()
	n.mu.Lock()
	n.pull, n.drained = nil, nil
	n.mu.Unlock()
	return err
}
