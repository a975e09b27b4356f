package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.aimuz.me/scribe/resample"
)

// Options configures a Controller.
type Options struct {
	Sink Sink
	Open OpenFunc
	// Now is the wall clock used for position estimates. Default: time.Now.
	Now func() time.Time
	// MinSpeed and MaxSpeed narrow the user speed range. Zero values use
	// the package defaults.
	MinSpeed float64
	MaxSpeed float64
	Volume   float64 // initial volume, 0 means 1
}

// Controller owns one loaded audio source and drives it through a Resampler
// into a Sink.
//
//	Stopped(unloaded) --Load--> Stopped --Play--> Playing --Pause--> Paused
//	Stop from any loaded state returns to Stopped at position 0.
//
// Control methods may be called from any goroutine. The sink pulls audio on
// its own thread.
type Controller struct {
	sink     Sink
	open     OpenFunc
	now      func() time.Time
	minSpeed float64
	maxSpeed float64

	mu     sync.Mutex
	state  State
	src    Source
	rs     *resample.Resampler
	path   string
	total  time.Duration
	pos    time.Duration // authoritative position
	speed  float64
	volume float64
	clock  *Clock

	ioMu    sync.Mutex // serializes source reads against seeks
	playing atomic.Bool
	gen     atomic.Uint64 // bumped whenever queued audio becomes stale
	endGen  atomic.Uint64 // gen+1 at the last short read, 0 if none

	listenerMu sync.RWMutex
	onPosition []func(pos time.Duration)
	onStopped  []func()
}

// NewController creates a Controller with nothing loaded.
func NewController(opts Options) (*Controller, error) {
	if opts.Sink == nil {
		return nil, errors.New("player: sink required")
	}
	if opts.Open == nil {
		return nil, errors.New("player: open func required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	minSpeed, maxSpeed := MinSpeed, MaxSpeed
	if opts.MinSpeed > 0 {
		minSpeed = max(resample.MinSpeed, opts.MinSpeed)
	}
	if opts.MaxSpeed > 0 {
		maxSpeed = min(resample.MaxSpeed, opts.MaxSpeed)
	}
	if minSpeed > maxSpeed {
		return nil, fmt.Errorf("player: invalid speed range [%v, %v]", minSpeed, maxSpeed)
	}

	volume := 1.0
	if opts.Volume > 0 {
		volume = ClampVolume(opts.Volume)
	}

	return &Controller{
		sink:     opts.Sink,
		open:     opts.Open,
		now:      opts.Now,
		minSpeed: minSpeed,
		maxSpeed: maxSpeed,
		speed:    1,
		volume:   volume,
		clock:    NewClock(opts.Now),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

// Load stops any current playback, releases the previous source and opens
// path. On failure the controller is left unloaded and a *LoadError is
// returned.
func (c *Controller) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()

	src, err := c.open(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}

	rs := resample.New(src)
	rs.SetSpeed(c.speed)

	format := Format{SampleRate: src.SampleRate(), Channels: rs.Channels()}
	if err := c.sink.Open(format, c.newPull(rs), c.handleDrained); err != nil {
		_ = src.Close()
		return &LoadError{Path: path, Err: fmt.Errorf("open output: %w", err)}
	}
	c.sink.SetVolume(c.volume)

	c.src = src
	c.rs = rs
	c.path = path
	c.total = max(0, src.Duration())
	c.pos = 0
	c.state = StateStopped
	c.clock = NewClock(c.now)
	c.clock.SetLimit(c.total)
	c.endGen.Store(0)

	slog.Info("audio loaded", "path", path, "duration", c.total,
		"sampleRate", format.SampleRate, "channels", format.Channels)
	return nil
}

// Close stops playback and releases the source and output stream.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

func (c *Controller) releaseLocked() error {
	if c.src == nil {
		return nil
	}

	c.stopLocked()

	var errs []error
	if err := c.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	if err := c.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}

	c.src = nil
	c.rs = nil
	c.path = ""
	c.total = 0
	c.pos = 0
	c.clock = NewClock(c.now)
	return errors.Join(errs...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────────────────

// Play starts or resumes playback from the current position. Playing from
// the very end restarts from the beginning.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src == nil {
		return ErrNotLoaded
	}
	if c.state == StatePlaying {
		return nil
	}

	if c.total > 0 && c.pos >= c.total {
		c.pos = 0
		c.repositionLocked(0)
	}

	c.gen.Add(1)
	c.clock.Start(c.pos, c.speed)
	c.playing.Store(true)

	if err := c.sink.Play(); err != nil {
		c.playing.Store(false)
		c.clock.Stop()
		c.clock.Set(c.pos)
		return fmt.Errorf("start output: %w", err)
	}
	c.state = StatePlaying
	return nil
}

// Pause halts playback. The clock estimate becomes the authoritative
// position so that Play resumes where the listener heard it, not where the
// device buffer ended.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src == nil {
		return ErrNotLoaded
	}
	if c.state != StatePlaying {
		return nil
	}

	c.pos = c.clock.Stop()
	c.playing.Store(false)
	c.gen.Add(1)

	err := c.sink.Pause()
	c.repositionLocked(c.pos)
	c.state = StatePaused
	if err != nil {
		return fmt.Errorf("pause output: %w", err)
	}
	return nil
}

// TogglePlayPause pauses when playing and plays otherwise.
func (c *Controller) TogglePlayPause() error {
	if c.State() == StatePlaying {
		return c.Pause()
	}
	return c.Play()
}

// Stop halts playback and rewinds to the start. Stop on an unloaded
// controller is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src == nil {
		return nil
	}
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	c.playing.Store(false)
	c.gen.Add(1)
	c.clock.Stop()
	c.clock.Set(0)

	err := c.sink.Stop()
	c.pos = 0
	c.repositionLocked(0)
	c.state = StateStopped
	if err != nil {
		return fmt.Errorf("stop output: %w", err)
	}
	return nil
}

// Seek moves to pos, clamped to [0, Duration]. A following Position call
// observes pos.
func (c *Controller) Seek(pos time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src == nil {
		return ErrNotLoaded
	}
	c.seekLocked(pos)
	return nil
}

// SeekRelative moves by delta from the current position.
func (c *Controller) SeekRelative(delta time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src == nil {
		return ErrNotLoaded
	}
	c.seekLocked(c.clock.Position() + delta)
	return nil
}

func (c *Controller) seekLocked(pos time.Duration) {
	pos = min(max(pos, 0), c.total)

	c.gen.Add(1)
	c.pos = pos
	c.repositionLocked(pos)
	if c.state == StatePlaying {
		c.clock.Start(pos, c.speed)
	} else {
		c.clock.Set(pos)
	}
}

// repositionLocked moves the source to pos and drops buffered audio.
func (c *Controller) repositionLocked(pos time.Duration) {
	c.ioMu.Lock()
	defer c.ioMu.Unlock()

	if err := c.src.Seek(pos); err != nil {
		slog.Warn("seek source", "path", c.path, "position", pos, "error", err)
	}
	c.rs.Reset()
}

// ─────────────────────────────────────────────────────────────────────────────
// Speed and volume
// ─────────────────────────────────────────────────────────────────────────────

// SetSpeed sets the playback rate, clamped to the user speed range. While
// playing the clock is re-anchored so the rate change causes no jump.
func (c *Controller) SetSpeed(factor float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if math.IsNaN(factor) {
		factor = 1
	}
	c.speed = min(max(factor, c.minSpeed), c.maxSpeed)
	if c.rs != nil {
		c.rs.SetSpeed(c.speed)
	}
	if c.state == StatePlaying {
		c.pos = c.clock.Position()
		c.clock.Start(c.pos, c.speed)
	}
}

// Speed returns the current playback rate.
func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SpeedRange returns the user speed bounds.
func (c *Controller) SpeedRange() (lo, hi float64) {
	return c.minSpeed, c.maxSpeed
}

// SetVolume sets the output volume, clamped to [0, 1].
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = ClampVolume(v)
	c.sink.SetVolume(c.volume)
}

// Volume returns the output volume.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// Position returns the current playback position within [0, Duration].
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Position()
}

// Duration returns the total length of the loaded source.
func (c *Controller) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// State returns the transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Loaded reports whether a source is loaded.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src != nil
}

// Path returns the path of the loaded source, or "".
func (c *Controller) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// ─────────────────────────────────────────────────────────────────────────────
// Events
// ─────────────────────────────────────────────────────────────────────────────

// OnPositionChanged registers a callback invoked on every Poll.
func (c *Controller) OnPositionChanged(fn func(pos time.Duration)) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.onPosition = append(c.onPosition, fn)
}

// OnPlaybackStopped registers a callback invoked when the source is
// exhausted during playback.
func (c *Controller) OnPlaybackStopped(fn func()) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	c.onStopped = append(c.onStopped, fn)
}

// Poll samples the position and notifies PositionChanged listeners.
func (c *Controller) Poll() time.Duration {
	pos := c.Position()

	c.listenerMu.RLock()
	callbacks := c.onPosition
	c.listenerMu.RUnlock()

	for _, cb := range callbacks {
		cb(pos)
	}
	return pos
}

// Watch polls every interval until ctx is done.
func (c *Controller) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Poll()
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Audio thread
// ─────────────────────────────────────────────────────────────────────────────

func (c *Controller) newPull(rs *resample.Resampler) PullFunc {
	ch := rs.Channels()
	return func(out []float32) int {
		frames := len(out) / ch
		if !c.playing.Load() {
			clear(out)
			return frames
		}

		gen := c.gen.Load()
		c.ioMu.Lock()
		n, err := rs.Read(out)
		c.ioMu.Unlock()
		if err != nil {
			slog.Warn("read audio", "error", err)
		}

		if n < frames {
			clear(out[n*ch:])
			c.endGen.Store(gen + 1)
		}
		return n
	}
}

// handleDrained runs after the sink has played out a short read.
func (c *Controller) handleDrained() {
	c.mu.Lock()
	if c.src == nil || c.state != StatePlaying {
		c.mu.Unlock()
		return
	}

	if c.endGen.Load() != c.gen.Load()+1 {
		// A seek happened after the short read; keep going.
		if err := c.sink.Play(); err != nil {
			slog.Warn("restart output", "error", err)
		}
		c.mu.Unlock()
		return
	}

	c.endGen.Store(0)
	if err := c.stopLocked(); err != nil {
		slog.Warn("stop at end of stream", "error", err)
	}
	c.mu.Unlock()

	slog.Debug("playback reached end of stream")

	c.listenerMu.RLock()
	callbacks := c.onStopped
	c.listenerMu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}
