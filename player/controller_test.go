package player

import (
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"
)

func TestController_LoadFailure(t *testing.T) {
	sink := &fakeSink{}
	openErr := errors.New("bad header")
	c, err := NewController(Options{
		Sink: sink,
		Open: func(string) (Source, error) { return nil, openErr },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	err = c.Load("broken.wav")
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("Load error = %v, want *LoadError", err)
	}
	if le.Path != "broken.wav" || !errors.Is(err, openErr) {
		t.Errorf("LoadError = %+v", le)
	}
	if c.Loaded() {
		t.Error("controller should stay unloaded")
	}
	if err := c.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Play() = %v, want ErrNotLoaded", err)
	}
	if err := c.Seek(time.Second); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Seek() = %v, want ErrNotLoaded", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() on unloaded = %v, want nil", err)
	}
}

func TestController_ZeroLengthSource(t *testing.T) {
	c, _, fc := newTestController(t, 0)

	if got := c.Duration(); got != 0 {
		t.Fatalf("Duration() = %v, want 0", got)
	}
	mustPlay(t, c)
	fc.Advance(time.Second)

	if got := c.Poll(); got != 0 {
		t.Errorf("Poll() = %v, outside [0, 0s]", got)
	}
	if got := c.Position(); got != 0 {
		t.Errorf("Position() = %v, want 0", got)
	}
	if err := c.Seek(time.Second); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if got := c.Position(); got != 0 {
		t.Errorf("Position() after Seek = %v, want 0", got)
	}
}

func TestController_SpeedNaN(t *testing.T) {
	c, _, _ := newTestController(t, time.Second)

	c.SetSpeed(1.5)
	c.SetSpeed(math.NaN())
	if got := c.Speed(); got != 1 {
		t.Errorf("Speed() after NaN = %v, want 1", got)
	}
	if got := ClampSpeed(math.NaN()); got != 1 {
		t.Errorf("ClampSpeed(NaN) = %v, want 1", got)
	}
	if got := ClampVolume(math.NaN()); got != 1 {
		t.Errorf("ClampVolume(NaN) = %v, want 1", got)
	}
}

func TestController_LoadReplacesSource(t *testing.T) {
	c, sink, fc := newTestController(t, 2*time.Second)
	first := c.Path()

	mustPlay(t, c)
	fc.Advance(300 * time.Millisecond)

	if err := c.Load("second.wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Path() == first {
		t.Error("path not replaced")
	}
	if c.State() != StateStopped || c.Position() != 0 {
		t.Errorf("after reload: state=%v pos=%v", c.State(), c.Position())
	}
	if sink.closed != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closed)
	}
}

func TestController_SeekRoundTrip(t *testing.T) {
	c, _, fc := newTestController(t, 5*time.Second)

	tests := []struct {
		name string
		seek time.Duration
		want time.Duration
	}{
		{"middle", 1500 * time.Millisecond, 1500 * time.Millisecond},
		{"start", 0, 0},
		{"negative", -time.Second, 0},
		{"past end", time.Minute, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Seek(tt.seek); err != nil {
				t.Fatalf("Seek: %v", err)
			}
			if got := c.Position(); got != tt.want {
				t.Errorf("Position() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("while playing", func(t *testing.T) {
		mustPlay(t, c)
		fc.Advance(700 * time.Millisecond)
		if err := c.Seek(2 * time.Second); err != nil {
			t.Fatalf("Seek: %v", err)
		}
		if got := c.Position(); got != 2*time.Second {
			t.Errorf("Position() = %v, want 2s", got)
		}
		if c.State() != StatePlaying {
			t.Errorf("state = %v, want playing", c.State())
		}
	})
}

func TestController_PauseResumeContinuity(t *testing.T) {
	c, sink, fc := newTestController(t, 5*time.Second)
	src := sink.source

	mustPlay(t, c)
	fc.Advance(300 * time.Millisecond)

	if err := c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := c.Position(); got != 300*time.Millisecond {
		t.Errorf("Position() after pause = %v, want 300ms", got)
	}
	if got := src.lastSeek(); got != 300*time.Millisecond {
		t.Errorf("source repositioned to %v, want 300ms", got)
	}

	fc.Advance(time.Second)
	if got := c.Position(); got != 300*time.Millisecond {
		t.Errorf("Position() while paused = %v, want 300ms", got)
	}

	mustPlay(t, c)
	fc.Advance(200 * time.Millisecond)
	if got := c.Position(); got != 500*time.Millisecond {
		t.Errorf("Position() after resume = %v, want 500ms", got)
	}
}

func TestController_TogglePlayPause(t *testing.T) {
	c, _, _ := newTestController(t, time.Second)

	if err := c.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StatePlaying {
		t.Errorf("state = %v, want playing", c.State())
	}
	if err := c.TogglePlayPause(); err != nil {
		t.Fatal(err)
	}
	if c.State() != StatePaused {
		t.Errorf("state = %v, want paused", c.State())
	}
}

func TestController_StopRewinds(t *testing.T) {
	c, sink, fc := newTestController(t, 5*time.Second)

	mustPlay(t, c)
	fc.Advance(time.Second)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != StateStopped || c.Position() != 0 {
		t.Errorf("after stop: state=%v pos=%v", c.State(), c.Position())
	}
	if sink.isPlaying() {
		t.Error("sink still playing")
	}
}

func TestController_Speed(t *testing.T) {
	c, _, fc := newTestController(t, 10*time.Second)

	tests := []struct {
		in, want float64
	}{
		{1.5, 1.5},
		{10, MaxSpeed},
		{0.1, MinSpeed},
		{0, MinSpeed},
	}
	for _, tt := range tests {
		c.SetSpeed(tt.in)
		if got := c.Speed(); got != tt.want {
			t.Errorf("SetSpeed(%v): Speed() = %v, want %v", tt.in, got, tt.want)
		}
	}

	c.SetSpeed(2)
	mustPlay(t, c)
	fc.Advance(500 * time.Millisecond)
	if got := c.Position(); got != time.Second {
		t.Errorf("Position() at 2x = %v, want 1s", got)
	}

	c.SetSpeed(0.5)
	if got := c.Position(); got != time.Second {
		t.Errorf("Position() jumped on speed change: %v", got)
	}
	fc.Advance(time.Second)
	if got := c.Position(); got != 1500*time.Millisecond {
		t.Errorf("Position() at 0.5x = %v, want 1.5s", got)
	}
}

func TestController_Volume(t *testing.T) {
	sink := &fakeSink{}
	c, err := NewController(Options{Sink: sink, Open: openFake(time.Second, sink)})
	if err != nil {
		t.Fatal(err)
	}

	c.SetVolume(0.4)
	if c.Volume() != 0.4 {
		t.Errorf("Volume() = %v, want 0.4", c.Volume())
	}
	c.SetVolume(3)
	if c.Volume() != 1 {
		t.Errorf("Volume() = %v, want 1", c.Volume())
	}
	c.SetVolume(0.25)

	if err := c.Load("a.wav"); err != nil {
		t.Fatal(err)
	}
	if sink.Volume() != 0.25 {
		t.Errorf("sink volume = %v, want 0.25 applied on load", sink.Volume())
	}
}

func TestController_PollMonotonic(t *testing.T) {
	c, _, fc := newTestController(t, time.Second)

	var (
		mu   sync.Mutex
		seen []time.Duration
	)
	c.OnPositionChanged(func(pos time.Duration) {
		mu.Lock()
		seen = append(seen, pos)
		mu.Unlock()
	})

	mustPlay(t, c)
	for range 15 {
		c.Poll()
		fc.Advance(100 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 15 {
		t.Fatalf("got %d notifications, want 15", len(seen))
	}
	for i, pos := range seen {
		if pos < 0 || pos > time.Second {
			t.Errorf("seen[%d] = %v outside [0, 1s]", i, pos)
		}
		if i > 0 && pos < seen[i-1] {
			t.Errorf("position went backwards: %v -> %v", seen[i-1], pos)
		}
	}
}

func TestController_EndOfStream(t *testing.T) {
	c, sink, _ := newTestController(t, time.Second)

	var stopped int
	c.OnPlaybackStopped(func() { stopped++ })

	mustPlay(t, c)
	if n := sink.pump(600); n != 600 {
		t.Fatalf("first pump = %d, want 600", n)
	}
	if n := sink.pump(600); n != 400 {
		t.Fatalf("second pump = %d, want 400", n)
	}

	if stopped != 1 {
		t.Errorf("PlaybackStopped fired %d times, want 1", stopped)
	}
	if c.State() != StateStopped || c.Position() != 0 {
		t.Errorf("after end: state=%v pos=%v", c.State(), c.Position())
	}
}

func TestController_SeekBeforeDrainKeepsPlaying(t *testing.T) {
	c, sink, _ := newTestController(t, time.Second)

	var stopped int
	c.OnPlaybackStopped(func() { stopped++ })

	mustPlay(t, c)
	sink.drainAsync = true
	if n := sink.pump(2000); n != 1000 {
		t.Fatalf("pump = %d, want 1000", n)
	}

	if err := c.Seek(200 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	plays := sink.playCount()
	sink.fireDrained()

	if stopped != 0 {
		t.Error("stale drain must not stop playback")
	}
	if c.State() != StatePlaying {
		t.Errorf("state = %v, want playing", c.State())
	}
	if sink.playCount() != plays+1 {
		t.Error("sink should be restarted after a stale drain")
	}
}

func TestController_SilenceWhilePaused(t *testing.T) {
	c, sink, _ := newTestController(t, time.Second)
	src := sink.source

	mustPlay(t, c)
	sink.pump(100)
	if err := c.Pause(); err != nil {
		t.Fatal(err)
	}
	readsBefore := src.reads()

	buf := sink.pullRaw(50)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("buf[%d] = %v, want silence", i, v)
		}
	}
	if src.reads() != readsBefore {
		t.Error("source read while paused")
	}
}

func TestController_PlayAtEndRestarts(t *testing.T) {
	c, _, _ := newTestController(t, time.Second)
	if err := c.Seek(time.Second); err != nil {
		t.Fatal(err)
	}
	mustPlay(t, c)
	if got := c.Position(); got != 0 {
		t.Errorf("Position() = %v, want restart from 0", got)
	}
}

// Helper functions

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

const fakeRate = 1000

// fakeSource is a mono ramp at fakeRate frames per second.
type fakeSource struct {
	mu      sync.Mutex
	samples []float32
	pos     int
	seeks   []time.Duration
	nreads  int
}

func newFakeSource(d time.Duration) *fakeSource {
	n := int(d * fakeRate / time.Second)
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i + 1)
	}
	return &fakeSource{samples: s}
}

func (s *fakeSource) ReadFrames(buf []float32, frames int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nreads++
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf[:frames], s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *fakeSource) Channels() int   { return 1 }
func (s *fakeSource) SampleRate() int { return fakeRate }
func (s *fakeSource) Close() error    { return nil }

func (s *fakeSource) Duration() time.Duration {
	return time.Duration(len(s.samples)) * time.Second / fakeRate
}

func (s *fakeSource) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, pos)
	s.pos = min(max(0, int(pos*fakeRate/time.Second)), len(s.samples))
	return nil
}

func (s *fakeSource) lastSeek() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seeks) == 0 {
		return -1
	}
	return s.seeks[len(s.seeks)-1]
}

func (s *fakeSource) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nreads
}

type fakeSink struct {
	mu         sync.Mutex
	format     Format
	pull       PullFunc
	drained    func()
	playing    bool
	plays      int
	volume     float64
	closed     int
	source     *fakeSource
	drainAsync bool // hold drained until fireDrained
	pending    bool
}

func (s *fakeSink) Open(format Format, pull PullFunc, drained func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format, s.pull, s.drained = format, pull, drained
	return nil
}

func (s *fakeSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	s.plays++
	return nil
}

func (s *fakeSink) Pause() error { return s.halt() }
func (s *fakeSink) Stop() error  { return s.halt() }

func (s *fakeSink) halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *fakeSink) SetVolume(v float64) {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

func (s *fakeSink) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.pull, s.drained = nil, nil
	return nil
}

func (s *fakeSink) isPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSink) playCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

func (s *fakeSink) pullRaw(frames int) []float32 {
	s.mu.Lock()
	pull, ch := s.pull, s.format.Channels
	s.mu.Unlock()
	buf := make([]float32, frames*ch)
	for i := range buf {
		buf[i] = -1
	}
	pull(buf)
	return buf
}

// pump simulates one audio callback and the drain that follows a short read.
func (s *fakeSink) pump(frames int) int {
	s.mu.Lock()
	pull, ch := s.pull, s.format.Channels
	s.mu.Unlock()

	n := pull(make([]float32, frames*ch))
	if n < frames {
		s.mu.Lock()
		s.playing = false
		async := s.drainAsync
		s.pending = async
		drained := s.drained
		s.mu.Unlock()
		if !async {
			drained()
		}
	}
	return n
}

func (s *fakeSink) fireDrained() {
	s.mu.Lock()
	drained, pending := s.drained, s.pending
	s.pending = false
	s.mu.Unlock()
	if pending {
		drained()
	}
}

func openFake(d time.Duration, sink *fakeSink) OpenFunc {
	return func(string) (Source, error) {
		src := newFakeSource(d)
		sink.source = src
		return src, nil
	}
}

func newTestController(t *testing.T, d time.Duration) (*Controller, *fakeSink, *fakeClock) {
	t.Helper()
	fc := newFakeClock()
	sink := &fakeSink{}
	c, err := NewController(Options{
		Sink: sink,
		Open: openFake(d, sink),
		Now:  fc.Now,
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := c.Load("test.wav"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, sink, fc
}

func mustPlay(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
}
