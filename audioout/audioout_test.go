package audioout

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.aimuz.me/scribe/decode"
	"go.aimuz.me/scribe/player"
)

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendPortAudio, false},
		{BackendNull, false},
		{"alsa", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			sink, err := New(tt.backend)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBackend) {
					t.Errorf("New(%q) error = %v, want ErrUnknownBackend", tt.backend, err)
				}
				return
			}
			if err != nil || sink == nil {
				t.Errorf("New(%q) = %v, %v", tt.backend, sink, err)
			}
		})
	}
}

func TestNull_DrainsAfterShortPull(t *testing.T) {
	n := NewNull(2 * time.Millisecond)

	var (
		mu     sync.Mutex
		pulled int
	)
	const total = 50
	pull := func(out []float32) int {
		mu.Lock()
		defer mu.Unlock()
		k := min(len(out), total-pulled)
		pulled += k
		return k
	}

	drained := make(chan struct{})
	if err := n.Open(player.Format{SampleRate: 1000, Channels: 1}, pull, func() { close(drained) }); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer n.Close()

	if err := n.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("drained was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if pulled != total {
		t.Errorf("pulled %d frames, want %d", pulled, total)
	}
}

func TestNull_StopHaltsPulling(t *testing.T) {
	n := NewNull(time.Millisecond)

	var (
		mu    sync.Mutex
		calls int
	)
	pull := func(out []float32) int {
		mu.Lock()
		calls++
		mu.Unlock()
		return len(out)
	}
	if err := n.Open(player.Format{SampleRate: 1000, Channels: 2}, pull, nil); err != nil {
		t.Fatal(err)
	}
	defer n.Close()

	if err := n.Play(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := n.Stop(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != after {
		t.Errorf("pull called %d times after Stop", calls-after)
	}
}

func TestNull_Volume(t *testing.T) {
	n := NewNull(0)
	tests := []struct {
		in, want float64
	}{
		{0.5, 0.5},
		{-1, 0},
		{4, 1},
	}
	for _, tt := range tests {
		n.SetVolume(tt.in)
		if got := n.Volume(); got != tt.want {
			t.Errorf("SetVolume(%v): Volume() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNull_PlaysControllerToEnd(t *testing.T) {
	samples := make([]float32, 100)
	c, err := player.NewController(player.Options{
		Sink: NewNull(2 * time.Millisecond),
		Open: func(string) (player.Source, error) {
			return decode.NewPCM(samples, 1, 1000), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	stopped := make(chan struct{}, 1)
	c.OnPlaybackStopped(func() { stopped <- struct{}{} })

	if err := c.Load("mem"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("PlaybackStopped not emitted")
	}
	if c.State() != player.StateStopped || c.Position() != 0 {
		t.Errorf("after end: state=%v pos=%v", c.State(), c.Position())
	}
}
