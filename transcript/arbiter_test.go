package transcript

import (
	"testing"
	"time"
)

func testSegments() []Segment {
	return []Segment{
		{Text: "zero", Start: 0, End: 2 * time.Second},
		{Text: "one", Start: 2 * time.Second, End: 4 * time.Second},
		{Text: "two", Start: 4 * time.Second, End: 6 * time.Second},
		{Text: "three", Start: 7 * time.Second, End: 9 * time.Second},
	}
}

func TestArbiter_DoubleClick(t *testing.T) {
	tests := []struct {
		name       string
		second     time.Duration
		wantAction Action
	}{
		{"within threshold", 300 * time.Millisecond, ActionSeekAndPlay},
		{"just under threshold", 399 * time.Millisecond, ActionSeekAndPlay},
		{"at threshold", 400 * time.Millisecond, ActionSeekAndPlay},
		{"just over threshold", 401 * time.Millisecond, ActionSeek},
		{"slow second click", 900 * time.Millisecond, ActionSeek},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArbiter(ArbiterConfig{})
			segs := testSegments()
			t0 := time.Now()

			first := a.Click(2, segs, t0)
			if first.Action != ActionSeek {
				t.Fatalf("first click action = %v, want seek", first.Action)
			}

			second := a.Click(2, segs, t0.Add(tt.second))
			if second.Action != tt.wantAction {
				t.Errorf("second click action = %v, want %v", second.Action, tt.wantAction)
			}
			if want := 4*time.Second + time.Millisecond; second.Position != want {
				t.Errorf("Position = %v, want %v", second.Position, want)
			}

			st := a.State()
			if st.Selected != 2 {
				t.Errorf("Selected = %d, want 2", st.Selected)
			}
			if tt.wantAction == ActionSeekAndPlay && st.Highlighted != 2 {
				t.Errorf("Highlighted = %d, want 2 after double-click", st.Highlighted)
			}
		})
	}
}

func TestArbiter_ClicksOnDifferentIndexesAreSingles(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	segs := testSegments()
	t0 := time.Now()

	a.Click(1, segs, t0)
	cmd := a.Click(2, segs, t0.Add(100*time.Millisecond))
	if cmd.Action != ActionSeek {
		t.Errorf("action = %v, want seek", cmd.Action)
	}
}

func TestArbiter_TripleClickFiresOnce(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	segs := testSegments()
	t0 := time.Now()

	var plays int
	for i := range 3 {
		cmd := a.Click(1, segs, t0.Add(time.Duration(i)*100*time.Millisecond))
		if cmd.Action == ActionSeekAndPlay {
			plays++
		}
	}
	if plays != 1 {
		t.Errorf("seek+play fired %d times, want 1", plays)
	}
}

func TestArbiter_LockSuppression(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	segs := testSegments()
	t0 := time.Now()

	a.AutomaticUpdate(0, t0.Add(-time.Second))
	a.Click(2, segs, t0)

	if a.AutomaticUpdate(1, t0.Add(200*time.Millisecond)) {
		t.Error("update during lock should be suppressed")
	}
	if got := a.State().Highlighted; got != 0 {
		t.Errorf("Highlighted = %d, want unchanged 0", got)
	}

	// The locked index itself is accepted.
	if !a.AutomaticUpdate(2, t0.Add(300*time.Millisecond)) {
		t.Error("update to locked index should apply")
	}

	if !a.AutomaticUpdate(3, t0.Add(600*time.Millisecond)) {
		t.Error("update after lock expiry should apply")
	}
	if got := a.State().Highlighted; got != 3 {
		t.Errorf("Highlighted = %d, want 3", got)
	}
}

func TestArbiter_NoHighlight(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	now := time.Now()

	a.AutomaticUpdate(1, now)
	if !a.AutomaticUpdate(Locate(0, nil), now) {
		t.Fatal("update to -1 should apply")
	}
	if got := a.State().Highlighted; got != -1 {
		t.Errorf("Highlighted = %d, want -1", got)
	}

	if cmd := a.Click(-1, nil, now); cmd.Action != ActionNone {
		t.Errorf("click on -1 action = %v, want none", cmd.Action)
	}
	if cmd := a.Click(5, testSegments(), now); cmd.Action != ActionNone {
		t.Errorf("out of range click action = %v, want none", cmd.Action)
	}
}

func TestArbiter_Drag(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	segs := testSegments()
	t0 := time.Now()

	a.BeginDrag()
	if got := a.DragSeek(3*time.Second, segs, t0); got != 1 {
		t.Errorf("DragSeek = %d, want 1", got)
	}
	if got := a.DragSeek(8*time.Second, segs, t0.Add(50*time.Millisecond)); got != 3 {
		t.Errorf("DragSeek = %d, want 3", got)
	}
	if a.Locked(t0.Add(60 * time.Millisecond)) {
		t.Error("drag must not engage the lock")
	}
	if a.AutomaticUpdate(0, t0.Add(70*time.Millisecond)) {
		t.Error("automatic update during drag should be ignored")
	}

	release := t0.Add(100 * time.Millisecond)
	a.EndDrag(release)

	st := a.State()
	if st.Dragging {
		t.Error("still dragging after EndDrag")
	}
	if st.Highlighted != 3 || st.Selected != 3 {
		t.Errorf("state = %+v, want highlighted and selected 3", st)
	}
	if a.AutomaticUpdate(2, release.Add(200*time.Millisecond)) {
		t.Error("stale update right after release should be suppressed")
	}
	if !a.AutomaticUpdate(2, release.Add(600*time.Millisecond)) {
		t.Error("update after lock should apply")
	}
}

func TestArbiter_DragEndsClickLock(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	segs := testSegments()
	t0 := time.Now()

	a.Click(0, segs, t0)
	if !a.Locked(t0.Add(10 * time.Millisecond)) {
		t.Fatal("click should engage the lock")
	}

	a.BeginDrag()
	drag := t0.Add(100 * time.Millisecond)
	if got := a.DragSeek(5*time.Second, segs, drag); got != 2 {
		t.Errorf("DragSeek = %d, want 2", got)
	}
	if a.Locked(drag) {
		t.Error("drag should end the click lock")
	}
	if st := a.State(); !st.LockExpiry.Equal(drag) {
		t.Errorf("LockExpiry = %v, want %v", st.LockExpiry, drag)
	}
}

func TestArbiter_Reset(t *testing.T) {
	a := NewArbiter(ArbiterConfig{})
	now := time.Now()
	a.Click(1, testSegments(), now)
	a.Reset()

	st := a.State()
	if st.Highlighted != -1 || st.Selected != -1 || !st.LockExpiry.IsZero() {
		t.Errorf("state after reset = %+v", st)
	}
	if a.Click(1, testSegments(), now.Add(100*time.Millisecond)).Action != ActionSeek {
		t.Error("click history should be cleared by Reset")
	}
}
