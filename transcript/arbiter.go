package transcript

import (
	"sync"
	"time"
)

const (
	// DefaultDoubleClick is the maximum gap between two clicks on the same
	// segment for them to count as a double-click. The bound is inclusive.
	DefaultDoubleClick = 400 * time.Millisecond
	// DefaultLock is how long automatic highlight updates are suppressed
	// after a user selection.
	DefaultLock = 500 * time.Millisecond
	// DefaultSeekEpsilon is added to a segment start when seeking to it so
	// rounding cannot land in the previous segment.
	DefaultSeekEpsilon = time.Millisecond
)

// Action tells the player what to do in response to a user selection.
type Action int

const (
	ActionNone        Action = iota // Nothing to do
	ActionSeek                      // Seek, keep current play state
	ActionSeekAndPlay               // Seek and start playback
)

func (a Action) String() string {
	switch a {
	case ActionSeek:
		return "seek"
	case ActionSeekAndPlay:
		return "seek+play"
	default:
		return "none"
	}
}

// Command is the result of a click: where to seek and whether to play.
type Command struct {
	Action   Action
	Index    int
	Position time.Duration
}

// SelectionState is a snapshot of the arbiter.
type SelectionState struct {
	Highlighted int       `json:"highlighted"` // automatic, -1 = none
	Selected    int       `json:"selected"`    // user-driven, -1 = none
	LockExpiry  time.Time `json:"lockExpiry"`
	Dragging    bool      `json:"dragging"`
}

// ArbiterConfig holds timing parameters. Zero values use the defaults.
type ArbiterConfig struct {
	DoubleClick time.Duration
	Lock        time.Duration
	SeekEpsilon time.Duration
}

// Arbiter reconciles position-driven highlighting with user clicks and
// drags. Lock expiry is measured against the caller-supplied wall clock, so
// the UI poll rate does not matter.
type Arbiter struct {
	cfg ArbiterConfig

	mu          sync.Mutex
	highlighted int
	selected    int
	locked      int
	lockExpiry  time.Time
	dragging    bool

	lastClickIndex int
	lastClickAt    time.Time
}

// NewArbiter creates an Arbiter with nothing highlighted or selected.
func NewArbiter(cfg ArbiterConfig) *Arbiter {
	if cfg.DoubleClick <= 0 {
		cfg.DoubleClick = DefaultDoubleClick
	}
	if cfg.Lock <= 0 {
		cfg.Lock = DefaultLock
	}
	if cfg.SeekEpsilon <= 0 {
		cfg.SeekEpsilon = DefaultSeekEpsilon
	}
	a := &Arbiter{cfg: cfg}
	a.reset()
	return a
}

// AutomaticUpdate offers a position-derived candidate index. It reports
// whether the highlight changed. While locked, only the locked index is
// accepted; during a drag nothing is.
func (a *Arbiter) AutomaticUpdate(candidate int, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if candidate < 0 {
		candidate = -1
	}
	if a.dragging {
		return false
	}
	if now.Before(a.lockExpiry) && candidate != a.locked {
		return false
	}
	if a.highlighted == candidate {
		return false
	}
	a.highlighted = candidate
	return true
}

// Click handles a click on segment index. A second click on the same index
// within the double-click threshold asks for seek and playback; otherwise
// the click only selects and seeks.
func (a *Arbiter) Click(index int, segs []Segment, now time.Time) Command {
	if index < 0 || index >= len(segs) {
		return Command{Action: ActionNone, Index: -1}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	double := a.lastClickIndex == index &&
		!a.lastClickAt.IsZero() &&
		now.Sub(a.lastClickAt) >= 0 &&
		now.Sub(a.lastClickAt) <= a.cfg.DoubleClick

	a.lockTo(index, now)
	a.selected = index

	cmd := Command{
		Index:    index,
		Position: segs[index].Start + a.cfg.SeekEpsilon,
	}
	if double {
		a.highlighted = index
		cmd.Action = ActionSeekAndPlay
		// A third click starts a new pair.
		a.lastClickIndex = -1
		a.lastClickAt = time.Time{}
	} else {
		cmd.Action = ActionSeek
		a.lastClickIndex = index
		a.lastClickAt = now
	}
	return cmd
}

// BeginDrag marks the start of a slider or waveform drag.
func (a *Arbiter) BeginDrag() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dragging = true
}

// DragSeek updates the selection live while a drag is in progress and
// returns the segment under pos. It does not engage the lock and ends any
// click lock still active at now.
func (a *Arbiter) DragSeek(pos time.Duration, segs []Segment, now time.Time) int {
	idx := Locate(pos, segs)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.dragging = true
	a.selected = idx
	if now.Before(a.lockExpiry) {
		a.lockExpiry = now
		a.locked = -1
	}
	return idx
}

// EndDrag finishes a drag and locks the highlight to the segment under the
// release point so a stale automatic update cannot override it.
func (a *Arbiter) EndDrag(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.dragging {
		return
	}
	a.dragging = false
	if a.selected >= 0 {
		a.highlighted = a.selected
		a.lockTo(a.selected, now)
	}
}

// State returns a snapshot of the selection.
func (a *Arbiter) State() SelectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return SelectionState{
		Highlighted: a.highlighted,
		Selected:    a.selected,
		LockExpiry:  a.lockExpiry,
		Dragging:    a.dragging,
	}
}

// Locked reports whether automatic updates are currently suppressed.
func (a *Arbiter) Locked(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Before(a.lockExpiry)
}

// Reset clears all selection state. Call it when a new transcript is loaded.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reset()
}

func (a *Arbiter) reset() {
	a.highlighted = -1
	a.selected = -1
	a.locked = -1
	a.lockExpiry = time.Time{}
	a.dragging = false
	a.lastClickIndex = -1
	a.lastClickAt = time.Time{}
}

func (a *Arbiter) lockTo(index int, now time.Time) {
	a.locked = index
	a.lockExpiry = now.Add(a.cfg.Lock)
}
