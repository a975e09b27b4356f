package app

import (
	"fmt"
	"sync"
	"time"

	"go.aimuz.me/scribe/internal/types"
	"go.aimuz.me/scribe/player"
	"go.aimuz.me/scribe/transcript"
)

// Session ties the playback controller to the transcript currently shown.
// It turns position polls into highlight events and routes clicks and drags
// back into the controller.
type Session struct {
	player  *player.Controller
	arbiter *transcript.Arbiter
	now     func() time.Time
	emit    func(name string, data any)

	mu         sync.Mutex
	transcript *transcript.Transcript
	cacheHit   bool
}

// NewSession creates a Session and subscribes it to ctrl's notifications.
// emit may be nil.
func NewSession(ctrl *player.Controller, cfg transcript.ArbiterConfig, emit func(name string, data any)) *Session {
	if emit == nil {
		emit = func(string, any) {}
	}
	s := &Session{
		player:  ctrl,
		arbiter: transcript.NewArbiter(cfg),
		now:     time.Now,
		emit:    emit,
	}
	ctrl.OnPositionChanged(s.tick)
	ctrl.OnPlaybackStopped(s.stopped)
	return s
}

// SetTranscript replaces the active transcript and clears the selection.
func (s *Session) SetTranscript(tr *transcript.Transcript, cacheHit bool) {
	s.mu.Lock()
	s.transcript = tr
	s.cacheHit = cacheHit
	s.mu.Unlock()

	s.arbiter.Reset()
}

// Transcript returns the active transcript, nil if none.
func (s *Session) Transcript() *transcript.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// UpdateSegmentText edits the text of segment i.
func (s *Session) UpdateSegmentText(i int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript == nil {
		return fmt.Errorf("no transcript loaded")
	}
	return s.transcript.SetText(i, text)
}

// Click handles a click on segment index and applies the resulting seek.
func (s *Session) Click(index int) (transcript.Command, error) {
	s.mu.Lock()
	cmd := s.arbiter.Click(index, s.segments(), s.now())
	s.mu.Unlock()

	switch cmd.Action {
	case transcript.ActionSeek:
		if err := s.player.Seek(cmd.Position); err != nil {
			return cmd, fmt.Errorf("seek: %w", err)
		}
	case transcript.ActionSeekAndPlay:
		if err := s.player.Seek(cmd.Position); err != nil {
			return cmd, fmt.Errorf("seek: %w", err)
		}
		if err := s.player.Play(); err != nil {
			return cmd, fmt.Errorf("play: %w", err)
		}
	}
	return cmd, nil
}

// BeginDrag marks the start of a slider drag.
func (s *Session) BeginDrag() {
	s.arbiter.BeginDrag()
}

// DragSeek seeks to pos and selects the segment under it. It returns the
// selected index.
func (s *Session) DragSeek(pos time.Duration) (int, error) {
	s.mu.Lock()
	idx := s.arbiter.DragSeek(pos, s.segments(), s.now())
	s.mu.Unlock()

	if err := s.player.Seek(pos); err != nil {
		return idx, fmt.Errorf("seek: %w", err)
	}
	return idx, nil
}

// EndDrag finishes a drag and locks the highlight to the released segment.
func (s *Session) EndDrag() {
	s.arbiter.EndDrag(s.now())
}

// Status returns a snapshot of playback and selection.
func (s *Session) Status() types.PlaybackStatus {
	sel := s.arbiter.State()
	return types.PlaybackStatus{
		Loaded:      s.player.Loaded(),
		Path:        s.player.Path(),
		State:       s.player.State().String(),
		PositionMs:  s.player.Position().Milliseconds(),
		DurationMs:  s.player.Duration().Milliseconds(),
		Speed:       s.player.Speed(),
		Volume:      s.player.Volume(),
		Highlighted: sel.Highlighted,
		Selected:    sel.Selected,
	}
}

// View renders the active transcript for the UI.
func (s *Session) View() types.TranscriptView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := types.TranscriptView{
		Path:       s.player.Path(),
		DurationMs: s.player.Duration().Milliseconds(),
		CacheHit:   s.cacheHit,
		Segments:   []types.SegmentView{},
	}
	if s.transcript == nil {
		return view
	}

	view.ID = s.transcript.ID
	view.Language = s.transcript.Language
	view.Provider = s.transcript.Provider
	for i, seg := range s.transcript.Segments {
		view.Segments = append(view.Segments, types.SegmentView{
			Index:      i,
			Text:       seg.Text,
			Language:   seg.Language,
			StartMs:    seg.Start.Milliseconds(),
			EndMs:      seg.End.Milliseconds(),
			Confidence: seg.Confidence,
		})
	}
	return view
}

// tick runs on every controller poll.
func (s *Session) tick(pos time.Duration) {
	s.mu.Lock()
	idx := transcript.Locate(pos, s.segments())
	s.mu.Unlock()

	changed := s.arbiter.AutomaticUpdate(idx, s.now())
	s.emit(EventPlaybackPosition, types.PositionEvent{
		PositionMs:  pos.Milliseconds(),
		DurationMs:  s.player.Duration().Milliseconds(),
		Highlighted: s.arbiter.State().Highlighted,
		Changed:     changed,
	})
}

func (s *Session) stopped() {
	s.emit(EventPlaybackStopped, s.Status())
}

// segments must be called with s.mu held.
func (s *Session) segments() []transcript.Segment {
	if s.transcript == nil {
		return nil
	}
	return s.transcript.Segments
}
