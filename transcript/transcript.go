// Package transcript holds timestamped transcript segments and the logic that
// keeps a highlighted segment in sync with playback position.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Segment is a timestamped span of transcribed text.
type Segment struct {
	Text       string        `json:"text"`
	Language   string        `json:"language"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence"` // 0-1
}

// Duration returns the length of the segment.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Contains reports whether pos falls inside [Start, End).
func (s Segment) Contains(pos time.Duration) bool {
	return pos >= s.Start && pos < s.End
}

// Transcript is the ordered segment list produced for one audio file.
// Segments are in temporal order; only Text may be edited after creation.
type Transcript struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`   // audio file path
	Language  string    `json:"language"` // dominant language code
	Provider  string    `json:"provider"` // STT provider name
	Segments  []Segment `json:"segments"`
	CreatedAt time.Time `json:"createdAt"`
}

// New creates a Transcript with a fresh ID.
func New(source, provider, language string, segments []Segment) *Transcript {
	return &Transcript{
		ID:        uuid.New().String(),
		Source:    source,
		Language:  language,
		Provider:  provider,
		Segments:  segments,
		CreatedAt: time.Now(),
	}
}

// Len returns the number of segments.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Segments)
}

// At returns the segment at index i.
func (t *Transcript) At(i int) (Segment, bool) {
	if i < 0 || i >= t.Len() {
		return Segment{}, false
	}
	return t.Segments[i], true
}

// SetText replaces the text of segment i.
func (t *Transcript) SetText(i int, text string) error {
	if i < 0 || i >= t.Len() {
		return fmt.Errorf("segment index out of range: %d", i)
	}
	t.Segments[i].Text = text
	return nil
}

// Text joins all segment texts with single spaces.
func (t *Transcript) Text() string {
	parts := make([]string, 0, t.Len())
	for _, s := range t.Segments {
		if s := strings.TrimSpace(s.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Duration returns the end of the last segment.
func (t *Transcript) Duration() time.Duration {
	var end time.Duration
	for _, s := range t.Segments {
		end = max(end, s.End)
	}
	return end
}
