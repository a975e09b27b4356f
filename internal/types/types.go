// Package types provides shared type definitions for the application.
package types

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// APICredential is a stored API key for a remote speech provider.
type APICredential struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // "openai", "openai-compatible"
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key"`
}

// SpeechConfig selects and configures the transcription provider.
type SpeechConfig struct {
	Provider     string `json:"provider"` // "whisper-api", "whisper-local"
	CredentialID string `json:"credential_id,omitempty"`
	Model        string `json:"model,omitempty"`
	Language     string `json:"language,omitempty"`   // "auto" to detect
	ModelSize    string `json:"model_size,omitempty"` // whisper.cpp model size
}

// PlaybackSettings holds transport preferences.
type PlaybackSettings struct {
	DefaultSpeed   float64 `json:"default_speed"`
	MinSpeed       float64 `json:"min_speed"`
	MaxSpeed       float64 `json:"max_speed"`
	SpeedStep      float64 `json:"speed_step"`
	Volume         float64 `json:"volume"`
	PollIntervalMs int     `json:"poll_interval_ms"`
	SeekStepMs     int     `json:"seek_step_ms"`
	Backend        string  `json:"backend"` // "portaudio", "null"
}

// SelectionSettings holds transcript click timing.
type SelectionSettings struct {
	DoubleClickMs int `json:"double_click_ms"`
	LockMs        int `json:"lock_ms"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Playback
// ─────────────────────────────────────────────────────────────────────────────

// SegmentView is a transcript segment as shown in the UI.
type SegmentView struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	StartMs    int64   `json:"startMs"`
	EndMs      int64   `json:"endMs"`
	Confidence float64 `json:"confidence"`
}

// TranscriptView is a loaded audio file with its transcript.
type TranscriptView struct {
	ID         string        `json:"id"`
	Path       string        `json:"path"`
	Language   string        `json:"language"`
	Provider   string        `json:"provider"`
	DurationMs int64         `json:"durationMs"`
	CacheHit   bool          `json:"cacheHit"`
	Segments   []SegmentView `json:"segments"`
}

// PlaybackStatus is a snapshot of the transport and selection state.
type PlaybackStatus struct {
	Loaded      bool    `json:"loaded"`
	Path        string  `json:"path"`
	State       string  `json:"state"` // "stopped", "playing", "paused"
	PositionMs  int64   `json:"positionMs"`
	DurationMs  int64   `json:"durationMs"`
	Speed       float64 `json:"speed"`
	Volume      float64 `json:"volume"`
	Highlighted int     `json:"highlighted"` // -1 when none
	Selected    int     `json:"selected"`
}

// PositionEvent is emitted on every position poll.
type PositionEvent struct {
	PositionMs  int64 `json:"positionMs"`
	DurationMs  int64 `json:"durationMs"`
	Highlighted int   `json:"highlighted"`
	Changed     bool  `json:"changed"` // highlight moved since the last event
}

// TranscribeProgress reports transcription status to the UI.
type TranscribeProgress struct {
	Path    string `json:"path"`
	Stage   string `json:"stage"` // "cache", "transcribing", "done", "error"
	Message string `json:"message,omitempty"`
}

// STTProviderInfo represents information about an STT provider.
type STTProviderInfo struct {
	Name          string `json:"name"`          // Provider identifier
	DisplayName   string `json:"displayName"`   // Human-readable name
	IsLocal       bool   `json:"isLocal"`       // Whether it runs locally
	RequiresSetup bool   `json:"requiresSetup"` // Whether setup is needed (e.g., model download)
	IsReady       bool   `json:"isReady"`       // Whether the provider is ready to use
}
