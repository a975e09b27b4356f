package app

// Event names for frontend communication.
const (
	EventPlaybackPosition  = "playback-position"
	EventPlaybackStopped   = "playback-stopped"
	EventPlaybackState     = "playback-state"
	EventTranscribe        = "transcribe-progress"
	EventSTTSetupProgress  = "stt-setup-progress"
	EventSTTSetupError     = "stt-setup-error"
	EventSTTSetupComplete  = "stt-setup-complete"
	EventAccessibilityPerm = "accessibility-permission"
)

// Transcription stages reported with EventTranscribe.
const (
	StageTranscribing = "transcribing"
	StageDone         = "done"
	StageCache        = "cache" // done, served from cache
	StageError        = "error"
)
