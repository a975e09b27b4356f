// Package app provides the core application service for Wails bindings.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/scribe/audioout"
	"go.aimuz.me/scribe/cache"
	"go.aimuz.me/scribe/clipboard"
	"go.aimuz.me/scribe/config"
	"go.aimuz.me/scribe/decode"
	"go.aimuz.me/scribe/hotkey"
	"go.aimuz.me/scribe/internal/types"
	"go.aimuz.me/scribe/langdetect"
	"go.aimuz.me/scribe/player"
	"go.aimuz.me/scribe/stt"
	"go.aimuz.me/scribe/transcript"
)

// Service provides application functionality bound to Wails.
// This struct focuses on orchestration; business logic lives in sub-components.
type Service struct {
	cfg    *config.Config
	cache  *cache.Cache
	hotkey *hotkey.HotkeyManager
	stt    *stt.Registry

	// UI references - set via Init
	app    *application.App
	window application.Window

	player      *player.Controller
	session     *Session
	transcriber *Transcriber

	ctx    context.Context
	cancel context.CancelFunc

	// Version info (set by caller)
	version string
}

// New creates a new Service. Call Init() after Wails app is created.
func New(version string) *Service {
	return &Service{version: version}
}

// GetVersion returns the application version.
func (s *Service) GetVersion() string {
	return s.version
}

// Config returns the loaded configuration. It is nil before Init.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Init initializes the service with app and window references.
// Must be called after Wails application is created.
func (s *Service) Init(app *application.App, window application.Window) {
	s.app = app
	s.window = window
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	s.cfg = cfg

	s.setupCache()
	s.transcriber = NewTranscriber(s.cache)
	s.setupSTT()

	if err := s.setupPlayer(); err != nil {
		slog.Error("setup player", "error", err)
		return
	}

	s.setupHotkey()
	go s.player.Watch(s.ctx, s.cfg.PollInterval())
}

// Shutdown cleans up resources.
func (s *Service) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.hotkey != nil {
		s.hotkey.Stop()
	}
	if s.player != nil {
		if err := s.player.Close(); err != nil {
			slog.Error("close player", "error", err)
		}
	}
	if s.stt != nil {
		if err := s.stt.Close(); err != nil {
			slog.Error("close stt providers", "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			slog.Error("close cache", "error", err)
		}
	}
}

func (s *Service) setupCache() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		slog.Error("get config dir for cache", "error", err)
		return
	}

	cachePath := filepath.Join(configDir, "scribe", "cache")
	c, err := cache.New(cachePath)
	if err != nil {
		slog.Error("init cache", "error", err)
		return
	}
	s.cache = c
	slog.Info("cache initialized", "path", cachePath)
}

func (s *Service) setupSTT() {
	s.stt = stt.NewRegistry()

	if cred := s.cfg.SpeechCredential(); cred != nil {
		s.stt.Register(stt.NewWhisperAPI(stt.WhisperAPIConfig{
			APIKey:  cred.APIKey,
			BaseURL: cred.BaseURL,
			Model:   s.cfg.Speech.Model,
		}))
		slog.Info("registered whisper api provider", "credential", cred.Name)
	}

	local, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{
		ModelSize: s.cfg.Speech.ModelSize,
	})
	if err != nil {
		slog.Warn("init whisper local", "error", err)
		return
	}
	// Not ready until whisper.cpp and the model are installed
	s.stt.Register(local)
	if !local.IsReady() {
		slog.Warn("whisper local not ready", "has_binary", local.HasBinary())
	}
}

func (s *Service) setupPlayer() error {
	pb := s.cfg.Playback

	sink, err := audioout.New(pb.Backend)
	if err != nil {
		slog.Warn("audio backend unavailable, using null output", "backend", pb.Backend, "error", err)
		sink = audioout.NewNull(0)
	}

	ctrl, err := player.NewController(player.Options{
		Sink: sink,
		Open: func(path string) (player.Source, error) {
			f, err := decode.Open(path)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		MinSpeed: pb.MinSpeed,
		MaxSpeed: pb.MaxSpeed,
		Volume:   pb.Volume,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	ctrl.SetSpeed(pb.DefaultSpeed)

	s.player = ctrl
	s.session = NewSession(ctrl, s.cfg.ArbiterConfig(), s.emit)
	return nil
}

func (s *Service) setupHotkey() {
	step := s.cfg.SeekStep()
	speedStep := s.cfg.Playback.SpeedStep

	s.hotkey = hotkey.NewHotkeyManager(hotkey.Actions{
		TogglePlay:  func() { s.logErr("toggle playback", s.TogglePlayPause()) },
		SeekBack:    func() { s.logErr("seek back", s.player.SeekRelative(-step)) },
		SeekForward: func() { s.logErr("seek forward", s.player.SeekRelative(step)) },
		SpeedDown:   func() { s.SetSpeed(s.player.Speed() - speedStep) },
		SpeedUp:     func() { s.SetSpeed(s.player.Speed() + speedStep) },
	})

	s.hotkey.SetStatusCallback(func(granted bool) {
		s.emit(EventAccessibilityPerm, granted)
		if granted {
			slog.Info("accessibility permission granted")
		} else {
			slog.Warn("accessibility permission denied")
		}
	})

	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
	}
}

// emit is a safe wrapper around app.Event.Emit
func (s *Service) emit(name string, data any) {
	if s.app != nil {
		s.app.Event.Emit(name, data)
	}
}

func (s *Service) logErr(action string, err error) {
	if err != nil && !errors.Is(err, player.ErrNotLoaded) {
		slog.Warn(action, "error", err)
	}
}

func (s *Service) emitState() {
	s.emit(EventPlaybackState, s.session.Status())
}

func (s *Service) ready() error {
	if s.player == nil || s.session == nil {
		return fmt.Errorf("player not initialized")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Audio & Transcript
// ─────────────────────────────────────────────────────────────────────────────

// OpenAudio loads the file at path and transcribes it. When transcription
// fails the audio stays loaded with an empty transcript and the failure is
// reported through EventTranscribe.
func (s *Service) OpenAudio(path string) (types.TranscriptView, error) {
	if err := s.ready(); err != nil {
		return types.TranscriptView{}, err
	}
	if !decode.Supported(path) {
		return types.TranscriptView{}, fmt.Errorf("%w: %s", decode.ErrUnsupportedFormat, filepath.Ext(path))
	}

	if err := s.player.Load(path); err != nil {
		sentry.CaptureException(err)
		return types.TranscriptView{}, err
	}
	s.session.SetTranscript(nil, false)
	s.emitState()

	if err := s.cfg.AddRecentFile(path); err != nil {
		slog.Warn("save recent files", "error", err)
	}

	tr, hit, err := s.transcribe(path)
	if err != nil {
		slog.Error("transcribe", "path", path, "error", err)
		sentry.CaptureException(err)
		s.emit(EventTranscribe, types.TranscribeProgress{Path: path, Stage: StageError, Message: err.Error()})
		tr = transcript.New(path, "", "", nil)
	} else {
		stage := StageDone
		if hit {
			stage = StageCache
		}
		s.emit(EventTranscribe, types.TranscribeProgress{Path: path, Stage: stage})
	}

	s.session.SetTranscript(tr, hit)
	return s.session.View(), nil
}

func (s *Service) transcribe(path string) (*transcript.Transcript, bool, error) {
	provider, err := s.stt.Default(s.cfg.Speech.Provider)
	if err != nil {
		return nil, false, err
	}

	model := s.cfg.Speech.Model
	if provider.IsLocal() {
		model = s.cfg.Speech.ModelSize
	}

	s.emit(EventTranscribe, types.TranscribeProgress{Path: path, Stage: StageTranscribing, Message: provider.DisplayName()})
	start := time.Now()
	tr, hit, err := s.transcriber.Transcribe(s.ctx, provider, TranscribeRequest{
		Path:     path,
		Model:    model,
		Language: s.cfg.Speech.Language,
	})
	if err != nil {
		return nil, false, err
	}

	slog.Info("transcribed",
		"path", path,
		"provider", provider.Name(),
		"segments", tr.Len(),
		"cache_hit", hit,
		"elapsed", time.Since(start))
	return tr, hit, nil
}

// GetSegments returns the active transcript.
func (s *Service) GetSegments() types.TranscriptView {
	if s.session == nil {
		return types.TranscriptView{}
	}
	return s.session.View()
}

// UpdateSegmentText edits the text of one segment.
func (s *Service) UpdateSegmentText(index int, text string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.session.UpdateSegmentText(index, text)
}

// CopyTranscript copies the transcript text to the clipboard. A negative
// index copies every segment, otherwise only segment index.
func (s *Service) CopyTranscript(index int) error {
	if err := s.ready(); err != nil {
		return err
	}
	tr := s.session.Transcript()
	if tr == nil {
		return fmt.Errorf("no transcript loaded")
	}

	text := tr.Text()
	if index >= 0 {
		seg, ok := tr.At(index)
		if !ok {
			return fmt.Errorf("segment index out of range: %d", index)
		}
		text = seg.Text
	}
	if err := clipboard.SetText(s.app, text); err != nil {
		return fmt.Errorf("copy transcript: %w", err)
	}
	return nil
}

// GetRecentFiles returns recently opened audio files, newest first.
func (s *Service) GetRecentFiles() []string {
	return s.cfg.RecentFiles
}

// ─────────────────────────────────────────────────────────────────────────────
// Playback
// ─────────────────────────────────────────────────────────────────────────────

// Play starts or resumes playback.
func (s *Service) Play() error {
	if err := s.ready(); err != nil {
		return err
	}
	defer s.emitState()
	return s.player.Play()
}

// Pause pauses playback.
func (s *Service) Pause() error {
	if err := s.ready(); err != nil {
		return err
	}
	defer s.emitState()
	return s.player.Pause()
}

// TogglePlayPause switches between playing and paused.
func (s *Service) TogglePlayPause() error {
	if err := s.ready(); err != nil {
		return err
	}
	defer s.emitState()
	return s.player.TogglePlayPause()
}

// Stop halts playback and rewinds to the start.
func (s *Service) Stop() error {
	if err := s.ready(); err != nil {
		return err
	}
	defer s.emitState()
	return s.player.Stop()
}

// Seek moves playback to ms milliseconds.
func (s *Service) Seek(ms int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.player.Seek(time.Duration(ms) * time.Millisecond)
}

// SeekRelative moves playback by ms milliseconds.
func (s *Service) SeekRelative(ms int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.player.SeekRelative(time.Duration(ms) * time.Millisecond)
}

// SetSpeed sets the playback speed factor and returns the applied value.
func (s *Service) SetSpeed(factor float64) float64 {
	if s.player == nil {
		return 1
	}
	s.player.SetSpeed(factor)
	s.emitState()
	return s.player.Speed()
}

// GetSpeedRange returns the speed bounds exposed to the UI.
func (s *Service) GetSpeedRange() []float64 {
	if s.player == nil {
		return []float64{player.MinSpeed, player.MaxSpeed}
	}
	lo, hi := s.player.SpeedRange()
	return []float64{lo, hi}
}

// SetVolume sets the output volume in [0, 1].
func (s *Service) SetVolume(v float64) {
	if s.player == nil {
		return
	}
	s.player.SetVolume(v)
	s.cfg.Playback.Volume = s.player.Volume()
	if err := s.cfg.Save(); err != nil {
		slog.Warn("save volume", "error", err)
	}
}

// GetStatus returns the playback and selection snapshot.
func (s *Service) GetStatus() types.PlaybackStatus {
	if s.session == nil {
		return types.PlaybackStatus{Highlighted: -1, Selected: -1}
	}
	return s.session.Status()
}

// ─────────────────────────────────────────────────────────────────────────────
// Transcript Selection
// ─────────────────────────────────────────────────────────────────────────────

// ClickSegment handles a click on a transcript segment. A double click
// starts playback from the segment.
func (s *Service) ClickSegment(index int) error {
	if err := s.ready(); err != nil {
		return err
	}
	cmd, err := s.session.Click(index)
	if cmd.Action == transcript.ActionSeekAndPlay {
		s.emitState()
	}
	return err
}

// BeginDrag marks the start of a position slider drag.
func (s *Service) BeginDrag() {
	if s.session != nil {
		s.session.BeginDrag()
	}
}

// DragSeek seeks while dragging and returns the segment under ms.
func (s *Service) DragSeek(ms int64) (int, error) {
	if err := s.ready(); err != nil {
		return -1, err
	}
	return s.session.DragSeek(time.Duration(ms) * time.Millisecond)
}

// EndDrag finishes a position slider drag.
func (s *Service) EndDrag() {
	if s.session != nil {
		s.session.EndDrag()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Window
// ─────────────────────────────────────────────────────────────────────────────

// ShowWindow brings the main window to the front.
func (s *Service) ShowWindow() {
	if s.window != nil {
		s.window.Show()
		s.window.Focus()
	}
}

// GetAccessibilityPermission returns whether accessibility is enabled.
func (s *Service) GetAccessibilityPermission() bool {
	return hotkey.IsAccessibilityEnabled(false)
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredentials returns all API credentials.
func (s *Service) GetCredentials() []types.APICredential {
	return s.cfg.Credentials
}

// AddCredential adds a new API credential and returns its ID.
func (s *Service) AddCredential(cred types.APICredential) (string, error) {
	return s.cfg.AddCredential(cred)
}

// UpdateCredential updates an existing credential.
func (s *Service) UpdateCredential(id string, cred types.APICredential) error {
	if err := s.cfg.UpdateCredential(id, cred); err != nil {
		return err
	}
	if s.cfg.Speech.CredentialID == id {
		s.setupSTT()
	}
	return nil
}

// RemoveCredential removes a credential by ID.
func (s *Service) RemoveCredential(id string) error {
	return s.cfg.RemoveCredential(id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Speech Configuration
// ─────────────────────────────────────────────────────────────────────────────

// GetSpeechConfig returns the speech service configuration.
func (s *Service) GetSpeechConfig() types.SpeechConfig {
	return s.cfg.Speech
}

// SetSpeechConfig sets the speech service configuration and rebuilds the
// provider registry.
func (s *Service) SetSpeechConfig(cfg types.SpeechConfig) error {
	if err := s.cfg.SetSpeechConfig(cfg); err != nil {
		return err
	}
	old := s.stt
	s.setupSTT()
	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("close stt providers", "error", err)
		}
	}
	return nil
}

// GetSTTProviders returns the registered speech providers.
func (s *Service) GetSTTProviders() []types.STTProviderInfo {
	if s.stt == nil {
		return nil
	}
	var infos []types.STTProviderInfo
	for _, p := range s.stt.List() {
		infos = append(infos, types.STTProviderInfo{
			Name:          p.Name(),
			DisplayName:   p.DisplayName(),
			IsLocal:       p.IsLocal(),
			RequiresSetup: p.RequiresSetup(),
			IsReady:       p.IsReady(),
		})
	}
	return infos
}

// SetupSTTProvider prepares a provider in the background, e.g. downloads a
// local model. Progress is reported through events.
func (s *Service) SetupSTTProvider(name string) error {
	p := s.stt.Get(name)
	if p == nil {
		return fmt.Errorf("unknown stt provider: %s", name)
	}

	go func() {
		err := p.Setup(s.ctx, func(percent int) {
			s.emit(EventSTTSetupProgress, map[string]any{"provider": name, "percent": percent})
		})
		if err != nil {
			slog.Error("setup stt provider", "provider", name, "error", err)
			s.emit(EventSTTSetupError, map[string]any{"provider": name, "error": err.Error()})
			return
		}
		slog.Info("stt provider ready", "provider", name)
		s.emit(EventSTTSetupComplete, name)
	}()
	return nil
}

// GetSTTSetupProgress returns the setup progress (0-100) of a provider, -1
// when unknown or not started.
func (s *Service) GetSTTSetupProgress(name string) int {
	p, ok := s.stt.Get(name).(interface{ SetupProgress() int })
	if !ok {
		return -1
	}
	return p.SetupProgress()
}

// LanguageName returns the English display name for a language code.
func (s *Service) LanguageName(code string) string {
	return langdetect.DisplayName(code)
}
