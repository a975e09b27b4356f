// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"go.aimuz.me/scribe/internal/types"
	"go.aimuz.me/scribe/player"
	"go.aimuz.me/scribe/resample"
	"go.aimuz.me/scribe/transcript"
)

const (
	appName        = "scribe"
	configFileName = "config.json"
	maxRecentFiles = 10
)

// Speech provider names.
const (
	ProviderWhisperAPI   = "whisper-api"
	ProviderWhisperLocal = "whisper-local"
)

// Config represents the application configuration.
type Config struct {
	Credentials []types.APICredential   `json:"credentials,omitempty"`
	Speech      types.SpeechConfig      `json:"speech"`
	Playback    types.PlaybackSettings  `json:"playback"`
	Selection   types.SelectionSettings `json:"selection"`
	RecentFiles []string                `json:"recent_files,omitempty"`
	SentryDSN   string                  `json:"sentry_dsn,omitempty"`

	path string
}

// Load loads configuration from the config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFrom(path)
}

// LoadFrom loads configuration from path. Keys missing from the file keep
// their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Default returns the built-in configuration, not bound to any file.
func Default() *Config {
	return defaultConfig()
}

// Save persists the configuration to the path it was loaded from.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := configPath()
		if err != nil {
			return fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	c.path = path
	return nil
}

// Path returns the file the configuration is saved to.
func (c *Config) Path() string {
	return c.path
}

// Normalize clamps out-of-range values and fills zero values with defaults.
func (c *Config) Normalize() {
	def := defaultConfig()

	p := &c.Playback
	if p.MinSpeed <= 0 {
		p.MinSpeed = def.Playback.MinSpeed
	}
	if p.MaxSpeed <= 0 {
		p.MaxSpeed = def.Playback.MaxSpeed
	}
	p.MinSpeed = max(p.MinSpeed, resample.MinSpeed)
	p.MaxSpeed = min(p.MaxSpeed, resample.MaxSpeed)
	if p.MinSpeed > p.MaxSpeed {
		p.MinSpeed, p.MaxSpeed = def.Playback.MinSpeed, def.Playback.MaxSpeed
	}
	if p.DefaultSpeed <= 0 {
		p.DefaultSpeed = 1
	}
	p.DefaultSpeed = min(max(p.DefaultSpeed, p.MinSpeed), p.MaxSpeed)
	if p.SpeedStep <= 0 {
		p.SpeedStep = def.Playback.SpeedStep
	}
	p.Volume = player.ClampVolume(p.Volume)
	if p.PollIntervalMs <= 0 {
		p.PollIntervalMs = def.Playback.PollIntervalMs
	}
	p.PollIntervalMs = min(max(p.PollIntervalMs, 16), 1000)
	if p.SeekStepMs <= 0 {
		p.SeekStepMs = def.Playback.SeekStepMs
	}
	if p.Backend == "" {
		p.Backend = def.Playback.Backend
	}

	s := &c.Selection
	if s.DoubleClickMs <= 0 {
		s.DoubleClickMs = def.Selection.DoubleClickMs
	}
	if s.LockMs <= 0 {
		s.LockMs = def.Selection.LockMs
	}

	sp := &c.Speech
	if sp.Provider == "" {
		sp.Provider = def.Speech.Provider
	}
	if sp.Model == "" {
		sp.Model = def.Speech.Model
	}
	if sp.Language == "" {
		sp.Language = def.Speech.Language
	}
	if sp.ModelSize == "" {
		sp.ModelSize = def.Speech.ModelSize
	}

	if len(c.RecentFiles) > maxRecentFiles {
		c.RecentFiles = c.RecentFiles[:maxRecentFiles]
	}
}

// PollInterval returns the position polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Playback.PollIntervalMs) * time.Millisecond
}

// SeekStep returns the relative seek distance used by hotkeys.
func (c *Config) SeekStep() time.Duration {
	return time.Duration(c.Playback.SeekStepMs) * time.Millisecond
}

// ArbiterConfig returns the selection timing for transcript clicks.
func (c *Config) ArbiterConfig() transcript.ArbiterConfig {
	return transcript.ArbiterConfig{
		DoubleClick: time.Duration(c.Selection.DoubleClickMs) * time.Millisecond,
		Lock:        time.Duration(c.Selection.LockMs) * time.Millisecond,
	}
}

// AddRecentFile moves path to the front of the recent files list.
func (c *Config) AddRecentFile(path string) error {
	c.RecentFiles = slices.DeleteFunc(c.RecentFiles, func(p string) bool { return p == path })
	c.RecentFiles = slices.Insert(c.RecentFiles, 0, path)
	if len(c.RecentFiles) > maxRecentFiles {
		c.RecentFiles = c.RecentFiles[:maxRecentFiles]
	}
	return c.Save()
}

// Helper functions

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

func defaultConfig() *Config {
	return &Config{
		Speech: types.SpeechConfig{
			Provider:  ProviderWhisperAPI,
			Model:     "whisper-1",
			Language:  "auto",
			ModelSize: "base",
		},
		Playback: types.PlaybackSettings{
			DefaultSpeed:   1,
			MinSpeed:       player.MinSpeed,
			MaxSpeed:       player.MaxSpeed,
			SpeedStep:      0.25,
			Volume:         1,
			PollIntervalMs: int(player.DefaultPollInterval / time.Millisecond),
			SeekStepMs:     5000,
			Backend:        "portaudio",
		},
		Selection: types.SelectionSettings{
			DoubleClickMs: int(transcript.DefaultDoubleClick / time.Millisecond),
			LockMs:        int(transcript.DefaultLock / time.Millisecond),
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// API Credential Management
// ─────────────────────────────────────────────────────────────────────────────

// GetCredential returns a credential by ID.
func (c *Config) GetCredential(id string) *types.APICredential {
	for i := range c.Credentials {
		if c.Credentials[i].ID == id {
			return &c.Credentials[i]
		}
	}
	return nil
}

// AddCredential adds a new API credential and returns its ID.
func (c *Config) AddCredential(cred types.APICredential) (string, error) {
	if cred.Name == "" {
		return "", fmt.Errorf("credential name required")
	}
	if cred.APIKey == "" {
		return "", fmt.Errorf("api key required")
	}
	if cred.Type == "openai-compatible" && cred.BaseURL == "" {
		return "", fmt.Errorf("base url required for openai-compatible")
	}

	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}

	c.Credentials = append(c.Credentials, cred)
	return cred.ID, c.Save()
}

// UpdateCredential updates an existing credential.
func (c *Config) UpdateCredential(id string, cred types.APICredential) error {
	idx := slices.IndexFunc(c.Credentials, func(x types.APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential not found: %s", id)
	}

	cred.ID = id // Preserve ID
	c.Credentials[idx] = cred
	return c.Save()
}

// RemoveCredential removes a credential by ID.
// Returns error if credential is in use by the speech config.
func (c *Config) RemoveCredential(id string) error {
	if c.Speech.CredentialID == id {
		return fmt.Errorf("credential in use by speech config")
	}

	idx := slices.IndexFunc(c.Credentials, func(x types.APICredential) bool {
		return x.ID == id
	})
	if idx == -1 {
		return fmt.Errorf("credential not found: %s", id)
	}

	c.Credentials = slices.Delete(c.Credentials, idx, idx+1)
	return c.Save()
}

// ─────────────────────────────────────────────────────────────────────────────
// Speech Configuration
// ─────────────────────────────────────────────────────────────────────────────

// SetSpeechConfig validates and stores the speech configuration.
func (c *Config) SetSpeechConfig(cfg types.SpeechConfig) error {
	switch cfg.Provider {
	case ProviderWhisperAPI:
		if cfg.CredentialID == "" {
			return fmt.Errorf("credential required for %s", cfg.Provider)
		}
		cred := c.GetCredential(cfg.CredentialID)
		if cred == nil {
			return fmt.Errorf("credential not found: %s", cfg.CredentialID)
		}
		if cred.Type != "openai" && cred.Type != "openai-compatible" {
			return fmt.Errorf("speech config requires OpenAI-compatible credential")
		}
	case ProviderWhisperLocal:
	default:
		return fmt.Errorf("unknown speech provider: %s", cfg.Provider)
	}

	c.Speech = cfg
	c.Normalize()
	return c.Save()
}

// SpeechCredential returns the credential selected by the speech config.
func (c *Config) SpeechCredential() *types.APICredential {
	if c.Speech.CredentialID == "" {
		return nil
	}
	return c.GetCredential(c.Speech.CredentialID)
}
