// Package stt provides speech-to-text providers that turn an audio file into
// timestamped transcript segments.
package stt

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.aimuz.me/scribe/transcript"
)

// ErrNotReady is returned by Transcribe when a provider lacks its API key,
// binary or model.
var ErrNotReady = errors.New("stt: provider not ready")

// Result represents the result of a transcription.
type Result struct {
	Text     string               `json:"text"`
	Language string               `json:"language"` // detected language code
	Segments []transcript.Segment `json:"segments"`
}

// Provider defines the interface for speech-to-text providers.
// Both local (whisper.cpp) and remote (OpenAI API) implementations
// must satisfy this interface.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// IsLocal returns true if the provider runs locally without API calls.
	IsLocal() bool

	// RequiresSetup returns true if setup is needed (e.g., model download).
	RequiresSetup() bool

	// IsReady returns true if the provider is ready to use.
	IsReady() bool

	// Setup performs initialization (e.g., download model).
	// The progress callback receives percentage (0-100).
	Setup(ctx context.Context, progress func(percent int)) error

	// Transcribe converts the audio file at path into segments.
	// language: source language code (empty or "auto" to detect)
	Transcribe(ctx context.Context, path string, language string) (*Result, error)

	// Close releases resources held by the provider.
	Close() error
}

// Registry holds registered STT providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing one with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered providers in registration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.providers[name])
	}
	return result
}

// Default returns the named provider when it is ready, otherwise the first
// ready provider in registration order.
func (r *Registry) Default(preferred string) (Provider, error) {
	if p := r.Get(preferred); p != nil && p.IsReady() {
		return p, nil
	}
	for _, p := range r.List() {
		if p.IsReady() {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no provider available", ErrNotReady)
}

// Close releases all providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		if err := r.providers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// normalize trims segment text, drops empty segments and sorts by start.
func normalize(segs []transcript.Segment) []transcript.Segment {
	out := segs[:0]
	for _, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		s.End = max(s.End, s.Start)
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b transcript.Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return out
}

// joinText concatenates segment texts with single spaces.
func joinText(segs []transcript.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

func wantLanguage(language string) bool {
	return language != "" && language != "auto"
}
