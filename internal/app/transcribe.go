package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.aimuz.me/scribe/cache"
	"go.aimuz.me/scribe/langdetect"
	"go.aimuz.me/scribe/stt"
	"go.aimuz.me/scribe/transcript"
)

// Transcriber encapsulates transcription logic with caching.
// Zero value is not useful; create via NewTranscriber.
type Transcriber struct {
	cache *cache.Cache
}

// NewTranscriber creates a Transcriber with optional caching.
// If c is nil, caching is disabled.
func NewTranscriber(c *cache.Cache) *Transcriber {
	return &Transcriber{cache: c}
}

// TranscribeRequest identifies one transcription.
type TranscribeRequest struct {
	Path     string
	Model    string
	Language string
}

// Transcribe returns the transcript for req, from cache when possible.
// The second result reports a cache hit.
func (t *Transcriber) Transcribe(ctx context.Context, p stt.Provider, req TranscribeRequest) (*transcript.Transcript, bool, error) {
	key, err := cache.FileKey(req.Path, p.Name(), req.Model, req.Language)
	if err != nil {
		return nil, false, fmt.Errorf("cache key: %w", err)
	}

	if tr, ok := t.getCached(key, req.Path); ok {
		return tr, true, nil
	}

	start := time.Now()
	res, err := p.Transcribe(ctx, req.Path, req.Language)
	if err != nil {
		return nil, false, fmt.Errorf("transcribe: %w", err)
	}

	language := res.Language
	if language == "" {
		language, _ = langdetect.Detect(res.Text)
	}
	langdetect.TagSegments(res.Segments, language)

	tr := transcript.New(req.Path, p.Name(), language, res.Segments)
	t.setCache(key, tr, req.Model, time.Since(start))
	return tr, false, nil
}

func (t *Transcriber) getCached(key, path string) (*transcript.Transcript, bool) {
	if t.cache == nil {
		return nil, false
	}

	entry, found := t.cache.Get(key)
	if !found {
		return nil, false
	}
	return transcript.New(path, entry.Provider, entry.Language, entry.Segments), true
}

func (t *Transcriber) setCache(key string, tr *transcript.Transcript, model string, elapsed time.Duration) {
	if t.cache == nil {
		return
	}

	entry := &cache.Entry{
		Provider: tr.Provider,
		Model:    model,
		Language: tr.Language,
		Segments: tr.Segments,
		Usage: cache.Usage{
			AudioSeconds: tr.Duration().Seconds(),
			ElapsedMs:    elapsed.Milliseconds(),
		},
		CreatedAt: time.Now(),
	}

	// Caching is best effort
	if err := t.cache.Set(key, entry, cache.DefaultTTL); err != nil {
		slog.Warn("cache transcript", "path", tr.Source, "error", err)
	}
}
