package stt

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"go.aimuz.me/scribe/langdetect"
	"go.aimuz.me/scribe/transcript"
)

const defaultWhisperModel = "whisper-1"

// WhisperAPI implements the Provider interface using OpenAI's transcription
// endpoint.
type WhisperAPI struct {
	client openai.Client
	model  string
	ready  bool
}

// WhisperAPIConfig holds configuration for WhisperAPI.
type WhisperAPIConfig struct {
	APIKey  string
	BaseURL string // Optional, defaults to OpenAI's API
	Model   string // Optional, defaults to "whisper-1"
	Timeout time.Duration
}

// NewWhisperAPI creates a new WhisperAPI provider.
func NewWhisperAPI(cfg WhisperAPIConfig) *WhisperAPI {
	model := cfg.Model
	if model == "" {
		model = defaultWhisperModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &WhisperAPI{
		client: openai.NewClient(opts...),
		model:  model,
		ready:  cfg.APIKey != "",
	}
}

func (w *WhisperAPI) Name() string        { return "whisper-api" }
func (w *WhisperAPI) DisplayName() string { return "OpenAI Whisper API" }
func (w *WhisperAPI) IsLocal() bool       { return false }
func (w *WhisperAPI) RequiresSetup() bool { return false }
func (w *WhisperAPI) IsReady() bool       { return w.ready }

func (w *WhisperAPI) Setup(context.Context, func(percent int)) error {
	if !w.ready {
		return fmt.Errorf("%w: API key is required", ErrNotReady)
	}
	return nil
}

// Transcribe uploads the file and requests segment timestamps.
func (w *WhisperAPI) Transcribe(ctx context.Context, path string, language string) (*Result, error) {
	if !w.ready {
		return nil, fmt.Errorf("%w: API key is required", ErrNotReady)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:           f,
		Model:          openai.AudioModel(w.model),
		ResponseFormat: openai.AudioResponseFormatVerboseJSON,
	}
	// The API rejects "auto"; omitting the field means auto-detect.
	if wantLanguage(language) {
		params.Language = openai.String(language)
	}

	var verbose verboseTranscription
	if _, err := w.client.Audio.Transcriptions.New(ctx, params, option.WithResponseBodyInto(&verbose)); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return verbose.result(language), nil
}

func (w *WhisperAPI) Close() error {
	return nil
}

// verboseTranscription is the verbose_json response body.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func (v *verboseTranscription) result(requested string) *Result {
	segs := make([]transcript.Segment, 0, len(v.Segments))
	for _, s := range v.Segments {
		segs = append(segs, transcript.Segment{
			Text:       s.Text,
			Start:      seconds(s.Start),
			End:        seconds(s.End),
			Confidence: min(1, math.Exp(s.AvgLogprob)),
		})
	}
	segs = normalize(segs)

	lang := langdetect.Normalize(v.Language)
	if lang == "" && wantLanguage(requested) {
		lang = requested
	}
	return &Result{
		Text:     joinText(segs),
		Language: lang,
		Segments: segs,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
