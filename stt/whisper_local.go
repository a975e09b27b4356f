package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.aimuz.me/scribe/langdetect"
	"go.aimuz.me/scribe/transcript"
)

// WhisperLocal implements the Provider interface using local whisper.cpp.
// It uses the whisper-cpp CLI tool for transcription.
type WhisperLocal struct {
	modelPath string
	modelSize string // "tiny", "base", "small", "medium", "large"
	binPath   string // Path to whisper-cpp binary

	mu            sync.RWMutex
	ready         bool
	hasBinary     bool
	setupProgress int
}

// WhisperLocalConfig holds configuration for WhisperLocal.
type WhisperLocalConfig struct {
	ModelSize string // "tiny", "base", "small", "medium", "large"
	ModelDir  string // Directory to store models
	BinPath   string // Path to whisper-cpp binary (optional, searched if not set)
}

// Model sizes and their approximate download sizes.
var modelSizes = map[string]struct {
	URL  string
	Size int64 // Approximate size in bytes
}{
	"tiny":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin", 75 * 1024 * 1024},
	"base":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin", 150 * 1024 * 1024},
	"small":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin", 500 * 1024 * 1024},
	"medium": {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin", 1500 * 1024 * 1024},
	"large":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin", 3000 * 1024 * 1024},
}

// NewWhisperLocal creates a new WhisperLocal provider.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "base"
	}

	if _, ok := modelSizes[cfg.ModelSize]; !ok {
		return nil, fmt.Errorf("invalid model size: %s", cfg.ModelSize)
	}

	if cfg.ModelDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.ModelDir = filepath.Join(homeDir, ".scribe", "models")
	}

	w := &WhisperLocal{
		modelSize:     cfg.ModelSize,
		modelPath:     filepath.Join(cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", cfg.ModelSize)),
		binPath:       cfg.BinPath,
		setupProgress: -1,
	}

	if w.binPath == "" {
		w.binPath = findWhisperBinary()
	}
	if w.binPath != "" {
		if _, err := os.Stat(w.binPath); err == nil {
			w.hasBinary = true
		}
	}

	// Ready only if both binary and model exist
	if _, err := os.Stat(w.modelPath); err == nil && w.hasBinary {
		w.ready = true
		w.setupProgress = 100
	}

	return w, nil
}

func (w *WhisperLocal) Name() string { return "whisper-local" }
func (w *WhisperLocal) DisplayName() string {
	if !w.HasBinary() {
		return fmt.Sprintf("Whisper Local (%s) [whisper.cpp not installed]", w.modelSize)
	}
	return fmt.Sprintf("Whisper Local (%s)", w.modelSize)
}
func (w *WhisperLocal) IsLocal() bool       { return true }
func (w *WhisperLocal) RequiresSetup() bool { return !w.IsReady() }

// HasBinary returns true if whisper-cpp binary is available.
func (w *WhisperLocal) HasBinary() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hasBinary
}

func (w *WhisperLocal) IsReady() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

// SetupProgress returns the model download progress (0-100), -1 if not started.
func (w *WhisperLocal) SetupProgress() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.setupProgress
}

// Setup downloads the whisper model if needed.
func (w *WhisperLocal) Setup(ctx context.Context, progress func(percent int)) error {
	w.mu.Lock()
	if w.ready {
		w.mu.Unlock()
		return nil
	}
	w.setupProgress = 0
	w.mu.Unlock()

	modelInfo := modelSizes[w.modelSize]

	if err := os.MkdirAll(filepath.Dir(w.modelPath), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	if err := w.downloadModel(ctx, modelInfo.URL, modelInfo.Size, progress); err != nil {
		return fmt.Errorf("download model: %w", err)
	}

	w.mu.Lock()
	w.ready = w.hasBinary
	w.setupProgress = 100
	w.mu.Unlock()

	if progress != nil {
		progress(100)
	}
	if !w.HasBinary() {
		return fmt.Errorf("%w: whisper-cpp binary not found", ErrNotReady)
	}
	return nil
}

func (w *WhisperLocal) downloadModel(ctx context.Context, url string, expectedSize int64, progress func(percent int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}

	tmpPath := w.modelPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // Clean up on failure
	}()

	pw := &progressWriter{total: expectedSize, report: func(pct int) {
		w.mu.Lock()
		w.setupProgress = pct
		w.mu.Unlock()
		if progress != nil {
			progress(pct)
		}
	}}
	if _, err := io.Copy(f, io.TeeReader(resp.Body, pw)); err != nil {
		return fmt.Errorf("write model: %w", err)
	}

	// Close file before rename
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, w.modelPath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// progressWriter reports whole-percent progress as bytes pass through.
type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(pct int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		pct := min(99, int(p.written*100/p.total))
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return len(b), nil
}

// Transcribe converts the file to 16 kHz mono WAV and runs whisper.cpp on it.
func (w *WhisperLocal) Transcribe(ctx context.Context, path string, language string) (*Result, error) {
	if !w.IsReady() {
		return nil, fmt.Errorf("%w: model or binary missing", ErrNotReady)
	}

	samples, err := loadMono16k(path)
	if err != nil {
		return nil, fmt.Errorf("prepare audio: %w", err)
	}

	audioPath := filepath.Join(os.TempDir(), fmt.Sprintf("scribe_audio_%d.wav", time.Now().UnixNano()))
	if err := writeWAV(audioPath, samples, whisperSampleRate); err != nil {
		return nil, fmt.Errorf("write audio file: %w", err)
	}
	defer os.Remove(audioPath)

	// -ojf writes <output>.json with per-token probabilities.
	outBase := strings.TrimSuffix(audioPath, ".wav")
	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-ojf",
		"-of", outBase,
		"--no-prints",
	}
	if wantLanguage(language) {
		args = append(args, "-l", language)
	} else {
		args = append(args, "-l", "auto")
	}

	cmd := exec.CommandContext(ctx, w.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper-cpp failed: %w, stderr: %s", err, stderr.String())
	}

	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}

	return parseWhisperCpp(data, language)
}

func (w *WhisperLocal) Close() error {
	return nil
}

// whisperCppOutput represents the -ojf JSON output from whisper.cpp.
type whisperCppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
		Tokens []struct {
			Text string  `json:"text"`
			P    float64 `json:"p"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func parseWhisperCpp(data []byte, requested string) (*Result, error) {
	var out whisperCppOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segs := make([]transcript.Segment, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		var sum float64
		var n int
		for _, tok := range seg.Tokens {
			// Special tokens look like [_BEG_] or [_TT_123].
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			sum += tok.P
			n++
		}
		conf := 0.0
		if n > 0 {
			conf = sum / float64(n)
		}

		segs = append(segs, transcript.Segment{
			Text:       seg.Text,
			Start:      time.Duration(seg.Offsets.From) * time.Millisecond,
			End:        time.Duration(seg.Offsets.To) * time.Millisecond,
			Confidence: conf,
		})
	}
	segs = normalize(segs)

	lang := langdetect.Normalize(out.Result.Language)
	if lang == "" && wantLanguage(requested) {
		lang = requested
	}
	return &Result{
		Text:     joinText(segs),
		Language: lang,
		Segments: segs,
	}, nil
}

func findWhisperBinary() string {
	// Common binary names - whisper-cli is the Homebrew name
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp"),
	}

	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	// On macOS, check for bundled binary
	if runtime.GOOS == "darwin" {
		execPath, _ := os.Executable()
		bundlePath := filepath.Join(filepath.Dir(execPath), "..", "Resources", "whisper-cpp")
		if _, err := os.Stat(bundlePath); err == nil {
			return bundlePath
		}
	}

	return ""
}
