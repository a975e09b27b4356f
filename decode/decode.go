// Package decode opens audio files as seekable PCM sources.
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// ErrUnsupportedFormat is returned for files whose extension has no decoder.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Extensions lists the supported file extensions, lower-case with the dot.
var Extensions = []string{".wav", ".mp3"}

// Supported reports whether path has a decodable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// File is a decoded audio file. It yields interleaved float32 frames with
// the file's native channel count.
type File struct {
	mu       sync.Mutex
	f        *os.File
	stream   beep.StreamSeekCloser
	format   beep.Format
	channels int
	buf      [][2]float64
}

// Open decodes the file at path, choosing the decoder by extension.
func Open(path string) (*File, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode %s: %w", ext, err)
	}
	if format.SampleRate <= 0 {
		stream.Close()
		f.Close()
		return nil, fmt.Errorf("decode %s: invalid sample rate %d", ext, format.SampleRate)
	}

	channels := 1
	if format.NumChannels >= 2 {
		channels = 2
	}

	return &File{
		f:        f,
		stream:   stream,
		format:   format,
		channels: channels,
	}, nil
}

// ReadFrames reads up to frames interleaved frames into buf. It returns
// io.EOF once the stream is exhausted.
func (d *File) ReadFrames(buf []float32, frames int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frames = min(frames, len(buf)/d.channels)
	if frames <= 0 {
		return 0, nil
	}
	if cap(d.buf) < frames {
		d.buf = make([][2]float64, frames)
	}
	samples := d.buf[:frames]

	n, ok := d.stream.Stream(samples)
	if !ok {
		if err := d.stream.Err(); err != nil {
			return 0, fmt.Errorf("decode stream: %w", err)
		}
		return 0, io.EOF
	}

	if d.channels == 1 {
		for i := range n {
			buf[i] = float32(samples[i][0])
		}
	} else {
		for i := range n {
			buf[2*i] = float32(samples[i][0])
			buf[2*i+1] = float32(samples[i][1])
		}
	}
	return n, nil
}

func (d *File) Channels() int   { return d.channels }
func (d *File) SampleRate() int { return int(d.format.SampleRate) }

// Duration returns the total length of the stream.
func (d *File) Duration() time.Duration {
	return d.format.SampleRate.D(d.stream.Len())
}

// Seek moves the read position to pos, clamped to the stream bounds.
func (d *File) Seek(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := min(max(0, d.format.SampleRate.N(pos)), d.stream.Len())
	if err := d.stream.Seek(n); err != nil {
		return fmt.Errorf("seek %v: %w", pos, err)
	}
	return nil
}

// Close releases the decoder and the underlying file.
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.stream.Close()
	if cerr := d.f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	return err
}
