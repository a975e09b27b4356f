package stt

import (
	"fmt"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"go.aimuz.me/scribe/decode"
	"go.aimuz.me/scribe/resample"
)

// whisperSampleRate is the input rate whisper.cpp expects.
const whisperSampleRate = 16000

// loadMono16k decodes path and converts it to mono at whisperSampleRate.
// Rate conversion is linear interpolation, which is adequate for speech
// recognition input.
func loadMono16k(path string) ([]float32, error) {
	src, err := decode.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ratio := float64(src.SampleRate()) / whisperSampleRate
	if ratio < resample.MinSpeed || ratio > resample.MaxSpeed {
		return nil, fmt.Errorf("unsupported sample rate %d", src.SampleRate())
	}

	rs := resample.New(src)
	rs.SetSpeed(ratio)

	ch := rs.Channels()
	buf := make([]float32, resample.ChunkFrames*ch)
	out := make([]float32, 0, int(src.Duration().Seconds()*whisperSampleRate)+1)

	for {
		n, err := rs.Read(buf)
		for i := range n {
			var sum float32
			for c := range ch {
				sum += buf[i*ch+c]
			}
			out = append(out, sum/float32(ch))
		}
		if err != nil {
			return nil, fmt.Errorf("read audio: %w", err)
		}
		if n < resample.ChunkFrames {
			return out, nil
		}
	}
}

// writeWAV writes mono 16-bit PCM.
func writeWAV(path string, samples []float32, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var pos int
	stream := beep.StreamerFunc(func(buf [][2]float64) (int, bool) {
		if pos >= len(samples) {
			return 0, false
		}
		n := min(len(buf), len(samples)-pos)
		for i := range n {
			v := float64(samples[pos+i])
			buf[i] = [2]float64{v, v}
		}
		pos += n
		return n, true
	})

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, stream, format); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return f.Close()
}
