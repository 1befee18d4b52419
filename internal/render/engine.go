package render

import (
	"time"

	"github.com/satindergrewal/lofiboard/internal/audio"
)

// Channels is the channel count of every rendered mix.
const Channels = 2

// Input is one decoded source and the gain it is mixed at.
type Input struct {
	Source *audio.Source
	Gain   float64
}

// Mix is a rendered, quantized stereo mix.
type Mix struct {
	ID         string
	Frames     int
	SampleRate int
	Channels   int
	Samples    []int16 // interleaved, frame by frame

	Tracks  []string // catalog ids that were mixed
	Skipped []string // requested names that did not resolve
}

// MixSources sums inputs into frames stereo frames at sampleRate. Every
// source loops: output frame i reads source frame i mod length. The sum is
// hard-clipped to [-1, 1] and quantized to PCM16.
func MixSources(inputs []Input, frames, sampleRate int) *Mix {
	if frames < 0 {
		frames = 0
	}
	acc := make([]float64, frames*Channels)
	for _, in := range inputs {
		if in.Source == nil || in.Gain == 0 {
			continue
		}
		for ch := 0; ch < Channels; ch++ {
			data := in.Source.Channel(ch)
			if len(data) == 0 {
				continue
			}
			j := 0
			for i := 0; i < frames; i++ {
				acc[i*Channels+ch] += in.Gain * data[j]
				if j++; j == len(data) {
					j = 0
				}
			}
		}
	}

	samples := make([]int16, len(acc))
	for i, v := range acc {
		samples[i] = audio.Quantize(v)
	}
	return &Mix{
		Frames:     frames,
		SampleRate: sampleRate,
		Channels:   Channels,
		Samples:    samples,
	}
}

// DataLength returns the size in bytes of the PCM payload.
func (m *Mix) DataLength() int {
	return m.Frames * m.Channels * 2
}

// Duration returns the playing time of the mix.
func (m *Mix) Duration() time.Duration {
	if m.SampleRate <= 0 {
		return 0
	}
	return time.Duration(m.Frames) * time.Second / time.Duration(m.SampleRate)
}

// WAV serializes the mix as a canonical 44-byte-header WAV file.
func (m *Mix) WAV() []byte {
	return audio.EncodeWAV(m.Samples, m.SampleRate, m.Channels)
}

// WriteFile saves the mix as a WAV file.
func (m *Mix) WriteFile(path string) error {
	return audio.WriteWAVFile(path, m.Samples, m.SampleRate, m.Channels)
}
