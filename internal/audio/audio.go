package audio

import "time"

// Live pipeline format. Offline renders choose their own rate.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Source is a fully decoded sound: one float64 slice per channel, samples in [-1, 1].
type Source struct {
	SampleRate int
	Data       [][]float64
}

// NumChannels returns the number of channels in the source.
func (s *Source) NumChannels() int {
	return len(s.Data)
}

// Frames returns the number of sample frames. Channels of unequal length are
// truncated to the shortest one.
func (s *Source) Frames() int {
	if len(s.Data) == 0 {
		return 0
	}
	n := len(s.Data[0])
	for _, ch := range s.Data[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	return n
}

// Duration returns the playing time of the source.
func (s *Source) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// Channel returns the samples feeding output channel ch of a stereo mix.
// Mono sources feed every output channel; extra channels beyond the output
// count are ignored. Returns nil for an empty source.
func (s *Source) Channel(ch int) []float64 {
	switch {
	case len(s.Data) == 0:
		return nil
	case ch < len(s.Data):
		return s.Data[ch][:s.Frames()]
	default:
		return s.Data[0][:s.Frames()]
	}
}

// Looped returns the sample of output channel ch at frame i, treating the
// source as infinitely repeating.
func (s *Source) Looped(ch, i int) float64 {
	data := s.Channel(ch)
	if len(data) == 0 {
		return 0
	}
	return data[i%len(data)]
}

// FramesFor returns the number of frames needed to cover d at sampleRate,
// rounded up.
func FramesFor(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	n := int64(d) * int64(sampleRate)
	return int((n + int64(time.Second) - 1) / int64(time.Second))
}
