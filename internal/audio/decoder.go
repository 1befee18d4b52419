package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
)

// Decoder turns encoded audio bytes into a Source at the stream's native rate.
type Decoder interface {
	// CanDecode reports whether this decoder handles the bytes found at locator.
	// head holds the leading bytes of the stream.
	CanDecode(locator string, head []byte) bool

	// Decode decodes a complete encoded stream.
	Decode(ctx context.Context, data []byte) (*Source, error)

	// FormatName returns the name of the format this decoder handles.
	FormatName() string
}

// Registry picks a decoder per stream and resamples the result to one rate.
type Registry struct {
	sampleRate int
	decoders   []Decoder
}

// NewRegistry creates a registry that resamples everything to sampleRate.
// Decoders are tried in order.
func NewRegistry(sampleRate int, decoders ...Decoder) *Registry {
	return &Registry{sampleRate: sampleRate, decoders: decoders}
}

// DefaultRegistry knows WAV and MP3 natively and hands anything else to
// ffmpeg when ffmpegPath is set.
func DefaultRegistry(sampleRate int, ffmpegPath string) *Registry {
	decoders := []Decoder{WAVDecoder{}, MP3Decoder{}}
	if ffmpegPath != "" {
		decoders = append(decoders, FFmpegDecoder{Path: ffmpegPath, SampleRate: sampleRate})
	}
	return NewRegistry(sampleRate, decoders...)
}

// SampleRate returns the rate every decoded source is converted to.
func (r *Registry) SampleRate() int {
	return r.sampleRate
}

// Decode decodes data fetched from locator and resamples it to the registry rate.
func (r *Registry) Decode(ctx context.Context, locator string, data []byte) (*Source, error) {
	head := data
	if len(head) > 16 {
		head = head[:16]
	}
	for _, d := range r.decoders {
		if !d.CanDecode(locator, head) {
			continue
		}
		src, err := d.Decode(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", d.FormatName(), err)
		}
		return Resample(src, r.sampleRate)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, locator)
}

// WAVDecoder decodes integer PCM WAV files.
type WAVDecoder struct{}

func (WAVDecoder) CanDecode(locator string, head []byte) bool {
	if len(head) >= 12 {
		return string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE"
	}
	return extension(locator) == ".wav"
}

func (WAVDecoder) Decode(_ context.Context, data []byte) (*Source, error) {
	return ReadWAV(bytes.NewReader(data))
}

func (WAVDecoder) FormatName() string { return "wav" }

// MP3Decoder decodes MPEG-1/2 Layer III streams.
type MP3Decoder struct{}

func (MP3Decoder) CanDecode(locator string, head []byte) bool {
	if len(head) >= 3 && string(head[:3]) == "ID3" {
		return true
	}
	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		return true
	}
	return extension(locator) == ".mp3"
}

func (MP3Decoder) Decode(_ context.Context, data []byte) (*Source, error) {
	s, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return drain(s, int(format.SampleRate), format.NumChannels)
}

func (MP3Decoder) FormatName() string { return "mp3" }

// FFmpegDecoder runs ffmpeg to decode any format it understands to stereo
// PCM at SampleRate.
type FFmpegDecoder struct {
	Path       string
	SampleRate int
}

func (FFmpegDecoder) CanDecode(string, []byte) bool { return true }

func (d FFmpegDecoder) Decode(ctx context.Context, data []byte) (*Source, error) {
	cmd := exec.CommandContext(ctx, d.Path,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(d.SampleRate),
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			log.Printf("ffmpeg: %s", msg)
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	samples := BytesToSamples(out)
	frames := len(samples) / 2
	src := &Source{SampleRate: d.SampleRate, Data: [][]float64{make([]float64, frames), make([]float64, frames)}}
	for i := 0; i < frames; i++ {
		src.Data[0][i] = float64(samples[i*2]) / 32768
		src.Data[1][i] = float64(samples[i*2+1]) / 32768
	}
	return src, nil
}

func (FFmpegDecoder) FormatName() string { return "ffmpeg" }

func extension(locator string) string {
	if i := strings.IndexAny(locator, "?#"); i >= 0 {
		locator = locator[:i]
	}
	return strings.ToLower(path.Ext(locator))
}

// Resample converts src to rate. Sources already at rate are returned as-is.
// The result has at most two channels.
func Resample(src *Source, rate int) (*Source, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", rate)
	}
	if src.SampleRate == rate || src.Frames() == 0 {
		return &Source{SampleRate: rate, Data: src.Data}, nil
	}
	if src.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid source sample rate %d", src.SampleRate)
	}
	channels := src.NumChannels()
	if channels > 2 {
		channels = 2
	}
	r := beep.Resample(4, beep.SampleRate(src.SampleRate), beep.SampleRate(rate), &sourceStreamer{src: src})
	return drain(r, rate, channels)
}

// sourceStreamer plays a Source once as a stereo beep.Streamer.
type sourceStreamer struct {
	src *Source
	pos int
}

func (s *sourceStreamer) Stream(samples [][2]float64) (int, bool) {
	left, right := s.src.Channel(0), s.src.Channel(1)
	if s.pos >= len(left) {
		return 0, false
	}
	n := 0
	for n < len(samples) && s.pos < len(left) {
		samples[n][0] = left[s.pos]
		samples[n][1] = right[s.pos]
		n++
		s.pos++
	}
	return n, true
}

func (s *sourceStreamer) Err() error { return nil }

// drain reads a streamer to the end into a Source with the given channel count.
func drain(s beep.Streamer, rate, channels int) (*Source, error) {
	if channels < 1 {
		channels = 1
	}
	if channels > 2 {
		channels = 2
	}
	data := make([][]float64, channels)
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			for ch := range data {
				data[ch] = append(data[ch], buf[i][ch])
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &Source{SampleRate: rate, Data: data}, nil
}
