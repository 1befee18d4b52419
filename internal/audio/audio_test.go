package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
}

func TestFramesFor(t *testing.T) {
	tests := []struct {
		d    time.Duration
		rate int
		want int
	}{
		{2 * time.Second, 8000, 16000},
		{44 * time.Second, 44100, 1940400},
		{time.Millisecond, 44100, 45}, // 44.1 rounds up
		{0, 44100, 0},
		{time.Second, 0, 0},
	}
	for _, tt := range tests {
		if got := FramesFor(tt.d, tt.rate); got != tt.want {
			t.Errorf("FramesFor(%v, %d) = %d, want %d", tt.d, tt.rate, got, tt.want)
		}
	}
}

// --- Source ---

func TestSourceLoopedMono(t *testing.T) {
	src := &Source{SampleRate: 8000, Data: [][]float64{{0.1, 0.2, 0.3}}}
	for i, want := range []float64{0.1, 0.2, 0.3, 0.1, 0.2, 0.3, 0.1} {
		if got := src.Looped(0, i); got != want {
			t.Errorf("Looped(0, %d) = %v, want %v", i, got, want)
		}
		// mono feeds the right channel too
		if got := src.Looped(1, i); got != want {
			t.Errorf("Looped(1, %d) = %v, want %v", i, got, want)
		}
	}
}

func TestSourceUnevenChannels(t *testing.T) {
	src := &Source{SampleRate: 8000, Data: [][]float64{{1, 2, 3, 4}, {5, 6}}}
	if src.Frames() != 2 {
		t.Fatalf("Frames = %d, want 2", src.Frames())
	}
	if got := src.Looped(0, 2); got != 1 {
		t.Errorf("Looped(0, 2) = %v, want 1 (wraps at shortest channel)", got)
	}
}

func TestSourceEmpty(t *testing.T) {
	src := &Source{SampleRate: 8000}
	if src.Frames() != 0 || src.Looped(0, 10) != 0 {
		t.Error("empty source should be silent")
	}
}

// --- Smoothstep / Ramp ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < f(%v)=%v", x, val, float64(i-1)/100.0, prev)
		}
		prev = val
	}
}

func TestRampReachesTarget(t *testing.T) {
	r := NewRamp(0, 4)
	if !r.Done() || r.Value() != 0 {
		t.Fatalf("new ramp should rest at 0, got %v done=%v", r.Value(), r.Done())
	}
	r.Set(1)
	want := []float64{0, Smoothstep(0.25), 0.5, Smoothstep(0.75), 1, 1}
	for i, w := range want {
		if got := r.Next(); math.Abs(got-w) > 1e-12 {
			t.Errorf("step %d = %v, want %v", i, got, w)
		}
	}
	if !r.Done() || r.Target() != 1 {
		t.Errorf("ramp should be done at 1")
	}
}

func TestRampRetargetMidway(t *testing.T) {
	r := NewRamp(0, 2)
	r.Set(1)
	r.Next()
	r.Next() // now at 1 (done)
	r.Set(0.5)
	if got := r.Next(); got != 1 {
		t.Errorf("retarget should start from current value, got %v", got)
	}
}

func TestRampZeroLength(t *testing.T) {
	r := NewRamp(0, 0)
	r.Set(0.7)
	if r.Value() != 0.7 || !r.Done() {
		t.Errorf("zero-length ramp should jump, got %v", r.Value())
	}
}

// --- Quantize ---

func TestQuantize(t *testing.T) {
	tests := []struct {
		in   float64
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{2.5, 32767},
		{-3, -32768},
		{0.5, 16384},   // 16383.5 rounds up
		{-0.5, -16384}, // exact
		{0.25, 8192},   // 8191.75
		{-0.25, -8192}, // exact
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Quantize(tt.in); got != tt.want {
			t.Errorf("Quantize(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQuantizeDeterministic(t *testing.T) {
	for i := -1000; i <= 1000; i++ {
		s := float64(i) / 1000
		if Quantize(s) != Quantize(s) {
			t.Fatalf("Quantize(%v) not deterministic", s)
		}
	}
}

// --- SamplesToBytes / round-trip ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []int16{0, 1, -1, 32767, -32768, 12345, -6789}
	recovered := BytesToSamples(SamplesToBytes(original))
	for i, v := range original {
		if recovered[i] != v {
			t.Errorf("Round-trip sample[%d]: got %d, want %d", i, recovered[i], v)
		}
	}
}

// --- WAV container ---

func TestEncodeWAVHeader(t *testing.T) {
	// 2s of stereo at 8kHz
	samples := make([]int16, 2*8000*2)
	buf := EncodeWAV(samples, 8000, 2)

	if len(buf) != 44+64000 {
		t.Fatalf("len = %d, want %d", len(buf), 44+64000)
	}
	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"riff size", le.Uint32(buf[4:8]), 64036},
		{"fmt size", le.Uint32(buf[16:20]), 16},
		{"format", uint32(le.Uint16(buf[20:22])), 1},
		{"channels", uint32(le.Uint16(buf[22:24])), 2},
		{"sample rate", le.Uint32(buf[24:28]), 8000},
		{"byte rate", le.Uint32(buf[28:32]), 32000},
		{"block align", uint32(le.Uint16(buf[32:34])), 4},
		{"bits", uint32(le.Uint16(buf[34:36])), 16},
		{"data size", le.Uint32(buf[40:44]), 64000},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	for _, tag := range []struct {
		off  int
		want string
	}{{0, "RIFF"}, {8, "WAVE"}, {12, "fmt "}, {36, "data"}} {
		if got := string(buf[tag.off : tag.off+4]); got != tag.want {
			t.Errorf("tag at %d = %q, want %q", tag.off, got, tag.want)
		}
	}
}

func TestEncodeWAVBody(t *testing.T) {
	samples := []int16{1, -2, 300, -32768}
	buf := EncodeWAV(samples, 44100, 2)
	got := BytesToSamples(buf[WAVHeaderSize:])
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("body sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestWriteWAVFileMatchesEncode(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 42, 7, -7}
	path := filepath.Join(t.TempDir(), "mix.wav")
	if err := WriteWAVFile(path, samples, 44100, 2); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := EncodeWAV(samples, 44100, 2)
	if !bytes.Equal(got, want) {
		t.Errorf("file bytes differ from EncodeWAV:\n got %x\nwant %x", got[:44], want[:44])
	}
}

func TestReadWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768, 100}
	src, err := ReadWAV(bytes.NewReader(EncodeWAV(samples, 8000, 2)))
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if src.SampleRate != 8000 || src.NumChannels() != 2 || src.Frames() != 3 {
		t.Fatalf("got rate=%d channels=%d frames=%d", src.SampleRate, src.NumChannels(), src.Frames())
	}
	if src.Data[0][1] != -0.5 || src.Data[1][0] != 0.5 {
		t.Errorf("unexpected samples: %v", src.Data)
	}
	for ch := range src.Data {
		for i, v := range src.Data[ch] {
			if math.Abs(float64(Quantize(v))-float64(samples[i*2+ch])) > 1 {
				t.Errorf("ch%d[%d]: %v does not quantize back to %d", ch, i, v, samples[i*2+ch])
			}
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("definitely not a riff wave stream")))
	if err == nil {
		t.Fatal("expected error for non-WAV input")
	}
}

// --- Decoders ---

func TestDecoderDetection(t *testing.T) {
	wavHead := EncodeWAV([]int16{0, 0}, 8000, 2)[:16]
	tests := []struct {
		name    string
		dec     Decoder
		locator string
		head    []byte
		want    bool
	}{
		{"wav magic", WAVDecoder{}, "/sounds/rain", wavHead, true},
		{"wav ext", WAVDecoder{}, "rain.WAV", nil, true},
		{"wav rejects mp3", WAVDecoder{}, "rain.mp3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00"), false},
		{"mp3 id3", MP3Decoder{}, "/sounds/rain", []byte("ID3\x04"), true},
		{"mp3 sync", MP3Decoder{}, "blob", []byte{0xFF, 0xFB, 0x90, 0x00}, true},
		{"mp3 ext with query", MP3Decoder{}, "http://x/rain.mp3?v=2", nil, true},
		{"mp3 rejects wav", MP3Decoder{}, "rain.wav", wavHead, false},
		{"ffmpeg accepts all", FFmpegDecoder{}, "rain.ogg", []byte("OggS"), true},
	}
	for _, tt := range tests {
		if got := tt.dec.CanDecode(tt.locator, tt.head); got != tt.want {
			t.Errorf("%s: CanDecode = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRegistryDecodeWAVSameRate(t *testing.T) {
	data := EncodeWAV([]int16{16384, -16384, 0, 0}, 8000, 2)
	src, err := NewRegistry(8000, WAVDecoder{}).Decode(context.Background(), "a.wav", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if src.SampleRate != 8000 || src.Frames() != 2 {
		t.Errorf("rate=%d frames=%d, want 8000/2", src.SampleRate, src.Frames())
	}
}

func TestRegistryDecodeResamples(t *testing.T) {
	mono := make([]int16, 4000)
	for i := range mono {
		mono[i] = int16(8000 * math.Sin(2*math.Pi*200*float64(i)/8000))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAVFile(path, mono, 8000, 1); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	src, err := NewRegistry(16000, WAVDecoder{}).Decode(context.Background(), path, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if src.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", src.SampleRate)
	}
	if src.NumChannels() != 1 {
		t.Errorf("NumChannels = %d, want 1", src.NumChannels())
	}
	if diff := src.Frames() - 8000; diff < -64 || diff > 64 {
		t.Errorf("Frames = %d, want about 8000", src.Frames())
	}
}

// testdata/shot.mp3 is a 1.5s stereo MP3 clip.
func TestRegistryDecodeMP3(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "shot.mp3"))
	if err != nil {
		t.Fatal(err)
	}

	src, err := DefaultRegistry(8000, "").Decode(context.Background(), "/sounds/shot.mp3", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if src.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", src.SampleRate)
	}
	if src.NumChannels() != 2 {
		t.Errorf("NumChannels = %d, want 2", src.NumChannels())
	}
	if d := src.Duration(); d < 1400*time.Millisecond || d > 1700*time.Millisecond {
		t.Errorf("Duration = %v, want about 1.5s", d)
	}

	nonzero := 0
	for ch := range src.Data {
		for i, v := range src.Data[ch][:src.Frames()] {
			if v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("ch%d[%d] = %v out of range", ch, i, v)
			}
			if v != 0 {
				nonzero++
			}
		}
	}
	if nonzero == 0 {
		t.Error("decoded MP3 is silent")
	}
}

func TestRegistryUnsupported(t *testing.T) {
	_, err := NewRegistry(8000, WAVDecoder{}).Decode(context.Background(), "rain.ogg", []byte("OggS-not-supported"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestRegistryDecodeErrorNamesFormat(t *testing.T) {
	_, err := NewRegistry(8000, WAVDecoder{}).Decode(context.Background(), "broken.wav", []byte("RIFF\x00\x00\x00\x00WAVEjunk"))
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestResampleInvalidRate(t *testing.T) {
	if _, err := Resample(&Source{SampleRate: 8000, Data: [][]float64{{0}}}, 0); err == nil {
		t.Error("expected error for zero target rate")
	}
}

// --- Pipeline ---

func constSource(v float64, frames int) *Source {
	left := make([]float64, frames)
	right := make([]float64, frames)
	for i := range left {
		left[i] = v
		right[i] = -v
	}
	return &Source{SampleRate: SampleRate, Data: [][]float64{left, right}}
}

func TestPipelineMixesVoices(t *testing.T) {
	p := NewPipeline(0)
	p.Play("rain", constSource(0.25, 10), 1)
	p.Play("wind", constSource(0.25, 7), 1)

	frame := p.mixFrame()
	if len(frame) != FrameSamples {
		t.Fatalf("frame length = %d, want %d", len(frame), FrameSamples)
	}
	for i := 0; i < FrameSize; i++ {
		if frame[i*2] != Quantize(0.5) || frame[i*2+1] != Quantize(-0.5) {
			t.Fatalf("frame %d = (%d, %d), want (%d, %d)", i, frame[i*2], frame[i*2+1], Quantize(0.5), Quantize(-0.5))
		}
	}
	if got := p.Playing(); len(got) != 2 || got[0] != "rain" || got[1] != "wind" {
		t.Errorf("Playing = %v", got)
	}
	if p.Position() != FrameDuration {
		t.Errorf("Position = %v, want %v", p.Position(), FrameDuration)
	}
}

func TestPipelineClipsSum(t *testing.T) {
	p := NewPipeline(0)
	p.Play("a", constSource(0.8, 4), 1)
	p.Play("b", constSource(0.8, 4), 1)
	frame := p.mixFrame()
	if frame[0] != 32767 || frame[1] != -32768 {
		t.Errorf("clipped frame = (%d, %d), want (32767, -32768)", frame[0], frame[1])
	}
}

func TestPipelineFadeIn(t *testing.T) {
	p := NewPipeline(10 * time.Millisecond) // 480 frames
	p.Play("rain", constSource(0.5, 100), 1)
	frame := p.mixFrame()
	if frame[0] != 0 {
		t.Errorf("first sample = %d, want 0 at start of fade", frame[0])
	}
	if frame[2*600] != Quantize(0.5) {
		t.Errorf("sample after fade = %d, want %d", frame[2*600], Quantize(0.5))
	}
}

func TestPipelineStopRemovesVoice(t *testing.T) {
	p := NewPipeline(0)
	p.Play("rain", constSource(0.5, 10), 1)
	p.Stop("rain")
	if len(p.Playing()) != 0 {
		t.Errorf("stopped voice still reported as playing")
	}
	frame := p.mixFrame()
	if frame[0] != 0 {
		t.Errorf("stopped voice still audible: %d", frame[0])
	}
	if len(p.voices) != 0 {
		t.Errorf("voice not dropped after fade out")
	}
}

func TestPipelineSetGain(t *testing.T) {
	p := NewPipeline(0)
	if p.SetGain("missing", 0.3) {
		t.Error("SetGain on unknown voice should fail")
	}
	p.Play("rain", constSource(0.5, 10), 1)
	if !p.SetGain("rain", 0.5) {
		t.Fatal("SetGain on playing voice should succeed")
	}
	frame := p.mixFrame()
	if frame[0] != Quantize(0.25) {
		t.Errorf("sample = %d, want %d", frame[0], Quantize(0.25))
	}
	p.StopAll()
	if p.SetGain("rain", 1) {
		t.Error("SetGain on stopping voice should fail")
	}
}

func TestPipelineRunStopsOnCancel(t *testing.T) {
	p := NewPipeline(0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case frame := <-p.Frames():
		if len(frame) != FrameSamples {
			t.Errorf("frame length = %d", len(frame))
		}
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}

func TestPipelinePositionLongUptime(t *testing.T) {
	p := NewPipeline(0)
	p.rendered = 100 * 3600 * SampleRate // 100 hours of frames
	if got, want := p.Position(), 100*time.Hour; got != want {
		t.Errorf("Position = %v, want %v", got, want)
	}

	p.rendered = SampleRate*90 + SampleRate/2
	if got, want := p.Position(), 90500*time.Millisecond; got != want {
		t.Errorf("Position = %v, want %v", got, want)
	}
}
