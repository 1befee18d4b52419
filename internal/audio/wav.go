package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header for PCM data.
const WAVHeaderSize = 44

// StreamDataLength is declared as the data length of a WAV stream whose end
// is not known in advance.
const StreamDataLength = 0xFFFFFFFF - 36

var (
	ErrNotWAV            = errors.New("not a RIFF/WAVE stream")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// WAVHeader builds the 44-byte header for dataLen bytes of 16-bit PCM.
func WAVHeader(sampleRate, channels int, dataLen uint32) []byte {
	h := make([]byte, WAVHeaderSize)
	blockAlign := channels * 2
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataLen)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // linear PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataLen)
	return h
}

// EncodeWAV serializes interleaved PCM16 samples into a complete WAV file.
func EncodeWAV(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, WAVHeaderSize+dataLen)
	copy(buf, WAVHeader(sampleRate, channels, uint32(dataLen)))
	putSamples(buf[WAVHeaderSize:], samples)
	return buf
}

// WriteWAVFile writes interleaved PCM16 samples to path as a WAV file.
func WriteWAVFile(path string, samples []int16, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}

// ReadWAV decodes an integer PCM WAV stream into a Source.
func ReadWAV(r io.ReadSeeker) (*Source, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}

	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	bits := int(dec.BitDepth)
	if bits != 8 && bits != 16 && bits != 24 && bits != 32 {
		return nil, fmt.Errorf("%w: %d-bit pcm", ErrUnsupportedFormat, bits)
	}
	scale := float64(int64(1) << (bits - 1))
	offset := 0
	if bits == 8 {
		offset = 128 // 8-bit WAV is unsigned
	}

	frames := len(buf.Data) / channels
	src := &Source{SampleRate: int(dec.SampleRate), Data: make([][]float64, channels)}
	for ch := range src.Data {
		src.Data[ch] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			src.Data[ch][i] = float64(buf.Data[i*channels+ch]-offset) / scale
		}
	}
	return src, nil
}
