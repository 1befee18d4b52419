package audio

import (
	"encoding/binary"
	"math"
)

// Clip hard-limits a float sample to [-1, 1]. NaN becomes silence.
func Clip(s float64) float64 {
	switch {
	case s != s:
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// Quantize converts a float sample to signed 16-bit PCM. The sample is
// clipped first, negative values scale by 32768 and positive values by 32767,
// and the result is rounded half up.
func Quantize(s float64) int16 {
	s = Clip(s)
	if s < 0 {
		return int16(math.Floor(s*32768 + 0.5))
	}
	return int16(math.Floor(s*32767 + 0.5))
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	putSamples(buf, samples)
	return buf
}

// BytesToSamples decodes little-endian int16 samples. A trailing odd byte is ignored.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return samples
}

func putSamples(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}
