package audiocapture

import (
	"encoding/binary"
	"errors"
)

// ErrOddLength is returned when PCM16 bytes are not sample aligned.
var ErrOddLength = errors.New("audiocapture: pcm16 byte length is odd")

// FloatToPCM16 clamps each sample to [-1, 1] and scales it by 32767,
// truncating toward zero.
func FloatToPCM16(dst []int16, src []float32) []int16 {
	dst = dst[:0]
	for _, s := range src {
		s = min(max(s, -1), 1)
		dst = append(dst, int16(s*32767))
	}
	return dst
}

// EncodePCM16 returns samples as little-endian bytes.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// DecodePCM16 parses little-endian PCM16 bytes.
func DecodePCM16(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out, nil
}

// Downmix averages interleaved frames of the given channel count into dst,
// which must hold len(src)/channels samples. It returns the written prefix.
func Downmix(dst, src []float32, channels int) []float32 {
	if channels <= 1 {
		n := copy(dst, src)
		return dst[:n]
	}
	frames := min(len(src)/channels, len(dst))
	inv := 1 / float32(channels)
	for f := range frames {
		var sum float32
		for c := range channels {
			sum += src[f*channels+c]
		}
		dst[f] = sum * inv
	}
	return dst[:frames]
}
