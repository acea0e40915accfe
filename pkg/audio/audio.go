package audio

import (
	"encoding/binary"
	"time"
)

type SampleRate uint32

const (
	// ProcessingSampleRate is the sample rate the denoising kernels operate at.
	ProcessingSampleRate SampleRate = 48000

	// FrameDuration is the fixed duration of one analysis frame.
	FrameDuration = 10 * time.Millisecond

	// BytesPerSample is the size of one signed 16-bit PCM sample.
	BytesPerSample = 2
)

// FrameSamples returns the amount of samples in one FrameDuration-long frame
// at the given sample rate. The division truncates: for rates that are not a
// multiple of 100 (e.g. 11025Hz) the frame is slightly shorter than
// FrameDuration. This matches the frame bookkeeping of the denoising kernels
// and is intentional.
func FrameSamples(rate SampleRate) int {
	return int(uint64(rate) * uint64(FrameDuration) / uint64(time.Second))
}

// BytesToSamples converts little-endian signed 16-bit PCM bytes into samples.
// The length of the input is expected to be a multiple of BytesPerSample.
func BytesToSamples(dst []int16, src []byte) int {
	n := len(src) / BytesPerSample
	if n > len(dst) {
		n = len(dst)
	}
	for idx := 0; idx < n; idx++ {
		dst[idx] = int16(binary.LittleEndian.Uint16(src[idx*BytesPerSample:]))
	}
	return n
}

// SamplesToBytes converts samples into little-endian signed 16-bit PCM bytes.
func SamplesToBytes(dst []byte, src []int16) int {
	n := len(dst) / BytesPerSample
	if n > len(src) {
		n = len(src)
	}
	for idx := 0; idx < n; idx++ {
		binary.LittleEndian.PutUint16(dst[idx*BytesPerSample:], uint16(src[idx]))
	}
	return n
}
