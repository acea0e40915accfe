package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameSamples(t *testing.T) {
	assert.Equal(t, 480, FrameSamples(48000))
	assert.Equal(t, 441, FrameSamples(44100))
	assert.Equal(t, 160, FrameSamples(16000))
	assert.Equal(t, 80, FrameSamples(8000))

	// The division truncates for rates that are not a multiple of 100.
	assert.Equal(t, 110, FrameSamples(11025))
	assert.Equal(t, 220, FrameSamples(22050))
}

func TestBytesSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}

	buf := make([]byte, len(samples)*BytesPerSample)
	assert.Equal(t, len(samples), SamplesToBytes(buf, samples))
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0x00}, buf[:4])

	decoded := make([]int16, len(samples))
	assert.Equal(t, len(samples), BytesToSamples(decoded, buf))
	assert.Equal(t, samples, decoded)
}
