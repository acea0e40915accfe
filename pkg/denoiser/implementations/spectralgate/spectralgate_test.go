package spectralgate

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/denoise/pkg/audio"
)

// lcgNoise produces deterministic pseudo-noise, so the tests do not flake.
func lcgNoise(n int, amplitude int32, seed uint32) []int16 {
	out := make([]int16, n)
	state := seed
	for idx := range out {
		state = state*1664525 + 1013904223
		out[idx] = int16(int32(state>>16)%(2*amplitude) - amplitude)
	}
	return out
}

func toneFrame(n int, freq float64, amplitude float64) []int16 {
	out := make([]int16, n)
	rate := float64(audio.ProcessingSampleRate)
	for idx := range out {
		out[idx] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(idx)/rate))
	}
	return out
}

func TestSpectralGate(t *testing.T) {
	ctx := context.Background()
	frameSize := audio.FrameSamples(audio.ProcessingSampleRate)

	t.Run("Contract", func(t *testing.T) {
		s, err := New("")
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, audio.ProcessingSampleRate, s.SampleRate())
		assert.Equal(t, frameSize, s.FrameSize())

		out := make([]int16, frameSize)
		_, err = s.ProcessFrame(ctx, make([]int16, frameSize-1), out)
		assert.Error(t, err)
		_, err = s.ProcessFrame(ctx, make([]int16, frameSize), out[:10])
		assert.Error(t, err)

		prob, err := s.ProcessFrame(ctx, make([]int16, frameSize), out)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prob, 0.0)
		assert.LessOrEqual(t, prob, 1.0)
	})

	t.Run("WarmupReportsNoVoice", func(t *testing.T) {
		s, err := New("")
		require.NoError(t, err)
		defer s.Close()

		out := make([]int16, frameSize)
		for idx := 0; idx < warmupFrames; idx++ {
			prob, err := s.ProcessFrame(ctx, toneFrame(frameSize, 1000, 20000), out)
			require.NoError(t, err)
			assert.Zero(t, prob, "frame %d", idx)
		}
	})

	t.Run("ToneAboveNoiseFloorLooksLikeVoice", func(t *testing.T) {
		s, err := New("")
		require.NoError(t, err)
		defer s.Close()

		out := make([]int16, frameSize)

		// Establish the noise floor on quiet pseudo-noise.
		var noiseProb float64
		for idx := 0; idx < 30; idx++ {
			var err error
			noiseProb, err = s.ProcessFrame(ctx, lcgNoise(frameSize, 200, uint32(idx+1)), out)
			require.NoError(t, err)
		}
		assert.Less(t, noiseProb, 0.5)

		// A strong in-band tone must stand far above that floor.
		var toneProb float64
		for idx := 0; idx < 5; idx++ {
			var err error
			toneProb, err = s.ProcessFrame(ctx, toneFrame(frameSize, 1000, 20000), out)
			require.NoError(t, err)
		}
		assert.Greater(t, toneProb, noiseProb)
		assert.Greater(t, toneProb, 0.5)
	})

	t.Run("SteadyNoiseGetsAttenuated", func(t *testing.T) {
		s, err := New("")
		require.NoError(t, err)
		defer s.Close()

		out := make([]int16, frameSize)
		var in []int16
		for idx := 0; idx < 40; idx++ {
			in = lcgNoise(frameSize, 3000, uint32(idx+1))
			_, err := s.ProcessFrame(ctx, in, out)
			require.NoError(t, err)
		}
		assert.Less(t, energy(out), energy(in))
	})

	t.Run("DoubleClose", func(t *testing.T) {
		s, err := New("")
		require.NoError(t, err)
		assert.NoError(t, s.Close())
		assert.Error(t, s.Close())

		out := make([]int16, frameSize)
		_, err = s.ProcessFrame(ctx, make([]int16, frameSize), out)
		assert.Error(t, err)
	})
}

func TestModelLoading(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("BrokenFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
		_, err := New(path)
		assert.Error(t, err)
	})

	t.Run("OutOfRangeParameter", func(t *testing.T) {
		m := DefaultModel()
		m.GainFloor = 2
		_, err := NewWithModel(m)
		assert.Error(t, err)
	})

	t.Run("CustomFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		require.NoError(t, os.WriteFile(path, defaultModelJSON, 0644))
		s, err := New(path)
		require.NoError(t, err)
		assert.NoError(t, s.Close())
	})

	t.Run("DefaultIsValid", func(t *testing.T) {
		assert.NoError(t, DefaultModel().Validate())
	})
}

func energy(samples []int16) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return sum
}
