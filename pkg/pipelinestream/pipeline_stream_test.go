package pipelinestream

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/denoiser"
	"github.com/xaionaro-go/denoise/pkg/pipeline"
)

func passthroughConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Kernel = denoiser.NewDummy(audio.ProcessingSampleRate, 0.5)
	return cfg
}

func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*audio.BytesPerSample)
	audio.SamplesToBytes(out, samples)
	return out
}

func TestPipelineStream(t *testing.T) {
	ctx := context.Background()

	t.Run("EndToEnd", func(t *testing.T) {
		samples := make([]int16, 1000)
		for idx := range samples {
			samples[idx] = int16(idx - 500)
		}
		input := pcmBytes(samples)

		s, err := NewPipelineStream(ctx, bytes.NewReader(input), passthroughConfig(), 4096)
		require.NoError(t, err)
		defer s.Close()

		output, err := io.ReadAll(s)
		require.NoError(t, err)

		// Passthrough kernel, no resampling: the stream reproduces the input
		// byte for byte, including the flushed 40-sample tail.
		assert.Equal(t, input, output)

		stats := s.Stats()
		assert.EqualValues(t, 3, stats.FramesProcessed)
	})

	t.Run("PresetCallbackIsRejected", func(t *testing.T) {
		cfg := passthroughConfig()
		cfg.Callback = func([]int16, pipeline.FrameResult) {}
		s, err := NewPipelineStream(ctx, bytes.NewReader(nil), cfg, 4096)
		assert.Error(t, err)
		assert.Nil(t, s)
	})

	t.Run("DanglingByte", func(t *testing.T) {
		// 481 bytes cannot be an integral number of 16-bit samples.
		input := make([]byte, 481)
		s, err := NewPipelineStream(ctx, bytes.NewReader(input), passthroughConfig(), 4096)
		require.NoError(t, err)
		defer s.Close()

		_, err = io.ReadAll(s)
		assert.Error(t, err)
	})

	t.Run("TinyOutputBuffer", func(t *testing.T) {
		// The output buffer is smaller than one frame; delivery must make
		// progress by interleaving with the reader instead of deadlocking.
		samples := make([]int16, 960)
		input := pcmBytes(samples)

		s, err := NewPipelineStream(ctx, bytes.NewReader(input), passthroughConfig(), 128)
		require.NoError(t, err)
		defer s.Close()

		output, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, input, output)
	})

	t.Run("CloseWithFullOutputBuffer", func(t *testing.T) {
		// Nobody reads: the worker fills the tiny output buffer and blocks
		// waiting for a reader. Close must still terminate the delivery
		// (dropping the undelivered remainder) instead of hanging.
		samples := make([]int16, 960)
		s, err := NewPipelineStream(ctx, bytes.NewReader(pcmBytes(samples)), passthroughConfig(), 64)
		require.NoError(t, err)

		// Let the worker reach the blocked-on-delivery state.
		time.Sleep(100 * time.Millisecond)

		closedCh := make(chan error, 1)
		go func() { closedCh <- s.Close() }()
		select {
		case err := <-closedCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Close did not return while the output buffer was full")
		}
	})

	t.Run("CloseWakesReaders", func(t *testing.T) {
		pipeReader, _ := io.Pipe()
		s, err := NewPipelineStream(ctx, pipeReader, passthroughConfig(), 4096)
		require.NoError(t, err)

		readErrCh := make(chan error, 1)
		go func() {
			_, err := s.Read(make([]byte, 16))
			readErrCh <- err
		}()

		require.NoError(t, s.Close())
		assert.Error(t, <-readErrCh)
	})
}
