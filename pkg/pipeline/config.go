package pipeline

import (
	"fmt"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/denoiser"
	"github.com/xaionaro-go/denoise/pkg/resampler"
)

// FrameResult describes one processed frame as delivered to the callback.
type FrameResult struct {
	// VADProbability is the voice activity probability in [0..1]. Reads as 0
	// when statistics/VAD collection is disabled.
	VADProbability float32
	// IsSpeech is VADProbability >= the configured threshold (inclusive).
	IsSpeech bool
	// SamplesProcessed is the amount of real (not padding) samples in the
	// delivered output, at the input sample rate.
	SamplesProcessed int
}

// Callback receives the denoised samples of one frame. The samples slice is
// only valid until the callback returns; the pipeline reuses the backing
// storage for the next frame.
type Callback func(samples []int16, result FrameResult)

type Config struct {
	// InputSampleRate is the rate the caller's chunks arrive at (and the
	// rate the output is delivered at).
	InputSampleRate audio.SampleRate
	// ResampleQuality selects the resampling interpolation, 0 (fastest) to
	// 10 (best). Ignored when no resampling is needed.
	ResampleQuality int
	// VADThreshold gates FrameResult.IsSpeech, in [0..1].
	VADThreshold float32
	// CollectStatistics enables per-frame VAD output and the running
	// statistics. When disabled VADProbability reads as 0, IsSpeech as
	// false, and Stats() stays at zero.
	CollectStatistics bool
	// ModelPath points to a custom kernel model file; empty selects the
	// embedded model. Ignored when Kernel is set.
	ModelPath string
	// Kernel overrides the built-in spectral gate kernel. The pipeline does
	// not close a caller-provided kernel.
	Kernel denoiser.Denoiser
	// Callback receives every processed frame. Required.
	Callback Callback
}

func DefaultConfig() Config {
	return Config{
		InputSampleRate:   audio.ProcessingSampleRate,
		ResampleQuality:   5,
		VADThreshold:      0.5,
		CollectStatistics: true,
	}
}

func (cfg Config) validate() error {
	if cfg.InputSampleRate == 0 {
		return fmt.Errorf("the input sample rate is not set")
	}
	if audio.FrameSamples(cfg.InputSampleRate) == 0 {
		return fmt.Errorf("the input sample rate %d is too low for %v frames", cfg.InputSampleRate, audio.FrameDuration)
	}
	if cfg.ResampleQuality < resampler.QualityMin || cfg.ResampleQuality > resampler.QualityMax {
		return fmt.Errorf("resample quality %d is out of the range [%d..%d]", cfg.ResampleQuality, resampler.QualityMin, resampler.QualityMax)
	}
	if cfg.VADThreshold < 0 || cfg.VADThreshold > 1 {
		return fmt.Errorf("VAD threshold %f is out of the range [0..1]", cfg.VADThreshold)
	}
	if cfg.Callback == nil {
		return fmt.Errorf("a result callback is required")
	}
	return nil
}
