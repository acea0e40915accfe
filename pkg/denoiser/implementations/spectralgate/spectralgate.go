// Package spectralgate is the built-in noise suppression kernel: a per-frame
// FFT spectral gate with a tracked per-bin noise floor and an SNR-driven
// voice activity estimate. It is intentionally small; for heavier lifting
// plug a different kernel into the pipeline.
package spectralgate

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/denoiser"
)

// warmupFrames is the amount of initial frames used purely for seeding the
// noise floor estimate; their reported voice probability is 0.
const warmupFrames = 10

const magnitudeEpsilon = 1e-9

type SpectralGate struct {
	model     Model
	rate      audio.SampleRate
	frameSize int

	analysisWindow []float64
	// windowCompensation scales the windowed-spectrum noise floor back to
	// rectangular-spectrum magnitudes before subtraction (the coherent gain
	// of the analysis window is below 1).
	windowCompensation float64
	noiseFloor         []float64
	gains              []float64
	rawInput           []float64
	windowedInput      []float64

	vadBandLow  int
	vadBandHigh int

	framesSeen uint64
	closed     bool
}

var _ denoiser.Denoiser = (*SpectralGate)(nil)

// New creates a spectral gate operating at the processing sample rate. An
// empty modelPath selects the embedded model; otherwise the model is loaded
// (and validated) from the given JSON file, failing construction if the file
// is missing or unreadable.
func New(modelPath string) (*SpectralGate, error) {
	var model Model
	if modelPath == "" {
		model = DefaultModel()
	} else {
		var err error
		model, err = LoadModel(modelPath)
		if err != nil {
			return nil, err
		}
	}
	return NewWithModel(model)
}

func NewWithModel(model Model) (*SpectralGate, error) {
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}

	rate := audio.ProcessingSampleRate
	frameSize := audio.FrameSamples(rate)
	bins := frameSize/2 + 1

	lowBin := int(math.Ceil(model.VADBandLowHz * float64(frameSize) / float64(rate)))
	highBin := int(math.Floor(model.VADBandHighHz * float64(frameSize) / float64(rate)))
	if highBin >= bins {
		highBin = bins - 1
	}
	if lowBin >= highBin {
		return nil, fmt.Errorf("the VAD band %f..%fHz collapses to nothing at %d bins", model.VADBandLowHz, model.VADBandHighHz, bins)
	}

	gains := make([]float64, bins)
	for idx := range gains {
		gains[idx] = 1
	}
	analysisWindow := window.Hann(frameSize)
	var windowSum float64
	for _, w := range analysisWindow {
		windowSum += w
	}
	return &SpectralGate{
		model:              model,
		rate:               rate,
		frameSize:          frameSize,
		analysisWindow:     analysisWindow,
		windowCompensation: float64(frameSize) / windowSum,
		noiseFloor:         make([]float64, bins),
		gains:              gains,
		rawInput:           make([]float64, frameSize),
		windowedInput:      make([]float64, frameSize),
		vadBandLow:         lowBin,
		vadBandHigh:        highBin,
	}, nil
}

func (s *SpectralGate) Close() error {
	if s.closed {
		return fmt.Errorf("double-close attempt")
	}
	s.closed = true
	return nil
}

func (s *SpectralGate) SampleRate() audio.SampleRate {
	return s.rate
}

func (s *SpectralGate) FrameSize() int {
	return s.frameSize
}

func (s *SpectralGate) ProcessFrame(
	ctx context.Context,
	input []int16,
	output []int16,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "ProcessFrame, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/ProcessFrame: %v %v", _ret, _err) }()

	if s.closed {
		return 0, fmt.Errorf("the kernel is closed")
	}
	if len(input) != s.frameSize || len(output) != s.frameSize {
		return 0, fmt.Errorf("expected frames of %d samples, got input:%d output:%d", s.frameSize, len(input), len(output))
	}

	for idx, sample := range input {
		v := float64(sample)
		s.rawInput[idx] = v
		s.windowedInput[idx] = v * s.analysisWindow[idx]
	}

	// The windowed spectrum drives the noise floor tracking and the VAD;
	// the gate itself is applied to the rectangular spectrum so that a
	// gain of 1 reconstructs the input exactly.
	analysisSpectrum := fft.FFTReal(s.windowedInput)
	s.updateNoiseFloor(analysisSpectrum)
	vadProbability := s.voiceProbability(analysisSpectrum)

	spectrum := fft.FFTReal(s.rawInput)
	s.updateGains(spectrum)
	for idx := range spectrum {
		bin := idx
		if bin >= len(s.gains) {
			bin = len(spectrum) - idx
		}
		spectrum[idx] *= complex(s.gains[bin], 0)
	}
	restored := fft.IFFT(spectrum)
	for idx := range output {
		output[idx] = clampSample(real(restored[idx]))
	}

	s.framesSeen++
	return vadProbability, nil
}

func (s *SpectralGate) updateNoiseFloor(spectrum []complex128) {
	seeding := s.framesSeen < warmupFrames
	for bin := range s.noiseFloor {
		mag := cmplx.Abs(spectrum[bin])
		switch {
		case seeding:
			if mag > s.noiseFloor[bin] {
				s.noiseFloor[bin] = mag
			}
		case mag < s.noiseFloor[bin]:
			s.noiseFloor[bin] += s.model.NoiseRelease * (mag - s.noiseFloor[bin])
		default:
			s.noiseFloor[bin] += s.model.NoiseAttack * (mag - s.noiseFloor[bin])
		}
	}
}

func (s *SpectralGate) updateGains(spectrum []complex128) {
	for bin := range s.gains {
		mag := cmplx.Abs(spectrum[bin]) + magnitudeEpsilon
		gain := 1 - s.model.Oversubtraction*s.windowCompensation*s.noiseFloor[bin]/mag
		if gain < s.model.GainFloor {
			gain = s.model.GainFloor
		}
		if gain > 1 {
			gain = 1
		}
		s.gains[bin] = s.model.GainSmoothing*s.gains[bin] + (1-s.model.GainSmoothing)*gain
	}
}

func (s *SpectralGate) voiceProbability(spectrum []complex128) float64 {
	if s.framesSeen < warmupFrames {
		return 0
	}

	var signal, noise float64
	for bin := s.vadBandLow; bin <= s.vadBandHigh; bin++ {
		signal += cmplx.Abs(spectrum[bin])
		noise += s.noiseFloor[bin]
	}
	snrDB := 10 * math.Log10((signal+magnitudeEpsilon)/(noise+magnitudeEpsilon))
	probability := 1 / (1 + math.Exp(-s.model.VADSlope*(snrDB-s.model.VADSNRMidpointDB)))
	if probability < 0 {
		return 0
	}
	if probability > 1 {
		return 1
	}
	return probability
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(math.Round(v))
}
