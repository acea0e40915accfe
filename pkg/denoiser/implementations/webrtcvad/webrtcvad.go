//go:build fvad
// +build fvad

package webrtcvad

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/josharian/fvad"

	"github.com/xaionaro-go/denoise/pkg/audio"
	"github.com/xaionaro-go/denoise/pkg/denoiser"
)

// VAD is a voice-activity-only kernel backed by libfvad (the WebRTC voice
// activity detector). It does not alter the audio: frames pass through
// unchanged and only the voice probability is computed. The underlying
// detector is binary, so the probability is either 0 or 1.
type VAD struct {
	Locker   sync.Mutex
	Detector *fvad.Detector

	frameSize int
}

var _ denoiser.Denoiser = (*VAD)(nil)

// Aggressiveness follows libfvad: 0 (least aggressive about marking frames
// as non-speech) to 3 (most aggressive).
func New(aggressiveness int) (*VAD, error) {
	d := fvad.NewDetector()
	if err := d.SetMode(aggressiveness); err != nil {
		d.Close()
		return nil, fmt.Errorf("unable to set the aggressiveness to %d: %w", aggressiveness, err)
	}
	if err := d.SetSampleRate(int(audio.ProcessingSampleRate)); err != nil {
		d.Close()
		return nil, fmt.Errorf("unable to set the sample rate to %d: %w", audio.ProcessingSampleRate, err)
	}
	return &VAD{
		Detector:  d,
		frameSize: audio.FrameSamples(audio.ProcessingSampleRate),
	}, nil
}

func (v *VAD) Close() error {
	v.Locker.Lock()
	defer v.Locker.Unlock()
	if v.Detector == nil {
		return fmt.Errorf("double-close attempt")
	}
	v.Detector.Close()
	v.Detector = nil
	return nil
}

func (v *VAD) SampleRate() audio.SampleRate {
	return audio.ProcessingSampleRate
}

func (v *VAD) FrameSize() int {
	return v.frameSize
}

func (v *VAD) ProcessFrame(
	ctx context.Context,
	input []int16,
	output []int16,
) (_ret float64, _err error) {
	logger.Tracef(ctx, "ProcessFrame, len:%d", len(input))
	defer func() { logger.Tracef(ctx, "/ProcessFrame: %v %v", _ret, _err) }()

	if len(input) != v.frameSize || len(output) != v.frameSize {
		return 0, fmt.Errorf("expected frames of %d samples, got input:%d output:%d", v.frameSize, len(input), len(output))
	}

	v.Locker.Lock()
	defer v.Locker.Unlock()
	if v.Detector == nil {
		return 0, fmt.Errorf("the detector is closed")
	}

	voice, err := v.Detector.Process(input)
	if err != nil {
		return 0, fmt.Errorf("unable to process the frame: %w", err)
	}
	copy(output, input)
	if voice {
		return 1, nil
	}
	return 0, nil
}
