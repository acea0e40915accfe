package denoiser

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/denoise/pkg/audio"
)

// Dummy passes audio through untouched and reports a fixed voice activity
// probability. Useful for tests and for wiring up a pipeline without a real
// kernel.
type Dummy struct {
	SampleRateValue     audio.SampleRate
	FrameSizeValue      int
	VADProbabilityValue float64
}

var _ Denoiser = (*Dummy)(nil)

func NewDummy(
	sampleRate audio.SampleRate,
	vadProbability float64,
) *Dummy {
	return &Dummy{
		SampleRateValue:     sampleRate,
		FrameSizeValue:      audio.FrameSamples(sampleRate),
		VADProbabilityValue: vadProbability,
	}
}

func (d *Dummy) Close() error {
	return nil
}

func (d *Dummy) SampleRate() audio.SampleRate {
	return d.SampleRateValue
}

func (d *Dummy) FrameSize() int {
	return d.FrameSizeValue
}

func (d *Dummy) ProcessFrame(
	_ context.Context,
	input []int16,
	output []int16,
) (float64, error) {
	if len(input) != d.FrameSizeValue || len(output) != d.FrameSizeValue {
		return 0, fmt.Errorf("expected frames of %d samples, got input:%d output:%d", d.FrameSizeValue, len(input), len(output))
	}
	copy(output, input)
	return d.VADProbabilityValue, nil
}
