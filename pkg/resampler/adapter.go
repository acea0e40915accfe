package resampler

import (
	"fmt"

	"github.com/xaionaro-go/denoise/pkg/audio"
)

// Adapter converts frames between the caller's input rate and the kernel's
// processing rate. When the rates are equal it is a plain copy; otherwise it
// holds one persistent StreamResampler per direction, created once and kept
// for the lifetime of the stream (see the StreamResampler package comment on
// why the state must not be recreated per call).
type Adapter interface {
	ToProcessingRate(dst []int16, src []int16) error
	ToInputRate(dst []int16, src []int16) error
	Reset()
}

func NewAdapter(
	inputRate audio.SampleRate,
	processingRate audio.SampleRate,
	quality int,
) (Adapter, error) {
	if inputRate == processingRate {
		return PassThrough{}, nil
	}
	up, err := NewStreamResampler(inputRate, processingRate, quality)
	if err != nil {
		return nil, fmt.Errorf("unable to create the upsampler: %w", err)
	}
	down, err := NewStreamResampler(processingRate, inputRate, quality)
	if err != nil {
		return nil, fmt.Errorf("unable to create the downsampler: %w", err)
	}
	return &ResamplingAdapter{Up: up, Down: down}, nil
}

// PassThrough is the adapter for inputRate == processingRate.
type PassThrough struct{}

var _ Adapter = PassThrough{}

func (PassThrough) ToProcessingRate(dst []int16, src []int16) error {
	return passCopy(dst, src)
}

func (PassThrough) ToInputRate(dst []int16, src []int16) error {
	return passCopy(dst, src)
}

func (PassThrough) Reset() {}

func passCopy(dst []int16, src []int16) error {
	if len(dst) != len(src) {
		return fmt.Errorf("frame size mismatch on the pass-through path: %d != %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// ResamplingAdapter carries the up and down direction filter states.
type ResamplingAdapter struct {
	Up   *StreamResampler
	Down *StreamResampler
}

var _ Adapter = (*ResamplingAdapter)(nil)

func (a *ResamplingAdapter) ToProcessingRate(dst []int16, src []int16) error {
	if err := a.Up.ProcessInto(dst, src); err != nil {
		return fmt.Errorf("unable to resample to the processing rate: %w", err)
	}
	return nil
}

func (a *ResamplingAdapter) ToInputRate(dst []int16, src []int16) error {
	if err := a.Down.ProcessInto(dst, src); err != nil {
		return fmt.Errorf("unable to resample back to the input rate: %w", err)
	}
	return nil
}

func (a *ResamplingAdapter) Reset() {
	a.Up.Reset()
	a.Down.Reset()
}
