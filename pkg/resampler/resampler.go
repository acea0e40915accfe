// Package resampler converts mono signed 16-bit PCM between sample rates.
//
// Unlike a one-shot converter, StreamResampler keeps its fractional read
// position and a short sample history across calls, so feeding it a stream
// chunk by chunk produces the same output as resampling the whole stream at
// once. Recreating the state per call would reintroduce an edge transient at
// every chunk boundary.
package resampler

import (
	"fmt"

	"github.com/xaionaro-go/denoise/pkg/audio"
)

// historyLen is the amount of trailing input samples carried between calls;
// enough for the 4-point cubic kernel to interpolate across a chunk boundary.
const historyLen = 3

const (
	// QualityMin..QualityMax is the accepted quality range. Low values use
	// sample-and-hold, the middle of the range linear interpolation, the top
	// a 4-point Catmull-Rom kernel.
	QualityMin = 0
	QualityMax = 10
)

type interpolationMode int

const (
	interpolationHold interpolationMode = iota
	interpolationLinear
	interpolationCubic
)

type StreamResampler struct {
	inRate  audio.SampleRate
	outRate audio.SampleRate
	mode    interpolationMode

	// step is the amount of input samples one output sample advances by.
	step float64
	// pos is the fractional read position, relative to the first sample of
	// the current chunk. Negative values point into the history.
	pos  float64
	hist [historyLen]int16
}

func NewStreamResampler(
	inRate audio.SampleRate,
	outRate audio.SampleRate,
	quality int,
) (*StreamResampler, error) {
	if inRate == 0 || outRate == 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inRate, outRate)
	}
	if quality < QualityMin || quality > QualityMax {
		return nil, fmt.Errorf("quality %d is out of the range [%d..%d]", quality, QualityMin, QualityMax)
	}
	mode := interpolationLinear
	switch {
	case quality <= 2:
		mode = interpolationHold
	case quality >= 8:
		mode = interpolationCubic
	}
	return &StreamResampler{
		inRate:  inRate,
		outRate: outRate,
		mode:    mode,
		step:    float64(inRate) / float64(outRate),
		pos:     initialPosition,
	}, nil
}

// initialPosition delays the read position by two input samples, so the
// interpolation kernels always have a right-hand neighbor inside the current
// chunk. The cost is a constant latency of two input samples.
const initialPosition = -2

// ProcessInto produces exactly len(dst) output samples from src and the
// carried state. The caller decides the input/output length ratio; when the
// requested output does not consume src exactly (truncated frame sizes at
// rates like 11025Hz), the leftover fraction is carried and re-synced at the
// next chunk boundary instead of accumulating without a bound.
func (r *StreamResampler) ProcessInto(dst []int16, src []int16) error {
	if len(src) == 0 {
		return fmt.Errorf("refusing to resample an empty chunk")
	}
	if len(dst) == 0 {
		return fmt.Errorf("refusing to resample into an empty output")
	}

	for idx := range dst {
		srcPos := r.pos + float64(idx)*r.step
		dst[idx] = r.interpolate(src, srcPos)
	}

	r.pos += float64(len(dst))*r.step - float64(len(src))
	if r.pos > 0 {
		r.pos = 0
	}
	if r.pos < -historyLen {
		r.pos = -historyLen
	}

	// Carry the freshest samples for the next call.
	if len(src) >= historyLen {
		copy(r.hist[:], src[len(src)-historyLen:])
	} else {
		keep := historyLen - len(src)
		copy(r.hist[:], r.hist[historyLen-keep:])
		copy(r.hist[keep:], src)
	}
	return nil
}

// Reset drops the carried filter state; the next chunk behaves like the
// first one of a stream.
func (r *StreamResampler) Reset() {
	r.pos = initialPosition
	r.hist = [historyLen]int16{}
}

func (r *StreamResampler) interpolate(src []int16, srcPos float64) int16 {
	base := int(fastFloor(srcPos))
	frac := srcPos - float64(base)

	switch r.mode {
	case interpolationHold:
		return r.at(src, base)
	case interpolationCubic:
		p0 := float64(r.at(src, base-1))
		p1 := float64(r.at(src, base))
		p2 := float64(r.at(src, base+1))
		p3 := float64(r.at(src, base+2))
		// Catmull-Rom spline.
		v := p1 + 0.5*frac*(p2-p0+frac*(2*p0-5*p1+4*p2-p3+frac*(3*(p1-p2)+p3-p0)))
		return clampSample(v)
	default:
		s0 := float64(r.at(src, base))
		s1 := float64(r.at(src, base+1))
		return clampSample(s0 + (s1-s0)*frac)
	}
}

// at reads the virtual input sequence hist++src, where index 0 is the first
// sample of src. Out-of-range indices clamp to the nearest available sample.
func (r *StreamResampler) at(src []int16, idx int) int16 {
	if idx >= len(src) {
		idx = len(src) - 1
	}
	if idx >= 0 {
		return src[idx]
	}
	if idx < -historyLen {
		idx = -historyLen
	}
	return r.hist[historyLen+idx]
}

func fastFloor(v float64) float64 {
	f := float64(int64(v))
	if v < f {
		return f - 1
	}
	return f
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
