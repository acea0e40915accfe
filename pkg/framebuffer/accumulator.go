package framebuffer

import (
	"fmt"
)

const baselineCapacity = 4096

// Accumulator collects samples of arbitrarily sized chunks and hands them
// back as fixed-size frames in arrival order. It never reallocates while the
// buffered amount stays below the current capacity, so a steady stream of
// small chunks settles into zero allocations.
//
// It is not safe for concurrent use; the owner is expected to serialize
// access (see pipeline.Pipeline).
type Accumulator struct {
	samples []int16
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		samples: make([]int16, 0, baselineCapacity),
	}
}

// Len returns the amount of currently buffered samples.
func (a *Accumulator) Len() int {
	return len(a.samples)
}

// Append adds samples to the end of the buffer. The backing storage grows to
// the doubled capacity or to the exact required size, whichever is larger.
func (a *Accumulator) Append(samples []int16) error {
	if len(samples) == 0 {
		return fmt.Errorf("refusing to append an empty chunk")
	}
	required := len(a.samples) + len(samples)
	if required > cap(a.samples) {
		newCap := cap(a.samples) * 2
		if newCap < required {
			newCap = required
		}
		grown := make([]int16, len(a.samples), newCap)
		copy(grown, a.samples)
		a.samples = grown
	}
	a.samples = append(a.samples, samples...)
	return nil
}

// PopFrame moves the oldest len(dst) samples into dst and shifts the
// remaining tail to the front. It reports false (and copies nothing) if
// fewer than len(dst) samples are buffered.
func (a *Accumulator) PopFrame(dst []int16) bool {
	frameSize := len(dst)
	if frameSize == 0 {
		panic("zero-sized frame requested")
	}
	if len(a.samples) < frameSize {
		return false
	}
	copy(dst, a.samples[:frameSize])
	remainder := copy(a.samples, a.samples[frameSize:])
	a.samples = a.samples[:remainder]
	return true
}

// FlushPadded copies everything that is buffered into dst, zero-fills the
// rest of dst and empties the buffer. It returns the amount of real (not
// padding) samples, and false if the buffer was already empty.
func (a *Accumulator) FlushPadded(dst []int16) (int, bool) {
	if len(a.samples) == 0 {
		return 0, false
	}
	n := copy(dst, a.samples)
	for idx := n; idx < len(dst); idx++ {
		dst[idx] = 0
	}
	a.samples = a.samples[:0]
	return n, true
}

// Reset empties the buffer and shrinks the backing storage back to the
// baseline, bounding the memory retained after a burst of oversized chunks.
func (a *Accumulator) Reset() {
	if cap(a.samples) > baselineCapacity {
		a.samples = make([]int16, 0, baselineCapacity)
		return
	}
	a.samples = a.samples[:0]
}
