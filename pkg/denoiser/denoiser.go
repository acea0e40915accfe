package denoiser

import (
	"context"
	"io"

	"github.com/xaionaro-go/denoise/pkg/audio"
)

// Denoiser is a frame-wise noise suppression kernel. It consumes exactly one
// FrameSize()-long frame of mono signed 16-bit PCM at SampleRate() and
// produces a denoised frame of the same size plus a voice activity
// probability in [0..1].
//
// Implementations are stateful (they accumulate signal context across
// frames), so one instance serves exactly one stream.
type Denoiser interface {
	io.Closer

	SampleRate() audio.SampleRate
	FrameSize() int

	ProcessFrame(ctx context.Context, input []int16, output []int16) (float64, error)
}
