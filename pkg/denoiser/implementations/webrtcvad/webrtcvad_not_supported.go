//go:build !fvad
// +build !fvad

package webrtcvad

import (
	"fmt"

	"github.com/xaionaro-go/denoise/pkg/denoiser"
)

type VAD = denoiser.Dummy

func New(
	aggressiveness int,
) (*VAD, error) {
	return nil, fmt.Errorf("built without tag 'fvad'")
}
