package spectralgate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed model_default.json
var defaultModelJSON []byte

// Model is the parameter set of the spectral gate. The embedded default is
// tuned for speech at 48kHz; a custom model can be loaded from a JSON file.
type Model struct {
	// GainFloor is the minimum per-bin gain; it keeps a residual noise bed
	// instead of gating to digital silence, which sounds unnatural.
	GainFloor float64 `json:"gain_floor"`
	// Oversubtraction scales the tracked noise floor before subtraction.
	Oversubtraction float64 `json:"oversubtraction"`
	// NoiseAttack and NoiseRelease are the per-frame smoothing factors of the
	// noise floor estimate, for rising and falling bin magnitudes.
	NoiseAttack  float64 `json:"noise_attack"`
	NoiseRelease float64 `json:"noise_release"`
	// GainSmoothing blends the previous frame's per-bin gain into the
	// current one, avoiding musical-noise flutter between frames.
	GainSmoothing float64 `json:"gain_smoothing"`

	// VADBandLowHz..VADBandHighHz bound the band whose SNR drives the voice
	// activity probability.
	VADBandLowHz  float64 `json:"vad_band_low_hz"`
	VADBandHighHz float64 `json:"vad_band_high_hz"`
	// VADSlope and VADSNRMidpointDB parameterize the logistic mapping the
	// band SNR (in dB) to a probability.
	VADSlope         float64 `json:"vad_slope"`
	VADSNRMidpointDB float64 `json:"vad_snr_midpoint_db"`
}

// DefaultModel returns the embedded model.
func DefaultModel() Model {
	var m Model
	if err := json.Unmarshal(defaultModelJSON, &m); err != nil {
		panic(fmt.Errorf("the embedded model is broken: %w", err))
	}
	return m
}

// LoadModel reads and validates a model from a JSON file.
func LoadModel(path string) (Model, error) {
	var m Model
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("unable to read the model file '%s': %w", path, err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("unable to parse the model file '%s': %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return m, fmt.Errorf("invalid model '%s': %w", path, err)
	}
	return m, nil
}

func (m Model) Validate() error {
	if m.GainFloor < 0 || m.GainFloor > 1 {
		return fmt.Errorf("gain_floor %f is out of the range [0..1]", m.GainFloor)
	}
	if m.Oversubtraction <= 0 {
		return fmt.Errorf("oversubtraction %f is not positive", m.Oversubtraction)
	}
	if m.NoiseAttack <= 0 || m.NoiseAttack > 1 {
		return fmt.Errorf("noise_attack %f is out of the range (0..1]", m.NoiseAttack)
	}
	if m.NoiseRelease <= 0 || m.NoiseRelease > 1 {
		return fmt.Errorf("noise_release %f is out of the range (0..1]", m.NoiseRelease)
	}
	if m.GainSmoothing < 0 || m.GainSmoothing >= 1 {
		return fmt.Errorf("gain_smoothing %f is out of the range [0..1)", m.GainSmoothing)
	}
	if m.VADBandLowHz < 0 || m.VADBandHighHz <= m.VADBandLowHz {
		return fmt.Errorf("invalid VAD band: %f..%f", m.VADBandLowHz, m.VADBandHighHz)
	}
	if m.VADSlope <= 0 {
		return fmt.Errorf("vad_slope %f is not positive", m.VADSlope)
	}
	return nil
}
