package voice

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// minWindowSize is the shortest window the roughness filter can work on.
const minWindowSize = 5

// weightSumTolerance is how far the component weights may stray from 1
// before they are renormalised.
const weightSumTolerance = 1e-6

// Weights are the contributions of each component score to the fused
// confidence. They should sum to 1; [NewAnalyzer] renormalises them otherwise.
type Weights struct {
	Noise     float64
	Frequency float64
	Energy    float64
}

func (w Weights) sum() float64 { return w.Noise + w.Frequency + w.Energy }

// Config holds the tuning parameters of an [Analyzer].
type Config struct {
	// SampleRate of the analysed windows in Hz. Typical: 44100.
	SampleRate int

	// WindowSize is the number of samples per analysis window. Must be at
	// least 5. Typical: 512.
	WindowSize int

	// VolumeThreshold is the RMS below which a window counts as silence and
	// the reference level for the energy score. Must be positive.
	VolumeThreshold float64

	// NoiseThreshold is the noise score at which the noise component
	// saturates at 1. Must be positive. Typical: 0.15.
	NoiseThreshold float64

	// FundamentalFreqMin and FundamentalFreqMax bound the plausible vocal
	// pitch range in Hz.
	FundamentalFreqMin float64
	FundamentalFreqMax float64

	// ConfidenceThreshold is the stabilised confidence at or above which a
	// window counts as voice. Range: [0, 1].
	ConfidenceThreshold float64

	// StabilityFrames is the number of recent confidences whose median forms
	// the stabilised confidence. Must be at least 1.
	StabilityFrames int

	// Weights of the component scores.
	Weights Weights
}

// DefaultConfig returns the tuning used for a 44.1 kHz microphone polled with
// 512-sample windows.
func DefaultConfig() Config {
	return Config{
		SampleRate:          44100,
		WindowSize:          512,
		VolumeThreshold:     0.02,
		NoiseThreshold:      0.15,
		FundamentalFreqMin:  80,
		FundamentalFreqMax:  400,
		ConfidenceThreshold: 0.7,
		StabilityFrames:     5,
		Weights: Weights{
			Noise:     0.5,
			Frequency: 0.3,
			Energy:    0.2,
		},
	}
}

// Validate checks that cfg can drive an [Analyzer]. It returns a joined error
// listing every violation found. Weights that merely fail to sum to 1 are not
// an error.
func (cfg Config) Validate() error {
	var errs []error

	if cfg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("voice: sample_rate %d must be positive", cfg.SampleRate))
	}
	if cfg.WindowSize < minWindowSize {
		errs = append(errs, fmt.Errorf("voice: window_size %d must be at least %d", cfg.WindowSize, minWindowSize))
	}
	if !(cfg.VolumeThreshold > 0) || math.IsInf(cfg.VolumeThreshold, 0) {
		errs = append(errs, fmt.Errorf("voice: volume_threshold %v must be positive and finite", cfg.VolumeThreshold))
	}
	if !(cfg.NoiseThreshold > 0) || math.IsInf(cfg.NoiseThreshold, 0) {
		errs = append(errs, fmt.Errorf("voice: noise_threshold %v must be positive and finite", cfg.NoiseThreshold))
	}
	if !(cfg.FundamentalFreqMin > 0) {
		errs = append(errs, fmt.Errorf("voice: fundamental_freq_min %v must be positive", cfg.FundamentalFreqMin))
	}
	if !(cfg.FundamentalFreqMax > cfg.FundamentalFreqMin) {
		errs = append(errs, fmt.Errorf("voice: fundamental_freq_max %v must exceed fundamental_freq_min %v", cfg.FundamentalFreqMax, cfg.FundamentalFreqMin))
	}
	if cfg.SampleRate > 0 && cfg.FundamentalFreqMax >= float64(cfg.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("voice: fundamental_freq_max %v must be below the Nyquist frequency %v", cfg.FundamentalFreqMax, float64(cfg.SampleRate)/2))
	}
	if math.IsNaN(cfg.ConfidenceThreshold) || cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("voice: confidence_threshold %v is out of range [0, 1]", cfg.ConfidenceThreshold))
	}
	if cfg.StabilityFrames < 1 {
		errs = append(errs, fmt.Errorf("voice: stability_frames %d must be at least 1", cfg.StabilityFrames))
	}

	w := cfg.Weights
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"noise", w.Noise},
		{"frequency", w.Frequency},
		{"energy", w.Energy},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) || c.v < 0 {
			errs = append(errs, fmt.Errorf("voice: weights.%s %v must be a non-negative finite number", c.name, c.v))
		}
	}
	if !(w.sum() > 0) {
		errs = append(errs, errors.New("voice: at least one weight must be positive"))
	}

	return errors.Join(errs...)
}

// normalized returns cfg with weights scaled to sum to 1. cfg must be valid.
func (cfg Config) normalized() Config {
	sum := cfg.Weights.sum()
	if math.Abs(sum-1) <= weightSumTolerance {
		return cfg
	}
	slog.Warn("voice: component weights do not sum to 1, normalising",
		"noise", cfg.Weights.Noise,
		"frequency", cfg.Weights.Frequency,
		"energy", cfg.Weights.Energy,
		"sum", sum,
	)
	cfg.Weights = Weights{
		Noise:     cfg.Weights.Noise / sum,
		Frequency: cfg.Weights.Frequency / sum,
		Energy:    cfg.Weights.Energy / sum,
	}
	return cfg
}
