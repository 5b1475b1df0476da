package synth

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds the per-voice rendering parameters that stay fixed for the
// voice's lifetime.
type Config struct {
	// SampleRate of the rendered stream in Hz.
	SampleRate int

	// FadeIn is the length of the linear anti-click ramp at call start.
	FadeIn time.Duration

	// FadeOut is the length of the linear ramp applied once a call reaches
	// its duration or is stopped.
	FadeOut time.Duration

	// MaxFadeOut caps FadeOut so a fade can never leave a voice stuck
	// between playing and idle.
	MaxFadeOut time.Duration

	// Attenuation scales every output sample so that several voices can be
	// summed without clipping. Range: (0, 1].
	Attenuation float64
}

// DefaultConfig returns a 44.1 kHz voice with 20 ms/50 ms fades and 0.2
// attenuation.
func DefaultConfig() Config {
	return Config{
		SampleRate:  44100,
		FadeIn:      20 * time.Millisecond,
		FadeOut:     50 * time.Millisecond,
		MaxFadeOut:  500 * time.Millisecond,
		Attenuation: 0.2,
	}
}

// Validate checks that cfg can drive a [Voice], returning a joined error
// listing every violation.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("synth: sample_rate %d must be positive", cfg.SampleRate))
	}
	if cfg.FadeIn < 0 {
		errs = append(errs, fmt.Errorf("synth: fade_in %v must not be negative", cfg.FadeIn))
	}
	if cfg.FadeOut < 0 {
		errs = append(errs, fmt.Errorf("synth: fade_out %v must not be negative", cfg.FadeOut))
	}
	if cfg.MaxFadeOut <= 0 {
		errs = append(errs, fmt.Errorf("synth: max_fade_out %v must be positive", cfg.MaxFadeOut))
	}
	if math.IsNaN(cfg.Attenuation) || cfg.Attenuation <= 0 || cfg.Attenuation > 1 {
		errs = append(errs, fmt.Errorf("synth: attenuation %v is out of range (0, 1]", cfg.Attenuation))
	}
	return errors.Join(errs...)
}

// framesFor converts d to a whole number of frames at rate.
func framesFor(d time.Duration, rate int) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * float64(rate)))
}
