package synth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MrWong99/whalesong/pkg/envelope"
)

// ErrInvalidCarrier is returned by [Voice.Trigger] when the carrier frequency
// is not a positive finite number.
var ErrInvalidCarrier = errors.New("synth: carrier frequency must be positive and finite")

// Envelopes groups the three curves shaping a call. A nil curve falls back to
// the corresponding preset from package envelope.
type Envelopes struct {
	Volume     *envelope.Curve
	Modulation *envelope.Curve
	Organic    *envelope.Curve
}

// DefaultEnvelopes returns the preset envelope set.
func DefaultEnvelopes() Envelopes {
	return Envelopes{
		Volume:     envelope.DefaultVolume(),
		Modulation: envelope.DefaultModulation(),
		Organic:    envelope.DefaultOrganic(),
	}
}

// orDefaults fills nil curves of e from fallback.
func (e Envelopes) orDefaults(fallback Envelopes) Envelopes {
	if e.Volume == nil {
		e.Volume = fallback.Volume
	}
	if e.Modulation == nil {
		e.Modulation = fallback.Modulation
	}
	if e.Organic == nil {
		e.Organic = fallback.Organic
	}
	return e
}

// Call describes a single FM note.
type Call struct {
	// CarrierHz is the audible base frequency.
	CarrierHz float64

	// Duration is how long the call plays before its fade-out begins. A
	// duration of zero or less fades out immediately.
	Duration time.Duration

	// ModulatorHz is the frequency of the modulating oscillator.
	ModulatorHz float64

	// ModulationDepthHz is the peak carrier deviation caused by the
	// modulator, before the modulation envelope is applied.
	ModulationDepthHz float64

	// DriftAmount is the peak relative carrier drift caused by the slow
	// organic oscillator (0.02 = ±2 %).
	DriftAmount float64

	// BreathingRateHz is the frequency of the organic oscillator.
	BreathingRateHz float64

	// Envelopes shape volume, modulation depth and drift over the call. Nil
	// curves use the voice's current envelope set.
	Envelopes Envelopes
}

// DefaultCall returns a three-second whale call at carrierHz.
func DefaultCall(carrierHz float64) Call {
	return Call{
		CarrierHz:         carrierHz,
		Duration:          3 * time.Second,
		ModulatorHz:       carrierHz * 0.5,
		ModulationDepthHz: carrierHz * 0.25,
		DriftAmount:       0.02,
		BreathingRateHz:   0.7,
	}
}

// normalize rejects unusable parameters and clamps the rest into range.
// Negative depth, drift and breathing rate become 0; a negative modulator
// frequency is mirrored, which sounds identical.
func (c Call) normalize() (Call, error) {
	if !finite(c.CarrierHz) || c.CarrierHz <= 0 {
		return c, fmt.Errorf("%w: got %v", ErrInvalidCarrier, c.CarrierHz)
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"modulator_hz", c.ModulatorHz},
		{"modulation_depth_hz", c.ModulationDepthHz},
		{"drift_amount", c.DriftAmount},
		{"breathing_rate_hz", c.BreathingRateHz},
	} {
		if !finite(p.v) {
			return c, fmt.Errorf("synth: %s must be finite, got %v", p.name, p.v)
		}
	}
	c.ModulatorHz = math.Abs(c.ModulatorHz)
	c.ModulationDepthHz = max(c.ModulationDepthHz, 0)
	c.DriftAmount = max(c.DriftAmount, 0)
	c.BreathingRateHz = max(c.BreathingRateHz, 0)
	return c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
