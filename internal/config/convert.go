package config

import (
	"fmt"

	"github.com/MrWong99/whalesong/internal/conductor"
	"github.com/MrWong99/whalesong/pkg/envelope"
	"github.com/MrWong99/whalesong/pkg/synth"
	"github.com/MrWong99/whalesong/pkg/voice"
)

// ToVoiceConfig returns the analyzer section as a [voice.Config].
func (c *Config) ToVoiceConfig() voice.Config {
	a := c.Analyzer
	return voice.Config{
		SampleRate:          a.SampleRate,
		WindowSize:          a.WindowSize,
		VolumeThreshold:     a.VolumeThreshold,
		NoiseThreshold:      a.NoiseThreshold,
		FundamentalFreqMin:  a.FundamentalFreqMin,
		FundamentalFreqMax:  a.FundamentalFreqMax,
		ConfidenceThreshold: a.ConfidenceThreshold,
		StabilityFrames:     a.StabilityFrames,
		Weights: voice.Weights{
			Noise:     a.Weights.Noise,
			Frequency: a.Weights.Frequency,
			Energy:    a.Weights.Energy,
		},
	}
}

// ToSynthConfig returns the per-voice settings of the synth section.
func (c *Config) ToSynthConfig() synth.Config {
	s := c.Synth
	return synth.Config{
		SampleRate:  s.SampleRate,
		FadeIn:      s.FadeIn,
		FadeOut:     s.FadeOut,
		MaxFadeOut:  s.MaxFadeOut,
		Attenuation: s.Attenuation,
	}
}

// ToEnvelopes builds the configured envelope curves. Curves without
// keyframes are left nil so the voices fall back to their presets.
func (c *Config) ToEnvelopes() (synth.Envelopes, error) {
	var (
		env synth.Envelopes
		err error
	)
	e := c.Synth.Envelopes
	if env.Volume, err = curve("volume", e.Volume); err != nil {
		return synth.Envelopes{}, err
	}
	if env.Modulation, err = curve("modulation", e.Modulation); err != nil {
		return synth.Envelopes{}, err
	}
	if env.Organic, err = curve("organic", e.Organic); err != nil {
		return synth.Envelopes{}, err
	}
	return env, nil
}

func curve(name string, keys []envelope.Key) (*envelope.Curve, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cv, err := envelope.New(keys...)
	if err != nil {
		return nil, fmt.Errorf("synth.envelopes.%s: %w", name, err)
	}
	return cv, nil
}

// ToConductorConfig returns the conductor section as a [conductor.Config].
// An unrecognised respond_on maps to [voice.EventNone], which the conductor
// rejects.
func (c *Config) ToConductorConfig() conductor.Config {
	cc := c.Conductor
	respondOn := voice.EventNone
	switch cc.RespondOn {
	case RespondOnStart:
		respondOn = voice.EventVoiceStarted
	case RespondOnStop:
		respondOn = voice.EventVoiceStopped
	}
	return conductor.Config{
		RespondOn:        respondOn,
		PitchRatio:       cc.PitchRatio,
		MinCarrierHz:     cc.MinCarrierHz,
		MaxCarrierHz:     cc.MaxCarrierHz,
		DefaultCarrierHz: cc.DefaultCarrierHz,
		ModulatorRatio:   cc.ModulatorRatio,
		DepthRatio:       cc.DepthRatio,
		CallDuration:     cc.CallDuration,
		DriftAmount:      cc.DriftAmount,
		BreathingRateHz:  cc.BreathingRateHz,
		QuietPeriod:      cc.QuietPeriod,
		MaxActiveCalls:   cc.MaxActiveCalls,
	}
}

// ToCall builds a call at exactly carrierHz using the conductor's shaping
// parameters. It is used when the carrier is chosen by hand rather than
// derived from a detected pitch.
func (c *Config) ToCall(carrierHz float64) synth.Call {
	cc := c.Conductor
	return synth.Call{
		CarrierHz:         carrierHz,
		Duration:          cc.CallDuration,
		ModulatorHz:       carrierHz * cc.ModulatorRatio,
		ModulationDepthHz: carrierHz * cc.DepthRatio,
		DriftAmount:       cc.DriftAmount,
		BreathingRateHz:   cc.BreathingRateHz,
	}
}
