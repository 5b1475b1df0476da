package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/whalesong/internal/conductor"
	"github.com/MrWong99/whalesong/pkg/synth"
	"github.com/MrWong99/whalesong/pkg/voice"
)

// Default returns the configuration used for every value a file leaves out:
// a 44.1 kHz microphone polled every 100 ms and a stereo chorus of four
// voices answering each utterance once it ends.
func Default() *Config {
	vc := voice.DefaultConfig()
	sc := synth.DefaultConfig()
	cc := conductor.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			LogLevel:    LogInfo,
			MetricsAddr: ":9090",
		},
		Analyzer: AnalyzerConfig{
			SampleRate:          vc.SampleRate,
			WindowSize:          vc.WindowSize,
			PollInterval:        100 * time.Millisecond,
			VolumeThreshold:     vc.VolumeThreshold,
			NoiseThreshold:      vc.NoiseThreshold,
			FundamentalFreqMin:  vc.FundamentalFreqMin,
			FundamentalFreqMax:  vc.FundamentalFreqMax,
			ConfidenceThreshold: vc.ConfidenceThreshold,
			StabilityFrames:     vc.StabilityFrames,
			Weights: WeightsConfig{
				Noise:     vc.Weights.Noise,
				Frequency: vc.Weights.Frequency,
				Energy:    vc.Weights.Energy,
			},
		},
		Capture: CaptureConfig{
			FramesPerBuffer: 512,
			History:         time.Second,
		},
		Synth: SynthConfig{
			SampleRate:   sc.SampleRate,
			Channels:     2,
			Voices:       4,
			BufferFrames: 1024,
			FadeIn:       sc.FadeIn,
			FadeOut:      sc.FadeOut,
			MaxFadeOut:   sc.MaxFadeOut,
			Attenuation:  sc.Attenuation,
		},
		Conductor: ConductorConfig{
			RespondOn:        RespondOnStop,
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
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found. Settings
// that work but are probably unintended are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Analyzer
	a := cfg.Analyzer
	if err := cfg.ToVoiceConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analyzer: %w", err))
	}
	if a.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("analyzer.poll_interval %v must be positive", a.PollInterval))
	}
	var window time.Duration
	if a.SampleRate > 0 {
		window = time.Duration(a.WindowSize) * time.Second / time.Duration(a.SampleRate)
	}
	if sum := a.Weights.Noise + a.Weights.Frequency + a.Weights.Energy; sum > 0 && math.Abs(sum-1) > 1e-6 {
		slog.Warn("analyzer.weights do not sum to 1 and will be normalised", "sum", sum)
	}

	// Capture
	if cfg.Capture.FramesPerBuffer < 0 {
		errs = append(errs, fmt.Errorf("capture.frames_per_buffer %d must not be negative", cfg.Capture.FramesPerBuffer))
	}
	if cfg.Capture.History < window {
		errs = append(errs, fmt.Errorf("capture.history %v must hold at least one analysis window (%v)", cfg.Capture.History, window))
	}

	// Synth
	s := cfg.Synth
	if err := cfg.ToSynthConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if s.Channels != 1 && s.Channels != 2 {
		errs = append(errs, fmt.Errorf("synth.channels %d must be 1 or 2", s.Channels))
	}
	if s.Voices < 1 {
		errs = append(errs, fmt.Errorf("synth.voices %d must be at least 1", s.Voices))
	}
	if s.BufferFrames < 1 {
		errs = append(errs, fmt.Errorf("synth.buffer_frames %d must be at least 1", s.BufferFrames))
	}
	if s.FadeOut > s.MaxFadeOut && s.MaxFadeOut > 0 {
		slog.Warn("synth.fade_out exceeds synth.max_fade_out and will be capped",
			"fade_out", s.FadeOut,
			"max_fade_out", s.MaxFadeOut,
		)
	}
	if _, err := cfg.ToEnvelopes(); err != nil {
		errs = append(errs, err)
	}

	// Conductor
	c := cfg.Conductor
	cc := cfg.ToConductorConfig()
	if !c.RespondOn.IsValid() {
		errs = append(errs, fmt.Errorf("conductor.respond_on %q is invalid; valid values: %s, %s", c.RespondOn, RespondOnStart, RespondOnStop))
		cc.RespondOn = voice.EventVoiceStopped
	}
	if err := cc.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxActiveCalls > s.Voices && s.Voices > 0 {
		slog.Warn("conductor.max_active_calls exceeds synth.voices; the chorus size is the effective limit",
			"max_active_calls", c.MaxActiveCalls,
			"voices", s.Voices,
		)
	}

	return errors.Join(errs...)
}
