// Package config provides the configuration schema, loader, hot-reload
// watcher and change diff for whalesong.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/whalesong/pkg/envelope"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the matching [slog.Level]. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RespondOn names the analyzer event a call answers.
type RespondOn string

const (
	RespondOnStart RespondOn = "voice_started"
	RespondOnStop  RespondOn = "voice_stopped"
)

// IsValid reports whether r is a recognised trigger event.
func (r RespondOn) IsValid() bool {
	return r == RespondOnStart || r == RespondOnStop
}

// Config is the root configuration structure for whalesong.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Sections omitted from the file keep the values of [Default].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Capture   CaptureConfig   `yaml:"capture"`
	Synth     SynthConfig     `yaml:"synth"`
	Conductor ConductorConfig `yaml:"conductor"`
}

// ServerConfig holds logging and HTTP settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the HTTP server.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AnalyzerConfig tunes voice detection.
type AnalyzerConfig struct {
	SampleRate          int           `yaml:"sample_rate"`
	WindowSize          int           `yaml:"window_size"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	VolumeThreshold     float64       `yaml:"volume_threshold"`
	NoiseThreshold      float64       `yaml:"noise_threshold"`
	FundamentalFreqMin  float64       `yaml:"fundamental_freq_min"`
	FundamentalFreqMax  float64       `yaml:"fundamental_freq_max"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	StabilityFrames     int           `yaml:"stability_frames"`
	Weights             WeightsConfig `yaml:"weights"`
}

// WeightsConfig are the component weights of the voice confidence.
type WeightsConfig struct {
	Noise     float64 `yaml:"noise"`
	Frequency float64 `yaml:"frequency"`
	Energy    float64 `yaml:"energy"`
}

// CaptureConfig configures the input device.
type CaptureConfig struct {
	// FramesPerBuffer is the device block size. Zero lets the backend choose.
	FramesPerBuffer int `yaml:"frames_per_buffer"`

	// History is how much captured audio the rolling buffer retains. It must
	// hold at least one analysis window.
	History time.Duration `yaml:"history"`
}

// SynthConfig configures the output chorus.
type SynthConfig struct {
	SampleRate   int            `yaml:"sample_rate"`
	Channels     int            `yaml:"channels"`
	Voices       int            `yaml:"voices"`
	BufferFrames int            `yaml:"buffer_frames"`
	FadeIn       time.Duration  `yaml:"fade_in"`
	FadeOut      time.Duration  `yaml:"fade_out"`
	MaxFadeOut   time.Duration  `yaml:"max_fade_out"`
	Attenuation  float64        `yaml:"attenuation"`
	Envelopes    EnvelopeConfig `yaml:"envelopes"`
}

// EnvelopeConfig holds keyframes for the three call envelopes. An empty list
// selects the built-in curve.
type EnvelopeConfig struct {
	Volume     []envelope.Key `yaml:"volume"`
	Modulation []envelope.Key `yaml:"modulation"`
	Organic    []envelope.Key `yaml:"organic"`
}

// ConductorConfig controls when calls are triggered and how they sound.
type ConductorConfig struct {
	RespondOn        RespondOn     `yaml:"respond_on"`
	PitchRatio       float64       `yaml:"pitch_ratio"`
	MinCarrierHz     float64       `yaml:"min_carrier_hz"`
	MaxCarrierHz     float64       `yaml:"max_carrier_hz"`
	DefaultCarrierHz float64       `yaml:"default_carrier_hz"`
	ModulatorRatio   float64       `yaml:"modulator_ratio"`
	DepthRatio       float64       `yaml:"depth_ratio"`
	CallDuration     time.Duration `yaml:"call_duration"`
	DriftAmount      float64       `yaml:"drift_amount"`
	BreathingRateHz  float64       `yaml:"breathing_rate_hz"`
	QuietPeriod      time.Duration `yaml:"quiet_period"`
	MaxActiveCalls   int           `yaml:"max_active_calls"`
}
