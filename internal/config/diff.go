package config

import (
	"slices"
	"time"
)

// ConfigDiff describes what changed between two configs.
// Hot-reloadable sections are reported as flags; everything else that
// changed is listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	AnalyzerChanged  bool
	ConductorChanged bool
	EnvelopesChanged bool

	// RestartRequired names the changed settings that only take effect
	// after a restart (devices, chorus layout, HTTP address).
	RestartRequired []string
}

// HasChanges reports whether anything at all differs.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.AnalyzerChanged || d.ConductorChanged ||
		d.EnvelopesChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.MetricsAddr != new.Server.MetricsAddr {
		d.RestartRequired = append(d.RestartRequired, "server.metrics_addr")
	}

	// Only the detection thresholds and weights reload live.
	oa, na := old.Analyzer, new.Analyzer
	if oa.SampleRate != na.SampleRate {
		d.RestartRequired = append(d.RestartRequired, "analyzer.sample_rate")
	}
	if oa.WindowSize != na.WindowSize {
		d.RestartRequired = append(d.RestartRequired, "analyzer.window_size")
	}
	if oa.PollInterval != na.PollInterval {
		d.RestartRequired = append(d.RestartRequired, "analyzer.poll_interval")
	}
	oa.SampleRate, oa.WindowSize, oa.PollInterval = na.SampleRate, na.WindowSize, na.PollInterval
	d.AnalyzerChanged = oa != na

	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}

	so, sn := old.Synth, new.Synth
	d.EnvelopesChanged = !slices.Equal(so.Envelopes.Volume, sn.Envelopes.Volume) ||
		!slices.Equal(so.Envelopes.Modulation, sn.Envelopes.Modulation) ||
		!slices.Equal(so.Envelopes.Organic, sn.Envelopes.Organic)
	if synthLayout(so) != synthLayout(sn) {
		d.RestartRequired = append(d.RestartRequired, "synth")
	}

	d.ConductorChanged = old.Conductor != new.Conductor

	return d
}

// layout holds the synth settings fixed when the chorus is built.
type layout struct {
	sampleRate, channels, voices, bufferFrames int
	fadeIn, fadeOut, maxFadeOut                time.Duration
	attenuation                                float64
}

func synthLayout(s SynthConfig) layout {
	return layout{
		sampleRate:   s.SampleRate,
		channels:     s.Channels,
		voices:       s.Voices,
		bufferFrames: s.BufferFrames,
		fadeIn:       s.FadeIn,
		fadeOut:      s.FadeOut,
		maxFadeOut:   s.MaxFadeOut,
		attenuation:  s.Attenuation,
	}
}
