package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/whalesong/internal/config"
	"github.com/MrWong99/whalesong/pkg/envelope"
)

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		want    config.ConfigDiff
		changed bool
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
		},
		{
			name:    "log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			want:    config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug},
			changed: true,
		},
		{
			name:    "analyzer threshold",
			mutate:  func(c *config.Config) { c.Analyzer.ConfidenceThreshold = 0.5 },
			want:    config.ConfigDiff{AnalyzerChanged: true},
			changed: true,
		},
		{
			name:    "analyzer window size",
			mutate:  func(c *config.Config) { c.Analyzer.WindowSize = 1024 },
			want:    config.ConfigDiff{RestartRequired: []string{"analyzer.window_size"}},
			changed: true,
		},
		{
			name:    "conductor",
			mutate:  func(c *config.Config) { c.Conductor.QuietPeriod = time.Second },
			want:    config.ConfigDiff{ConductorChanged: true},
			changed: true,
		},
		{
			name: "envelopes",
			mutate: func(c *config.Config) {
				c.Synth.Envelopes.Organic = []envelope.Key{{T: 0, V: 1}, {T: 1, V: 0}}
			},
			want:    config.ConfigDiff{EnvelopesChanged: true},
			changed: true,
		},
		{
			name: "devices and layout",
			mutate: func(c *config.Config) {
				c.Server.MetricsAddr = ":9191"
				c.Capture.FramesPerBuffer = 256
				c.Synth.Voices = 8
			},
			want:    config.ConfigDiff{RestartRequired: []string{"server.metrics_addr", "capture", "synth"}},
			changed: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			next := config.Default()
			tc.mutate(next)

			got := config.Diff(old, next)
			if got.LogLevelChanged != tc.want.LogLevelChanged || got.NewLogLevel != tc.want.NewLogLevel {
				t.Errorf("log level diff = %v/%q, want %v/%q",
					got.LogLevelChanged, got.NewLogLevel, tc.want.LogLevelChanged, tc.want.NewLogLevel)
			}
			if got.AnalyzerChanged != tc.want.AnalyzerChanged {
				t.Errorf("AnalyzerChanged = %v, want %v", got.AnalyzerChanged, tc.want.AnalyzerChanged)
			}
			if got.ConductorChanged != tc.want.ConductorChanged {
				t.Errorf("ConductorChanged = %v, want %v", got.ConductorChanged, tc.want.ConductorChanged)
			}
			if got.EnvelopesChanged != tc.want.EnvelopesChanged {
				t.Errorf("EnvelopesChanged = %v, want %v", got.EnvelopesChanged, tc.want.EnvelopesChanged)
			}
			if !slices.Equal(got.RestartRequired, tc.want.RestartRequired) {
				t.Errorf("RestartRequired = %v, want %v", got.RestartRequired, tc.want.RestartRequired)
			}
			if got.HasChanges() != tc.changed {
				t.Errorf("HasChanges() = %v, want %v", got.HasChanges(), tc.changed)
			}
		})
	}
}
