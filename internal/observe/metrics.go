// Package observe provides application-wide observability primitives for
// whalesong: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all whalesong metrics.
const meterName = "github.com/MrWong99/whalesong"

// Synth call results recorded by [Metrics.RecordSynthCall].
const (
	CallTriggered   = "triggered"
	CallRateLimited = "rate_limited"
	CallNoVoice     = "no_voice"
	CallError       = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	meter metric.Meter

	// --- Analysis ---

	// AnalysisWindows counts analysed windows. Use with attribute:
	//   attribute.String("state", ...)
	AnalysisWindows metric.Int64Counter

	// AnalysisDuration tracks the time spent analysing one window.
	AnalysisDuration metric.Float64Histogram

	// VoiceEvents counts analyzer events. Use with attribute:
	//   attribute.String("type", ...)
	VoiceEvents metric.Int64Counter

	// Confidence records the stabilized voice confidence of windows above
	// the volume threshold.
	Confidence metric.Float64Histogram

	// Pitch records non-zero pitch estimates in Hz.
	Pitch metric.Float64Histogram

	// --- Synthesis ---

	// SynthCalls counts call requests. Use with attribute:
	//   attribute.String("result", ...)
	SynthCalls metric.Int64Counter

	// ActiveCalls reports the number of playing voices. It is observed
	// through the callback registered with [Metrics.ObserveActiveCalls].
	ActiveCalls metric.Int64ObservableGauge

	// --- Devices ---

	// DeviceErrors counts capture and playback failures. Use with attributes:
	//   attribute.String("device", ...), attribute.String("kind", ...)
	DeviceErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// analysisBuckets are histogram boundaries (in seconds) for per-window
// analysis, which normally finishes well under a millisecond.
var analysisBuckets = []float64{
	0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01,
}

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

var pitchBuckets = []float64{60, 80, 100, 125, 150, 200, 250, 300, 400, 600}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	if met.AnalysisWindows, err = m.Int64Counter("whalesong.analysis.windows",
		metric.WithDescription("Total analysed audio windows by resulting voice state."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("whalesong.analysis.duration",
		metric.WithDescription("Time spent analysing one audio window."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.VoiceEvents, err = m.Int64Counter("whalesong.voice.events",
		metric.WithDescription("Total voice analyzer events by type."),
	); err != nil {
		return nil, err
	}
	if met.Confidence, err = m.Float64Histogram("whalesong.voice.confidence",
		metric.WithDescription("Stabilized voice confidence of audible windows."),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Pitch, err = m.Float64Histogram("whalesong.voice.pitch",
		metric.WithDescription("Estimated fundamental frequency of audible windows."),
		metric.WithUnit("Hz"),
		metric.WithExplicitBucketBoundaries(pitchBuckets...),
	); err != nil {
		return nil, err
	}

	if met.SynthCalls, err = m.Int64Counter("whalesong.synth.calls",
		metric.WithDescription("Total synthesizer call requests by result."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64ObservableGauge("whalesong.synth.active_calls",
		metric.WithDescription("Number of synthesizer voices currently playing."),
	); err != nil {
		return nil, err
	}

	if met.DeviceErrors, err = m.Int64Counter("whalesong.device.errors",
		metric.WithDescription("Total audio device errors by device and kind."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("whalesong.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnalysis records one analysed window. Confidence and pitch are only
// recorded for audible windows, and pitch only when an estimate exists.
func (m *Metrics) RecordAnalysis(ctx context.Context, state string, d time.Duration, audible bool, confidence, pitchHz float64) {
	m.AnalysisWindows.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
	m.AnalysisDuration.Record(ctx, d.Seconds())
	if !audible {
		return
	}
	m.Confidence.Record(ctx, confidence)
	if pitchHz > 0 {
		m.Pitch.Record(ctx, pitchHz)
	}
}

// RecordVoiceEvent increments the voice event counter for eventType.
func (m *Metrics) RecordVoiceEvent(ctx context.Context, eventType string) {
	m.VoiceEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordSynthCall increments the synth call counter for result, one of the
// Call* constants.
func (m *Metrics) RecordSynthCall(ctx context.Context, result string) {
	m.SynthCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordDeviceError increments the device error counter.
func (m *Metrics) RecordDeviceError(ctx context.Context, device, kind string) {
	m.DeviceErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("device", device),
			attribute.String("kind", kind),
		),
	)
}

// ObserveActiveCalls registers fn as the source of the active calls gauge.
// The returned registration must be unregistered when fn's owner shuts down.
func (m *Metrics) ObserveActiveCalls(fn func() int64) (metric.Registration, error) {
	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(m.ActiveCalls, fn())
		return nil
	}, m.ActiveCalls)
}
