// Package conductor turns voice activity into whale calls.
//
// A [Conductor] listens to [voice.Event]s, remembers the pitch of the current
// utterance and, on the configured event, answers by triggering an idle voice
// of a [synth.Chorus] at a carrier frequency derived from that pitch. Calls
// are spaced out by a shared [RateLimiter].
package conductor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/whalesong/internal/observe"
	"github.com/MrWong99/whalesong/pkg/synth"
	"github.com/MrWong99/whalesong/pkg/voice"
)

// ErrNoIdleVoice is returned by [Conductor.Respond] when every voice of the
// chorus is busy.
var ErrNoIdleVoice = errors.New("conductor: no idle voice")

// Config controls when and how the conductor answers.
type Config struct {
	// RespondOn selects the analyzer event that triggers a call. Only
	// voice.EventVoiceStarted and voice.EventVoiceStopped are accepted.
	RespondOn voice.EventType

	// PitchRatio scales the detected pitch into the carrier frequency.
	PitchRatio float64

	// MinCarrierHz and MaxCarrierHz bound the carrier frequency.
	MinCarrierHz float64
	MaxCarrierHz float64

	// DefaultCarrierHz is used when no pitch was detected.
	DefaultCarrierHz float64

	// ModulatorRatio and DepthRatio derive the modulator frequency and
	// modulation depth from the carrier.
	ModulatorRatio float64
	DepthRatio     float64

	// CallDuration is the length of each call before its fade-out.
	CallDuration time.Duration

	// DriftAmount and BreathingRateHz are passed through to the call.
	DriftAmount     float64
	BreathingRateHz float64

	// QuietPeriod is the minimum time between two calls.
	QuietPeriod time.Duration

	// MaxActiveCalls caps the number of simultaneously playing calls. Zero
	// means no cap beyond the chorus size.
	MaxActiveCalls int
}

// DefaultConfig answers each utterance once it ends, an octave below the
// speaker, with at most three overlapping calls.
func DefaultConfig() Config {
	return Config{
		RespondOn:        voice.EventVoiceStopped,
		PitchRatio:       0.5,
		MinCarrierHz:     40,
		MaxCarrierHz:     400,
		DefaultCarrierHz: 110,
		ModulatorRatio:   0.5,
		DepthRatio:       0.25,
		CallDuration:     3 * time.Second,
		DriftAmount:      0.02,
		BreathingRateHz:  0.7,
		QuietPeriod:      2 * time.Second,
		MaxActiveCalls:   3,
	}
}

// Validate reports every invalid field.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.RespondOn != voice.EventVoiceStarted && cfg.RespondOn != voice.EventVoiceStopped {
		errs = append(errs, fmt.Errorf("conductor: respond_on %q must be voice_started or voice_stopped", cfg.RespondOn))
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"pitch_ratio", cfg.PitchRatio},
		{"min_carrier_hz", cfg.MinCarrierHz},
		{"max_carrier_hz", cfg.MaxCarrierHz},
		{"default_carrier_hz", cfg.DefaultCarrierHz},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			errs = append(errs, fmt.Errorf("conductor: %s must be positive, got %v", f.name, f.v))
		}
	}
	if cfg.MaxCarrierHz < cfg.MinCarrierHz {
		errs = append(errs, fmt.Errorf("conductor: max_carrier_hz %v is below min_carrier_hz %v", cfg.MaxCarrierHz, cfg.MinCarrierHz))
	}
	if cfg.ModulatorRatio < 0 || cfg.DepthRatio < 0 || cfg.DriftAmount < 0 || cfg.BreathingRateHz < 0 {
		errs = append(errs, errors.New("conductor: modulator_ratio, depth_ratio, drift_amount and breathing_rate_hz must not be negative"))
	}
	if cfg.CallDuration <= 0 {
		errs = append(errs, fmt.Errorf("conductor: call_duration %v must be positive", cfg.CallDuration))
	}
	if cfg.QuietPeriod < 0 {
		errs = append(errs, fmt.Errorf("conductor: quiet_period %v must not be negative", cfg.QuietPeriod))
	}
	if cfg.MaxActiveCalls < 0 {
		errs = append(errs, fmt.Errorf("conductor: max_active_calls %d must not be negative", cfg.MaxActiveCalls))
	}
	return errors.Join(errs...)
}

// CarrierFor maps a detected pitch into the carrier range. A pitch of zero
// or less yields DefaultCarrierHz.
func (cfg Config) CarrierFor(pitchHz float64) float64 {
	if pitchHz <= 0 || math.IsNaN(pitchHz) {
		return cfg.DefaultCarrierHz
	}
	return max(cfg.MinCarrierHz, min(cfg.MaxCarrierHz, pitchHz*cfg.PitchRatio))
}

// CallFor builds the call answering pitchHz.
func (cfg Config) CallFor(pitchHz float64) synth.Call {
	carrier := cfg.CarrierFor(pitchHz)
	return synth.Call{
		CarrierHz:         carrier,
		Duration:          cfg.CallDuration,
		ModulatorHz:       carrier * cfg.ModulatorRatio,
		ModulationDepthHz: carrier * cfg.DepthRatio,
		DriftAmount:       cfg.DriftAmount,
		BreathingRateHz:   cfg.BreathingRateHz,
	}
}

// Option configures a [Conductor].
type Option func(*Conductor)

// WithMetrics records call outcomes in m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Conductor) { c.metrics = m }
}

// WithLimiter shares an existing limiter instead of creating one from the
// config.
func WithLimiter(l *RateLimiter) Option {
	return func(c *Conductor) { c.limiter = l }
}

// Conductor answers voice activity with synthesizer calls. It is safe for
// concurrent use.
type Conductor struct {
	chorus  *synth.Chorus
	limiter *RateLimiter
	metrics *observe.Metrics

	mu        sync.Mutex
	cfg       Config
	lastPitch float64
}

// New validates cfg and creates a conductor driving chorus.
func New(cfg Config, chorus *synth.Chorus, opts ...Option) (*Conductor, error) {
	if chorus == nil {
		return nil, errors.New("conductor: chorus is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Conductor{chorus: chorus, cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter(cfg.QuietPeriod, cfg.MaxActiveCalls, nil)
	}
	return c, nil
}

// Config returns the current configuration.
func (c *Conductor) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Reconfigure validates and applies cfg. The remembered pitch and the
// limiter's quiet period carry over.
func (c *Conductor) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.limiter.SetLimits(cfg.QuietPeriod, cfg.MaxActiveCalls)
	return nil
}

// Listener returns an event handler for [voice.Analyzer.OnEvent]. Errors from
// the triggered calls are recorded and logged, not returned.
func (c *Conductor) Listener(ctx context.Context) func(voice.Event) {
	return func(ev voice.Event) { c.HandleEvent(ctx, ev) }
}

// HandleEvent tracks the utterance's pitch and responds when ev is the
// configured trigger event.
func (c *Conductor) HandleEvent(ctx context.Context, ev voice.Event) {
	c.mu.Lock()
	switch ev.Type {
	case voice.EventVoiceStarted:
		c.lastPitch = 0
		fallthrough
	case voice.EventVoiceContinuing:
		if ev.PitchHz > 0 {
			c.lastPitch = ev.PitchHz
		}
	}
	respond := ev.Type == c.cfg.RespondOn
	pitch := c.lastPitch
	if respond && ev.Type == voice.EventVoiceStopped {
		c.lastPitch = 0
	}
	c.mu.Unlock()

	if !respond {
		return
	}
	err := c.Respond(ctx, pitch)
	switch {
	case err == nil:
	case errors.Is(err, ErrQuietPeriod), errors.Is(err, ErrTooManyCalls), errors.Is(err, ErrNoIdleVoice):
		observe.Logger(ctx).Debug("conductor: call skipped", "reason", err)
	default:
		observe.Logger(ctx).Warn("conductor: call failed", "err", err)
	}
}

// Respond triggers one call answering pitchHz on an idle voice.
func (c *Conductor) Respond(ctx context.Context, pitchHz float64) error {
	cfg := c.Config()
	call := cfg.CallFor(pitchHz)

	ctx, span := observe.StartSpan(ctx, "conductor.respond",
		trace.WithAttributes(
			attribute.Float64("pitch_hz", pitchHz),
			attribute.Float64("carrier_hz", call.CarrierHz),
		),
	)
	defer span.End()

	v := c.chorus.IdleVoice()
	if v == nil {
		c.record(ctx, observe.CallNoVoice)
		return ErrNoIdleVoice
	}
	if err := c.limiter.Reserve(c.chorus.Active()); err != nil {
		c.record(ctx, observe.CallRateLimited)
		return err
	}
	if err := v.Trigger(call); err != nil {
		span.RecordError(err)
		c.record(ctx, observe.CallError)
		return fmt.Errorf("conductor: trigger: %w", err)
	}
	c.record(ctx, observe.CallTriggered)
	observe.Logger(ctx).Info("whale call triggered",
		"pitch_hz", pitchHz,
		"carrier_hz", call.CarrierHz,
		"duration", call.Duration,
	)
	return nil
}

func (c *Conductor) record(ctx context.Context, result string) {
	if c.metrics != nil {
		c.metrics.RecordSynthCall(ctx, result)
	}
}
