// Package voice classifies a rolling microphone stream as "human voice
// present" or not.
//
// An [Analyzer] consumes fixed-size mono windows, extracts RMS energy, a noise
// (roughness) score and a peak-interval pitch estimate, fuses them into a
// weighted confidence, and debounces the decision with a median over the last
// few windows. The stabilised decision drives a small state machine that
// emits discrete [Event]s: voice started, voice continuing, voice stopped and
// non-voice audio.
//
// The noise score is what separates a human voice from a smooth synthesized
// tone: a pure sine barely deviates from its own moving average, speech does.
//
// Analysis is not on the real-time audio path. It is meant to run on a
// control goroutine at a polling cadence (typically every 100 ms) and may
// allocate and log. Numeric degeneracies never fail: silence, short windows
// and missing peaks all map to defined neutral values.
package voice

import (
	"log/slog"
	"sync"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// Analyzer is a stateful voice detector for a single audio stream.
//
// All methods are safe for concurrent use. Listeners registered with
// [Analyzer.OnEvent] are invoked synchronously from Analyze, outside the
// analyzer's lock, so they may call the polling accessors.
type Analyzer struct {
	mu      sync.Mutex
	cfg     Config
	history *history

	state     State
	detecting bool // latched from voice start until the input falls silent

	volume     float64
	confidence float64
	pitch      float64

	listeners []func(Event)
}

// NewAnalyzer validates cfg and returns a ready [Analyzer] in the silent
// state. Weights that do not sum to 1 are renormalised.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()
	return &Analyzer{
		cfg:     cfg,
		history: newHistory(cfg.StabilityFrames),
	}, nil
}

// Config returns the effective configuration, with normalised weights.
func (a *Analyzer) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// OnEvent registers fn to receive every emitted event. Listeners are called
// in registration order and must not block.
func (a *Analyzer) OnEvent(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Analyze processes one window and returns its measurements, the new state
// and the event it produced, if any.
func (a *Analyzer) Analyze(window audio.Window) Result {
	a.mu.Lock()
	res := a.analyzeLocked(window)
	var listeners []func(Event)
	if res.Event.Type != EventNone {
		listeners = a.listeners
	}
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(res.Event)
	}
	return res
}

func (a *Analyzer) analyzeLocked(window audio.Window) Result {
	cfg := a.cfg
	m := Metrics{
		RMS:              RMS(window),
		NoiseScore:       NoiseScore(window),
		EstimatedPitchHz: EstimatePitch(window, cfg.SampleRate, cfg.FundamentalFreqMin, cfg.FundamentalFreqMax),
	}
	m.Scores = Scores{
		Noise:     noiseComponent(m.NoiseScore, cfg.NoiseThreshold),
		Frequency: frequencyComponent(m.EstimatedPitchHz, cfg.FundamentalFreqMin, cfg.FundamentalFreqMax),
		Energy:    energyComponent(m.RMS, cfg.VolumeThreshold),
	}
	a.volume = m.RMS
	a.pitch = m.EstimatedPitchHz

	res := Result{Metrics: m}

	if m.RMS < cfg.VolumeThreshold {
		a.history.push(0)
		a.confidence = a.history.median()
		res.Stabilized = a.confidence
		if a.detecting {
			res.Event = Event{Type: EventVoiceStopped, RMS: m.RMS, Confidence: a.confidence}
			slog.Debug("voice stopped", "rms", m.RMS)
		}
		a.detecting = false
		a.state = StateSilent
		res.State = a.state
		return res
	}

	w := cfg.Weights
	res.Metrics.Confidence = clamp01(w.Noise*m.Scores.Noise + w.Frequency*m.Scores.Frequency + w.Energy*m.Scores.Energy)
	a.history.push(res.Metrics.Confidence)
	a.confidence = a.history.median()
	res.Stabilized = a.confidence

	ev := Event{
		Window:     window,
		RMS:        m.RMS,
		PitchHz:    m.EstimatedPitchHz,
		Confidence: a.confidence,
	}
	switch {
	case a.confidence >= cfg.ConfidenceThreshold && !a.detecting:
		a.detecting = true
		a.state = StateDetecting
		ev.Type = EventVoiceStarted
		slog.Debug("voice started", "rms", m.RMS, "pitch_hz", m.EstimatedPitchHz, "confidence", a.confidence)
	case a.confidence >= cfg.ConfidenceThreshold:
		a.state = StateSustaining
		ev.Type = EventVoiceContinuing
	default:
		a.state = StateNonVoiceAudio
		ev.Type = EventNonVoiceAudio
	}
	res.Event = ev
	res.State = a.state
	return res
}

// CurrentVolume returns the RMS of the most recent window.
func (a *Analyzer) CurrentVolume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// CurrentConfidence returns the most recent stabilised confidence.
func (a *Analyzer) CurrentConfidence() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confidence
}

// CurrentPitch returns the most recent pitch estimate in Hz, 0 if unknown.
func (a *Analyzer) CurrentPitch() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pitch
}

// IsDetectingVoice reports whether a voice segment is in progress, i.e. voice
// was detected and the input has not fallen silent since.
func (a *Analyzer) IsDetectingVoice() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detecting
}

// State returns the detection state after the most recent window.
func (a *Analyzer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Reset clears the confidence history and returns to the silent state without
// emitting an event. Use it when the input stream is interrupted.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetLocked()
}

func (a *Analyzer) resetLocked() {
	a.history.reset()
	a.state = StateSilent
	a.detecting = false
	a.volume, a.confidence, a.pitch = 0, 0, 0
}

// Reconfigure validates cfg and applies it, resetting all detection state.
// On error the previous configuration stays in effect.
func (a *Analyzer) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.normalized()

	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.StabilityFrames != a.cfg.StabilityFrames {
		a.history = newHistory(cfg.StabilityFrames)
	}
	a.cfg = cfg
	a.resetLocked()
	return nil
}
