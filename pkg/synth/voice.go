// Package synth implements a sample-accurate FM tone generator for whale
// calls.
//
// A [Voice] renders one call at a time. Each frame it advances three
// normalised phase accumulators (carrier, modulator and a slow "organic"
// drift oscillator), samples three envelope curves at the call's progress,
// and applies linear fade-in and fade-out ramps so that starts and ends never
// click. The call's duration is authoritative: once it elapses the voice fades
// out and goes idle on its own.
//
// Rendering is pull-based and meant for a real-time audio callback: [Voice.Render]
// never allocates, never locks and does bounded work per frame. Control
// operations ([Voice.Trigger], [Voice.Stop], [Voice.SetEnvelopes]) may be
// called from any goroutine; they publish immutable commands through atomics
// that the audio goroutine applies at the start of its next buffer.
//
// [Chorus] sums a fixed pool of voices into one stream and [Stream] adapts a
// renderer to an [io.Reader] for pull-based output devices.
package synth

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
)

const twoPi = 2 * math.Pi

// Renderer fills interleaved float32 buffers. Implementations must be usable
// from a real-time audio goroutine.
type Renderer interface {
	// Render fills buf with len(buf)/channels frames of interleaved audio.
	Render(buf []float32, channels int)
}

// startCommand is an immutable request to begin a call, built on the control
// goroutine and consumed by Render.
type startCommand struct {
	call         Call
	organicPhase float64
	callSamples  int64
}

// Option configures a [Voice] during construction.
type Option func(*Voice)

// WithPhaseSource replaces the random source of the organic start phase.
// fn must return values in [0, 1) and is called from Trigger.
func WithPhaseSource(fn func() float64) Option {
	return func(v *Voice) {
		if fn != nil {
			v.phaseSource = fn
		}
	}
}

// Voice is a single FM synthesizer voice.
//
// Render must only be called from one goroutine at a time (the audio
// callback). All other exported methods are safe for concurrent use.
type Voice struct {
	sampleRate     float64
	attenuation    float64
	fadeInSamples  int
	fadeOutSamples int
	phaseSource    func() float64

	pending   atomic.Pointer[startCommand]
	stopReq   atomic.Bool
	envelopes atomic.Pointer[Envelopes]
	playing   atomic.Bool
	index     atomic.Int64

	// Owned by the audio goroutine.
	call           Call
	carrierPhase   float64
	modulatorPhase float64
	organicPhase   float64
	sampleIndex    int64
	callSamples    int64
	invCallSamples float64
	active         bool
	fadingIn       bool
	fadingOut      bool
	fadeInCount    int
	fadeOutCount   int
}

// NewVoice validates cfg and returns an idle voice using the preset
// envelopes.
func NewVoice(cfg Config, opts ...Option) (*Voice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fadeOut := cfg.FadeOut
	if fadeOut > cfg.MaxFadeOut {
		fadeOut = cfg.MaxFadeOut
	}
	v := &Voice{
		sampleRate:     float64(cfg.SampleRate),
		attenuation:    cfg.Attenuation,
		fadeInSamples:  framesFor(cfg.FadeIn, cfg.SampleRate),
		fadeOutSamples: framesFor(fadeOut, cfg.SampleRate),
		phaseSource:    rand.Float64,
	}
	for _, o := range opts {
		o(v)
	}
	env := DefaultEnvelopes()
	v.envelopes.Store(&env)
	return v, nil
}

// FadeInSamples returns the length of the fade-in ramp in frames.
func (v *Voice) FadeInSamples() int { return v.fadeInSamples }

// FadeOutSamples returns the effective length of the fade-out ramp in frames,
// after the MaxFadeOut cap.
func (v *Voice) FadeOutSamples() int { return v.fadeOutSamples }

// SetEnvelopes replaces the envelope set used by subsequent calls whose own
// curves are nil. Calls already playing keep the curves they started with.
// Nil fields fall back to the presets.
func (v *Voice) SetEnvelopes(e Envelopes) {
	e = e.orDefaults(DefaultEnvelopes())
	v.envelopes.Store(&e)
}

// Envelopes returns the current default envelope set.
func (v *Voice) Envelopes() Envelopes {
	return *v.envelopes.Load()
}

// Trigger schedules call to start at the beginning of the next rendered
// buffer, replacing whatever is playing. It never blocks. It returns an error
// only for unusable parameters; see [Call] for the clamping rules.
func (v *Voice) Trigger(call Call) error {
	call, err := call.normalize()
	if err != nil {
		return err
	}
	call.Envelopes = call.Envelopes.orDefaults(*v.envelopes.Load())

	cmd := &startCommand{
		call:         call,
		organicPhase: wrapPhase(v.phaseSource()),
		callSamples:  int64(framesFor(call.Duration, int(v.sampleRate))),
	}
	v.stopReq.Store(false)
	v.pending.Store(cmd)
	return nil
}

// Stop asks the voice to begin its fade-out at the next rendered buffer. It is
// a no-op for an idle voice.
func (v *Voice) Stop() {
	v.stopReq.Store(true)
}

// IsPlaying reports whether the voice is playing, fading out, or has a call
// waiting to start.
func (v *Voice) IsPlaying() bool {
	// pending before playing: Render sets playing before clearing pending.
	return v.pending.Load() != nil || v.playing.Load()
}

// SampleIndex returns the number of frames rendered for the current call as
// of the end of the last Render.
func (v *Voice) SampleIndex() int64 {
	return v.index.Load()
}

// Phases returns the carrier, modulator and organic phase accumulators. They
// belong to the audio goroutine; call this only while Render is not running.
func (v *Voice) Phases() (carrier, modulator, organic float64) {
	return v.carrierPhase, v.modulatorPhase, v.organicPhase
}

func (v *Voice) begin(cmd *startCommand) {
	v.call = cmd.call
	v.carrierPhase = 0
	v.modulatorPhase = 0
	v.organicPhase = cmd.organicPhase
	v.sampleIndex = 0
	v.callSamples = cmd.callSamples
	v.invCallSamples = 0
	if cmd.callSamples > 0 {
		v.invCallSamples = 1 / float64(cmd.callSamples)
	}
	v.active = true
	v.fadingIn = v.fadeInSamples > 0
	v.fadingOut = false
	v.fadeInCount = 0
	v.fadeOutCount = 0
	v.playing.Store(true)
	v.index.Store(0)
}

func (v *Voice) finish() {
	v.active = false
	v.fadingOut = false
	v.fadingIn = false
	v.playing.Store(false)
	v.index.Store(v.sampleIndex)
}

// Render fills buf with len(buf)/channels frames, writing the same sample to
// every channel of a frame. An idle voice renders exact silence. When the
// fade-out completes mid-buffer the remainder is zero-filled and the voice
// goes idle immediately.
func (v *Voice) Render(buf []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	if v.pending.Load() != nil {
		// Only Render clears pending, so the swap below yields a command.
		// playing is set first so IsPlaying never sees neither flag.
		v.playing.Store(true)
		v.begin(v.pending.Swap(nil))
	}
	stop := v.stopReq.Swap(false)

	if !v.active && !v.fadingOut {
		clear(buf)
		return
	}
	if stop && !v.fadingOut {
		v.fadingOut = true
		v.fadeOutCount = 0
	}

	c := &v.call
	env := c.Envelopes
	invRate := 1 / v.sampleRate
	frames := len(buf) / channels

	for f := range frames {
		progress := 1.0
		if v.callSamples > 0 {
			progress = float64(v.sampleIndex) * v.invCallSamples
		}
		if progress >= 1 && !v.fadingOut {
			v.fadingOut = true
			v.fadeOutCount = 0
		}
		// Only reachable with a zero-length fade-out.
		if v.fadingOut && v.fadeOutCount >= v.fadeOutSamples {
			clear(buf[f*channels:])
			v.finish()
			return
		}

		p := min(progress, 1)
		volume := env.Volume.Evaluate(p)
		modDepth := env.Modulation.Evaluate(p)
		drift := env.Organic.Evaluate(p)

		organicMod := drift * math.Sin(twoPi*v.organicPhase) * c.DriftAmount
		deviation := math.Sin(twoPi*v.modulatorPhase) * c.ModulationDepthHz * modDepth
		instantaneous := c.CarrierHz + deviation + organicMod*c.CarrierHz
		carrier := math.Sin(twoPi * v.carrierPhase)

		if v.fadingIn {
			volume *= float64(v.fadeInCount) / float64(v.fadeInSamples)
		}
		if v.fadingOut {
			volume *= 1 - float64(v.fadeOutCount)/float64(v.fadeOutSamples)
		}

		out := carrier * volume * v.attenuation
		if math.IsNaN(out) || math.IsInf(out, 0) {
			out = 0
		}
		sample := float32(out)
		frame := buf[f*channels : f*channels+channels]
		for i := range frame {
			frame[i] = sample
		}

		v.carrierPhase = wrapPhase(v.carrierPhase + instantaneous*invRate)
		v.modulatorPhase = wrapPhase(v.modulatorPhase + c.ModulatorHz*invRate)
		v.organicPhase = wrapPhase(v.organicPhase + c.BreathingRateHz*invRate)
		v.sampleIndex++

		if v.fadingIn {
			v.fadeInCount++
			if v.fadeInCount >= v.fadeInSamples {
				v.fadingIn = false
			}
		}
		if v.fadingOut {
			v.fadeOutCount++
			if v.fadeOutCount >= v.fadeOutSamples {
				clear(buf[(f+1)*channels:])
				v.finish()
				return
			}
		}
	}

	clear(buf[frames*channels:])
	v.index.Store(v.sampleIndex)
}

// wrapPhase folds p back into [0, 1). Increments are normally below one
// cycle, so the common case is a single subtraction.
func wrapPhase(p float64) float64 {
	if p >= 1 {
		p--
		if p >= 1 {
			p -= math.Floor(p)
		}
	} else if p < 0 {
		p -= math.Floor(p)
	}
	if !(p >= 0 && p < 1) { // rounding of tiny negatives, or NaN
		return 0
	}
	return p
}
