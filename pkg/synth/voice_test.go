package synth

import (
	"errors"
	"math"
	"testing"
	"time"
)

func constPhase(p float64) Option {
	return WithPhaseSource(func() float64 { return p })
}

func newTestVoice(t *testing.T, opts ...Option) *Voice {
	t.Helper()
	v, err := NewVoice(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("NewVoice: %v", err)
	}
	return v
}

// renderFrames renders n mono frames in blocks of block and returns them.
func renderFrames(v *Voice, n, block int) []float32 {
	out := make([]float32, 0, n)
	buf := make([]float32, block)
	for len(out) < n {
		b := buf[:min(block, n-len(out))]
		v.Render(b, 1)
		out = append(out, b...)
	}
	return out
}

func allZero(s []float32) bool {
	for _, x := range s {
		if x != 0 {
			return false
		}
	}
	return true
}

func TestVoice_IdleRendersSilence(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)

	buf := make([]float32, 512)
	for i := range buf {
		buf[i] = 1
	}
	v.Render(buf, 1)
	if !allZero(buf) {
		t.Error("idle voice wrote non-zero samples")
	}
	if v.IsPlaying() {
		t.Error("new voice reports playing")
	}
}

func TestVoice_CallLength(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t, constPhase(0.25))

	call := DefaultCall(220)
	call.Duration = time.Second
	if err := v.Trigger(call); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if !v.IsPlaying() {
		t.Fatal("voice not playing right after Trigger")
	}

	const want = 44100 + 2205 // duration plus 50 ms fade-out
	out := renderFrames(v, want-1, 512)
	if !v.IsPlaying() {
		t.Fatalf("voice went idle early at frame %d", v.SampleIndex())
	}
	if allZero(out[1000:44100]) {
		t.Fatal("call body is silent")
	}

	renderFrames(v, 1, 1)
	if v.IsPlaying() {
		t.Fatalf("voice still playing after %d frames", want)
	}
	if got := v.SampleIndex(); got != want {
		t.Errorf("SampleIndex = %d, want %d", got, want)
	}

	tail := renderFrames(v, 4096, 512)
	if !allZero(tail) {
		t.Error("voice produced audio after going idle")
	}
}

func TestVoice_FirstSampleIsSilent(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	if err := v.Trigger(DefaultCall(300)); err != nil {
		t.Fatal(err)
	}
	out := renderFrames(v, 2048, 256)
	if out[0] != 0 {
		t.Errorf("first sample = %v, want 0 (fade-in starts at zero gain)", out[0])
	}
	// The fade-in ramp bounds the first 20 ms well below full scale.
	for i, s := range out[:100] {
		limit := 0.2 * 1.2 * float64(i) / 882
		if math.Abs(float64(s)) > limit+1e-6 {
			t.Fatalf("sample %d = %v exceeds fade-in ramp %v", i, s, limit)
		}
	}
}

func TestVoice_OutputBounded(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	call := DefaultCall(180)
	call.Duration = 500 * time.Millisecond
	if err := v.Trigger(call); err != nil {
		t.Fatal(err)
	}
	for i, s := range renderFrames(v, 30000, 1024) {
		if math.IsNaN(float64(s)) || math.Abs(float64(s)) > 0.25 {
			t.Fatalf("sample %d = %v out of bounds", i, s)
		}
	}
}

func TestVoice_PhasesStayWrapped(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t, constPhase(0.999))

	// A deviation deeper than the carrier drives the instantaneous
	// frequency negative for part of every modulator cycle.
	call := Call{
		CarrierHz:         15000,
		Duration:          200 * time.Millisecond,
		ModulatorHz:       3000,
		ModulationDepthHz: 30000,
		DriftAmount:       0.5,
		BreathingRateHz:   40000,
	}
	if err := v.Trigger(call); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 64)
	for range 200 {
		v.Render(buf, 1)
		c, m, o := v.Phases()
		for _, p := range []float64{c, m, o} {
			if p < 0 || p >= 1 {
				t.Fatalf("phase %v escaped [0, 1) at frame %d", p, v.SampleIndex())
			}
		}
	}
}

func TestVoice_LengthIndependentOfOrganicPhase(t *testing.T) {
	t.Parallel()
	call := DefaultCall(200)
	call.Duration = 250 * time.Millisecond
	want := int64(framesFor(call.Duration, 44100) + 2205)

	var outputs [][]float32
	for _, phase := range []float64{0.1, 0.7} {
		v := newTestVoice(t, constPhase(phase))
		if err := v.Trigger(call); err != nil {
			t.Fatal(err)
		}
		out := renderFrames(v, int(want), 700)
		if v.IsPlaying() {
			t.Errorf("phase %v: still playing after %d frames", phase, want)
		}
		if got := v.SampleIndex(); got != want {
			t.Errorf("phase %v: SampleIndex = %d, want %d", phase, got, want)
		}
		outputs = append(outputs, out)
	}

	differ := false
	for i := range outputs[0] {
		if outputs[0][i] != outputs[1][i] {
			differ = true
			break
		}
	}
	if !differ {
		t.Error("different organic phases rendered identical audio")
	}
}

func TestVoice_RetriggerRestarts(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	if err := v.Trigger(DefaultCall(220)); err != nil {
		t.Fatal(err)
	}
	renderFrames(v, 10000, 512)

	if err := v.Trigger(DefaultCall(330)); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 256)
	v.Render(buf, 1)
	if got := v.SampleIndex(); got != 256 {
		t.Errorf("SampleIndex after retrigger = %d, want 256", got)
	}
	if buf[0] != 0 {
		t.Errorf("retriggered call starts at %v, want 0", buf[0])
	}
	if !v.IsPlaying() {
		t.Error("retriggered voice not playing")
	}
}

func TestVoice_NonPositiveDurationFadesImmediately(t *testing.T) {
	t.Parallel()
	for _, d := range []time.Duration{0, -time.Second} {
		v := newTestVoice(t)
		call := DefaultCall(220)
		call.Duration = d
		if err := v.Trigger(call); err != nil {
			t.Fatal(err)
		}
		renderFrames(v, v.FadeOutSamples(), 512)
		if v.IsPlaying() {
			t.Errorf("duration %v: still playing after the fade-out", d)
		}
	}
}

func TestVoice_StopFadesOut(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	if err := v.Trigger(DefaultCall(220)); err != nil {
		t.Fatal(err)
	}
	renderFrames(v, 1000, 500)
	v.Stop()
	renderFrames(v, v.FadeOutSamples()-1, 512)
	if !v.IsPlaying() {
		t.Fatal("voice cut off before the fade-out completed")
	}
	renderFrames(v, 1, 1)
	if v.IsPlaying() {
		t.Error("voice still playing after the fade-out")
	}
	if got := v.SampleIndex(); got != int64(1000+v.FadeOutSamples()) {
		t.Errorf("SampleIndex = %d, want %d", got, 1000+v.FadeOutSamples())
	}
}

func TestVoice_StopWhileIdleDoesNotAffectNextCall(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	v.Stop()
	if err := v.Trigger(DefaultCall(220)); err != nil {
		t.Fatal(err)
	}
	renderFrames(v, 5000, 512)
	if !v.IsPlaying() {
		t.Error("stale Stop cut the next call short")
	}
}

func TestVoice_StereoDuplicatesChannels(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	if err := v.Trigger(DefaultCall(250)); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 2*4000+1)
	for i := range buf {
		buf[i] = 9
	}
	v.Render(buf, 2)
	for f := range 4000 {
		if buf[2*f] != buf[2*f+1] {
			t.Fatalf("frame %d: left %v != right %v", f, buf[2*f], buf[2*f+1])
		}
	}
	if buf[len(buf)-1] != 0 {
		t.Error("trailing partial frame not zeroed")
	}
	if got := v.SampleIndex(); got != 4000 {
		t.Errorf("SampleIndex = %d, want 4000 frames", got)
	}
}

func TestVoice_TriggerValidation(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)

	for _, hz := range []float64{0, -220, math.NaN(), math.Inf(1)} {
		err := v.Trigger(DefaultCall(hz))
		if !errors.Is(err, ErrInvalidCarrier) {
			t.Errorf("carrier %v: err = %v, want ErrInvalidCarrier", hz, err)
		}
	}
	if v.IsPlaying() {
		t.Error("rejected Trigger started playback")
	}

	bad := DefaultCall(220)
	bad.ModulationDepthHz = math.Inf(-1)
	if err := v.Trigger(bad); err == nil {
		t.Error("infinite modulation depth accepted")
	}
}

func TestCall_NormalizeClamps(t *testing.T) {
	t.Parallel()
	c, err := Call{
		CarrierHz:         220,
		ModulatorHz:       -110,
		ModulationDepthHz: -5,
		DriftAmount:       -0.1,
		BreathingRateHz:   -1,
	}.normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if c.ModulatorHz != 110 || c.ModulationDepthHz != 0 || c.DriftAmount != 0 || c.BreathingRateHz != 0 {
		t.Errorf("normalize = %+v", c)
	}
}

func TestVoice_RenderDoesNotAllocate(t *testing.T) {
	v := newTestVoice(t)
	call := DefaultCall(220)
	call.Duration = time.Minute
	if err := v.Trigger(call); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 512)
	allocs := testing.AllocsPerRun(200, func() {
		v.Render(buf, 1)
	})
	if allocs != 0 {
		t.Errorf("Render allocated %v times per run, want 0", allocs)
	}
}

func TestVoice_MaxFadeOutCapsFade(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.FadeOut = 2 * time.Second
	cfg.MaxFadeOut = 100 * time.Millisecond
	v, err := NewVoice(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.FadeOutSamples(); got != 4410 {
		t.Errorf("FadeOutSamples = %d, want 4410", got)
	}
	if got := v.FadeInSamples(); got != 882 {
		t.Errorf("FadeInSamples = %d, want 882", got)
	}
}

func TestVoice_EnvelopesFallBackToPresets(t *testing.T) {
	t.Parallel()
	v := newTestVoice(t)
	v.SetEnvelopes(Envelopes{})
	e := v.Envelopes()
	if e.Volume == nil || e.Modulation == nil || e.Organic == nil {
		t.Fatalf("SetEnvelopes left nil curves: %+v", e)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"negative fade in", func(c *Config) { c.FadeIn = -time.Millisecond }},
		{"negative fade out", func(c *Config) { c.FadeOut = -time.Millisecond }},
		{"zero max fade out", func(c *Config) { c.MaxFadeOut = 0 }},
		{"zero attenuation", func(c *Config) { c.Attenuation = 0 }},
		{"attenuation above one", func(c *Config) { c.Attenuation = 1.5 }},
		{"NaN attenuation", func(c *Config) { c.Attenuation = math.NaN() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
			if _, err := NewVoice(cfg); err == nil {
				t.Error("NewVoice accepted invalid config")
			}
		})
	}
}

func TestWrapPhase(t *testing.T) {
	t.Parallel()
	cases := []struct{ in, want float64 }{
		{0, 0},
		{0.5, 0.5},
		{1, 0},
		{1.25, 0.25},
		{3.5, 0.5},
		{-0.25, 0.75},
		{-2.75, 0.25},
		{-1e-18, 0},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := wrapPhase(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("wrapPhase(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVoice_IsPlayingAcrossCallStart(t *testing.T) {
	t.Parallel()
	call := DefaultCall(150)
	call.Duration = 10 * time.Second

	for i := range 500 {
		v := newTestVoice(t, constPhase(0))
		if err := v.Trigger(call); err != nil {
			t.Fatalf("Trigger: %v", err)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			buf := make([]float32, 64)
			for range 4 {
				v.Render(buf, 1)
			}
		}()

		// The call is far longer than what is rendered, so the voice must
		// stay busy the whole time the audio goroutine starts it.
	poll:
		for {
			if !v.IsPlaying() {
				t.Fatalf("iteration %d: IsPlaying = false while a call was starting", i)
			}
			select {
			case <-done:
				break poll
			default:
			}
		}
		if !v.IsPlaying() {
			t.Fatalf("iteration %d: IsPlaying = false after start", i)
		}
	}
}
