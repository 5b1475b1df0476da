package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/whalesong/pkg/audio"
	"github.com/MrWong99/whalesong/pkg/synth"
	"github.com/MrWong99/whalesong/pkg/voice"
)

// MaxRenderDuration caps the call length accepted by [RenderCall].
const MaxRenderDuration = 10 * time.Minute

// renderBlock is the number of frames rendered per pass in [RenderCall].
const renderBlock = 1024

// Detection is one analyzer event found in a recording.
type Detection struct {
	// Window is the index of the analysed window.
	Window int

	// At is the start of the window relative to the recording.
	At time.Duration

	Type       voice.EventType
	RMS        float64
	PitchHz    float64
	Confidence float64
}

// Report summarises an offline analysis.
type Report struct {
	Windows    int
	Detections []Detection

	// VoiceWindows counts windows in the detecting or sustaining state.
	VoiceWindows int
}

// AnalyzeWindows feeds samples to a fresh analyzer in consecutive
// non-overlapping windows of cfg.WindowSize and collects every event. A
// trailing partial window is ignored. A final [voice.EventVoiceStopped] is
// not synthesised when the recording ends during voice.
func AnalyzeWindows(cfg voice.Config, samples []float32) (Report, error) {
	analyzer, err := voice.NewAnalyzer(cfg)
	if err != nil {
		return Report{}, fmt.Errorf("app: analyze: %w", err)
	}

	var rep Report
	size := cfg.WindowSize
	for start := 0; start+size <= len(samples); start += size {
		res := analyzer.Analyze(audio.Window(samples[start : start+size]))
		if res.State == voice.StateDetecting || res.State == voice.StateSustaining {
			rep.VoiceWindows++
		}
		if ev := res.Event; ev.Type != voice.EventNone {
			rep.Detections = append(rep.Detections, Detection{
				Window:     rep.Windows,
				At:         time.Duration(start) * time.Second / time.Duration(cfg.SampleRate),
				Type:       ev.Type,
				RMS:        ev.RMS,
				PitchHz:    ev.PitchHz,
				Confidence: ev.Confidence,
			})
		}
		rep.Windows++
	}
	return rep, nil
}

// RenderCall renders call on a dedicated voice until it has faded out and
// returns the interleaved samples, exactly as many frames as the voice
// played.
func RenderCall(cfg synth.Config, env synth.Envelopes, call synth.Call, channels int, opts ...synth.Option) ([]float32, error) {
	if channels < 1 {
		return nil, fmt.Errorf("app: render: channels %d must be at least 1", channels)
	}
	if call.Duration > MaxRenderDuration {
		return nil, fmt.Errorf("app: render: duration %v exceeds %v", call.Duration, MaxRenderDuration)
	}
	v, err := synth.NewVoice(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: render: %w", err)
	}
	v.SetEnvelopes(env)
	if err := v.Trigger(call); err != nil {
		return nil, fmt.Errorf("app: render: %w", err)
	}

	frames := audio.Format{SampleRate: cfg.SampleRate, Channels: channels}.FramesFor(max(call.Duration, 0)) +
		v.FadeOutSamples() + renderBlock
	out := make([]float32, 0, frames*channels)
	block := make([]float32, renderBlock*channels)
	for v.IsPlaying() {
		v.Render(block, channels)
		out = append(out, block...)
	}

	n := int(v.SampleIndex()) * channels
	if n > len(out) {
		return nil, errors.New("app: render: voice reported more frames than rendered")
	}
	return out[:n], nil
}
