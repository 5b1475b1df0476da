package voice

import "github.com/MrWong99/whalesong/pkg/audio"

// State is the analyzer's voice-detection state.
type State int

const (
	// StateSilent means the input is below the volume threshold.
	StateSilent State = iota

	// StateDetecting means voice was just recognised on this window.
	StateDetecting

	// StateSustaining means voice is still present after being detected.
	StateSustaining

	// StateNonVoiceAudio means the input is loud enough but does not look
	// like a human voice.
	StateNonVoiceAudio
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateSilent:
		return "silent"
	case StateDetecting:
		return "detecting"
	case StateSustaining:
		return "sustaining"
	case StateNonVoiceAudio:
		return "non_voice_audio"
	default:
		return "unknown"
	}
}

// EventType enumerates the discrete events emitted by an [Analyzer].
type EventType int

const (
	// EventNone means the window produced no event.
	EventNone EventType = iota

	// EventVoiceStarted is emitted on the first window recognised as voice.
	EventVoiceStarted

	// EventVoiceContinuing is emitted on every further voice window.
	EventVoiceContinuing

	// EventVoiceStopped is emitted when the input falls silent after voice.
	EventVoiceStopped

	// EventNonVoiceAudio is emitted for loud windows that did not pass the
	// confidence bar.
	EventNonVoiceAudio
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventVoiceStarted:
		return "voice_started"
	case EventVoiceContinuing:
		return "voice_continuing"
	case EventVoiceStopped:
		return "voice_stopped"
	case EventNonVoiceAudio:
		return "non_voice_audio"
	default:
		return "unknown"
	}
}

// Event is a discrete voice-detection event.
type Event struct {
	// Type is the kind of event. EventNone means no event occurred.
	Type EventType

	// Window is the analysed window. It aliases the caller's slice and is nil
	// for EventVoiceStopped; copy it to keep it past the listener call.
	Window audio.Window

	// RMS is the window's energy.
	RMS float64

	// PitchHz is the window's pitch estimate, 0 if unknown.
	PitchHz float64

	// Confidence is the stabilised confidence at the time of the event.
	Confidence float64
}

// Scores are the per-component scores fused into the confidence, each in
// [0, 1].
type Scores struct {
	Noise     float64
	Frequency float64
	Energy    float64
}

// Metrics are the measurements derived from a single window.
type Metrics struct {
	// RMS is the root-mean-square energy.
	RMS float64

	// NoiseScore is the raw roughness ratio.
	NoiseScore float64

	// EstimatedPitchHz is the peak-interval pitch, 0 when unknown.
	EstimatedPitchHz float64

	// Scores are the normalised component scores.
	Scores Scores

	// Confidence is the weighted fusion of Scores clamped to [0, 1]. It is
	// reported as 0 for windows below the volume threshold.
	Confidence float64
}

// Result is the outcome of analysing one window.
type Result struct {
	Metrics Metrics

	// Stabilized is the median of the recent confidence history.
	Stabilized float64

	// State is the detection state after this window.
	State State

	// Event is the event emitted for this window (Type EventNone if none).
	Event Event
}
