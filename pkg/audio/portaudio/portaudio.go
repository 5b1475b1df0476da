// Package portaudio captures microphone input through PortAudio and exposes
// it as an [audio.Source].
//
// PortAudio is a cgo binding, so the real implementation is only compiled
// with the "portaudio" build tag:
//
//	go build -tags portaudio ./cmd/whalesong
//
// Without the tag, [Open] returns [ErrUnavailable].
package portaudio

import "errors"

// ErrUnavailable is returned by [Open] when capture support was not compiled
// in.
var ErrUnavailable = errors.New("portaudio: capture support not compiled in, rebuild with -tags portaudio")

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("portaudio: capture closed")

// Config selects the capture stream parameters. The default input device is
// always used and captured in mono.
type Config struct {
	// SampleRate in Hz. Must match the analyzer's sample rate.
	SampleRate int

	// FramesPerBuffer is the PortAudio buffer size. Zero lets PortAudio
	// choose.
	FramesPerBuffer int
}
