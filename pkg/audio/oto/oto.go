// Package oto plays synthesized audio through the oto sound library and
// exposes it as an [audio.Sink].
//
// oto needs cgo on Linux, so the real implementation is only compiled with
// the "oto" build tag. Without it, [Open] returns [ErrUnavailable].
package oto

import "errors"

// ErrUnavailable is returned by [Open] when playback support was not
// compiled in.
var ErrUnavailable = errors.New("oto: playback support not compiled in, rebuild with -tags oto")

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("oto: player closed")
