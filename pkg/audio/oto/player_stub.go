//go:build !oto

package oto

import (
	"context"
	"io"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// Player is unavailable in builds without the "oto" tag.
type Player struct{}

var _ audio.Sink = (*Player)(nil)

// Open always returns [ErrUnavailable].
func Open(context.Context, audio.Format) (*Player, error) { return nil, ErrUnavailable }

// Format implements [audio.Sink].
func (*Player) Format() audio.Format { return audio.Format{} }

// Play implements [audio.Sink].
func (*Player) Play(io.Reader) error { return ErrUnavailable }

// Err implements [audio.Sink].
func (*Player) Err() error { return nil }

// Close implements [audio.Sink].
func (*Player) Close() error { return nil }
