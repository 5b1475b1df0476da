//go:build !portaudio

package portaudio

import (
	"context"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// Capture is unavailable in builds without the "portaudio" tag.
type Capture struct{}

var _ audio.Source = (*Capture)(nil)

// Open always returns [ErrUnavailable].
func Open(Config) (*Capture, error) { return nil, ErrUnavailable }

// Format implements [audio.Source].
func (*Capture) Format() audio.Format { return audio.Format{} }

// Read implements [audio.Source].
func (*Capture) Read(context.Context, []float32) error { return ErrUnavailable }

// Close implements [audio.Source].
func (*Capture) Close() error { return nil }
