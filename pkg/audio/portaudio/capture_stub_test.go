//go:build !portaudio

package portaudio_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/whalesong/pkg/audio/portaudio"
)

func TestOpen_Unavailable(t *testing.T) {
	t.Parallel()
	c, err := portaudio.Open(portaudio.Config{SampleRate: 44100})
	if !errors.Is(err, portaudio.ErrUnavailable) {
		t.Fatalf("Open: err = %v, want ErrUnavailable", err)
	}
	if c != nil {
		t.Error("Open returned a capture alongside the error")
	}
}
