//go:build !oto

package oto_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/whalesong/pkg/audio"
	"github.com/MrWong99/whalesong/pkg/audio/oto"
)

func TestOpen_Unavailable(t *testing.T) {
	t.Parallel()
	_, err := oto.Open(context.Background(), audio.Format{SampleRate: 44100, Channels: 2})
	if !errors.Is(err, oto.ErrUnavailable) {
		t.Fatalf("Open: err = %v, want ErrUnavailable", err)
	}
}
