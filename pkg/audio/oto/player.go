//go:build oto

package oto

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	otov2 "github.com/hajimehoshi/oto/v2"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// Player pulls float32 little-endian frames from a reader on oto's audio
// goroutine. oto allows a single context per process, so only one Player may
// be open at a time.
type Player struct {
	mu     sync.Mutex
	ctx    *otov2.Context
	player otov2.Player
	format audio.Format
	closed bool
}

var _ audio.Sink = (*Player)(nil)

// Open creates the oto context for format and waits until the device is
// ready or ctx is done.
func Open(ctx context.Context, format audio.Format) (*Player, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("oto: invalid format %+v", format)
	}
	octx, ready, err := otov2.NewContext(format.SampleRate, format.Channels, otov2.FormatFloat32LE)
	if err != nil {
		return nil, fmt.Errorf("oto: new context: %w", err)
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	slog.Info("oto playback ready", "sample_rate", format.SampleRate, "channels", format.Channels)
	return &Player{ctx: octx, format: format}, nil
}

// Format implements [audio.Sink].
func (p *Player) Format() audio.Format { return p.format }

// Play implements [audio.Sink]. A previous reader, if any, is replaced.
func (p *Player) Play(r io.Reader) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.player != nil {
		if err := p.player.Close(); err != nil {
			slog.Warn("oto: closing previous player", "err", err)
		}
	}
	p.player = p.ctx.NewPlayer(r)
	p.player.Play()
	return nil
}

// Err implements [audio.Sink].
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if p.player != nil {
		return p.player.Err()
	}
	return nil
}

// Close implements [audio.Sink]. The oto context itself cannot be released,
// so it is suspended instead.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	if p.player != nil {
		errs = append(errs, p.player.Close())
		p.player = nil
	}
	errs = append(errs, p.ctx.Suspend())
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("oto: close: %w", err)
	}
	return nil
}
