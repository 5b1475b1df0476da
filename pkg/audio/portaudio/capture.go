//go:build portaudio

package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// defaultFrames is used when Config.FramesPerBuffer is zero.
const defaultFrames = 512

// Capture reads mono float32 samples from the default input device.
//
// Read and Close may be called from different goroutines. Close waits for an
// in-flight device read, which is bounded by one PortAudio buffer.
type Capture struct {
	mu       sync.Mutex
	stream   *pa.Stream
	buf      []float32
	off      int
	format   audio.Format
	closed   bool
	overflow bool
}

var _ audio.Source = (*Capture)(nil)

// Open initialises PortAudio and starts a mono input stream on the default
// device.
func Open(cfg Config) (*Capture, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("portaudio: sample rate %d must be positive", cfg.SampleRate)
	}
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = defaultFrames
	}
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	buf := make([]float32, frames)
	stream, err := pa.OpenDefaultStream(1, 0, float64(cfg.SampleRate), frames, buf)
	if err != nil {
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = pa.Terminate()
		return nil, fmt.Errorf("portaudio: start input stream: %w", err)
	}

	slog.Info("portaudio capture started", "sample_rate", cfg.SampleRate, "frames_per_buffer", frames)
	return &Capture{
		stream: stream,
		buf:    buf,
		off:    len(buf),
		format: audio.Format{SampleRate: cfg.SampleRate, Channels: 1},
	}, nil
}

// Format implements [audio.Source].
func (c *Capture) Format() audio.Format { return c.format }

// Read implements [audio.Source].
func (c *Capture) Read(ctx context.Context, dst []float32) error {
	n := 0
	for n < len(dst) {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.off >= len(c.buf) {
			if err := c.stream.Read(); err != nil {
				if !errors.Is(err, pa.InputOverflowed) {
					c.mu.Unlock()
					return fmt.Errorf("portaudio: read: %w", err)
				}
				if !c.overflow {
					c.overflow = true
					slog.Warn("portaudio input overflowed, samples were dropped")
				}
			}
			c.off = 0
		}
		k := copy(dst[n:], c.buf[c.off:])
		c.off += k
		c.mu.Unlock()
		n += k
	}
	return nil
}

// Close implements [audio.Source].
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := errors.Join(c.stream.Stop(), c.stream.Close())
	if termErr := pa.Terminate(); termErr != nil {
		err = errors.Join(err, termErr)
	}
	if err != nil {
		return fmt.Errorf("portaudio: close: %w", err)
	}
	return nil
}
