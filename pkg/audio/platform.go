// Package audio defines the device-facing interfaces and sample plumbing used
// by the whalesong audio core.
//
// The two primary abstractions are:
//
//   - [Source]: a capture device delivering blocks of mono float samples.
//   - [Sink]: a playback device that pulls interleaved float32 audio from an
//     [io.Reader] on its own real-time goroutine.
//
// Implementations live in device adapter packages (audio/portaudio,
// audio/oto). The interfaces are intentionally narrow so that the analysis
// and synthesis packages never depend on a particular backend.
package audio

import (
	"context"
	"io"
)

// Source is a capture device producing mono samples.
//
// Implementations must allow Close to be called concurrently with a blocked
// Read; Read then returns promptly with an error.
type Source interface {
	// Format reports the sample rate of the delivered samples. Channels is
	// always 1.
	Format() Format

	// Read fills dst with the next len(dst) captured samples. It blocks until
	// the samples are available, ctx is cancelled, or the device fails.
	Read(ctx context.Context, dst []float32) error

	// Close stops capture and releases the device. Calling Close more than
	// once is safe and returns nil.
	Close() error
}

// Sink is a playback device that pulls audio from a reader.
//
// The reader passed to Play must yield interleaved little-endian float32
// frames in the sink's [Format]. It is read from the device's audio
// goroutine, so it must never block for long or allocate per call.
type Sink interface {
	// Format reports the output sample rate and channel count.
	Format() Format

	// Play starts pulling from r. It returns once playback is running.
	Play(r io.Reader) error

	// Err returns the last asynchronous playback error, if any.
	Err() error

	// Close stops playback and releases the device. Calling Close more than
	// once is safe and returns nil.
	Close() error
}
