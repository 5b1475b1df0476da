// Package mock provides in-memory implementations of [audio.Source] and
// [audio.Sink] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported
// fields that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Fmt:     audio.Format{SampleRate: 44100, Channels: 1},
//	    Samples: noise,
//	}
//	sink := &mock.Sink{Fmt: audio.Format{SampleRate: 44100, Channels: 2}}
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. It replays Samples in a
// loop (or silence when Samples is empty).
type Source struct {
	mu sync.Mutex

	// Fmt is returned by [Source.Format].
	Fmt audio.Format

	// Samples are delivered cyclically by Read.
	Samples []float32

	// ReadErr, if non-nil, is returned by every Read call.
	ReadErr error

	// CloseErr is returned by Close.
	CloseErr error

	pos int

	// ReadCalls counts calls to Read.
	ReadCalls int

	// CloseCalls counts calls to Close.
	CloseCalls int

	closed bool
}

// Format implements [audio.Source].
func (s *Source) Format() audio.Format {
	return s.Fmt
}

// Read implements [audio.Source]. It never blocks; cancellation of ctx and a
// closed source are reported as errors.
func (s *Source) Read(ctx context.Context, dst []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadCalls++
	if s.closed {
		return io.ErrClosedPipe
	}
	if s.ReadErr != nil {
		return s.ReadErr
	}
	if len(s.Samples) == 0 {
		clear(dst)
		return nil
	}
	for i := range dst {
		dst[i] = s.Samples[s.pos]
		s.pos = (s.pos + 1) % len(s.Samples)
	}
	return nil
}

// Close implements [audio.Source].
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	s.closed = true
	return s.CloseErr
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink]. It keeps the reader passed
// to Play so tests can pull from it with [Sink.Pull].
type Sink struct {
	mu sync.Mutex

	// Fmt is returned by [Sink.Format].
	Fmt audio.Format

	// PlayErr, if non-nil, is returned by Play.
	PlayErr error

	// AsyncErr is returned by Err.
	AsyncErr error

	// CloseErr is returned by Close.
	CloseErr error

	reader io.Reader

	// PlayCalls counts calls to Play.
	PlayCalls int

	// CloseCalls counts calls to Close.
	CloseCalls int
}

// Format implements [audio.Sink].
func (s *Sink) Format() audio.Format {
	return s.Fmt
}

// Play implements [audio.Sink].
func (s *Sink) Play(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls++
	if s.PlayErr != nil {
		return s.PlayErr
	}
	s.reader = r
	return nil
}

// Err implements [audio.Sink].
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AsyncErr
}

// Close implements [audio.Sink].
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return s.CloseErr
}

// Pull reads n bytes from the reader registered with Play, emulating one
// device callback. It returns nil if Play has not been called.
func (s *Sink) Pull(n int) ([]byte, error) {
	s.mu.Lock()
	r := s.reader
	s.mu.Unlock()
	if r == nil {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(r, buf)
	return buf[:read], err
}

// Compile-time interface assertions.
var (
	_ audio.Source = (*Source)(nil)
	_ audio.Sink   = (*Sink)(nil)
)
