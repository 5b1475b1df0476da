package synth

import (
	"io"
	"sync/atomic"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// bytesPerSample is the size of one float32 little-endian sample.
const bytesPerSample = 4

// Stream adapts a [Renderer] to an [io.Reader] producing interleaved float32
// little-endian PCM, the format pull-based players such as oto consume. It
// never returns io.EOF until closed, so the player keeps pulling silence
// between calls.
//
// Read must not be called concurrently; Close may be.
type Stream struct {
	r        Renderer
	channels int
	scratch  []float32

	// A frame split across two Reads is held here.
	partial  []byte
	partialN int
	partialI int

	closed atomic.Bool
}

var _ io.ReadCloser = (*Stream)(nil)

// NewStream wraps r. maxFrames bounds how many frames are rendered per
// Render call.
func NewStream(r Renderer, channels, maxFrames int) *Stream {
	channels = max(channels, 1)
	maxFrames = max(maxFrames, 1)
	return &Stream{
		r:        r,
		channels: channels,
		scratch:  make([]float32, maxFrames*channels),
		partial:  make([]byte, channels*bytesPerSample),
	}
}

// Read fills p with rendered audio.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, io.EOF
	}
	n := 0
	if s.partialI < s.partialN {
		c := copy(p, s.partial[s.partialI:s.partialN])
		s.partialI += c
		n += c
	}

	frameBytes := s.channels * bytesPerSample
	maxFrames := len(s.scratch) / s.channels
	for len(p)-n >= frameBytes {
		frames := min((len(p)-n)/frameBytes, maxFrames)
		buf := s.scratch[:frames*s.channels]
		s.r.Render(buf, s.channels)
		n += audio.Float32ToBytesLE(p[n:], buf)
	}

	if n < len(p) {
		// Less than a frame of room left: render one frame and hand out
		// its head now.
		buf := s.scratch[:s.channels]
		s.r.Render(buf, s.channels)
		s.partialN = audio.Float32ToBytesLE(s.partial, buf)
		s.partialI = copy(p[n:], s.partial[:s.partialN])
		n += s.partialI
	}
	return n, nil
}

// Close makes subsequent Reads return io.EOF.
func (s *Stream) Close() error {
	s.closed.Store(true)
	return nil
}
