package synth

import (
	"errors"
	"fmt"
)

// Chorus sums a fixed pool of voices into one stream. The pool and its mixing
// scratch buffer are allocated up front so Render stays allocation-free.
type Chorus struct {
	voices  []*Voice
	scratch []float32
}

// NewChorus creates n voices sharing cfg. maxFrames and channels size the
// mixing scratch buffer; larger render buffers are mixed in chunks.
func NewChorus(cfg Config, n, maxFrames, channels int, opts ...Option) (*Chorus, error) {
	if n < 1 {
		return nil, fmt.Errorf("synth: chorus needs at least one voice, got %d", n)
	}
	if maxFrames < 1 || channels < 1 {
		return nil, errors.New("synth: chorus buffer frames and channels must be positive")
	}
	c := &Chorus{
		voices:  make([]*Voice, n),
		scratch: make([]float32, maxFrames*channels),
	}
	for i := range c.voices {
		v, err := NewVoice(cfg, opts...)
		if err != nil {
			return nil, err
		}
		c.voices[i] = v
	}
	return c, nil
}

// Len returns the number of voices in the pool.
func (c *Chorus) Len() int { return len(c.voices) }

// Voice returns the i-th voice.
func (c *Chorus) Voice(i int) *Voice { return c.voices[i] }

// IdleVoice returns the first voice that is not playing, or nil when every
// voice is busy.
func (c *Chorus) IdleVoice() *Voice {
	for _, v := range c.voices {
		if !v.IsPlaying() {
			return v
		}
	}
	return nil
}

// Active returns the number of voices currently playing.
func (c *Chorus) Active() int {
	n := 0
	for _, v := range c.voices {
		if v.IsPlaying() {
			n++
		}
	}
	return n
}

// SetEnvelopes applies e to every voice.
func (c *Chorus) SetEnvelopes(e Envelopes) {
	for _, v := range c.voices {
		v.SetEnvelopes(e)
	}
}

// StopAll starts the fade-out of every voice.
func (c *Chorus) StopAll() {
	for _, v := range c.voices {
		v.Stop()
	}
}

// Render mixes every voice into buf.
func (c *Chorus) Render(buf []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	clear(buf)
	chunk := len(c.scratch) / channels * channels
	if chunk == 0 {
		return
	}
	usable := len(buf) / channels * channels
	for off := 0; off < usable; off += chunk {
		n := min(chunk, usable-off)
		dst := buf[off : off+n]
		src := c.scratch[:n]
		for _, v := range c.voices {
			v.Render(src, channels)
			for i, s := range src {
				dst[i] += s
			}
		}
	}
}
