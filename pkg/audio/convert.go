package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
)

// Int16ToFloat32 converts signed 16-bit samples to floats in [-1, 1).
// dst must be at least len(src) long; the filled prefix is returned.
func Int16ToFloat32(dst []float32, src []int16) []float32 {
	dst = dst[:len(src)]
	for i, s := range src {
		dst[i] = float32(s) / 32768
	}
	return dst
}

// Float32ToInt16 converts float samples to signed 16-bit, clamping to the
// int16 range. NaN is written as silence.
func Float32ToInt16(dst []int16, src []float32) []int16 {
	dst = dst[:len(src)]
	for i, s := range src {
		v := float64(s) * 32767
		switch {
		case v != v:
			v = 0
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		dst[i] = int16(math.Round(v))
	}
	return dst
}

// DownmixToMono averages interleaved frames of the given channel count into
// dst. Trailing partial frames are ignored.
func DownmixToMono(dst, interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		n := copy(dst, interleaved)
		return dst[:n]
	}
	frames := len(interleaved) / channels
	dst = dst[:frames]
	inv := 1 / float32(channels)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		dst[i] = sum * inv
	}
	return dst
}

// Float32ToBytesLE encodes samples as little-endian IEEE-754 floats into dst,
// which must hold 4 bytes per sample. It returns the number of bytes written.
// No allocation is performed, so it is safe on the audio goroutine.
func Float32ToBytesLE(dst []byte, src []float32) int {
	n := min(len(src), len(dst)/4)
	for i := range n {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
	}
	return n * 4
}

// FormatGuard validates sample blocks handed to the analysis path. It logs a
// warning once on the first format mismatch. Create one per stream; not
// designed for shared use across goroutines.
type FormatGuard struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Check reports whether a block captured in format got can be fed to the
// analyzer unchanged. Blocks whose length is not a whole number of frames are
// rejected.
func (g *FormatGuard) Check(got Format, samples int) bool {
	if got.Channels > 0 && samples%got.Channels != 0 {
		g.warnedCorrupt.Do(func() {
			slog.Warn("audio format guard: partial frame in block, dropping",
				"samples", samples,
				"channels", got.Channels,
			)
		})
		return false
	}
	if got == g.Target {
		return true
	}
	g.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: analysis thresholds assume a different format",
			"got_rate", got.SampleRate,
			"got_channels", got.Channels,
			"want_rate", g.Target.SampleRate,
			"want_channels", g.Target.Channels,
		)
	})
	return got.SampleRate == g.Target.SampleRate
}
