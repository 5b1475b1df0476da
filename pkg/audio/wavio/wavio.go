// Package wavio reads and writes WAV files as float32 samples, for the
// offline analyze and render commands. Integer PCM and IEEE float streams
// are read; integer PCM is written.
package wavio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/whalesong/pkg/audio"
)

// ErrNotWAV is returned when the input is not a WAV stream this package can
// decode: integer PCM or IEEE float.
var ErrNotWAV = errors.New("wavio: not a valid PCM WAV stream")

// WAV format tags.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// Read decodes a PCM or IEEE float WAV stream into interleaved float32
// samples. Integer PCM is scaled to [-1, 1]; float samples are passed
// through, with NaN and infinities replaced by 0. Any other format tag,
// including WAVE_FORMAT_EXTENSIBLE, is rejected with [ErrNotWAV].
func Read(r io.ReadSeeker) (audio.Format, []float32, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return audio.Format{}, nil, ErrNotWAV
	}

	var (
		samples []float32
		err     error
	)
	switch d.WavAudioFormat {
	case wavFormatPCM:
		samples, err = readPCM(d)
	case wavFormatFloat:
		samples, err = readFloat(d)
	default:
		return audio.Format{}, nil, fmt.Errorf("%w: format tag %#x", ErrNotWAV, d.WavAudioFormat)
	}
	if err != nil {
		return audio.Format{}, nil, err
	}
	f := audio.Format{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}
	return f, samples, nil
}

func readPCM(d *wav.Decoder) ([]float32, error) {
	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("wavio: unsupported bit depth %d", bitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: decode: %w", err)
	}

	scale := 1 / float64(int64(1)<<(bitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			v -= 128 // 8-bit WAV is unsigned
		}
		samples[i] = float32(float64(v) * scale)
	}
	return samples, nil
}

// readFloat decodes the data chunk as little-endian float32 or float64.
func readFloat(d *wav.Decoder) ([]float32, error) {
	size := int(d.BitDepth) / 8
	if d.BitDepth != 32 && d.BitDepth != 64 {
		return nil, fmt.Errorf("wavio: unsupported float bit depth %d", d.BitDepth)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("wavio: decode: %w", err)
	}
	if d.PCMChunk == nil {
		return nil, errors.New("wavio: decode: data chunk not found")
	}

	raw := make([]byte, d.PCMSize-d.PCMSize%size)
	if _, err := io.ReadFull(d.PCMChunk, raw); err != nil {
		return nil, fmt.Errorf("wavio: decode: %w", err)
	}
	samples := make([]float32, len(raw)/size)
	for i := range samples {
		var v float64
		if size == 4 {
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		} else {
			v = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		samples[i] = float32(v)
	}
	return samples, nil
}

// ReadMono decodes r and downmixes it to mono.
func ReadMono(r io.ReadSeeker) (sampleRate int, samples []float32, err error) {
	f, interleaved, err := Read(r)
	if err != nil {
		return 0, nil, err
	}
	mono := make([]float32, len(interleaved)/max(f.Channels, 1))
	return f.SampleRate, audio.DownmixToMono(mono, interleaved, f.Channels), nil
}

// ReadFile opens path and decodes it to mono.
func ReadFile(path string) (sampleRate int, samples []float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("wavio: %w", err)
	}
	defer f.Close()
	return ReadMono(f)
}

// Write encodes interleaved float32 samples as PCM with the given bit depth
// (16, 24 or 32). Samples are clamped to [-1, 1].
func Write(w io.WriteSeeker, format audio.Format, bitDepth int, samples []float32) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("wavio: unsupported bit depth %d", bitDepth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("wavio: invalid format %+v", format)
	}

	peak := float64(int64(1)<<(bitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		}
		v = max(-1, min(1, v))
		data[i] = int(math.Round(v * peak))
	}

	enc := wav.NewEncoder(w, format.SampleRate, bitDepth, format.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavio: finalize: %w", err)
	}
	return nil
}

// WriteFile creates path and writes samples to it.
func WriteFile(path string, format audio.Format, bitDepth int, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: %w", err)
	}
	if err := Write(f, format, bitDepth, samples); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
