package synth_test

import (
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/whalesong/pkg/synth"
)

func fixedPhase() synth.Option {
	return synth.WithPhaseSource(func() float64 { return 0.4 })
}

func TestChorus_SumsVoices(t *testing.T) {
	t.Parallel()
	cfg := synth.DefaultConfig()

	// Small scratch so a 300-frame render is mixed in chunks.
	chorus, err := synth.NewChorus(cfg, 2, 64, 1, fixedPhase())
	if err != nil {
		t.Fatalf("NewChorus: %v", err)
	}
	a, _ := synth.NewVoice(cfg, fixedPhase())
	b, _ := synth.NewVoice(cfg, fixedPhase())

	callA := synth.DefaultCall(180)
	callB := synth.DefaultCall(270)
	for _, pair := range []struct {
		v    *synth.Voice
		call synth.Call
	}{{chorus.Voice(0), callA}, {chorus.Voice(1), callB}, {a, callA}, {b, callB}} {
		if err := pair.v.Trigger(pair.call); err != nil {
			t.Fatal(err)
		}
	}

	mixed := make([]float32, 300)
	bufA := make([]float32, 300)
	bufB := make([]float32, 300)
	for range 5 {
		chorus.Render(mixed, 1)
		a.Render(bufA, 1)
		b.Render(bufB, 1)
		for i := range mixed {
			want := bufA[i] + bufB[i]
			if math.Abs(float64(mixed[i]-want)) > 1e-6 {
				t.Fatalf("sample %d: mixed %v, want %v", i, mixed[i], want)
			}
		}
	}
}

func TestChorus_IdleVoice(t *testing.T) {
	t.Parallel()
	chorus, err := synth.NewChorus(synth.DefaultConfig(), 2, 256, 1)
	if err != nil {
		t.Fatal(err)
	}
	if chorus.Len() != 2 {
		t.Fatalf("Len = %d, want 2", chorus.Len())
	}
	if got := chorus.IdleVoice(); got != chorus.Voice(0) {
		t.Fatal("IdleVoice should return the first voice of an idle pool")
	}
	_ = chorus.Voice(0).Trigger(synth.DefaultCall(200))
	if got := chorus.IdleVoice(); got != chorus.Voice(1) {
		t.Fatal("IdleVoice should skip the busy voice")
	}
	_ = chorus.Voice(1).Trigger(synth.DefaultCall(200))
	if got := chorus.IdleVoice(); got != nil {
		t.Fatal("IdleVoice should return nil when every voice is busy")
	}
	if got := chorus.Active(); got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}
}

func TestChorus_StopAll(t *testing.T) {
	t.Parallel()
	cfg := synth.DefaultConfig()
	chorus, err := synth.NewChorus(cfg, 3, 512, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range chorus.Len() {
		_ = chorus.Voice(i).Trigger(synth.DefaultCall(150 + 50*float64(i)))
	}
	buf := make([]float32, 1024)
	chorus.Render(buf, 2)
	chorus.StopAll()

	// 50 ms of fade-out is 2205 frames; five stereo buffers of 512 frames
	// cover it.
	for range 5 {
		chorus.Render(buf, 2)
	}
	if got := chorus.Active(); got != 0 {
		t.Errorf("Active = %d after StopAll and fade-out, want 0", got)
	}
}

func TestNewChorus_Validation(t *testing.T) {
	t.Parallel()
	if _, err := synth.NewChorus(synth.DefaultConfig(), 0, 256, 1); err == nil {
		t.Error("zero voices accepted")
	}
	if _, err := synth.NewChorus(synth.DefaultConfig(), 1, 0, 1); err == nil {
		t.Error("zero frames accepted")
	}
	bad := synth.DefaultConfig()
	bad.SampleRate = 0
	if _, err := synth.NewChorus(bad, 1, 256, 1); err == nil {
		t.Error("invalid voice config accepted")
	}
}

func TestChorus_RenderDoesNotAllocate(t *testing.T) {
	chorus, err := synth.NewChorus(synth.DefaultConfig(), 4, 256, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range chorus.Len() {
		call := synth.DefaultCall(100 + 40*float64(i))
		call.Duration = time.Minute
		_ = chorus.Voice(i).Trigger(call)
	}
	buf := make([]float32, 2*1024)
	allocs := testing.AllocsPerRun(50, func() {
		chorus.Render(buf, 2)
	})
	if allocs != 0 {
		t.Errorf("Chorus.Render allocated %v times per run, want 0", allocs)
	}
}

// counter renders an increasing ramp so stream framing can be checked.
type counter struct{ next float32 }

func (c *counter) Render(buf []float32, channels int) {
	for f := 0; f+channels <= len(buf); f += channels {
		for ch := range channels {
			buf[f+ch] = c.next
		}
		c.next++
	}
}

func decode(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func TestStream_OddSizedReads(t *testing.T) {
	t.Parallel()
	s := synth.NewStream(&counter{}, 1, 16)

	// 10-byte reads split samples across calls.
	var all []byte
	p := make([]byte, 10)
	for range 40 {
		n, err := s.Read(p)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n != len(p) {
			t.Fatalf("Read returned %d bytes, want %d", n, len(p))
		}
		all = append(all, p[:n]...)
	}
	for i, v := range decode(all) {
		if v != float32(i) {
			t.Fatalf("sample %d = %v, want %v", i, v, float32(i))
		}
	}
}

func TestStream_StereoFrames(t *testing.T) {
	t.Parallel()
	s := synth.NewStream(&counter{}, 2, 8)
	p := make([]byte, 2*4*20)
	if _, err := io.ReadFull(s, p); err != nil {
		t.Fatal(err)
	}
	samples := decode(p)
	for f := range 20 {
		if samples[2*f] != float32(f) || samples[2*f+1] != float32(f) {
			t.Fatalf("frame %d = (%v, %v)", f, samples[2*f], samples[2*f+1])
		}
	}
}

func TestStream_CloseEndsStream(t *testing.T) {
	t.Parallel()
	s := synth.NewStream(&counter{}, 1, 16)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Read after Close: err = %v, want io.EOF", err)
	}
}
