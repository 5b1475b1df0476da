package voice

import (
	"math"
	"math/rand/v2"
	"testing"
)

func sineWave(freq, amp float64, n, sr int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	return out
}

func TestRMS(t *testing.T) {
	t.Parallel()
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS(square) = %v, want 0.5", got)
	}
	// A full-scale sine has RMS 1/sqrt(2).
	if got := RMS(sineWave(441, 1, 44100, 44100)); math.Abs(got-1/math.Sqrt2) > 1e-3 {
		t.Errorf("RMS(sine) = %v, want %v", got, 1/math.Sqrt2)
	}
}

func TestNoiseScore(t *testing.T) {
	t.Parallel()

	if got := NoiseScore([]float32{1, 1, 1, 1}); got != 0 {
		t.Errorf("short window: got %v, want 0", got)
	}
	if got := NoiseScore(make([]float32, 512)); got != 0 {
		t.Errorf("silence: got %v, want 0", got)
	}
	// Energy below epsilon is treated as silence.
	tiny := make([]float32, 16)
	for i := range tiny {
		tiny[i] = 1e-6
	}
	if got := NoiseScore(tiny); got != 0 {
		t.Errorf("near silence: got %v, want 0", got)
	}

	if got := NoiseScore(sineWave(200, 0.5, 512, 44100)); got > 0.01 {
		t.Errorf("pure tone: got %v, want near 0", got)
	}

	r := rand.New(rand.NewPCG(42, 42))
	white := make([]float32, 512)
	for i := range white {
		white[i] = float32(0.1 * (2*r.Float64() - 1))
	}
	if got := NoiseScore(white); got < 0.5 {
		t.Errorf("white noise: got %v, want a high roughness score", got)
	}
}

func TestEstimatePitch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []float32
		want    float64
		tol     float64
	}{
		{"220 Hz tone", sineWave(220, 0.5, 2048, 44100), 220, 2},
		{"110 Hz tone", sineWave(110, 0.5, 2048, 44100), 110, 1},
		{"tone above range", sineWave(1000, 0.5, 2048, 44100), 0, 0},
		{"silence", make([]float32, 512), 0, 0},
		{"too short", []float32{0, 1}, 0, 0},
		{"single peak", []float32{0, 0.1, 0.9, 0.1, 0}, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := EstimatePitch(tc.samples, 44100, 80, 400)
			if math.Abs(got-tc.want) > tc.tol {
				t.Errorf("EstimatePitch = %v, want %v ± %v", got, tc.want, tc.tol)
			}
		})
	}
}

func TestFrequencyComponent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pitch, want float64
	}{
		{0, 0.5},
		{-3, 0.5},
		{40, 0.5},
		{80, 1},
		{250, 1},
		{400, 1},
		{600, 0.5},
		{1000, 0},
	}
	for _, tc := range cases {
		if got := frequencyComponent(tc.pitch, 80, 400); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("frequencyComponent(%v) = %v, want %v", tc.pitch, got, tc.want)
		}
	}
}

func TestComponentsClamp(t *testing.T) {
	t.Parallel()
	if got := noiseComponent(0.6, 0.15); got != 1 {
		t.Errorf("noiseComponent saturates at 1, got %v", got)
	}
	if got := energyComponent(0.01, 0.02); got != 0.5 {
		t.Errorf("energyComponent = %v, want 0.5", got)
	}
	if got := clamp01(math.NaN()); got != 0 {
		t.Errorf("clamp01(NaN) = %v, want 0", got)
	}
}

func TestMedian(t *testing.T) {
	t.Parallel()

	in := []float64{0.1, 0.1, 0.1, 0.9, 0.1}
	if got := Median(in); got != 0.1 {
		t.Errorf("Median(%v) = %v, want 0.1", in, got)
	}
	if in[3] != 0.9 {
		t.Error("Median modified its input")
	}
	if got := Median(nil); got != 0 {
		t.Errorf("Median(nil) = %v, want 0", got)
	}
	if got := Median([]float64{0.2, 0.8}); got != 0.8 {
		t.Errorf("Median of two = %v, want upper middle 0.8", got)
	}
}

func TestHistory_RingMedian(t *testing.T) {
	t.Parallel()
	h := newHistory(5)
	if h.median() != 0 {
		t.Error("empty history median should be 0")
	}
	for _, v := range []float64{0.1, 0.1, 0.1, 0.9, 0.1} {
		h.push(v)
	}
	if got := h.median(); got != 0.1 {
		t.Errorf("median = %v, want 0.1", got)
	}
	// Overwrite the oldest entries with high values.
	for range 3 {
		h.push(0.8)
	}
	if got := h.median(); got != 0.8 {
		t.Errorf("median after wrap = %v, want 0.8", got)
	}
	h.reset()
	if h.n != 0 || h.median() != 0 {
		t.Error("reset did not clear history")
	}
}

func TestHistory_MedianDoesNotAllocate(t *testing.T) {
	h := newHistory(5)
	for i := range 5 {
		h.push(float64(i))
	}
	allocs := testing.AllocsPerRun(100, func() {
		h.push(0.3)
		_ = h.median()
	})
	if allocs != 0 {
		t.Errorf("median allocated %v times per run, want 0", allocs)
	}
}
