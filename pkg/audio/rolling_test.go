package audio_test

import (
	"sync"
	"testing"

	"github.com/MrWong99/whalesong/pkg/audio"
)

func seq(from, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(from + i)
	}
	return out
}

func TestRollingBuffer_LatestBeforeFilled(t *testing.T) {
	b := audio.NewRollingBuffer(8)
	b.Write(seq(0, 3))
	dst := make([]float32, 4)
	if b.Latest(dst) {
		t.Fatal("Latest succeeded with only 3 samples buffered")
	}
	if b.Filled() != 3 {
		t.Errorf("Filled = %d, want 3", b.Filled())
	}
}

func TestRollingBuffer_WrapsInOrder(t *testing.T) {
	b := audio.NewRollingBuffer(8)
	b.Write(seq(0, 6))
	b.Write(seq(6, 5)) // wraps: ring now holds 3..10

	dst := make([]float32, 8)
	if !b.Latest(dst) {
		t.Fatal("Latest failed on a full ring")
	}
	for i, v := range dst {
		if want := float32(3 + i); v != want {
			t.Errorf("dst[%d] = %v, want %v", i, v, want)
		}
	}

	short := make([]float32, 3)
	b.Latest(short)
	for i, v := range short {
		if want := float32(8 + i); v != want {
			t.Errorf("short[%d] = %v, want %v", i, v, want)
		}
	}
	if b.Total() != 11 {
		t.Errorf("Total = %d, want 11", b.Total())
	}
}

func TestRollingBuffer_OversizedBlockKeepsTail(t *testing.T) {
	b := audio.NewRollingBuffer(4)
	b.Write(seq(0, 10))
	dst := make([]float32, 4)
	if !b.Latest(dst) {
		t.Fatal("Latest failed")
	}
	for i, v := range dst {
		if want := float32(6 + i); v != want {
			t.Errorf("dst[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestRollingBuffer_Reset(t *testing.T) {
	b := audio.NewRollingBuffer(4)
	b.Write(seq(0, 4))
	b.Reset()
	if b.Filled() != 0 {
		t.Errorf("Filled after Reset = %d, want 0", b.Filled())
	}
	if b.Latest(make([]float32, 1)) {
		t.Error("Latest succeeded after Reset")
	}
}

func TestRollingBuffer_ConcurrentAccess(t *testing.T) {
	b := audio.NewRollingBuffer(512)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		block := seq(0, 64)
		for range 200 {
			b.Write(block)
		}
	}()
	go func() {
		defer wg.Done()
		dst := make([]float32, 128)
		for range 200 {
			b.Latest(dst)
		}
	}()
	wg.Wait()
	if b.Filled() != 512 {
		t.Errorf("Filled = %d, want 512", b.Filled())
	}
}
