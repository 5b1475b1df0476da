package audio

import "sync"

// RollingBuffer keeps the most recent samples of a mono capture stream in a
// fixed-capacity ring. The capture goroutine writes blocks as they arrive and
// the analysis goroutine copies out the latest window on its own cadence.
//
// All methods are safe for concurrent use.
type RollingBuffer struct {
	mu     sync.Mutex
	data   []float32
	pos    int // next write index
	filled int
	total  uint64
}

// NewRollingBuffer creates a buffer retaining the last capacity samples.
// capacity must be positive.
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingBuffer{data: make([]float32, capacity)}
}

// Write appends samples, overwriting the oldest ones once the ring is full.
func (b *RollingBuffer) Write(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += uint64(len(samples))
	// Only the tail can survive if the block is larger than the ring.
	if len(samples) > len(b.data) {
		samples = samples[len(samples)-len(b.data):]
	}
	for len(samples) > 0 {
		n := copy(b.data[b.pos:], samples)
		samples = samples[n:]
		b.pos = (b.pos + n) % len(b.data)
		b.filled = min(b.filled+n, len(b.data))
	}
}

// Latest copies the newest len(dst) samples into dst in chronological order.
// It returns false, leaving dst untouched, when fewer samples have been
// written so far or dst is larger than the ring.
func (b *RollingBuffer) Latest(dst []float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(dst)
	if n > b.filled {
		return false
	}
	start := (b.pos - n + len(b.data)) % len(b.data)
	k := copy(dst, b.data[start:min(start+n, len(b.data))])
	copy(dst[k:], b.data[:n-k])
	return true
}

// Filled returns how many samples are currently held.
func (b *RollingBuffer) Filled() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filled
}

// Total returns how many samples have ever been written.
func (b *RollingBuffer) Total() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Reset discards all buffered samples.
func (b *RollingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pos, b.filled = 0, 0
}
