package voice

import "slices"

// history is a fixed-capacity ring of recent confidence scores. Storage for
// the median is preallocated so steady-state analysis does not allocate.
type history struct {
	buf     []float64
	scratch []float64
	pos     int
	n       int
}

func newHistory(capacity int) *history {
	return &history{
		buf:     make([]float64, capacity),
		scratch: make([]float64, capacity),
	}
}

func (h *history) push(v float64) {
	h.buf[h.pos] = v
	h.pos = (h.pos + 1) % len(h.buf)
	if h.n < len(h.buf) {
		h.n++
	}
}

// median returns the median of the filled entries, or 0 when empty.
func (h *history) median() float64 {
	if h.n == 0 {
		return 0
	}
	s := h.scratch[:h.n]
	copy(s, h.buf[:h.n])
	slices.Sort(s)
	return s[h.n/2]
}

func (h *history) reset() {
	h.pos, h.n = 0, 0
}

// Median returns the median of values using the same rule as the
// stabiliser: the element at index len/2 of the sorted values, so even-length
// inputs yield the upper middle. It returns 0 for an empty slice and does not
// modify values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := slices.Clone(values)
	slices.Sort(s)
	return s[len(s)/2]
}
