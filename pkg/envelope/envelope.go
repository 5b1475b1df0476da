// Package envelope implements keyframed envelope curves sampled over the
// normalised progress of a synthesizer call.
//
// A [Curve] is a sequence of (time, value) keys on the [0, 1] time axis,
// interpolated with cubic Hermite segments whose tangents are derived from
// neighbouring keys (Catmull-Rom style, non-uniform). The first derivative is
// continuous at every interior key and flat at both ends.
//
// Curves are immutable once built. To change the shape of a voice's envelope,
// build a new Curve and hand it over; never mutate one that may be in use by
// the audio goroutine. Evaluate never allocates and is safe for concurrent use.
package envelope

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoKeys is returned by [New] when called without any keys.
var ErrNoKeys = errors.New("envelope: at least one key is required")

// Key is a single control point of a [Curve].
type Key struct {
	// T is the position on the progress axis, in [0, 1].
	T float64 `yaml:"t"`

	// V is the curve value at T.
	V float64 `yaml:"v"`
}

// Curve is an immutable, smoothly interpolated envelope.
type Curve struct {
	t []float64
	v []float64
	m []float64 // tangent dv/dt at each key
}

// New builds a Curve from keys. Keys must be sorted by strictly increasing T,
// every T must lie in [0, 1] and every value must be finite.
func New(keys ...Key) (*Curve, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	var errs []error
	for i, k := range keys {
		if math.IsNaN(k.T) || k.T < 0 || k.T > 1 {
			errs = append(errs, fmt.Errorf("envelope: key[%d].t %v is outside [0, 1]", i, k.T))
		}
		if math.IsNaN(k.V) || math.IsInf(k.V, 0) {
			errs = append(errs, fmt.Errorf("envelope: key[%d].v is not finite", i))
		}
		if i > 0 && !(k.T > keys[i-1].T) {
			errs = append(errs, fmt.Errorf("envelope: key[%d].t %v does not increase over key[%d].t %v", i, k.T, i-1, keys[i-1].T))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	n := len(keys)
	c := &Curve{
		t: make([]float64, n),
		v: make([]float64, n),
		m: make([]float64, n),
	}
	for i, k := range keys {
		c.t[i] = k.T
		c.v[i] = k.V
	}
	for i := 1; i < n-1; i++ {
		c.m[i] = (c.v[i+1] - c.v[i-1]) / (c.t[i+1] - c.t[i-1])
	}
	return c, nil
}

// MustNew is like [New] but panics on invalid keys. Intended for package-level
// presets and tests.
func MustNew(keys ...Key) *Curve {
	c, err := New(keys...)
	if err != nil {
		panic(err)
	}
	return c
}

// Constant returns a flat curve with value v everywhere.
func Constant(v float64) *Curve {
	return MustNew(Key{T: 0, V: v})
}

// Keys returns a copy of the curve's control points.
func (c *Curve) Keys() []Key {
	keys := make([]Key, len(c.t))
	for i := range c.t {
		keys[i] = Key{T: c.t[i], V: c.v[i]}
	}
	return keys
}

// Len returns the number of control points.
func (c *Curve) Len() int { return len(c.t) }

// Evaluate samples the curve at progress t. t is clamped to [0, 1]; outside
// the key range the nearest end value is held.
func (c *Curve) Evaluate(t float64) float64 {
	if t != t || t < 0 { // NaN or negative
		t = 0
	} else if t > 1 {
		t = 1
	}

	n := len(c.t)
	if t <= c.t[0] {
		return c.v[0]
	}
	if t >= c.t[n-1] {
		return c.v[n-1]
	}

	// Binary search for the segment [lo, lo+1] containing t.
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := int(uint(lo+hi) >> 1)
		if c.t[mid] <= t {
			lo = mid
		} else {
			hi = mid
		}
	}

	h := c.t[hi] - c.t[lo]
	s := (t - c.t[lo]) / h
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	return h00*c.v[lo] + h10*h*c.m[lo] + h01*c.v[hi] + h11*h*c.m[hi]
}
