package envelope_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/MrWong99/whalesong/pkg/envelope"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		keys    []envelope.Key
		wantErr string
	}{
		{name: "no keys", keys: nil, wantErr: "at least one key"},
		{name: "time below range", keys: []envelope.Key{{T: -0.1, V: 0}}, wantErr: "outside [0, 1]"},
		{name: "time above range", keys: []envelope.Key{{T: 1.5, V: 0}}, wantErr: "outside [0, 1]"},
		{name: "non-finite value", keys: []envelope.Key{{T: 0, V: math.Inf(1)}}, wantErr: "not finite"},
		{name: "not increasing", keys: []envelope.Key{{T: 0.5, V: 0}, {T: 0.5, V: 1}}, wantErr: "does not increase"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := envelope.New(tc.keys...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q should contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestNew_NoKeysSentinel(t *testing.T) {
	t.Parallel()
	_, err := envelope.New()
	if !errors.Is(err, envelope.ErrNoKeys) {
		t.Errorf("got %v, want ErrNoKeys", err)
	}
}

func TestEvaluate_HitsKeysAndHoldsEnds(t *testing.T) {
	t.Parallel()
	c := envelope.MustNew(
		envelope.Key{T: 0.2, V: 1},
		envelope.Key{T: 0.5, V: 3},
		envelope.Key{T: 0.8, V: 2},
	)

	cases := []struct {
		t, want float64
	}{
		{0, 1},
		{0.1, 1},
		{0.2, 1},
		{0.5, 3},
		{0.8, 2},
		{0.9, 2},
		{1, 2},
		{-5, 1},
		{42, 2},
	}
	for _, tc := range cases {
		if got := c.Evaluate(tc.t); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Evaluate(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestEvaluate_NaNTreatedAsStart(t *testing.T) {
	t.Parallel()
	c := envelope.MustNew(envelope.Key{T: 0, V: 0.25}, envelope.Key{T: 1, V: 0.75})
	if got := c.Evaluate(math.NaN()); got != 0.25 {
		t.Errorf("Evaluate(NaN) = %v, want 0.25", got)
	}
}

func TestEvaluate_SmoothAcrossInteriorKey(t *testing.T) {
	t.Parallel()
	c := envelope.MustNew(
		envelope.Key{T: 0, V: 0},
		envelope.Key{T: 0.3, V: 1},
		envelope.Key{T: 1, V: 0},
	)

	const h = 1e-6
	left := (c.Evaluate(0.3) - c.Evaluate(0.3-h)) / h
	right := (c.Evaluate(0.3+h) - c.Evaluate(0.3)) / h
	if math.Abs(left-right) > 1e-3 {
		t.Errorf("derivative discontinuity at interior key: left %v, right %v", left, right)
	}
}

func TestEvaluate_MonotoneBetweenTwoKeys(t *testing.T) {
	t.Parallel()
	c := envelope.MustNew(envelope.Key{T: 0, V: 0}, envelope.Key{T: 1, V: 1})
	prev := c.Evaluate(0)
	for i := 1; i <= 100; i++ {
		v := c.Evaluate(float64(i) / 100)
		if v < prev {
			t.Fatalf("curve decreased at %d: %v < %v", i, v, prev)
		}
		prev = v
	}
	if got := c.Evaluate(0.5); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("midpoint = %v, want 0.5", got)
	}
}

func TestConstant(t *testing.T) {
	t.Parallel()
	c := envelope.Constant(0.4)
	for _, x := range []float64{0, 0.3, 1} {
		if got := c.Evaluate(x); got != 0.4 {
			t.Errorf("Evaluate(%v) = %v, want 0.4", x, got)
		}
	}
}

func TestKeys_ReturnsCopy(t *testing.T) {
	t.Parallel()
	c := envelope.MustNew(envelope.Key{T: 0, V: 1}, envelope.Key{T: 1, V: 2})
	keys := c.Keys()
	keys[0].V = 100
	if got := c.Evaluate(0); got != 1 {
		t.Errorf("mutating Keys() result changed the curve: got %v", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestPresets_TailIsAudible(t *testing.T) {
	t.Parallel()
	if v := envelope.DefaultVolume().Evaluate(1); v <= 0 {
		t.Errorf("default volume at end = %v, want > 0 so the fade-out is heard", v)
	}
	if v := envelope.DefaultVolume().Evaluate(0); v != 0 {
		t.Errorf("default volume at start = %v, want 0", v)
	}
}

func TestEvaluate_DoesNotAllocate(t *testing.T) {
	c := envelope.DefaultModulation()
	allocs := testing.AllocsPerRun(100, func() {
		_ = c.Evaluate(0.37)
	})
	if allocs != 0 {
		t.Errorf("Evaluate allocated %v times per run, want 0", allocs)
	}
}
