// Package health serves the liveness and readiness endpoints of whalesong.
//
//   - /healthz answers 200 while the process can serve HTTP.
//   - /readyz answers 200 only when every registered [Checker] passes.
//
// Responses are JSON objects with a "status" field ("ok" or "fail") and a
// "checks" map holding the outcome of each named checker. Audio devices
// report their state through a [Device], whose [Device.Checker] plugs into
// the readiness probe.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 2 * time.Second

// ErrNotStarted is reported by a [Device] that has not been marked ready.
var ErrNotStarted = errors.New("health: device not started")

// Checker is a named readiness check. Check returns nil when healthy.
type Checker struct {
	// Name labels the check in the JSON response (e.g. "capture").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] evaluating checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		if errs[i] != nil {
			res.Checks[c.Name] = "fail: " + errs[i].Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

// Device tracks the state of one audio device. The goroutine driving the
// device marks it ready or failed; the readiness probe reads it. All methods
// are safe for concurrent use.
type Device struct {
	name  string
	ready atomic.Bool
	err   atomic.Pointer[error]
}

// NewDevice returns a device tracker that is not yet ready.
func NewDevice(name string) *Device {
	return &Device{name: name}
}

// Name returns the device label.
func (d *Device) Name() string { return d.name }

// MarkReady records that the device is running and clears any failure.
func (d *Device) MarkReady() {
	d.err.Store(nil)
	d.ready.Store(true)
}

// Fail records err as the device's current failure. A nil err is ignored.
func (d *Device) Fail(err error) {
	if err == nil {
		return
	}
	d.err.Store(&err)
}

// Err returns the current failure, [ErrNotStarted] before MarkReady, or nil.
func (d *Device) Err() error {
	if p := d.err.Load(); p != nil {
		return *p
	}
	if !d.ready.Load() {
		return ErrNotStarted
	}
	return nil
}

// Checker adapts d for [New].
func (d *Device) Checker() Checker {
	return Checker{
		Name: d.name,
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return d.Err()
		},
	}
}
