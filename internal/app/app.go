// Package app wires the whalesong subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the analyzer, chorus and
// conductor from the config and connects them to the audio devices, Run
// drives capture, analysis, playback and the HTTP endpoints until the context
// ends, and Shutdown fades out and releases everything in order.
//
// Devices are injected as [audio.Source] and [audio.Sink] so tests can use
// the mocks from pkg/audio/mock.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/whalesong/internal/conductor"
	"github.com/MrWong99/whalesong/internal/config"
	"github.com/MrWong99/whalesong/internal/health"
	"github.com/MrWong99/whalesong/internal/observe"
	"github.com/MrWong99/whalesong/pkg/audio"
	"github.com/MrWong99/whalesong/pkg/synth"
	"github.com/MrWong99/whalesong/pkg/voice"
)

const (
	// playerCheckInterval is how often the sink is polled for asynchronous
	// playback errors.
	playerCheckInterval = time.Second

	// serverShutdownTimeout bounds the graceful HTTP shutdown.
	serverShutdownTimeout = 5 * time.Second
)

// App owns all subsystem lifetimes and orchestrates the listen-and-answer
// loop.
type App struct {
	mu  sync.Mutex
	cfg *config.Config

	source audio.Source
	sink   audio.Sink

	analyzer  *voice.Analyzer
	chorus    *synth.Chorus
	stream    *synth.Stream
	conductor *conductor.Conductor
	buffer    *audio.RollingBuffer
	window    []float32
	lastTotal uint64

	metrics   *observe.Metrics
	level     *slog.LevelVar
	synthOpts []synth.Option
	capture   *health.Device
	player    *health.Device
	handler   http.Handler

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads change the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithSynthOptions passes opts to every voice of the chorus.
func WithSynthOptions(opts ...synth.Option) Option {
	return func(a *App) { a.synthOpts = append(a.synthOpts, opts...) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from a validated cfg. The source must deliver mono audio
// at analyzer.sample_rate and the sink must accept synth.sample_rate with
// synth.channels.
func New(cfg *config.Config, source audio.Source, sink audio.Sink, opts ...Option) (*App, error) {
	if source == nil || sink == nil {
		return nil, errors.New("app: source and sink are required")
	}
	a := &App{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		capture: health.NewDevice("capture"),
		player:  health.NewDevice("player"),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Device formats ────────────────────────────────────────────────
	if got := source.Format(); got.SampleRate != cfg.Analyzer.SampleRate {
		return nil, fmt.Errorf("app: capture delivers %d Hz, analyzer expects %d Hz", got.SampleRate, cfg.Analyzer.SampleRate)
	}
	want := audio.Format{SampleRate: cfg.Synth.SampleRate, Channels: cfg.Synth.Channels}
	if got := sink.Format(); got != want {
		return nil, fmt.Errorf("app: player format %+v does not match synth format %+v", got, want)
	}

	// ── 2. Analyzer ──────────────────────────────────────────────────────
	analyzer, err := voice.NewAnalyzer(cfg.ToVoiceConfig())
	if err != nil {
		return nil, fmt.Errorf("app: init analyzer: %w", err)
	}
	a.analyzer = analyzer
	a.window = make([]float32, cfg.Analyzer.WindowSize)
	in := audio.Format{SampleRate: cfg.Analyzer.SampleRate, Channels: 1}
	a.buffer = audio.NewRollingBuffer(max(in.FramesFor(cfg.Capture.History), cfg.Analyzer.WindowSize))

	// ── 3. Chorus ────────────────────────────────────────────────────────
	chorus, err := synth.NewChorus(cfg.ToSynthConfig(), cfg.Synth.Voices, cfg.Synth.BufferFrames, cfg.Synth.Channels, a.synthOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: init chorus: %w", err)
	}
	env, err := cfg.ToEnvelopes()
	if err != nil {
		return nil, fmt.Errorf("app: init envelopes: %w", err)
	}
	chorus.SetEnvelopes(env)
	a.chorus = chorus
	a.stream = synth.NewStream(chorus, cfg.Synth.Channels, cfg.Synth.BufferFrames)

	// ── 4. Conductor ─────────────────────────────────────────────────────
	cond, err := conductor.New(cfg.ToConductorConfig(), chorus, conductor.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: init conductor: %w", err)
	}
	a.conductor = cond

	// ── 5. Telemetry ─────────────────────────────────────────────────────
	reg, err := a.metrics.ObserveActiveCalls(func() int64 { return int64(chorus.Active()) })
	if err != nil {
		return nil, fmt.Errorf("app: observe active calls: %w", err)
	}
	a.closers = append(a.closers, reg.Unregister)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", observe.MetricsHandler())
	health.New(a.capture.Checker(), a.player.Checker()).Register(mux)
	a.handler = observe.Middleware(a.metrics)(mux)

	return a, nil
}

// Handler returns the HTTP handler serving /metrics, /healthz and /readyz.
func (a *App) Handler() http.Handler { return a.handler }

// Chorus returns the voice pool.
func (a *App) Chorus() *synth.Chorus { return a.chorus }

// Analyzer returns the live voice analyzer.
func (a *App) Analyzer() *voice.Analyzer { return a.analyzer }

// Conductor returns the call conductor.
func (a *App) Conductor() *conductor.Conductor { return a.conductor }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts playback and blocks until ctx is cancelled or a device fails.
// It returns nil on cancellation.
func (a *App) Run(ctx context.Context) error {
	if err := a.sink.Play(a.stream); err != nil {
		a.player.Fail(err)
		a.metrics.RecordDeviceError(ctx, "player", "start")
		return fmt.Errorf("app: start playback: %w", err)
	}
	a.player.MarkReady()

	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.captureLoop(ctx, cfg.Capture.FramesPerBuffer) })
	g.Go(func() error { return a.analysisLoop(ctx, cfg.Analyzer.PollInterval) })
	g.Go(func() error { return a.watchPlayer(ctx) })

	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// captureLoop copies device blocks into the rolling buffer.
func (a *App) captureLoop(ctx context.Context, blockSize int) error {
	if blockSize <= 0 {
		blockSize = len(a.window)
	}
	block := make([]float32, blockSize)
	ready := false
	for {
		if err := a.source.Read(ctx, block); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.capture.Fail(err)
			a.metrics.RecordDeviceError(ctx, "capture", "read")
			return fmt.Errorf("app: capture: %w", err)
		}
		if !ready {
			a.capture.MarkReady()
			ready = true
		}
		a.buffer.Write(block)
	}
}

// analysisLoop analyses the newest window on every tick.
func (a *App) analysisLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick analyses the latest window if new audio arrived since the previous
// tick, and forwards the resulting event to the conductor.
func (a *App) tick(ctx context.Context) {
	total := a.buffer.Total()
	if total == a.lastTotal || !a.buffer.Latest(a.window) {
		return
	}
	a.lastTotal = total

	start := time.Now()
	res := a.analyzer.Analyze(a.window)
	a.metrics.RecordAnalysis(ctx, res.State.String(), time.Since(start),
		res.State != voice.StateSilent, res.Stabilized, res.Metrics.EstimatedPitchHz)

	ev := res.Event
	if ev.Type == voice.EventNone {
		return
	}
	a.metrics.RecordVoiceEvent(ctx, ev.Type.String())
	slog.Debug("voice event",
		"type", ev.Type,
		"rms", ev.RMS,
		"pitch_hz", ev.PitchHz,
		"confidence", ev.Confidence,
	)
	a.conductor.HandleEvent(ctx, ev)
}

// watchPlayer surfaces asynchronous playback errors through health and
// metrics. Playback errors are not fatal; the device may recover.
func (a *App) watchPlayer(ctx context.Context) error {
	ticker := time.NewTicker(playerCheckInterval)
	defer ticker.Stop()
	var last error
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := a.sink.Err()
			switch {
			case err != nil && last == nil:
				slog.Error("playback error", "err", err)
				a.player.Fail(err)
				a.metrics.RecordDeviceError(ctx, "player", "playback")
			case err == nil && last != nil:
				slog.Info("playback recovered")
				a.player.MarkReady()
			}
			last = err
		}
	}
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new.
// It matches the [config.Watcher] callback signature. Settings that need a
// restart are logged and otherwise ignored.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.HasChanges() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AnalyzerChanged {
		if err := a.analyzer.Reconfigure(new.ToVoiceConfig()); err != nil {
			slog.Error("analyzer reconfigure failed", "err", err)
		} else {
			slog.Info("analyzer reconfigured")
		}
	}
	if d.ConductorChanged {
		if err := a.conductor.Reconfigure(new.ToConductorConfig()); err != nil {
			slog.Error("conductor reconfigure failed", "err", err)
		} else {
			slog.Info("conductor reconfigured")
		}
	}
	if d.EnvelopesChanged {
		if env, err := new.ToEnvelopes(); err != nil {
			slog.Error("envelope reload failed", "err", err)
		} else {
			a.chorus.SetEnvelopes(env)
			slog.Info("envelopes reloaded")
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after a restart", "settings", d.RestartRequired)
	}

	a.mu.Lock()
	a.cfg = new
	a.mu.Unlock()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown fades out all voices, then closes the stream, the devices and the
// remaining closers. Waiting for the fade is bounded by the maximum fade-out
// and by ctx; if ctx expires first the context error is returned after the
// devices are closed.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_calls", a.chorus.Active())

		a.mu.Lock()
		fadeLimit := a.cfg.Synth.MaxFadeOut + 100*time.Millisecond
		a.mu.Unlock()

		a.chorus.StopAll()
		if err := a.awaitSilence(ctx, fadeLimit); err != nil {
			slog.Warn("shutdown deadline exceeded while fading out", "active_calls", a.chorus.Active())
			shutdownErr = err
		}

		errs := []error{
			a.stream.Close(),
			a.sink.Close(),
			a.source.Close(),
		}
		for _, closer := range a.closers {
			errs = append(errs, closer())
		}
		if err := errors.Join(errs...); err != nil {
			slog.Warn("close error", "err", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// awaitSilence waits until no voice is playing, limit elapses, or ctx ends.
// Only the last case is an error.
func (a *App) awaitSilence(ctx context.Context, limit time.Duration) error {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for a.chorus.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
