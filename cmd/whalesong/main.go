// Command whalesong listens to a microphone and answers every voice it hears
// with a synthesized whale call.
//
// Usage:
//
//	whalesong [listen] [-config whalesong.yaml]
//	whalesong analyze [-config file] [-all] recording.wav
//	whalesong render  [-config file] [-carrier hz | -pitch hz] [-duration d] -out call.wav
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/whalesong/internal/app"
	"github.com/MrWong99/whalesong/internal/config"
	"github.com/MrWong99/whalesong/internal/observe"
	"github.com/MrWong99/whalesong/pkg/audio"
	"github.com/MrWong99/whalesong/pkg/audio/oto"
	"github.com/MrWong99/whalesong/pkg/audio/portaudio"
	"github.com/MrWong99/whalesong/pkg/audio/wavio"
	"github.com/MrWong99/whalesong/pkg/synth"
	"github.com/MrWong99/whalesong/pkg/voice"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// telemetryShutdownTimeout bounds the final metric and trace flush.
const telemetryShutdownTimeout = 5 * time.Second

// Telemetry and device constructors used by listen. Tests replace them.
var (
	initTelemetry = observe.InitProvider
	openCapture   = func(cfg *config.Config) (audio.Source, error) {
		c, err := portaudio.Open(portaudio.Config{
			SampleRate:      cfg.Analyzer.SampleRate,
			FramesPerBuffer: cfg.Capture.FramesPerBuffer,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	openPlayer = func(ctx context.Context, cfg *config.Config) (audio.Sink, error) {
		p, err := oto.Open(ctx, audio.Format{SampleRate: cfg.Synth.SampleRate, Channels: cfg.Synth.Channels})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "listen"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "listen":
		return runListen(args)
	case "analyze":
		return runAnalyze(args)
	case "render":
		return runRender(args)
	case "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "whalesong: unknown command %q\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  whalesong [listen] [-config whalesong.yaml]       answer voices from the microphone
  whalesong analyze [-config file] [-all] in.wav   print voice events found in a recording
  whalesong render [-config file] [flags] -out x.wav  render a single call to a WAV file`)
}

// ── listen ────────────────────────────────────────────────────────────────────

func runListen(args []string) int {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	configPath := fs.String("config", "whalesong.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "whalesong: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "whalesong: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(&level))

	slog.Info("whalesong starting",
		"version", version,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := initTelemetry(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Audio devices ─────────────────────────────────────────────────────────
	capture, err := openCapture(cfg)
	if err != nil {
		slog.Error("failed to open capture device", "err", err)
		return 1
	}
	player, err := openPlayer(ctx, cfg)
	if err != nil {
		slog.Error("failed to open playback device", "err", err)
		_ = capture.Close()
		return 1
	}

	printStartupSummary(cfg, *configPath)

	application, err := app.New(cfg, capture, player, app.WithLogLevel(&level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = player.Close()
		_ = capture.Close()
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.ApplyConfig)
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		go func() { _ = watcher.Run(ctx) }()
	}

	slog.Info("listening, press Ctrl+C to shut down")

	code := 0
	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	slog.Info("goodbye")
	return code
}

// ── analyze ───────────────────────────────────────────────────────────────────

func runAnalyze(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML configuration file for the analyzer settings")
	all := fs.Bool("all", false, "print every event instead of only voice start and stop")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "whalesong analyze: exactly one WAV file is required")
		return 2
	}
	cfg, ok := loadOptional(*configPath)
	if !ok {
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel.SlogLevel()))

	path := fs.Arg(0)
	sampleRate, samples, err := wavio.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whalesong analyze: %v\n", err)
		return 1
	}

	vc := cfg.ToVoiceConfig()
	if sampleRate != vc.SampleRate {
		slog.Info("analysing at the recording's sample rate", "file", sampleRate, "config", vc.SampleRate)
		vc.SampleRate = sampleRate
	}
	rep, err := app.AnalyzeWindows(vc, samples)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whalesong analyze: %v\n", err)
		return 1
	}

	for _, d := range rep.Detections {
		if !*all && d.Type != voice.EventVoiceStarted && d.Type != voice.EventVoiceStopped {
			continue
		}
		fmt.Printf("%10s  %-16s rms=%.4f pitch=%6.1fHz confidence=%.2f\n",
			d.At.Round(time.Millisecond), d.Type, d.RMS, d.PitchHz, d.Confidence)
	}
	share := 0.0
	if rep.Windows > 0 {
		share = 100 * float64(rep.VoiceWindows) / float64(rep.Windows)
	}
	fmt.Printf("%s: %d windows, %d with voice (%.0f%%)\n", path, rep.Windows, rep.VoiceWindows, share)
	return 0
}

// ── render ────────────────────────────────────────────────────────────────────

func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML configuration file for synth and call settings")
	carrier := fs.Float64("carrier", 0, "carrier frequency in Hz (default: conductor.default_carrier_hz)")
	pitch := fs.Float64("pitch", 0, "derive the carrier from this voice pitch in Hz, as the conductor would")
	duration := fs.Duration("duration", 0, "call duration (default: conductor.call_duration)")
	channels := fs.Int("channels", 0, "output channels (default: synth.channels)")
	bits := fs.Int("bits", 16, "WAV bit depth: 16, 24 or 32")
	phase := fs.Float64("phase", -1, "organic start phase in [0, 1); negative picks a random phase")
	out := fs.String("out", "", "output WAV file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *out == "" {
		fmt.Fprintln(os.Stderr, "whalesong render: -out is required")
		return 2
	}
	cfg, ok := loadOptional(*configPath)
	if !ok {
		return 1
	}
	slog.SetDefault(newLogger(cfg.Server.LogLevel.SlogLevel()))

	hz := cfg.Conductor.DefaultCarrierHz
	switch {
	case *pitch > 0:
		hz = cfg.ToConductorConfig().CarrierFor(*pitch)
	case *carrier != 0:
		hz = *carrier
	}
	call := cfg.ToCall(hz)
	if *duration > 0 {
		call.Duration = *duration
	}
	ch := cfg.Synth.Channels
	if *channels > 0 {
		ch = *channels
	}
	var opts []synth.Option
	if *phase >= 0 {
		p := *phase
		opts = append(opts, synth.WithPhaseSource(func() float64 { return p }))
	}

	env, err := cfg.ToEnvelopes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "whalesong render: %v\n", err)
		return 1
	}
	samples, err := app.RenderCall(cfg.ToSynthConfig(), env, call, ch, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whalesong render: %v\n", err)
		return 1
	}
	format := audio.Format{SampleRate: cfg.Synth.SampleRate, Channels: ch}
	if err := wavio.WriteFile(*out, format, *bits, samples); err != nil {
		fmt.Fprintf(os.Stderr, "whalesong render: %v\n", err)
		return 1
	}

	length := time.Duration(len(samples)/ch) * time.Second / time.Duration(format.SampleRate)
	fmt.Printf("wrote %s: %v at %.1f Hz carrier, %d ch, %d bit\n", *out, length.Round(time.Millisecond), hz, ch, *bits)
	return 0
}

// loadOptional loads path, or returns the defaults when path is empty.
func loadOptional(path string) (*config.Config, bool) {
	if path == "" {
		return config.Default(), true
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "whalesong: %v\n", err)
		return nil, false
	}
	return cfg, true
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, path string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        whalesong startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Config", path)
	printRow("Capture", fmt.Sprintf("%d Hz mono", cfg.Analyzer.SampleRate))
	printRow("Window", fmt.Sprintf("%d / %v", cfg.Analyzer.WindowSize, cfg.Analyzer.PollInterval))
	printRow("Playback", fmt.Sprintf("%d Hz, %d ch", cfg.Synth.SampleRate, cfg.Synth.Channels))
	printRow("Voices", fmt.Sprintf("%d (max %d active)", cfg.Synth.Voices, cfg.Conductor.MaxActiveCalls))
	printRow("Respond on", string(cfg.Conductor.RespondOn))
	printRow("Quiet period", cfg.Conductor.QuietPeriod.String())
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics addr", cfg.Server.MetricsAddr)
	} else {
		printRow("Metrics addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
