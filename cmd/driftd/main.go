// Package main is the CLI entry point for driftd.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quietloop/driftd/internal/domain"
	"github.com/quietloop/driftd/internal/infra"
	"github.com/quietloop/driftd/internal/session"
	"github.com/quietloop/driftd/internal/usecase"
	"github.com/quietloop/driftd/internal/wire"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "driftd",
	Short: "Progressive scroll-intervention engine (native messaging host)",
	Long: `driftd is the native messaging host behind the scroll-intervention
browser extension. The extension forwards page events (scrolling, media
playback, visibility); driftd tracks active distraction time per site
per day and answers with progressive visual interventions: dimming,
blur, nudge overlays, and in strict mode a scroll lock.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the native messaging host loop on stdin/stdout",
	Long: `Runs the host loop the browser launches. Reads length-prefixed JSON
frames from stdin, drives one intervention session per attached page,
and writes effect commands back on stdout. Logs go to a file because
stdout belongs to the wire.`,
	RunE: runHost,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a synthetic scrolling session against the engine",
	Long: `Drives the intervention engine with continuous synthetic scrolling for
the given number of minutes and prints every stage transition and
brightness change. Useful for tuning thresholds without a browser.`,
	RunE: runSimulate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host process stats and active settings",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	dataDir      string
	settingsPath string
	encrypted    bool
	simMinutes   int
	simTelemetry string
	jsonOutput   bool
)

func init() {
	runCmd.Flags().StringVar(&dataDir, "data-dir", defaultDataDir(), "Directory for snapshots, key and logs")
	runCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to driftd.yaml (default <data-dir>/driftd.yaml)")
	runCmd.Flags().BoolVar(&encrypted, "encrypted", false, "Keep snapshots in an encrypted SQLCipher database")

	simulateCmd.Flags().IntVar(&simMinutes, "minutes", 16, "Minutes of continuous scrolling to simulate")
	simulateCmd.Flags().StringVar(&simTelemetry, "telemetry-out", "", "Append telemetry events to this JSONL file")

	statusCmd.Flags().StringVar(&dataDir, "data-dir", defaultDataDir(), "Directory for snapshots, key and logs")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "driftd")
	}
	return ".driftd"
}

func runHost(cmd *cobra.Command, args []string) error {
	logger := createLogger(dataDir)
	defer func() { _ = logger.Sync() }()

	if settingsPath == "" {
		settingsPath = filepath.Join(dataDir, "driftd.yaml")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	settings := infra.NewFileSettings(settingsPath, logger)
	if err := settings.Watch(ctx); err != nil {
		logger.Warn("settings watch unavailable, config is load-once", zap.Error(err))
	}

	store, closeStore, err := openStore(dataDir, encrypted)
	if err != nil {
		return err
	}
	defer closeStore()

	codec := wire.NewCodec(os.Stdin, os.Stdout)
	host := wire.NewHost(codec, store, settings, infra.CollectHostStats, session.DefaultConfig(), logger)

	logger.Info("driftd host starting",
		zap.String("version", Version),
		zap.String("data_dir", dataDir),
		zap.Bool("encrypted", encrypted))

	if err := host.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("host loop failed: %w", err)
	}
	return nil
}

func openStore(dir string, encrypted bool) (domain.SnapshotStore, func(), error) {
	if !encrypted {
		store, err := infra.NewFileStore(filepath.Join(dir, "snapshots"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	key, err := infra.LoadOrCreateKey(filepath.Join(dir, "store.key"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load store key: %w", err)
	}
	store, err := infra.NewCipherStore(dir, key)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// runSimulate walks the engine through a continuous scrolling session
// in one-second steps, printing the resulting intervention timeline.
func runSimulate(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	settings := infra.NewStaticSettings(domain.DefaultConfig())

	var sink domain.TelemetrySink = infra.NopSink{}
	if simTelemetry != "" {
		sink = infra.NewJSONLSink(simTelemetry)
	}

	surface := &consoleSurface{}
	state := &domain.DistractionState{}
	bstate := &domain.BrightnessState{}

	monitor := usecase.NewActivityMonitor(settings, logger)
	bridge := usecase.NewBridge(discardStore{}, sink, time.Minute, logger)

	start := time.Now()
	clock := usecase.NewDistractionClock(state, monitor, bridge, settings, "simulated.example", start, logger)
	brightness := usecase.NewBrightnessApplier(bstate, surface, settings, logger)
	effects := usecase.NewEffectsApplier(surface, settings, logger)
	engine := usecase.NewStageEngine(state, settings, monitor, brightness, effects, logger)

	fmt.Printf("Simulating %d minutes of continuous scrolling\n\n", simMinutes)

	now := start
	for sec := 0; sec < simMinutes*60; sec++ {
		now = now.Add(time.Second)
		surface.now = now.Sub(start)

		monitor.RecordScroll(now, 0.4)
		clock.Tick(1000, now)
		engine.Evaluate(now, true)

		bridge.Publish(domain.TelemetryEvent{
			Kind:      domain.EventSnapshot,
			Domain:    "simulated.example",
			ActiveMs:  state.ActiveMs,
			Stage:     state.Stage,
			Timestamp: now,
		})
		bridge.Flush(context.Background(), now)
	}

	fmt.Printf("\nFinal: stage=%s brightness=%d%% active=%s\n",
		state.Stage, bstate.CurrentPercent, time.Duration(state.ActiveMs)*time.Millisecond)
	return nil
}

// consoleSurface prints effect commands instead of applying them.
type consoleSurface struct {
	now time.Duration
}

func (c *consoleSurface) stamp(format string, args ...any) error {
	fmt.Printf("[%8s] %s\n", c.now.Truncate(time.Second), fmt.Sprintf(format, args...))
	return nil
}

func (c *consoleSurface) AddBodyClass(name string) error    { return c.stamp("+class %s", name) }
func (c *consoleSurface) RemoveBodyClass(name string) error { return c.stamp("-class %s", name) }
func (c *consoleSurface) SetBrightness(p, _ int, _ string) error {
	return c.stamp("brightness %d%%", p)
}
func (c *consoleSurface) ApplyBlur(px float64, _ int) error { return c.stamp("blur %.1fpx", px) }
func (c *consoleSurface) ClearBlur() error                  { return c.stamp("blur cleared") }
func (c *consoleSurface) ShowOverlay(o domain.OverlayContent) error {
	return c.stamp("overlay %s: %s", o.Variant, o.Message)
}
func (c *consoleSurface) HideOverlay() error          { return c.stamp("overlay hidden") }
func (c *consoleSurface) SetScrollLock(on bool) error { return c.stamp("scroll lock=%v", on) }

// discardStore keeps simulate from touching the real snapshot store.
type discardStore struct{}

func (discardStore) Get(context.Context, string) (*domain.Snapshot, error) { return nil, nil }
func (discardStore) Set(context.Context, string, domain.Snapshot) error    { return nil }

func runStatus(cmd *cobra.Command, args []string) error {
	stats, err := infra.CollectHostStats()
	if err != nil {
		return fmt.Errorf("failed to collect host stats: %w", err)
	}

	fmt.Println("=== driftd status ===")
	fmt.Printf("PID:     %d\n", stats.PID)
	fmt.Printf("RSS:     %.1f MiB\n", float64(stats.RSSBytes)/(1<<20))
	fmt.Printf("CPU:     %.1f%%\n", stats.CPUPercent)
	fmt.Printf("Data:    %s\n", dataDir)

	logger := zap.NewNop()
	settings := infra.NewFileSettings(filepath.Join(dataDir, "driftd.yaml"), logger)
	cfg := settings.Config()
	fmt.Printf("Mode:    %s\n", cfg.Mode)
	fmt.Printf("Stages:  blur %.0fmin, nudge %.0fmin, lockout %.0fmin\n",
		cfg.Thresholds.Stage2Start, cfg.Thresholds.Stage3Start, cfg.Thresholds.Stage4Start)
	fmt.Printf("Focus:   %v\n", settings.FocusMode())
	if wl := settings.Whitelist(); len(wl) > 0 {
		fmt.Printf("Whitelist: %v\n", wl)
	}
	return nil
}

func createLogger(dir string) *zap.Logger {
	_ = os.MkdirAll(dir, 0700)

	config := zap.NewProductionConfig()
	// stdout carries the native messaging frames; logs must stay off it.
	config.OutputPaths = []string{filepath.Join(dir, "driftd.log")}
	config.ErrorOutputPaths = []string{filepath.Join(dir, "driftd.error.log")}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger = zap.New(zapcore.NewCore(
			zapcore.NewJSONEncoder(config.EncoderConfig),
			zapcore.Lock(os.Stderr),
			config.Level,
		))
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("driftd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
