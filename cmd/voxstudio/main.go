// Command voxstudio is the main entry point for the voice studio server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MrWong99/voxstudio/internal/app"
	"github.com/MrWong99/voxstudio/internal/config"
	"github.com/MrWong99/voxstudio/internal/observe"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	check := flag.Bool("check", false, "validate the sample catalogue and reference clips, then exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, fromFile, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxstudio: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(level))

	if *check {
		return runCheck(os.Stdout, cfg)
	}

	slog.Info("voxstudio starting",
		"version", version,
		"config", *configPath,
		"config_file", fromFile,
		"addr", cfg.Server.Addr(),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		DisableMetrics: !cfg.Telemetry.MetricsEnabled(),
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	application, err := app.New(cfg, reg, app.WithLevelVar(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	if fromFile {
		watcher, err := config.NewWatcher(*configPath, application.ApplyConfig,
			config.WithTransform(func(c *config.Config) error {
				return config.ApplyEnv(c, os.LookupEnv)
			}),
		)
		if err != nil {
			slog.Warn("config hot-reload disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads path and overlays the environment. A missing file is not
// an error: the built-in defaults are used instead and fromFile is false.
func loadConfig(path string) (cfg *config.Config, fromFile bool, err error) {
	cfg, err = config.Load(path)
	switch {
	case err == nil:
		fromFile = true
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(os.Stderr, "voxstudio: config file %q not found, using defaults (see configs/example.yaml)\n", path)
		cfg = config.Default()
	default:
		return nil, false, err
	}
	if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, false, err
	}
	return cfg, fromFile, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voxstudio startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	for i, fb := range cfg.Providers.TTSFallbacks {
		printProvider(fmt.Sprintf("Fallback %d", i+1), fb.Name, fb.Model)
	}
	printProvider("VC", cfg.Providers.VC.Name, cfg.Providers.VC.Model)
	printRow("Device", string(cfg.Models.Device))
	if len(cfg.Models.Preload) > 0 {
		printRow("Preload", fmt.Sprint(cfg.Models.Preload))
	} else {
		printRow("Preload", "(on first use)")
	}
	printRow("Queue", fmt.Sprintf("%d waiting, x%d", cfg.Queue.MaxSize, cfg.Queue.Concurrency))
	printRow("Upload limit", humanize.IBytes(uint64(cfg.Server.MaxUploadBytes)))
	printRow("Samples", cfg.Samples.Dir)
	printRow("Listen addr", cfg.Server.Addr())
	if cfg.Server.RootPath != "" {
		printRow("Root path", cfg.Server.RootPath)
	}
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(key, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
