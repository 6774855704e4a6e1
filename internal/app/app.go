// Package app wires the voice studio into a running server.
//
// The App struct owns the full lifecycle: New builds the sample catalogue,
// the model slots, the request queue, the studio service and the HTTP
// surface; Run serves until its context is cancelled; Shutdown releases
// loaded models in order.
//
// For testing, inject doubles via functional options (WithModels,
// WithCatalog, WithListener). When an option is not provided, New creates
// real implementations from the config and provider registry.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxstudio/internal/config"
	"github.com/MrWong99/voxstudio/internal/health"
	"github.com/MrWong99/voxstudio/internal/models"
	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/internal/queue"
	"github.com/MrWong99/voxstudio/internal/resilience"
	"github.com/MrWong99/voxstudio/internal/studio"
	"github.com/MrWong99/voxstudio/internal/web"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
	"github.com/MrWong99/voxstudio/pkg/samples"
)

const (
	// shutdownGrace bounds how long in-flight requests may finish once Run's
	// context is cancelled.
	shutdownGrace = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Models hands out loaded backend chains and reports which are loaded.
// *models.Set is the production implementation.
type Models interface {
	studio.Models
	Loaded() map[string]bool
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	reg     *config.Registry
	level   *slog.LevelVar
	metrics *observe.Metrics

	catalog atomic.Pointer[samples.Catalog]

	// Subsystems, initialised in New.
	models   Models
	queue    *queue.Queue
	studio   *studio.Service
	store    *web.Store
	web      *web.Server
	health   *health.Handler
	handler  http.Handler
	server   *http.Server
	listener net.Listener

	mu        sync.Mutex
	ttsChains map[tts.Model]*resilience.TTSFallback
	vcChain   *resilience.VCFallback

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithModels injects the model slots instead of building them from the
// provider registry.
func WithModels(m Models) Option {
	return func(a *App) { a.models = m }
}

// WithCatalog injects the sample catalogue instead of loading it from
// samples.dir and samples.catalog_file.
func WithCatalog(c *samples.Catalog) Option {
	return func(a *App) { a.catalog.Store(c) }
}

// WithLevelVar lets config reloads change the level of the process logger.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics injects the metric instruments. Defaults to
// observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithListener makes Run serve on ln instead of listening on the configured
// address.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. reg provides the
// TTS and VC provider factories named in cfg.Providers. Nothing is loaded on
// the backend until the first request or the configured preload in Run.
func New(cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		reg:       reg,
		ttsChains: make(map[tts.Model]*resilience.TTSFallback),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.level == nil {
		a.level = new(slog.LevelVar)
		a.level.Set(cfg.Server.LogLevel.SlogLevel())
	}

	if err := a.initCatalog(); err != nil {
		return nil, err
	}
	a.initModels()

	a.queue = queue.New(queue.Config{
		MaxSize:     cfg.Queue.MaxSize,
		Concurrency: cfg.Queue.Concurrency,
		Metrics:     a.metrics,
	})

	svc, err := studio.New(studio.Config{
		Catalog: a.Catalog,
		Models:  a.models,
		Queue:   a.queue,
		Metrics: a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.studio = svc

	if err := a.initHTTP(); err != nil {
		return nil, err
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initCatalog loads the sample catalogue and reports missing sample files.
// Missing files are warnings only.
func (a *App) initCatalog() error {
	if a.catalog.Load() == nil {
		cat, err := LoadCatalog(a.cfg.Samples)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.catalog.Store(cat)
	}
	ReportMissingSamples(a.Catalog())
	return nil
}

// initModels builds the lazy model slots if none were injected.
func (a *App) initModels() {
	if a.models != nil {
		return
	}
	set := models.NewSet(a.buildTTS, a.buildVC, models.SetConfig{
		Device:  string(a.cfg.Models.Device),
		Metrics: a.metrics,
	})
	a.models = set
	a.closers = append(a.closers, set.Close)
}

// initHTTP assembles the web routes, health probes and metrics endpoint on
// one mux.
func (a *App) initHTTP() error {
	store, err := web.NewStore(a.cfg.Server.OutputDir, a.cfg.Server.OutputTTL)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.store = store

	srv, err := web.New(a.studio, web.Config{
		RootPath:       a.cfg.Server.RootPath,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		Store:          store,
		Queue:          a.queue,
		Status:         a.Status,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.web = srv
	a.health = health.New(a.healthCheckers()...)

	mux := http.NewServeMux()
	a.web.Register(mux)
	a.health.Register(mux)
	if a.cfg.Telemetry.MetricsEnabled() {
		mux.Handle("GET /metrics", observe.MetricsHandler())
	}

	a.handler = web.ForwardedProto(observe.Middleware(a.metrics)(mux))
	a.server = &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return nil
}

// healthCheckers returns the readiness checks: the samples directory and,
// for backends that can be pinged, the primary TTS and VC servers.
func (a *App) healthCheckers() []health.Checker {
	checks := []health.Checker{
		health.DirCheck("samples", func() string { return a.Catalog().BaseDir() }),
	}
	if a.reg == nil {
		return checks
	}
	if p, err := a.reg.CreateTTS(a.cfg.Providers.TTS, tts.ModelClassic); err == nil {
		if pinger, ok := p.(health.Pinger); ok {
			checks = append(checks, health.PingCheck("tts_backend", pinger))
		}
	}
	if p, err := a.reg.CreateVC(a.cfg.Providers.VC); err == nil {
		if pinger, ok := p.(health.Pinger); ok {
			checks = append(checks, health.PingCheck("vc_backend", pinger))
		}
	}
	return checks
}

// ─── Provider chains ─────────────────────────────────────────────────────────

// buildTTS creates the failover chain for model: the primary provider
// followed by every fallback that could be created.
func (a *App) buildTTS(_ context.Context, model tts.Model) (tts.Provider, error) {
	if a.reg == nil {
		return nil, errors.New("app: no provider registry")
	}
	primary := a.cfg.Providers.TTS
	p, err := a.reg.CreateTTS(primary, model)
	if err != nil {
		return nil, fmt.Errorf("app: create tts provider %q: %w", primary.Name, err)
	}
	chain := resilience.NewTTSFallback(meteredTTS{name: primary.Name, p: p, m: a.metrics}, primary.Name, a.fallbackConfig(string(model)))

	for i, entry := range a.cfg.Providers.TTSFallbacks {
		fb, err := a.reg.CreateTTS(entry, model)
		if err != nil {
			slog.Warn("skipping tts fallback", "index", i, "name", entry.Name, "model", model, "err", err)
			continue
		}
		chain.AddFallback(entry.Name, meteredTTS{name: entry.Name, p: fb, m: a.metrics})
	}

	a.mu.Lock()
	a.ttsChains[model] = chain
	a.mu.Unlock()
	slog.Info("tts chain created", "model", model, "providers", chain.Names())
	return chain, nil
}

// buildVC creates the voice-conversion chain.
func (a *App) buildVC(context.Context) (vc.Provider, error) {
	if a.reg == nil {
		return nil, errors.New("app: no provider registry")
	}
	entry := a.cfg.Providers.VC
	p, err := a.reg.CreateVC(entry)
	if err != nil {
		return nil, fmt.Errorf("app: create vc provider %q: %w", entry.Name, err)
	}
	chain := resilience.NewVCFallback(meteredVC{name: entry.Name, p: p, m: a.metrics}, entry.Name, a.fallbackConfig(studio.ModelVC))

	a.mu.Lock()
	a.vcChain = chain
	a.mu.Unlock()
	return chain, nil
}

func (a *App) fallbackConfig(chain string) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  a.cfg.Resilience.MaxFailures,
			ResetTimeout: a.cfg.Resilience.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state changed",
					"chain", chain,
					"provider", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		},
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Catalog returns the sample catalogue currently in use.
func (a *App) Catalog() *samples.Catalog { return a.catalog.Load() }

// Handler returns the complete HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Status reports loaded models and the breaker state of every provider in
// the chains built so far, keyed "model/provider".
func (a *App) Status() web.Status {
	st := web.Status{Models: a.models.Loaded(), Providers: make(map[string]string)}
	a.mu.Lock()
	defer a.mu.Unlock()
	for model, chain := range a.ttsChains {
		for name, s := range chain.States() {
			st.Providers[string(model)+"/"+name] = s.String()
		}
	}
	if a.vcChain != nil {
		for name, s := range a.vcChain.States() {
			st.Providers[studio.ModelVC+"/"+name] = s.String()
		}
	}
	return st
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP, preloads the configured models and sweeps expired output
// files until ctx is cancelled. A clean shutdown returns nil.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("app: listen on %s: %w", a.server.Addr, err)
		}
	}
	slog.Info("http server listening", "addr", ln.Addr().String(), "root_path", a.cfg.Server.RootPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return a.server.Shutdown(sctx)
	})
	g.Go(func() error {
		a.store.RunJanitor(gctx, janitorInterval(a.cfg.Server.OutputTTL))
		return nil
	})
	g.Go(func() error {
		a.preload(gctx)
		return nil
	})
	return g.Wait()
}

// preload loads the models listed in models.preload one after another.
// Failures are logged; the slot retries on the next request.
func (a *App) preload(ctx context.Context) {
	for _, name := range a.cfg.Models.Preload {
		var err error
		if name == config.PreloadVC {
			_, err = a.models.VC(ctx)
		} else {
			_, err = a.models.TTS(ctx, tts.Model(name))
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("preload failed", "model", name, "err", err)
		}
	}
}

// janitorInterval sweeps a few times per TTL, at most once a minute.
func janitorInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Minute)
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of a changed config file: the
// log level and the sample catalogue. Everything else is logged as requiring
// a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.HasChanges() {
		return
	}
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SamplesChanged {
		cat, err := LoadCatalog(new.Samples)
		if err != nil {
			slog.Error("catalogue reload failed, keeping the previous one", "err", err)
		} else {
			a.catalog.Store(cat)
			slog.Info("sample catalogue reloaded", "dir", cat.BaseDir())
			ReportMissingSamples(cat)
		}
	}
	for _, section := range d.RestartRequired {
		slog.Warn("config change requires a restart", "section", section)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases loaded models and other resources in order. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// LoadCatalog loads the catalogue named by sc, or the built-in one when no
// catalogue file is configured.
func LoadCatalog(sc config.SamplesConfig) (*samples.Catalog, error) {
	if sc.CatalogFile != "" {
		return samples.LoadFile(sc.CatalogFile, sc.Dir)
	}
	return samples.Builtin(sc.Dir)
}

// ReportMissingSamples logs one warning per configured sample file that is
// absent on disk and returns how many were missing.
func ReportMissingSamples(cat *samples.Catalog) int {
	missing := cat.Validate()
	for _, p := range missing {
		slog.Warn("sample file missing", "path", p)
	}
	if len(missing) == 0 {
		slog.Debug("all sample files present", "dir", cat.BaseDir())
	}
	return len(missing)
}
