package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voxstudio/internal/app"
	"github.com/MrWong99/voxstudio/internal/config"
	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxstudio/pkg/provider/tts/mock"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
	vcmock "github.com/MrWong99/voxstudio/pkg/provider/vc/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.OutputDir = t.TempDir()
	cfg.Samples.Dir = t.TempDir()
	cfg.Models.Device = config.DeviceCPU
	cfg.Providers.TTS = config.ProviderEntry{Name: "primary"}
	cfg.Providers.TTSFallbacks = []config.ProviderEntry{{Name: "backup"}}
	cfg.Providers.VC = config.ProviderEntry{Name: "primary"}
	return cfg
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testWaveform() *audio.Waveform {
	return &audio.Waveform{SampleRate: 24000, Channels: 1, PCM: make([]byte, 4800)}
}

// testBackends holds the mock providers handed out by the stub registry.
type testBackends struct {
	primary map[tts.Model]*ttsmock.Provider
	backup  map[tts.Model]*ttsmock.Provider
	vc      *vcmock.Provider
}

func testRegistry(primaryErr error) (*config.Registry, *testBackends) {
	b := &testBackends{
		primary: make(map[tts.Model]*ttsmock.Provider),
		backup:  make(map[tts.Model]*ttsmock.Provider),
		vc:      &vcmock.Provider{ConvertResult: testWaveform()},
	}
	for _, m := range tts.Models {
		b.primary[m] = &ttsmock.Provider{GenerateResult: testWaveform(), GenerateErr: primaryErr}
		b.backup[m] = &ttsmock.Provider{GenerateResult: testWaveform()}
	}

	reg := config.NewRegistry()
	reg.RegisterTTS("primary", func(_ config.ProviderEntry, m tts.Model) (tts.Provider, error) {
		return b.primary[m], nil
	})
	reg.RegisterTTS("backup", func(_ config.ProviderEntry, m tts.Model) (tts.Provider, error) {
		return b.backup[m], nil
	})
	reg.RegisterVC("primary", func(config.ProviderEntry) (vc.Provider, error) {
		return b.vc, nil
	})
	return reg, b
}

func newApp(t *testing.T, cfg *config.Config, reg *config.Registry, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{app.WithMetrics(testMetrics(t))}, opts...)
	a, err := app.New(cfg, reg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func postForm(t *testing.T, h http.Handler, target string, fields url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(fields.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ─── New ─────────────────────────────────────────────────────────────────────

func TestNew_LazyModels(t *testing.T) {
	t.Parallel()

	reg, b := testRegistry(nil)
	a := newApp(t, testConfig(t), reg)

	if a.Catalog() == nil {
		t.Fatal("Catalog() is nil")
	}
	st := a.Status()
	for _, name := range []string{"classic", "turbo", "multilingual", "vc"} {
		loaded, ok := st.Models[name]
		if !ok {
			t.Errorf("Status().Models missing %q", name)
		}
		if loaded {
			t.Errorf("model %q loaded before first use", name)
		}
	}
	if len(st.Providers) != 0 {
		t.Errorf("Providers = %v, want none before first use", st.Providers)
	}
	if n := len(b.primary[tts.ModelClassic].LoadCalls); n != 0 {
		t.Errorf("primary Load calls = %d, want 0", n)
	}
}

func TestNew_BadCatalogFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Samples.CatalogFile = cfg.Samples.Dir + "/missing.yaml"
	reg, _ := testRegistry(nil)
	if _, err := app.New(cfg, reg, app.WithMetrics(testMetrics(t))); err == nil {
		t.Fatal("expected error for a missing catalogue file")
	}
}

// ─── Provider chains ─────────────────────────────────────────────────────────

func TestGenerate_FallsBackToSecondProvider(t *testing.T) {
	t.Parallel()

	reg, b := testRegistry(errors.New("backend down"))
	a := newApp(t, testConfig(t), reg)

	rec := postForm(t, a.Handler(), "/api/tts_generate", url.Values{"text": {"Hello there."}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/wav" {
		t.Errorf("Content-Type = %q, want audio/wav", got)
	}

	if n := len(b.primary[tts.ModelClassic].Calls()); n != 1 {
		t.Errorf("primary Generate calls = %d, want 1", n)
	}
	calls := b.backup[tts.ModelClassic].Calls()
	if len(calls) != 1 {
		t.Fatalf("backup Generate calls = %d, want 1", len(calls))
	}
	if calls[0].Req.Text != "Hello there." || calls[0].Req.Model != tts.ModelClassic {
		t.Errorf("backup request = %+v", calls[0].Req)
	}

	for _, p := range []*ttsmock.Provider{b.primary[tts.ModelClassic], b.backup[tts.ModelClassic]} {
		if len(p.LoadCalls) != 1 || p.LoadCalls[0].Device != "cpu" {
			t.Errorf("LoadCalls = %+v, want one load on cpu", p.LoadCalls)
		}
	}

	st := a.Status()
	if !st.Models["classic"] {
		t.Error("classic not reported as loaded")
	}
	if st.Models["turbo"] {
		t.Error("turbo reported as loaded")
	}
	for _, key := range []string{"classic/primary", "classic/backup"} {
		if st.Providers[key] != "closed" {
			t.Errorf("Providers[%q] = %q, want closed", key, st.Providers[key])
		}
	}
}

func TestGenerate_UnregisteredFallbackIsSkipped(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Providers.TTSFallbacks = []config.ProviderEntry{{Name: "nope"}}
	reg, b := testRegistry(nil)
	a := newApp(t, cfg, reg)

	rec := postForm(t, a.Handler(), "/api/turbo_generate", url.Values{"text": {"Quick one."}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if n := len(b.primary[tts.ModelTurbo].Calls()); n != 1 {
		t.Errorf("primary turbo calls = %d, want 1", n)
	}
	st := a.Status()
	if _, ok := st.Providers["turbo/nope"]; ok {
		t.Error("unregistered fallback appears in the chain")
	}
}

func TestGenerate_NoProviderRegistered(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t), config.NewRegistry())

	rec := postForm(t, a.Handler(), "/api/tts_generate", url.Values{"text": {"x"}})
	if rec.Code < 500 {
		t.Errorf("status = %d, want a 5xx when no backend can be created", rec.Code)
	}
	if a.Status().Models["classic"] {
		t.Error("classic loaded without a provider")
	}
}

// ─── HTTP surface ────────────────────────────────────────────────────────────

func TestHandler_Routes(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(nil)
	cfg := testConfig(t)
	cfg.Server.RootPath = "/studio"
	a := newApp(t, cfg, reg)

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/studio/", http.StatusOK},
		{"/studio/api/voices", http.StatusOK},
		{"/studio/api/status", http.StatusOK},
		{"/api/voices", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(nil)
	cfg := testConfig(t)
	off := false
	cfg.Telemetry.Metrics = &off
	a := newApp(t, cfg, reg)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404", rec.Code)
	}
}

func TestHandler_ReadyzFailsWithoutSamplesDir(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(nil)
	cfg := testConfig(t)
	cfg.Samples.Dir = cfg.Samples.Dir + "/absent"
	a := newApp(t, cfg, reg)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz = %d, want 503", rec.Code)
	}
}

// ─── Reload ──────────────────────────────────────────────────────────────────

func TestApplyConfig(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(nil)
	oldCfg := testConfig(t)
	level := new(slog.LevelVar)
	a := newApp(t, oldCfg, reg, app.WithLevelVar(level))

	newCfg := *oldCfg
	newCfg.Server.LogLevel = config.LogDebug
	newCfg.Samples.Dir = t.TempDir()
	newCfg.Queue.MaxSize = oldCfg.Queue.MaxSize + 1

	a.ApplyConfig(oldCfg, &newCfg)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if got := a.Catalog().BaseDir(); got != newCfg.Samples.Dir {
		t.Errorf("catalogue dir = %q, want %q", got, newCfg.Samples.Dir)
	}
}

func TestApplyConfig_KeepsCatalogueOnError(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(nil)
	oldCfg := testConfig(t)
	a := newApp(t, oldCfg, reg)
	before := a.Catalog()

	newCfg := *oldCfg
	newCfg.Samples.CatalogFile = oldCfg.Samples.Dir + "/missing.yaml"
	a.ApplyConfig(oldCfg, &newCfg)

	if a.Catalog() != before {
		t.Error("catalogue replaced despite a failed reload")
	}
}

// ─── Run / Shutdown ──────────────────────────────────────────────────────────

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	reg, b := testRegistry(nil)
	cfg := testConfig(t)
	cfg.Models.Preload = []string{"turbo", config.PreloadVC}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a := newApp(t, cfg, reg, app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/api/voices")
	if err != nil {
		t.Fatalf("GET /api/voices: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/voices = %d, body = %s", resp.StatusCode, body)
	}
	var voices struct {
		Default string `json:"default"`
	}
	if err := json.Unmarshal(body, &voices); err != nil {
		t.Fatalf("decode voices: %v", err)
	}
	if voices.Default == "" {
		t.Error("voices response has no default")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := a.Status()
		if st.Models["turbo"] && st.Models["vc"] {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("preload did not finish: %v", st.Models)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if a.Status().Models["classic"] {
		t.Error("classic loaded without being preloaded")
	}
	if n := len(b.vc.LoadCalls); n != 1 {
		t.Errorf("vc Load calls = %d, want 1", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
	if a.Status().Models["turbo"] {
		t.Error("turbo still loaded after Shutdown")
	}
}

func TestApp_ShutdownDeadline(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(nil)
	a := newApp(t, testConfig(t), reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Shutdown(cancelled) = %v, want context.Canceled", err)
	}
}
