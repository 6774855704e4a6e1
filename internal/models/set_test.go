package models

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxstudio/pkg/provider/tts/mock"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
	vcmock "github.com/MrWong99/voxstudio/pkg/provider/vc/mock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestSet_LazyLoadOnDevice(t *testing.T) {
	t.Parallel()
	built := map[tts.Model]*ttsmock.Provider{}
	vcp := &vcmock.Provider{}
	set := NewSet(
		func(_ context.Context, m tts.Model) (tts.Provider, error) {
			p := &ttsmock.Provider{}
			built[m] = p
			return p, nil
		},
		func(context.Context) (vc.Provider, error) { return vcp, nil },
		SetConfig{Device: "cuda", Metrics: testMetrics(t)},
	)

	for name, loaded := range set.Loaded() {
		if loaded {
			t.Errorf("slot %s loaded before first use", name)
		}
	}

	p, err := set.TTS(context.Background(), tts.ModelTurbo)
	if err != nil {
		t.Fatalf("TTS(turbo): %v", err)
	}
	if p != built[tts.ModelTurbo] {
		t.Error("returned provider is not the built one")
	}
	if calls := built[tts.ModelTurbo].LoadCalls; len(calls) != 1 || calls[0].Device != "cuda" {
		t.Errorf("load calls = %+v, want one on cuda", calls)
	}
	if len(built) != 1 {
		t.Errorf("built %d chains, want only turbo", len(built))
	}

	if _, err := set.VC(context.Background()); err != nil {
		t.Fatalf("VC: %v", err)
	}
	loaded := set.Loaded()
	if !loaded["turbo"] || !loaded[SlotVC] || loaded["classic"] {
		t.Errorf("Loaded() = %v", loaded)
	}
	if err := set.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSet_LoadFailure(t *testing.T) {
	t.Parallel()
	loadErr := errors.New("cuda out of memory")
	attempts := 0
	set := NewSet(
		func(context.Context, tts.Model) (tts.Provider, error) {
			attempts++
			return &ttsmock.Provider{LoadErr: loadErr}, nil
		},
		func(context.Context) (vc.Provider, error) { return nil, errors.New("no vc backend") },
		SetConfig{Device: "auto", Metrics: testMetrics(t)},
	)

	if _, err := set.TTS(context.Background(), tts.ModelClassic); !errors.Is(err, loadErr) {
		t.Fatalf("err = %v, want load error", err)
	}
	if _, err := set.TTS(context.Background(), tts.ModelClassic); err == nil {
		t.Fatal("expected retry to fail again")
	}
	if attempts != 2 {
		t.Errorf("build attempts = %d, want 2", attempts)
	}
	if _, err := set.VC(context.Background()); err == nil {
		t.Error("expected VC build error")
	}
	if _, err := set.TTS(context.Background(), tts.Model("nope")); err == nil {
		t.Error("expected error for unknown model")
	}
}
