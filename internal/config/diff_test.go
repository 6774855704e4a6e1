package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/voxstudio/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	d := config.Diff(cfg, cfg)
	if d.HasChanges() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone must not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_SamplesChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Samples.CatalogFile = "/etc/catalog.yaml"

	d := config.Diff(old, new)
	if !d.SamplesChanged {
		t.Error("expected SamplesChanged=true")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("samples change must not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.Port = 9999
	new.Providers.TTSFallbacks = []config.ProviderEntry{{Name: "coqui"}}
	new.Queue.MaxSize = 10
	off := false
	new.Telemetry.Metrics = &off

	d := config.Diff(old, new)
	for _, section := range []string{"server", "providers", "queue", "telemetry"} {
		if !slices.Contains(d.RestartRequired, section) {
			t.Errorf("RestartRequired %v is missing %q", d.RestartRequired, section)
		}
	}
	if slices.Contains(d.RestartRequired, "models") {
		t.Errorf("models did not change, got %v", d.RestartRequired)
	}
}
