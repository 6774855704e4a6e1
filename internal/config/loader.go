package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

// ValidProviderNames lists the known provider names per kind. Unknown names
// are warned about, not rejected, so third-party factories can be registered.
var ValidProviderNames = map[string][]string{
	"tts": {"chatterbox", "coqui", "openai", "elevenlabs"},
	"vc":  {"chatterbox"},
}

// PreloadVC is the [ModelsConfig.Preload] entry for the voice-conversion model.
const PreloadVC = "vc"

// Load reads the YAML file at path and returns the parsed configuration.
// The file is decoded, defaulted and validated.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates the
// result. Unknown keys are an error. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg for errors and returns all of them joined. Unknown
// provider names only produce a warning.
func Validate(cfg *Config) error {
	var errs []error

	s := cfg.Server
	if s.LogLevel != "" && !s.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", s.LogLevel))
	}
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [1, 65535]", s.Port))
	}
	if s.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must not be negative"))
	}
	if s.OutputTTL < 0 {
		errs = append(errs, fmt.Errorf("server.output_ttl must not be negative"))
	}
	if s.TLS != nil && (s.TLS.CertFile == "") != (s.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if cfg.Queue.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("queue.max_size %d must not be negative", cfg.Queue.MaxSize))
	}
	if cfg.Queue.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("queue.concurrency %d must not be negative", cfg.Queue.Concurrency))
	}

	if cfg.Models.Device != "" && !cfg.Models.Device.IsValid() {
		errs = append(errs, fmt.Errorf("models.device %q is invalid; valid values: auto, cuda, cpu, mps", cfg.Models.Device))
	}
	for i, name := range cfg.Models.Preload {
		if name == PreloadVC {
			continue
		}
		if _, err := tts.ParseModel(name); err != nil {
			errs = append(errs, fmt.Errorf("models.preload[%d] %q is invalid; valid values: classic, turbo, multilingual, vc", i, name))
		}
	}

	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("tts", fb.Name)
	}
	validateProviderName("vc", cfg.Providers.VC.Name)

	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures must not be negative"))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not in the known list for kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
