// Package config provides the configuration schema, loader, and provider registry
// for the voxstudio server.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the voxstudio server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a slog level. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Device selects where the backend runs the models.
type Device string

const (
	DeviceAuto Device = "auto"
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
	DeviceMPS  Device = "mps"
)

// IsValid reports whether d is a recognised device.
func (d Device) IsValid() bool {
	switch d {
	case DeviceAuto, DeviceCUDA, DeviceCPU, DeviceMPS:
		return true
	}
	return false
}

// Config is the root configuration structure for voxstudio.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Queue      QueueConfig      `yaml:"queue"`
	Models     ModelsConfig     `yaml:"models"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Samples    SamplesConfig    `yaml:"samples"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig holds network, upload and logging settings.
type ServerConfig struct {
	// Host is the bind address. Default: 0.0.0.0.
	Host string `yaml:"host"`

	// Port is the TCP port. Default: 7860.
	Port int `yaml:"port"`

	// RootPath prefixes every studio route, for serving behind a reverse
	// proxy under a sub-path (e.g., "/studio"). Default: "".
	RootPath string `yaml:"root_path"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// MaxUploadBytes caps a single upload. Default: 32 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// OutputDir holds generated audio and uploads. Default: a directory
	// under os.TempDir.
	OutputDir string `yaml:"output_dir"`

	// OutputTTL is how long generated files stay downloadable. Default: 1h.
	OutputTTL time.Duration `yaml:"output_ttl"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// QueueConfig bounds the request queue.
type QueueConfig struct {
	// MaxSize is the number of requests that may wait across all actions.
	// Default: 50.
	MaxSize int `yaml:"max_size"`

	// Concurrency is the number of requests each action runs at once.
	// Default: 1.
	Concurrency int `yaml:"concurrency"`
}

// ModelsConfig controls model loading.
type ModelsConfig struct {
	// Device is forwarded to the backend on load. Default: auto.
	Device Device `yaml:"device"`

	// Preload lists models ("classic", "turbo", "multilingual", "vc") to
	// load at startup instead of on first use.
	Preload []string `yaml:"preload"`
}

// ProvidersConfig declares which provider implementation serves each kind of
// request. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// TTS is the primary text-to-speech backend.
	TTS ProviderEntry `yaml:"tts"`

	// TTSFallbacks are tried in order when the primary fails.
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`

	// VC is the voice-conversion backend.
	VC ProviderEntry `yaml:"vc"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "chatterbox", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini-tts").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// ResilienceConfig tunes the per-backend circuit breakers.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures that open a
	// breaker. Default: 3.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// SamplesConfig locates the reference-audio catalogue.
type SamplesConfig struct {
	// Dir is the samples base directory. Default: "samples".
	Dir string `yaml:"dir"`

	// CatalogFile replaces the built-in catalogue when set.
	CatalogFile string `yaml:"catalog_file"`
}

// TelemetryConfig controls metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is the OTel service.name. Default: "voxstudio".
	ServiceName string `yaml:"service_name"`

	// Metrics enables the /metrics endpoint. Default: true.
	Metrics *bool `yaml:"metrics"`
}

// MetricsEnabled reports whether metrics are on.
func (t TelemetryConfig) MetricsEnabled() bool {
	return t.Metrics == nil || *t.Metrics
}
