package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values applied by [ApplyDefaults].
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 7860
	DefaultMaxUploadBytes = 32 << 20
	DefaultOutputTTL      = time.Hour
	DefaultQueueMaxSize   = 50
	DefaultConcurrency    = 1
	DefaultMaxFailures    = 3
	DefaultResetTimeout   = 30 * time.Second
	DefaultSamplesDir     = "samples"
	DefaultServiceName    = "voxstudio"
	DefaultBackendURL     = "http://localhost:8000"
)

// Default returns a configuration with every default applied. It serves a
// local Chatterbox backend for both TTS and voice conversion.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero field of cfg with its default and
// normalises RootPath to a leading slash without a trailing one.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	s.RootPath = NormalizeRootPath(s.RootPath)
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if s.OutputDir == "" {
		s.OutputDir = filepath.Join(os.TempDir(), "voxstudio")
	}
	if s.OutputTTL == 0 {
		s.OutputTTL = DefaultOutputTTL
	}

	if cfg.Queue.MaxSize == 0 {
		cfg.Queue.MaxSize = DefaultQueueMaxSize
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = DefaultConcurrency
	}
	if cfg.Models.Device == "" {
		cfg.Models.Device = DeviceAuto
	}

	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS = ProviderEntry{Name: "chatterbox", BaseURL: DefaultBackendURL}
	}
	if cfg.Providers.VC.Name == "" {
		cfg.Providers.VC = ProviderEntry{Name: "chatterbox", BaseURL: cfg.Providers.TTS.BaseURL}
		if cfg.Providers.TTS.Name != "chatterbox" {
			cfg.Providers.VC.BaseURL = DefaultBackendURL
		}
	}

	if cfg.Resilience.MaxFailures == 0 {
		cfg.Resilience.MaxFailures = DefaultMaxFailures
	}
	if cfg.Resilience.ResetTimeout == 0 {
		cfg.Resilience.ResetTimeout = DefaultResetTimeout
	}
	if cfg.Samples.Dir == "" {
		cfg.Samples.Dir = DefaultSamplesDir
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// NormalizeRootPath returns p with exactly one leading slash and no trailing
// slash. An empty or "/" path yields "".
func NormalizeRootPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Addr returns the listen address host:port.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
