package main

import (
	"log/slog"
	"time"

	"github.com/MrWong99/voxstudio/internal/config"
	"github.com/MrWong99/voxstudio/pkg/provider/chatterbox"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/tts/coqui"
	"github.com/MrWong99/voxstudio/pkg/provider/tts/elevenlabs"
	"github.com/MrWong99/voxstudio/pkg/provider/tts/openai"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Chatterbox ────────────────────────────────────────────────────────────
	// One client per model family; entry.Model is ignored because the studio
	// decides which family a request goes to.
	reg.RegisterTTS("chatterbox", func(entry config.ProviderEntry, model tts.Model) (tts.Provider, error) {
		return chatterbox.New(entry.BaseURL, string(model), chatterboxOptions(entry)...)
	})
	reg.RegisterVC("chatterbox", func(entry config.ProviderEntry) (vc.Provider, error) {
		return chatterbox.New(entry.BaseURL, chatterbox.ModelVC, chatterboxOptions(entry)...)
	})

	// ── Coqui ─────────────────────────────────────────────────────────────────
	reg.RegisterTTS("coqui", func(entry config.ProviderEntry, _ tts.Model) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if speaker := optString(entry.Options, "speaker"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, coqui.WithTimeout(d))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// ── OpenAI ────────────────────────────────────────────────────────────────
	reg.RegisterTTS("openai", func(entry config.ProviderEntry, _ tts.Model) (tts.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, openai.WithVoice(voice))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── ElevenLabs ────────────────────────────────────────────────────────────
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry, _ tts.Model) (tts.Provider, error) {
		opts := []elevenlabs.Option{elevenlabs.WithVoice(optString(entry.Options, "voice_id"))}
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, elevenlabs.WithTimeout(d))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	for _, kind := range []string{"tts", "vc"} {
		for _, name := range reg.Names(kind) {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

func chatterboxOptions(entry config.ProviderEntry) []chatterbox.Option {
	var opts []chatterbox.Option
	if device := optString(entry.Options, "device"); device != "" {
		opts = append(opts, chatterbox.WithDevice(device))
	}
	if d := optDuration(entry.Options, "timeout"); d > 0 {
		opts = append(opts, chatterbox.WithTimeout(d))
	}
	return opts
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// optDuration reads a Go duration string ("90s", "2m") from opts. Malformed
// values are logged and read as 0.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring malformed provider option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}
