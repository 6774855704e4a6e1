package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var (
	_ tts.Provider       = (*TTSFallback)(nil)
	_ tts.Loader         = (*TTSFallback)(nil)
	_ tts.LanguageLister = (*TTSFallback)(nil)
)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backend names in failover order.
func (f *TTSFallback) Names() []string {
	return f.group.Names()
}

// States returns the breaker state of every backend keyed by name.
func (f *TTSFallback) States() map[string]State {
	return f.group.States()
}

// Generate synthesises req on the first healthy backend.
func (f *TTSFallback) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*audio.Waveform, error) {
		return p.Generate(ctx, req)
	})
}

// Load loads the model on every backend that implements [tts.Loader].
// A backend that fails to load is logged and left to its circuit breaker;
// Load only fails when no loadable backend succeeded.
func (f *TTSFallback) Load(ctx context.Context, device string) error {
	var (
		errs   []error
		loaded int
	)
	f.group.each(func(name string, p tts.Provider) {
		l, ok := p.(tts.Loader)
		if !ok {
			return
		}
		if err := l.Load(ctx, device); err != nil {
			slog.Warn("tts backend failed to load", "provider", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		loaded++
	})
	if loaded == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Languages returns the language table of the first backend that implements
// [tts.LanguageLister] and answers without error.
func (f *TTSFallback) Languages(ctx context.Context) (map[string]string, error) {
	var (
		langs   map[string]string
		lastErr error
	)
	f.group.each(func(name string, p tts.Provider) {
		if langs != nil {
			return
		}
		ll, ok := p.(tts.LanguageLister)
		if !ok {
			return
		}
		m, err := ll.Languages(ctx)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		langs = m
	})
	if langs == nil {
		if lastErr == nil {
			lastErr = errors.New("no backend lists languages")
		}
		return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
	}
	return langs, nil
}
