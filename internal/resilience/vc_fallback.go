package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

// VCFallback implements [vc.Provider] with automatic failover across multiple
// voice conversion backends.
type VCFallback struct {
	group *FallbackGroup[vc.Provider]
}

var (
	_ vc.Provider = (*VCFallback)(nil)
	_ tts.Loader  = (*VCFallback)(nil)
)

// NewVCFallback creates a [VCFallback] with primary as the preferred backend.
func NewVCFallback(primary vc.Provider, primaryName string, cfg FallbackConfig) *VCFallback {
	return &VCFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional conversion backend.
func (f *VCFallback) AddFallback(name string, provider vc.Provider) {
	f.group.AddFallback(name, provider)
}

// Names returns the backend names in failover order.
func (f *VCFallback) Names() []string {
	return f.group.Names()
}

// States returns the breaker state of every backend keyed by name.
func (f *VCFallback) States() map[string]State {
	return f.group.States()
}

// Convert runs req on the first healthy backend.
func (f *VCFallback) Convert(ctx context.Context, req vc.Request) (*audio.Waveform, error) {
	return ExecuteWithResult(f.group, func(p vc.Provider) (*audio.Waveform, error) {
		return p.Convert(ctx, req)
	})
}

// Load loads every backend that implements [tts.Loader]. It fails only when
// none of them loaded.
func (f *VCFallback) Load(ctx context.Context, device string) error {
	var (
		errs   []error
		loaded int
	)
	f.group.each(func(name string, p vc.Provider) {
		l, ok := p.(tts.Loader)
		if !ok {
			return
		}
		if err := l.Load(ctx, device); err != nil {
			slog.Warn("vc backend failed to load", "provider", name, "error", err)
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
