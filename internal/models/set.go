package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

// SlotVC is the name of the voice-conversion slot.
const SlotVC = "vc"

// TTSBuilder constructs the provider chain for one TTS model.
type TTSBuilder func(ctx context.Context, model tts.Model) (tts.Provider, error)

// VCBuilder constructs the voice-conversion provider chain.
type VCBuilder func(ctx context.Context) (vc.Provider, error)

// Set holds the four model slots: one per TTS model plus voice conversion.
type Set struct {
	tts map[tts.Model]*Slot[tts.Provider]
	vc  *Slot[vc.Provider]
}

// SetConfig configures a [Set].
type SetConfig struct {
	// Device is passed to Load on every backend that needs an explicit load.
	Device string

	// Metrics receives model load durations. Nil uses observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// NewSet creates a Set whose slots build their chains with buildTTS and
// buildVC and then load them on cfg.Device. Nothing is loaded until first use.
func NewSet(buildTTS TTSBuilder, buildVC VCBuilder, cfg SetConfig) *Set {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	hook := func(ctx context.Context, name string, d time.Duration, err error) {
		m.RecordModelLoad(ctx, name, d, err)
		if err != nil {
			slog.Error("model load failed", "model", name, "device", cfg.Device, "duration", d, "error", err)
			return
		}
		slog.Info("model loaded", "model", name, "device", cfg.Device, "duration", d.Round(time.Millisecond))
	}

	s := &Set{tts: make(map[tts.Model]*Slot[tts.Provider], len(tts.Models))}
	for _, model := range tts.Models {
		s.tts[model] = NewSlot(string(model), func(ctx context.Context) (tts.Provider, error) {
			p, err := buildTTS(ctx, model)
			if err != nil {
				return nil, err
			}
			if err := loadOn(ctx, p, cfg.Device); err != nil {
				return nil, err
			}
			return p, nil
		}, WithLoadHook[tts.Provider](hook))
	}
	s.vc = NewSlot(SlotVC, func(ctx context.Context) (vc.Provider, error) {
		p, err := buildVC(ctx)
		if err != nil {
			return nil, err
		}
		if err := loadOn(ctx, p, cfg.Device); err != nil {
			return nil, err
		}
		return p, nil
	}, WithLoadHook[vc.Provider](hook))
	return s
}

func loadOn(ctx context.Context, p any, device string) error {
	l, ok := p.(tts.Loader)
	if !ok {
		return nil
	}
	return l.Load(ctx, device)
}

// TTS returns the loaded provider chain for model, loading it on first use.
func (s *Set) TTS(ctx context.Context, model tts.Model) (tts.Provider, error) {
	slot, ok := s.tts[model]
	if !ok {
		return nil, fmt.Errorf("models: unknown model %q", model)
	}
	return slot.Get(ctx)
}

// VC returns the loaded voice-conversion chain, loading it on first use.
func (s *Set) VC(ctx context.Context) (vc.Provider, error) {
	return s.vc.Get(ctx)
}

// Loaded reports the load state of every slot keyed by slot name.
func (s *Set) Loaded() map[string]bool {
	out := make(map[string]bool, len(s.tts)+1)
	for m, slot := range s.tts {
		out[string(m)] = slot.Loaded()
	}
	out[SlotVC] = s.vc.Loaded()
	return out
}

// Close releases every loaded slot.
func (s *Set) Close() error {
	var errs []error
	for _, slot := range s.tts {
		if err := slot.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.vc.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
