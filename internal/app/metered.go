package app

import (
	"context"
	"errors"

	"github.com/MrWong99/voxstudio/internal/observe"
	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

const (
	kindTTS = "tts"
	kindVC  = "vc"
)

// errNoLanguages is returned by meteredTTS.Languages for backends that
// cannot list languages, so a fallback chain moves on to the next entry.
var errNoLanguages = errors.New("app: provider cannot list languages")

// meteredTTS counts requests and errors per provider. It forwards Load and
// Languages when the wrapped provider supports them.
type meteredTTS struct {
	name string
	p    tts.Provider
	m    *observe.Metrics
}

func (t meteredTTS) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	w, err := t.p.Generate(ctx, req)
	record(ctx, t.m, t.name, kindTTS, err)
	return w, err
}

func (t meteredTTS) Load(ctx context.Context, device string) error {
	if l, ok := t.p.(tts.Loader); ok {
		return l.Load(ctx, device)
	}
	return nil
}

func (t meteredTTS) Languages(ctx context.Context) (map[string]string, error) {
	if l, ok := t.p.(tts.LanguageLister); ok {
		return l.Languages(ctx)
	}
	return nil, errNoLanguages
}

// meteredVC is the voice-conversion counterpart of meteredTTS.
type meteredVC struct {
	name string
	p    vc.Provider
	m    *observe.Metrics
}

func (v meteredVC) Convert(ctx context.Context, req vc.Request) (*audio.Waveform, error) {
	w, err := v.p.Convert(ctx, req)
	record(ctx, v.m, v.name, kindVC, err)
	return w, err
}

func (v meteredVC) Load(ctx context.Context, device string) error {
	if l, ok := v.p.(tts.Loader); ok {
		return l.Load(ctx, device)
	}
	return nil
}

// record counts abandoned requests as canceled rather than as provider
// errors.
func record(ctx context.Context, m *observe.Metrics, name, kind string, err error) {
	switch {
	case err == nil:
		m.RecordProviderRequest(ctx, name, kind, "ok")
	case errors.Is(err, context.Canceled):
		m.RecordProviderRequest(ctx, name, kind, "canceled")
	default:
		m.RecordProviderRequest(ctx, name, kind, "error")
		m.RecordProviderError(ctx, name, kind)
	}
}

var (
	_ tts.Provider       = meteredTTS{}
	_ tts.Loader         = meteredTTS{}
	_ tts.LanguageLister = meteredTTS{}
	_ vc.Provider        = meteredVC{}
)
