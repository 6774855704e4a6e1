// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return a controlled waveform and to verify the requests the
// studio sends to the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    GenerateResult: &audio.Waveform{SampleRate: 24000, Channels: 1, PCM: pcm},
//	}
//	w, _ := p.Generate(ctx, tts.Request{Text: "hello"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/tts"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the request passed to Generate.
	Req tts.Request
}

// LoadCall records a single invocation of Load.
type LoadCall struct {
	Ctx    context.Context
	Device string
}

// Provider is a mock implementation of tts.Provider, tts.Loader and
// tts.LanguageLister.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// GenerateResult is returned by Generate when GenerateErr is nil.
	GenerateResult *audio.Waveform

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// GenerateFunc, if set, replaces GenerateResult/GenerateErr. It runs
	// outside the mock's lock so it may block on ctx.
	GenerateFunc func(ctx context.Context, req tts.Request) (*audio.Waveform, error)

	// LoadErr, if non-nil, is returned as the error from Load.
	LoadErr error

	// LanguagesResult is returned by Languages.
	LanguagesResult map[string]string

	// LanguagesErr, if non-nil, is returned as the error from Languages.
	LanguagesErr error

	// --- Call records ---

	// GenerateCalls records every call to Generate in order.
	GenerateCalls []GenerateCall

	// LoadCalls records every call to Load in order.
	LoadCalls []LoadCall
}

// Generate records the call and returns GenerateResult, GenerateErr.
func (p *Provider) Generate(ctx context.Context, req tts.Request) (*audio.Waveform, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})
	fn, res, err := p.GenerateFunc, p.GenerateResult, p.GenerateErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Load records the call and returns LoadErr.
func (p *Provider) Load(ctx context.Context, device string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadCalls = append(p.LoadCalls, LoadCall{Ctx: ctx, Device: device})
	return p.LoadErr
}

// Languages returns LanguagesResult, LanguagesErr.
func (p *Provider) Languages(_ context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.LanguagesResult, p.LanguagesErr
}

// Calls returns a copy of the recorded Generate calls. Thread-safe.
func (p *Provider) Calls() []GenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]GenerateCall, len(p.GenerateCalls))
	copy(out, p.GenerateCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
	p.LoadCalls = nil
}

var (
	_ tts.Provider       = (*Provider)(nil)
	_ tts.Loader         = (*Provider)(nil)
	_ tts.LanguageLister = (*Provider)(nil)
)
