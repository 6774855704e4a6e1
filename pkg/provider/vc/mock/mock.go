// Package mock provides a test double for the vc.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

// ConvertCall records a single invocation of Convert.
type ConvertCall struct {
	Ctx context.Context
	Req vc.Request
}

// LoadCall records a single invocation of Load.
type LoadCall struct {
	Ctx    context.Context
	Device string
}

// Provider is a mock implementation of vc.Provider. It also offers Load so
// it can stand in for backends that need an explicit model load.
type Provider struct {
	mu sync.Mutex

	// ConvertResult is returned by Convert when ConvertErr is nil.
	ConvertResult *audio.Waveform

	// ConvertErr, if non-nil, is returned as the error from Convert.
	ConvertErr error

	// LoadErr, if non-nil, is returned as the error from Load.
	LoadErr error

	// ConvertCalls records every call to Convert in order.
	ConvertCalls []ConvertCall

	// LoadCalls records every call to Load in order.
	LoadCalls []LoadCall
}

// Convert records the call and returns ConvertResult, ConvertErr.
func (p *Provider) Convert(ctx context.Context, req vc.Request) (*audio.Waveform, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConvertCalls = append(p.ConvertCalls, ConvertCall{Ctx: ctx, Req: req})
	if p.ConvertErr != nil {
		return nil, p.ConvertErr
	}
	return p.ConvertResult, nil
}

// Load records the call and returns LoadErr.
func (p *Provider) Load(ctx context.Context, device string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoadCalls = append(p.LoadCalls, LoadCall{Ctx: ctx, Device: device})
	return p.LoadErr
}

// Calls returns a copy of the recorded Convert calls. Thread-safe.
func (p *Provider) Calls() []ConvertCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConvertCall, len(p.ConvertCalls))
	copy(out, p.ConvertCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConvertCalls = nil
	p.LoadCalls = nil
}

var _ vc.Provider = (*Provider)(nil)
