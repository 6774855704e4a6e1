package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/voxstudio/pkg/provider/tts"
	"github.com/MrWong99/voxstudio/pkg/provider/vc"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// has been registered for the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// TTSFactory builds a TTS provider serving model from a config entry.
type TTSFactory func(entry ProviderEntry, model tts.Model) (tts.Provider, error)

// VCFactory builds a voice-conversion provider from a config entry.
type VCFactory func(entry ProviderEntry) (vc.Provider, error)

// Registry maps provider names to their constructors. Factories are
// registered at startup and looked up by [ProviderEntry.Name].
//
// Registry is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	tts map[string]TTSFactory
	vc  map[string]VCFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		tts: make(map[string]TTSFactory),
		vc:  make(map[string]VCFactory),
	}
}

// RegisterTTS registers a factory for a named TTS provider.
// A later registration under the same name replaces the earlier one.
func (r *Registry) RegisterTTS(name string, factory TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterVC registers a factory for a named voice-conversion provider.
func (r *Registry) RegisterVC(name string, factory VCFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vc[name] = factory
}

// CreateTTS instantiates a TTS provider for model using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateTTS(entry ProviderEntry, model tts.Model) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, model)
}

// CreateVC instantiates a voice-conversion provider using the factory
// registered under entry.Name.
func (r *Registry) CreateVC(entry ProviderEntry) (vc.Provider, error) {
	r.mu.RLock()
	factory, ok := r.vc[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vc/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the sorted names registered for kind ("tts" or "vc").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	switch kind {
	case "tts":
		for n := range r.tts {
			out = append(out, n)
		}
	case "vc":
		for n := range r.vc {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}
