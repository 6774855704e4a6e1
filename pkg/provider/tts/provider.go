// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., a Chatterbox
// inference server, a Coqui TTS server or the OpenAI speech API) and presents
// a uniform batch interface: one [Request] in, one sample-rate-tagged
// waveform out. Reference-audio cloning is expressed through
// Request.ReferenceAudio; backends that cannot clone ignore it.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/voxstudio/pkg/audio"
)

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. The studio serialises
// requests per model through its queue, but different models may generate at
// the same time.
type Provider interface {
	// Generate synthesises req.Text and returns the complete waveform.
	//
	// Returns an error if the backend cannot be reached, rejects the request,
	// or returns audio that cannot be decoded. Cancelling ctx aborts the
	// in-flight request.
	Generate(ctx context.Context, req Request) (*audio.Waveform, error)
}

// Loader is implemented by providers whose backend needs an explicit model
// load before the first generation (the from_pretrained step). device is one
// of "auto", "cuda", "cpu" or "mps" and is forwarded verbatim.
type Loader interface {
	Load(ctx context.Context, device string) error
}

// LanguageLister is implemented by providers that can report the languages
// their multilingual model supports, keyed by language code.
type LanguageLister interface {
	Languages(ctx context.Context) (map[string]string, error)
}
