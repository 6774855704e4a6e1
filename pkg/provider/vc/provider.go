// Package vc defines the Provider interface for voice-conversion backends.
//
// A voice-conversion provider re-speaks a source recording in the timbre of a
// target voice clip. Like TTS, the exchange is batch: a complete source file
// goes in and a complete waveform comes out.
//
// Implementations must be safe for concurrent use.
package vc

import (
	"context"

	"github.com/MrWong99/voxstudio/pkg/audio"
)

// Request carries one conversion job. Both fields are filesystem paths.
type Request struct {
	// SourceAudio is the recording whose content is kept. Required.
	SourceAudio string

	// TargetVoice is the clip whose voice is applied. Empty means the
	// backend's default target voice.
	TargetVoice string
}

// Provider is the abstraction over any voice-conversion backend.
type Provider interface {
	// Convert returns SourceAudio re-voiced as TargetVoice.
	//
	// Returns an error if the source is missing, the backend cannot be
	// reached, or the returned audio cannot be decoded.
	Convert(ctx context.Context, req Request) (*audio.Waveform, error)
}
