// Package audio holds the sample-rate-tagged waveform exchanged between the
// speech providers and the HTTP layer, together with WAV encoding and the
// PCM format conversions applied to provider output.
package audio

import "time"

// Waveform is a block of interleaved 16-bit little-endian PCM tagged with its
// sample rate and channel count. Providers return one Waveform per
// generation.
type Waveform struct {
	// SampleRate in Hz (e.g., 24000 for Chatterbox models).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// PCM holds the raw samples.
	PCM []byte
}

// Format returns the sample rate and channel count of w.
func (w *Waveform) Format() Format {
	return Format{SampleRate: w.SampleRate, Channels: w.Channels}
}

// Frames returns the number of sample frames (one sample per channel).
func (w *Waveform) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.PCM) / (2 * w.Channels)
}

// Duration returns the playback length of w.
func (w *Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(w.Frames()) * int64(time.Second) / int64(w.SampleRate))
}
