package audio

import (
	"fmt"
	"log/slog"
)

// Format describes the sample rate and channel count of a waveform.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "24000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Convert returns w converted to target. A zero SampleRate or Channels in
// target keeps the source value. If nothing changes, w itself is returned.
// Resampling happens before channel conversion so that a stereo source
// headed for mono is only resampled once.
func (w *Waveform) Convert(target Format) *Waveform {
	if target.SampleRate <= 0 {
		target.SampleRate = w.SampleRate
	}
	if target.Channels <= 0 {
		target.Channels = w.Channels
	}
	if w.Format() == target {
		return w
	}
	if len(w.PCM)%2 != 0 {
		slog.Warn("audio: odd byte count in PCM data, dropping trailing byte",
			"bytes", len(w.PCM),
			"format", w.Format().String(),
		)
	}

	pcm := w.PCM[:len(w.PCM)&^1]
	if w.SampleRate != target.SampleRate {
		if w.Channels == 1 {
			pcm = ResampleMono16(pcm, w.SampleRate, target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, w.SampleRate, target.SampleRate)
		}
	}
	if w.Channels != target.Channels {
		switch {
		case w.Channels == 1 && target.Channels == 2:
			pcm = MonoToStereo(pcm)
		case w.Channels == 2 && target.Channels == 1:
			pcm = StereoToMono(pcm)
		default:
			target.Channels = w.Channels
		}
	}
	return &Waveform{SampleRate: target.SampleRate, Channels: target.Channels, PCM: pcm}
}

// Resample returns w at the given sample rate, keeping the channel count.
func (w *Waveform) Resample(rate int) *Waveform {
	return w.Convert(Format{SampleRate: rate})
}

// ToMono returns w downmixed to a single channel.
func (w *Waveform) ToMono() *Waveform {
	return w.Convert(Format{Channels: 1})
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := clamp16((l + r) / 2)
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 resamples interleaved 16-bit stereo PCM from srcRate to
// dstRate using linear interpolation per channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 2, srcRate, dstRate)
}

func resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	frameBytes := 2 * channels
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < frameBytes {
		return pcm
	}
	srcFrames := len(pcm) / frameBytes
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	sample := func(frame, ch int) float64 {
		o := frame*frameBytes + ch*2
		return float64(int16(pcm[o]) | int16(pcm[o+1])<<8)
	}

	out := make([]byte, dstFrames*frameBytes)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, srcFrames-1)
		for ch := range channels {
			v := int16(sample(idx, ch)*(1-frac) + sample(next, ch)*frac)
			o := i*frameBytes + ch*2
			out[o] = byte(v)
			out[o+1] = byte(v >> 8)
		}
	}
	return out
}

func clamp16(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
