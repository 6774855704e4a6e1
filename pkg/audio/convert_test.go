package audio_test

import (
	"encoding/binary"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/voxstudio/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func TestMonoToStereo(t *testing.T) {
	got := bytesToSamples(audio.MonoToStereo(samplesToBytes([]int16{100, 200, 300})))
	want := []int16{100, 100, 200, 200, 300, 300}
	if !slices.Equal(got, want) {
		t.Errorf("MonoToStereo = %v, want %v", got, want)
	}
}

func TestMonoToStereo_OddLengthInput(t *testing.T) {
	// 5 bytes = 2 complete samples + 1 trailing byte.
	stereo := audio.MonoToStereo([]byte{0x64, 0x00, 0xC8, 0x00, 0xFF})
	if len(stereo) != 8 {
		t.Fatalf("expected 8 bytes for 2 complete mono samples, got %d", len(stereo))
	}
	if got, want := bytesToSamples(stereo), []int16{100, 100, 200, 200}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStereoToMono(t *testing.T) {
	tests := []struct {
		name string
		in   []int16
		want []int16
	}{
		{name: "average", in: []int16{100, 200, -100, -200}, want: []int16{150, -150}},
		{name: "no overflow at max", in: []int16{32767, 32767}, want: []int16{32767}},
		{name: "no overflow at min", in: []int16{-32768, -32768}, want: []int16{-32768}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToSamples(audio.StereoToMono(samplesToBytes(tt.in)))
			if !slices.Equal(got, tt.want) {
				t.Errorf("StereoToMono(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResampleMono16(t *testing.T) {
	t.Run("same rate", func(t *testing.T) {
		pcm := samplesToBytes([]int16{100, 200, 300})
		if out := audio.ResampleMono16(pcm, 48000, 48000); len(out) != len(pcm) {
			t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
		}
	})
	t.Run("upsample", func(t *testing.T) {
		got := bytesToSamples(audio.ResampleMono16(samplesToBytes([]int16{1000, 2000}), 16000, 48000))
		if len(got) != 6 {
			t.Fatalf("expected 6 samples, got %d", len(got))
		}
		if got[0] != 1000 {
			t.Errorf("first sample: got %d, want 1000", got[0])
		}
		if last := got[len(got)-1]; last < 1800 || last > 2200 {
			t.Errorf("last sample: got %d, want close to 2000", last)
		}
	})
	t.Run("downsample", func(t *testing.T) {
		got := bytesToSamples(audio.ResampleMono16(samplesToBytes([]int16{100, 200, 300, 400, 500, 600}), 48000, 16000))
		if len(got) != 2 {
			t.Fatalf("expected 2 samples, got %d", len(got))
		}
	})
	t.Run("invalid rates pass through", func(t *testing.T) {
		pcm := samplesToBytes([]int16{100, 200})
		for _, rates := range [][2]int{{0, 48000}, {48000, 0}, {-1, 48000}} {
			if out := audio.ResampleMono16(pcm, rates[0], rates[1]); len(out) != len(pcm) {
				t.Errorf("rates %v: expected unchanged output, got len %d", rates, len(out))
			}
		}
	})
}

func TestResampleStereo16(t *testing.T) {
	// 2 stereo frames at 16kHz → 6 stereo frames (12 samples) at 48kHz
	got := bytesToSamples(audio.ResampleStereo16(samplesToBytes([]int16{100, 200, 300, 400}), 16000, 48000))
	if len(got) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(got))
	}
	// Channels must not bleed into each other.
	if got[0] != 100 || got[1] != 200 {
		t.Errorf("first frame = %v, want [100 200]", got[:2])
	}
}

func TestWaveformConvert(t *testing.T) {
	t.Run("no-op returns same waveform", func(t *testing.T) {
		w := &audio.Waveform{SampleRate: 24000, Channels: 1, PCM: samplesToBytes([]int16{1, 2})}
		if got := w.Convert(audio.Format{SampleRate: 24000, Channels: 1}); got != w {
			t.Error("expected the same waveform for matching format")
		}
		if got := w.Convert(audio.Format{}); got != w {
			t.Error("expected zero target to keep source format")
		}
	})
	t.Run("mono to stereo", func(t *testing.T) {
		w := &audio.Waveform{SampleRate: 24000, Channels: 1, PCM: samplesToBytes([]int16{100, 200, 300})}
		got := w.Convert(audio.Format{Channels: 2})
		if got.SampleRate != 24000 || got.Channels != 2 {
			t.Errorf("format = %s, want 24000Hz stereo", got.Format())
		}
		if s, want := bytesToSamples(got.PCM), []int16{100, 100, 200, 200, 300, 300}; !slices.Equal(s, want) {
			t.Errorf("samples = %v, want %v", s, want)
		}
	})
	t.Run("full conversion", func(t *testing.T) {
		w := &audio.Waveform{SampleRate: 22050, Channels: 1, PCM: samplesToBytes([]int16{1000, 2000})}
		got := w.Convert(audio.Format{SampleRate: 48000, Channels: 2})
		if got.SampleRate != 48000 || got.Channels != 2 {
			t.Errorf("format = %s, want 48000Hz stereo", got.Format())
		}
		s := bytesToSamples(got.PCM)
		if len(s) == 0 || len(s)%2 != 0 {
			t.Errorf("stereo output should have a positive even sample count, got %d", len(s))
		}
	})
	t.Run("resample and downmix helpers", func(t *testing.T) {
		w := &audio.Waveform{SampleRate: 16000, Channels: 2, PCM: samplesToBytes([]int16{100, 300, 100, 300})}
		mono := w.ToMono()
		if mono.Channels != 1 || mono.SampleRate != 16000 {
			t.Errorf("ToMono format = %s", mono.Format())
		}
		if s := bytesToSamples(mono.PCM); !slices.Equal(s, []int16{200, 200}) {
			t.Errorf("ToMono samples = %v", s)
		}
		up := mono.Resample(48000)
		if up.SampleRate != 48000 || up.Channels != 1 || up.Frames() != 6 {
			t.Errorf("Resample = %s with %d frames", up.Format(), up.Frames())
		}
	})
	t.Run("odd byte count", func(t *testing.T) {
		w := &audio.Waveform{SampleRate: 48000, Channels: 1, PCM: []byte{1, 2, 3}}
		got := w.Convert(audio.Format{SampleRate: 48000, Channels: 2})
		if len(got.PCM) != 4 {
			t.Errorf("expected trailing byte dropped (4 bytes), got %d", len(got.PCM))
		}
	})
}

func TestWaveformDuration(t *testing.T) {
	tests := []struct {
		name string
		w    audio.Waveform
		want time.Duration
	}{
		{name: "one second mono", w: audio.Waveform{SampleRate: 24000, Channels: 1, PCM: make([]byte, 48000)}, want: time.Second},
		{name: "half second stereo", w: audio.Waveform{SampleRate: 16000, Channels: 2, PCM: make([]byte, 32000)}, want: 500 * time.Millisecond},
		{name: "zero rate", w: audio.Waveform{Channels: 1, PCM: make([]byte, 10)}, want: 0},
		{name: "zero channels", w: audio.Waveform{SampleRate: 16000, PCM: make([]byte, 10)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatString(t *testing.T) {
	for f, want := range map[audio.Format]string{
		{SampleRate: 24000, Channels: 1}: "24000Hz mono",
		{SampleRate: 48000, Channels: 2}: "48000Hz stereo",
		{SampleRate: 44100, Channels: 6}: "44100Hz 6ch",
	} {
		if got := f.String(); got != want {
			t.Errorf("%+v.String() = %q, want %q", f, got, want)
		}
	}
}
