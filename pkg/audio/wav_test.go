package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/MrWong99/voxstudio/pkg/audio"
)

// buildWAV assembles a minimal PCM RIFF/WAVE file by hand so decoding is
// tested independently of the encoder.
func buildWAV(rate, channels, bits int, data []byte) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("RIFF")
	binary.Write(&buf, le, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, le, uint32(16))
	binary.Write(&buf, le, uint16(1))
	binary.Write(&buf, le, uint16(channels))
	binary.Write(&buf, le, uint32(rate))
	binary.Write(&buf, le, uint32(rate*channels*bits/8))
	binary.Write(&buf, le, uint16(channels*bits/8))
	binary.Write(&buf, le, uint16(bits))
	buf.WriteString("data")
	binary.Write(&buf, le, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func TestDecodeWAV(t *testing.T) {
	t.Run("16-bit mono", func(t *testing.T) {
		want := []int16{0, 1000, -1000, 32767, -32768}
		w, err := audio.DecodeWAV(buildWAV(24000, 1, 16, samplesToBytes(want)))
		if err != nil {
			t.Fatalf("DecodeWAV: %v", err)
		}
		if w.SampleRate != 24000 || w.Channels != 1 {
			t.Errorf("format = %s, want 24000Hz mono", w.Format())
		}
		if got := bytesToSamples(w.PCM); !slices.Equal(got, want) {
			t.Errorf("samples = %v, want %v", got, want)
		}
	})
	t.Run("8-bit unsigned", func(t *testing.T) {
		w, err := audio.DecodeWAV(buildWAV(8000, 1, 8, []byte{128, 255, 0}))
		if err != nil {
			t.Fatalf("DecodeWAV: %v", err)
		}
		want := []int16{0, 127 << 8, -128 << 8}
		if got := bytesToSamples(w.PCM); !slices.Equal(got, want) {
			t.Errorf("samples = %v, want %v", got, want)
		}
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := audio.DecodeWAV([]byte("definitely not a wav file"))
		if !errors.Is(err, audio.ErrInvalidWAV) {
			t.Errorf("err = %v, want ErrInvalidWAV", err)
		}
	})
}

func TestWriteWAV_RoundTrip(t *testing.T) {
	t.Parallel()
	src := &audio.Waveform{
		SampleRate: 24000,
		Channels:   2,
		PCM:        samplesToBytes([]int16{1, -1, 500, -500, 32767, -32768}),
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := src.WriteWAV(f); err != nil {
		f.Close()
		t.Fatalf("WriteWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := audio.DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if got.Format() != src.Format() {
		t.Errorf("format = %s, want %s", got.Format(), src.Format())
	}
	if !bytes.Equal(got.PCM, src.PCM) {
		t.Errorf("pcm = %v, want %v", bytesToSamples(got.PCM), bytesToSamples(src.PCM))
	}
}

func TestWriteWAV_InvalidFormat(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := (&audio.Waveform{}).WriteWAV(f); err == nil {
		t.Error("expected error for zero format")
	}
}
