package samples_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxstudio/pkg/audio"
	"github.com/MrWong99/voxstudio/pkg/samples"
)

func writeWAV(t *testing.T, rate, channels int, d time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	frames := int(d.Seconds() * float64(rate))
	w := &audio.Waveform{SampleRate: rate, Channels: channels, PCM: make([]byte, frames*channels*2)}
	if err := w.WriteWAV(f); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInspect_WAV(t *testing.T) {
	t.Parallel()
	path := writeWAV(t, 16000, 2, 1500*time.Millisecond)

	info, err := samples.Inspect(path)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Format != "WAV" || info.SampleRate != 16000 || info.Channels != 2 || info.BitDepth != 16 {
		t.Errorf("info = %+v", info)
	}
	if info.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", info.Duration)
	}
	st, _ := os.Stat(path)
	if info.Size != st.Size() {
		t.Errorf("size = %d, want %d", info.Size, st.Size())
	}
}

func TestInspect_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name        string
		path        string
		unsupported bool
	}{
		{"missing file", filepath.Join(dir, "absent.wav"), false},
		{"too short", write("short.wav", []byte("RI")), true},
		{"mp3 bytes", write("song.wav", []byte("ID3\x04 not a wave")), true},
		{"broken riff", write("broken.wav", []byte("RIFF\x00\x00\x00\x00JUNK")), false},
		{"broken flac", write("broken.flac", []byte("fLaC\x00")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := samples.Inspect(tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, samples.ErrUnsupportedFormat); got != tt.unsupported {
				t.Errorf("errors.Is(ErrUnsupportedFormat) = %v, want %v (err: %v)", got, tt.unsupported, err)
			}
		})
	}
}

func TestFileRequirements_Check(t *testing.T) {
	t.Parallel()
	req := samples.FileRequirements{
		Formats:     []string{"WAV", "FLAC"},
		SampleRates: []int{16000, 24000},
		Channels:    []string{"Mono"},
		MinDuration: 5 * time.Second,
		MaxDuration: 10 * time.Second,
	}

	tests := []struct {
		name string
		info samples.ClipInfo
		want []string
	}{
		{
			name: "conforming",
			info: samples.ClipInfo{Format: "FLAC", SampleRate: 24000, Channels: 1, Duration: 7 * time.Second},
		},
		{
			name: "stereo and short",
			info: samples.ClipInfo{Format: "WAV", SampleRate: 16000, Channels: 2, Duration: 2 * time.Second},
			want: []string{"Stereo audio, expected Mono", "clip is 2s long, shorter than 5s"},
		},
		{
			name: "rate and long",
			info: samples.ClipInfo{Format: "wav", SampleRate: 44100, Channels: 1, Duration: 12 * time.Second},
			want: []string{"sample rate 44100 Hz is not one of [16000 24000]", "clip is 12s long, longer than 10s"},
		},
		{
			name: "format",
			info: samples.ClipInfo{Format: "OGG", SampleRate: 16000, Channels: 1, Duration: 6 * time.Second},
			want: []string{"format OGG is not one of WAV/FLAC"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := req.Check(tt.info)
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Check = %q, want %q", got, tt.want)
			}
		})
	}

	if got := (samples.FileRequirements{}).Check(samples.ClipInfo{Format: "X"}); len(got) != 0 {
		t.Errorf("empty requirements reported %q", got)
	}
}
