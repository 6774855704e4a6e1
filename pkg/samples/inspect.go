package samples

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

// ErrUnsupportedFormat is returned by [Inspect] for files that are neither
// RIFF/WAVE nor FLAC.
var ErrUnsupportedFormat = errors.New("samples: unsupported audio format")

// ClipInfo is the header-level description of a reference clip.
type ClipInfo struct {
	Format     string // "WAV" or "FLAC"
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	Size       int64
}

// Inspect reads the container header of the clip at path. Only the header is
// parsed; the audio payload is not decoded.
func Inspect(path string) (ClipInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ClipInfo{}, fmt.Errorf("samples: open %q: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ClipInfo{}, fmt.Errorf("samples: stat %q: %w", path, err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return ClipInfo{}, fmt.Errorf("%w: %q is too short", ErrUnsupportedFormat, path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return ClipInfo{}, fmt.Errorf("samples: rewind %q: %w", path, err)
	}

	var info ClipInfo
	switch string(magic[:]) {
	case "RIFF":
		info, err = inspectWAV(f)
	case "fLaC":
		info, err = inspectFLAC(path)
	default:
		return ClipInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return ClipInfo{}, fmt.Errorf("samples: inspect %q: %w", path, err)
	}
	info.Size = st.Size()
	return info, nil
}

func inspectWAV(r io.ReadSeeker) (ClipInfo, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return ClipInfo{}, errors.New("invalid WAV header")
	}
	dur, err := d.Duration()
	if err != nil {
		return ClipInfo{}, fmt.Errorf("wav duration: %w", err)
	}
	return ClipInfo{
		Format:     "WAV",
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   dur,
	}, nil
}

func inspectFLAC(path string) (ClipInfo, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return ClipInfo{}, fmt.Errorf("flac stream info: %w", err)
	}
	defer stream.Close()

	si := stream.Info
	info := ClipInfo{
		Format:     "FLAC",
		SampleRate: int(si.SampleRate),
		Channels:   int(si.NChannels),
		BitDepth:   int(si.BitsPerSample),
	}
	if si.SampleRate > 0 {
		info.Duration = time.Duration(float64(si.NSamples) / float64(si.SampleRate) * float64(time.Second))
	}
	return info, nil
}

// Check lists the ways info deviates from the requirements. An empty result
// means the clip looks fine. Deviations are advisory: generation still
// proceeds with a non-conforming clip.
func (r FileRequirements) Check(info ClipInfo) []string {
	var out []string
	if len(r.Formats) > 0 && !slices.ContainsFunc(r.Formats, func(f string) bool { return strings.EqualFold(f, info.Format) }) {
		out = append(out, fmt.Sprintf("format %s is not one of %s", info.Format, strings.Join(r.Formats, "/")))
	}
	if len(r.SampleRates) > 0 && !slices.Contains(r.SampleRates, info.SampleRate) {
		out = append(out, fmt.Sprintf("sample rate %d Hz is not one of %v", info.SampleRate, r.SampleRates))
	}
	if len(r.Channels) > 0 && !slices.ContainsFunc(r.Channels, func(c string) bool { return strings.EqualFold(c, channelName(info.Channels)) }) {
		out = append(out, fmt.Sprintf("%s audio, expected %s", channelName(info.Channels), strings.Join(r.Channels, "/")))
	}
	if r.MinDuration > 0 && info.Duration < r.MinDuration {
		out = append(out, fmt.Sprintf("clip is %s long, shorter than %s", info.Duration.Round(100*time.Millisecond), r.MinDuration))
	}
	if r.MaxDuration > 0 && info.Duration > r.MaxDuration {
		out = append(out, fmt.Sprintf("clip is %s long, longer than %s", info.Duration.Round(100*time.Millisecond), r.MaxDuration))
	}
	return out
}

func channelName(n int) string {
	switch n {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%d-channel", n)
	}
}
