package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voxstudio/pkg/audio"
)

// uploadRefPrefix marks a reference_sample value that points at an earlier
// upload rather than at the samples directory.
const uploadRefPrefix = "upload:"

// allowedAudioExts are the file extensions accepted for uploads and served
// from the samples directory.
var allowedAudioExts = map[string]bool{".wav": true, ".flac": true, ".mp3": true}

// Store keeps generated audio and uploaded clips on disk. Files older than
// the TTL are removed by [Store.Sweep].
type Store struct {
	outputs string
	uploads string
	ttl     time.Duration
}

// NewStore creates the outputs and uploads directories below dir.
func NewStore(dir string, ttl time.Duration) (*Store, error) {
	if dir == "" {
		return nil, errors.New("web: store directory must not be empty")
	}
	s := &Store{
		outputs: filepath.Join(dir, "outputs"),
		uploads: filepath.Join(dir, "uploads"),
		ttl:     ttl,
	}
	for _, d := range []string{s.outputs, s.uploads} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("web: create %s: %w", d, err)
		}
	}
	return s, nil
}

// SaveOutput writes w as a WAV file and returns its generation id.
func (s *Store) SaveOutput(w *audio.Waveform) (string, error) {
	id := uuid.NewString()
	path := filepath.Join(s.outputs, id+".wav")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("web: create output: %w", err)
	}
	if err := w.WriteWAV(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("web: write output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("web: close output: %w", err)
	}
	return id, nil
}

// OutputPath returns the file of generation id. Ids that are not UUIDs are
// rejected before touching the filesystem.
func (s *Store) OutputPath(id string) (string, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return existing(filepath.Join(s.outputs, id+".wav"))
}

// SaveUpload copies src into the uploads directory under a fresh name that
// keeps the extension of filename. It returns the upload reference and the
// file path.
func (s *Store) SaveUpload(src io.Reader, filename string) (ref, path string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedAudioExts[ext] {
		return "", "", badRequest("unsupported audio file type %q", ext)
	}
	name := uuid.NewString() + ext
	path = filepath.Join(s.uploads, name)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("web: create upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", "", fmt.Errorf("web: store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("web: close upload: %w", err)
	}
	return uploadRefPrefix + name, path, nil
}

// UploadPath resolves an "upload:<name>" reference.
func (s *Store) UploadPath(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, uploadRefPrefix)
	if !ok {
		return "", false
	}
	ext := filepath.Ext(name)
	if _, err := uuid.Parse(strings.TrimSuffix(name, ext)); err != nil || !allowedAudioExts[ext] {
		return "", false
	}
	return existing(filepath.Join(s.uploads, name))
}

// Sweep removes files last modified before now minus the TTL and reports
// how many were removed. A zero TTL keeps everything.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)
	removed := 0
	for _, dir := range []string{s.outputs, s.uploads} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			slog.Warn("web: read store directory", "dir", dir, "err", err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("web: remove expired file", "file", e.Name(), "err", err)
				continue
			}
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps the store every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Sweep(now); n > 0 {
				slog.Debug("removed expired audio files", "count", n)
			}
		}
	}
}

func existing(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
