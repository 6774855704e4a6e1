package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileState identifies one version of the watched file.
type fileState struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher polls a config file and reports content changes. The modification
// time is checked on every tick; the file is only read and parsed when it
// moved, and a change is only reported when the SHA-256 of the bytes differs.
// Files that fail to load or validate are logged and skipped, leaving the
// previous config in place.
type Watcher struct {
	path      string
	interval  time.Duration
	onChange  func(old, new *Config)
	transform func(*Config) error

	mu      sync.Mutex
	current *Config
	seen    fileState

	cancel context.CancelFunc
	done   chan struct{}
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithTransform runs fn on every freshly loaded config before it is compared
// or published, e.g. to overlay environment variables. A config for which fn
// fails is rejected like an invalid file.
func WithTransform(fn func(*Config) error) WatcherOption {
	return func(w *Watcher) {
		w.transform = fn
	}
}

// NewWatcher loads path once and then polls it in the background until
// [Watcher.Stop]. onChange may be nil; it runs on the polling goroutine.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.seen = cfg, st

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.run(ctx)
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-flight reload to finish. It is safe
// to call more than once.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config: watched file unavailable", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, st, err := w.read()
	if err != nil {
		slog.Warn("config: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if st.sum == w.seen.sum {
		w.seen.mtime = st.mtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.seen = cfg, st
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// read parses, validates and transforms the file and fingerprints its bytes.
func (w *Watcher) read() (*Config, fileState, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fileState{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fileState{}, err
	}
	if w.transform != nil {
		if err := w.transform(cfg); err != nil {
			return nil, fileState{}, err
		}
	}
	return cfg, fileState{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
