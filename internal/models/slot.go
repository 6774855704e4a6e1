// Package models holds the lazily loaded model handles of the studio.
//
// A [Slot] wraps one backend chain (for example the classic TTS model with
// its fallbacks). The first [Slot.Get] runs the loader; concurrent first
// callers share that single load. A failed load is not cached, so the next
// call retries. Loaded values live until [Slot.Close].
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by [Slot.Get] when the slot was closed while the
// load it waited on was still running. The loaded value is closed again.
var ErrClosed = errors.New("models: slot closed")

// LoadFunc builds the value held by a [Slot]. It receives a context that is
// not cancelled when the caller that triggered the load goes away, because
// other callers may be waiting on the same load.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// LoadHook observes every completed load attempt.
type LoadHook func(ctx context.Context, name string, d time.Duration, err error)

// Slot is a once-initialised shared handle. It is safe for concurrent use.
type Slot[T any] struct {
	name   string
	load   LoadFunc[T]
	onLoad LoadHook

	sf singleflight.Group

	mu     sync.RWMutex
	value  T
	loaded bool
	// gen is bumped by Close; a load only publishes into the generation it
	// started in.
	gen uint64
}

// SlotOption configures a [Slot].
type SlotOption[T any] func(*Slot[T])

// WithLoadHook registers h to be called after each load attempt.
func WithLoadHook[T any](h LoadHook) SlotOption[T] {
	return func(s *Slot[T]) { s.onLoad = h }
}

// NewSlot creates an empty slot named name. load must not be nil.
func NewSlot[T any](name string, load LoadFunc[T], opts ...SlotOption[T]) *Slot[T] {
	s := &Slot[T]{name: name, load: load}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the slot name.
func (s *Slot[T]) Name() string { return s.name }

// Get returns the loaded value, loading it first if needed. Cancelling ctx
// stops the wait but leaves a running load in place for the other callers.
func (s *Slot[T]) Get(ctx context.Context) (T, error) {
	if v, ok := s.Peek(); ok {
		return v, nil
	}

	ch := s.sf.DoChan(s.name, func() (any, error) {
		s.mu.RLock()
		v, ok, gen := s.value, s.loaded, s.gen
		s.mu.RUnlock()
		if ok {
			return v, nil
		}
		lctx := context.WithoutCancel(ctx)
		start := time.Now()
		v, err := s.load(lctx)
		if s.onLoad != nil {
			s.onLoad(lctx, s.name, time.Since(start), err)
		}
		if err != nil {
			return nil, fmt.Errorf("models: load %s: %w", s.name, err)
		}
		if any(v) == nil {
			return nil, fmt.Errorf("models: load %s: loader returned no value", s.name)
		}
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			_ = closeValue(v)
			return nil, fmt.Errorf("%w while loading %s", ErrClosed, s.name)
		}
		s.value, s.loaded = v, true
		s.mu.Unlock()
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// Loaded reports whether a value is held.
func (s *Slot[T]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Peek returns the held value without loading.
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.loaded
}

// Close drops the held value and closes it if it implements [io.Closer].
// A load still running is discarded when it finishes and its callers get
// [ErrClosed]. The slot may be loaded again afterwards.
func (s *Slot[T]) Close() error {
	s.mu.Lock()
	v, ok := s.value, s.loaded
	var zero T
	s.value, s.loaded = zero, false
	s.gen++
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return closeValue(v)
}

func closeValue[T any](v T) error {
	if c, ok := any(v).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
