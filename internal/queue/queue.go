// Package queue serialises generation requests per action.
//
// Every action (classic TTS, turbo, multilingual, voice conversion) has its
// own lane with a fixed number of concurrent slots. Requests that cannot
// start right away wait in the lane; the total number of waiters across all
// lanes is bounded, and a request arriving at a full queue is rejected with
// [ErrQueueFull] instead of waiting.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/voxstudio/internal/observe"
)

// ErrQueueFull is returned when max_size requests are already waiting.
var ErrQueueFull = errors.New("queue: queue is full")

// Lane names one action's queue.
type Lane string

const (
	LaneTTS   Lane = "tts"
	LaneTurbo Lane = "turbo"
	LaneMTL   Lane = "mtl"
	LaneVC    Lane = "vc"
)

// Lanes lists every lane in display order.
var Lanes = []Lane{LaneTTS, LaneTurbo, LaneMTL, LaneVC}

const (
	DefaultMaxSize     = 50
	DefaultConcurrency = 1
)

// Config configures a [Queue]. Zero fields take the defaults.
type Config struct {
	// MaxSize bounds the number of waiting requests across all lanes.
	MaxSize int

	// Concurrency is the number of requests each lane runs at once.
	Concurrency int

	// Metrics receives queue depth, wait time and rejections. Nil uses
	// observe.DefaultMetrics.
	Metrics *observe.Metrics
}

// LaneStatus is the state of one lane.
type LaneStatus struct {
	Waiting int `json:"waiting"`
	Active  int `json:"active"`
}

// Snapshot is a point-in-time view of the queue.
type Snapshot struct {
	Waiting int                 `json:"waiting"`
	Active  int                 `json:"active"`
	MaxSize int                 `json:"max_size"`
	Lanes   map[Lane]LaneStatus `json:"lanes"`
}

type lane struct {
	sem     *semaphore.Weighted
	waiting int
	active  int
}

// Queue is safe for concurrent use.
type Queue struct {
	maxSize int
	metrics *observe.Metrics

	mu      sync.Mutex
	lanes   map[Lane]*lane
	waiting int
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates a Queue with one lane per entry in [Lanes].
func New(cfg Config) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	q := &Queue{
		maxSize: cfg.MaxSize,
		metrics: cfg.Metrics,
		lanes:   make(map[Lane]*lane, len(Lanes)),
		subs:    make(map[int]chan Snapshot),
	}
	for _, l := range Lanes {
		q.lanes[l] = &lane{sem: semaphore.NewWeighted(int64(cfg.Concurrency))}
	}
	return q
}

// Do waits for a slot in lane and runs fn. A request that can start at once
// never counts as waiting. Cancelling ctx while waiting removes the request
// from the queue and returns ctx.Err().
func (q *Queue) Do(ctx context.Context, name Lane, fn func(ctx context.Context) error) error {
	l, ok := q.lanes[name]
	if !ok {
		return fmt.Errorf("queue: unknown lane %q", name)
	}

	if !l.sem.TryAcquire(1) {
		if err := q.wait(ctx, name, l); err != nil {
			return err
		}
	}

	q.mu.Lock()
	l.active++
	q.mu.Unlock()
	q.metrics.AddActive(ctx, string(name), 1)
	q.publish()

	defer func() {
		l.sem.Release(1)
		q.mu.Lock()
		l.active--
		q.mu.Unlock()
		q.metrics.AddActive(context.WithoutCancel(ctx), string(name), -1)
		q.publish()
	}()
	return fn(ctx)
}

// wait enqueues the request and blocks until it holds a slot.
func (q *Queue) wait(ctx context.Context, name Lane, l *lane) error {
	q.mu.Lock()
	if q.waiting >= q.maxSize {
		q.mu.Unlock()
		q.metrics.RecordQueueRejection(ctx, string(name))
		return ErrQueueFull
	}
	q.waiting++
	l.waiting++
	q.mu.Unlock()
	q.metrics.AddQueueDepth(ctx, string(name), 1)
	q.publish()

	start := time.Now()
	err := l.sem.Acquire(ctx, 1)

	q.mu.Lock()
	q.waiting--
	l.waiting--
	q.mu.Unlock()
	mctx := context.WithoutCancel(ctx)
	q.metrics.AddQueueDepth(mctx, string(name), -1)
	q.metrics.RecordQueueWait(mctx, string(name), time.Since(start))
	if err != nil {
		q.publish()
		return err
	}
	return nil
}

// Run is [Queue.Do] for functions that return a value.
func Run[T any](ctx context.Context, q *Queue, name Lane, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := q.Do(ctx, name, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Snapshot returns the current queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() Snapshot {
	s := Snapshot{
		Waiting: q.waiting,
		MaxSize: q.maxSize,
		Lanes:   make(map[Lane]LaneStatus, len(q.lanes)),
	}
	for name, l := range q.lanes {
		s.Lanes[name] = LaneStatus{Waiting: l.waiting, Active: l.active}
		s.Active += l.active
	}
	return s
}

// Subscribe returns a channel that receives a snapshot after every change,
// starting with the current state, and a func that ends the subscription.
// A subscriber that falls behind only sees the latest snapshot.
func (q *Queue) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = ch
	ch <- q.snapshotLocked()
	q.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
			close(ch)
		})
	}
}

// publish delivers the current snapshot to every subscriber, replacing any
// snapshot the subscriber has not read yet.
func (q *Queue) publish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.subs) == 0 {
		return
	}
	s := q.snapshotLocked()
	for _, ch := range q.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
