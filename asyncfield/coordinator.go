// Package asyncfield coordinates a field whose value comes from an external
// asynchronous source, such as loading the options of a select field from a
// remote call.
//
// The coordinator is a small state machine, Idle → Loading → {Data, Error},
// made race-safe by a generation counter: every fetch start bumps the
// generation, and a completing fetch whose captured generation is no longer
// current is silently discarded. Rapid dependency changes therefore always
// settle on the latest fetch's result ("last request wins").
package asyncfield

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State names the coordinator's position in its lifecycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateData    State = "data"
	StateError   State = "error"
)

// Fetch produces the field's value.
type Fetch[T any] func(ctx context.Context) (T, error)

// Snapshot is one immutable view of the coordinator.
type Snapshot[T any] struct {
	State State
	// Value is the latest successful result. With KeepPreviousData it stays
	// visible through a subsequent Loading transition.
	Value    T
	HasValue bool
	Err      error
}

// IsLoading reports whether a fetch is scheduled or in flight.
func (s Snapshot[T]) IsLoading() bool { return s.State == StateLoading }

// Coordinator manages one async-sourced field.
type Coordinator[T any] struct {
	mu sync.Mutex

	gen      uint64
	state    State
	value    T
	hasValue bool
	err      error

	lastFetch Fetch[T]
	timer     *time.Timer
	closed    bool

	keepPrevious bool
	debounce     time.Duration
	onData       func(T)
	listeners    []func(Snapshot[T])
	log          *slog.Logger
}

// Option configures a Coordinator.
type Option[T any] func(*Coordinator[T])

// WithKeepPreviousData keeps the last successful value visible while a new
// fetch is loading instead of blanking it.
func WithKeepPreviousData[T any]() Option[T] {
	return func(c *Coordinator[T]) { c.keepPrevious = true }
}

// WithDebounce delays the start of each fetch; only the last request within
// the window actually runs.
func WithDebounce[T any](d time.Duration) Option[T] {
	return func(c *Coordinator[T]) { c.debounce = d }
}

// WithOnData registers a side-effect callback invoked once per successful,
// non-stale resolution. Used to drive dependent field auto-selection.
func WithOnData[T any](fn func(T)) Option[T] {
	return func(c *Coordinator[T]) { c.onData = fn }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(c *Coordinator[T]) { c.log = l }
}

func New[T any](opts ...Option[T]) *Coordinator[T] {
	c := &Coordinator[T]{state: StateIdle}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Snapshot returns the coordinator's current state.
func (c *Coordinator[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{State: c.state, Value: c.value, HasValue: c.hasValue, Err: c.err}
}

// AddListener registers fn to run after every state change. The returned
// function removes it.
func (c *Coordinator[T]) AddListener(fn func(Snapshot[T])) func() {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	idx := len(c.listeners) - 1
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.listeners[idx] = nil
		c.mu.Unlock()
	}
}

func (c *Coordinator[T]) notify(snap Snapshot[T]) {
	c.mu.Lock()
	fns := make([]func(Snapshot[T]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Load starts a new fetch, superseding any scheduled or in-flight one. The
// fetch is remembered so Refresh can repeat it.
func (c *Coordinator[T]) Load(ctx context.Context, fetch Fetch[T]) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.lastFetch = fetch
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.state = StateLoading
	c.err = nil
	if !c.keepPrevious {
		var zero T
		c.value = zero
		c.hasValue = false
	}
	snap := c.snapshotLocked()

	run := func() { c.runFetch(ctx, fetch, gen) }
	if c.debounce > 0 {
		c.timer = time.AfterFunc(c.debounce, run)
	} else {
		go run()
	}
	c.mu.Unlock()
	c.notify(snap)
}

// Refresh repeats the last fetch. A refresh before any Load is a no-op.
func (c *Coordinator[T]) Refresh(ctx context.Context) {
	c.mu.Lock()
	fetch := c.lastFetch
	c.mu.Unlock()
	if fetch == nil {
		return
	}
	c.Load(ctx, fetch)
}

func (c *Coordinator[T]) runFetch(ctx context.Context, fetch Fetch[T], gen uint64) {
	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	v, err := fetch(ctx)

	c.mu.Lock()
	if c.closed || c.gen != gen {
		c.mu.Unlock()
		c.log.Debug("discarding stale fetch result", "generation", gen)
		return
	}
	var onData func(T)
	if err != nil {
		c.state = StateError
		c.err = err
	} else {
		c.state = StateData
		c.value = v
		c.hasValue = true
		c.err = nil
		onData = c.onData
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if onData != nil {
		onData(v)
	}
	c.notify(snap)
}

// Cancel invalidates any scheduled or in-flight fetch and returns to Idle
// (keeping the last data).
func (c *Coordinator[T]) Cancel() {
	c.mu.Lock()
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.state == StateLoading {
		if c.hasValue {
			c.state = StateData
		} else {
			c.state = StateIdle
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Close cancels outstanding work; the coordinator must not be used after.
func (c *Coordinator[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}
