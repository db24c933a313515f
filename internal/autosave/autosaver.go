package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OpenBPLS/bpls/internal/metrics"
)

// SaveFunc persists one entity.
type SaveFunc func(ctx context.Context) error

// ErrClosed is returned by SaveNow after Close.
var ErrClosed = errors.New("autosaver closed")

const (
	triggerDebounced = "debounced"
	triggerExplicit  = "explicit"
)

// Autosaver owns the debounced saves of one editing session. Each entity key
// gets its own Debouncer; every save, debounced or explicit, goes through the
// Coordinator so only one save per entity runs at a time. Failed saves are
// logged and reported through LastError but never retried.
type Autosaver struct {
	delay time.Duration
	coord *Coordinator

	mu         sync.Mutex
	debouncers map[EntityKey]*Debouncer
	errs       map[EntityKey]error
	lastFailed EntityKey
	saving     int
	closed     bool
	running    sync.WaitGroup
}

// NewAutosaver creates an Autosaver with the given quiet interval.
func NewAutosaver(delay time.Duration, coord *Coordinator) *Autosaver {
	if coord == nil {
		coord = NewCoordinator(nil)
	}
	return &Autosaver{
		delay:      delay,
		coord:      coord,
		debouncers: make(map[EntityKey]*Debouncer),
		errs:       make(map[EntityKey]error),
	}
}

// Schedule debounces save for key. Only the last save scheduled within the
// quiet interval runs.
func (a *Autosaver) Schedule(key EntityKey, save SaveFunc) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	d, ok := a.debouncers[key]
	if !ok {
		d = NewDebouncer(a.delay)
		a.debouncers[key] = d
	}
	a.mu.Unlock()

	d.Trigger(func() {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		a.running.Add(1)
		a.mu.Unlock()
		defer a.running.Done()

		_ = a.run(context.Background(), key, triggerDebounced, save)
	})
}

// SaveNow issues the authoritative save for key: the pending debounced save is
// dropped, an in-flight save on the same entity is awaited, then save runs once.
func (a *Autosaver) SaveNow(ctx context.Context, key EntityKey, save SaveFunc) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if d, ok := a.debouncers[key]; ok {
		d.Cancel()
	}
	a.mu.Unlock()

	return a.run(ctx, key, triggerExplicit, save)
}

// Cancel drops the pending debounced save for key.
func (a *Autosaver) Cancel(key EntityKey) bool {
	a.mu.Lock()
	d, ok := a.debouncers[key]
	a.mu.Unlock()
	if !ok {
		return false
	}
	return d.Cancel()
}

// Pending reports whether a debounced save for key is waiting for its quiet interval.
func (a *Autosaver) Pending(key EntityKey) bool {
	a.mu.Lock()
	d, ok := a.debouncers[key]
	a.mu.Unlock()
	return ok && d.Pending()
}

// Saving reports whether any save of this session is in progress.
func (a *Autosaver) Saving() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saving > 0
}

// LastError returns the most recent save failure that has not been cleared by
// a later successful save of the same entity.
func (a *Autosaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err, ok := a.errs[a.lastFailed]; ok {
		return err
	}
	for _, err := range a.errs {
		return err
	}
	return nil
}

// Close drops every pending save. Saves already running complete on their own.
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	debouncers := a.debouncers
	a.debouncers = make(map[EntityKey]*Debouncer)
	a.mu.Unlock()

	for _, d := range debouncers {
		d.Cancel()
	}
}

// Wait blocks until debounced saves that have started are done.
func (a *Autosaver) Wait() {
	a.running.Wait()
}

func (a *Autosaver) run(ctx context.Context, key EntityKey, trigger string, save SaveFunc) error {
	a.mu.Lock()
	a.saving++
	a.mu.Unlock()

	start := time.Now()
	err := a.coord.Do(ctx, key, save)
	metrics.SaveDuration.WithLabelValues(key.Kind).Observe(time.Since(start).Seconds())

	a.mu.Lock()
	a.saving--
	if err != nil {
		a.errs[key] = err
		a.lastFailed = key
	} else {
		delete(a.errs, key)
	}
	a.mu.Unlock()

	if err != nil {
		metrics.AutosaveSavesTotal.WithLabelValues(key.Kind, trigger, "error").Inc()
		slog.ErrorContext(ctx, "save failed",
			"entity", key.Kind,
			"applicationID", key.ApplicationID,
			"trigger", trigger,
			"error", err)
		return err
	}
	metrics.AutosaveSavesTotal.WithLabelValues(key.Kind, trigger, "ok").Inc()
	return nil
}
