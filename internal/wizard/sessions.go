package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/service"
)

// ErrNoSession is returned when no wizard is open for an application.
var ErrNoSession = errors.New("no wizard session for application")

// Sessions keeps the live wizard of every application being edited on this instance.
type Sessions struct {
	deps Deps
	now  func() time.Time

	mu    sync.Mutex
	byApp map[uuid.UUID]*Controller
}

func NewSessions(deps Deps) *Sessions {
	return &Sessions{deps: deps, now: time.Now, byApp: make(map[uuid.UUID]*Controller)}
}

// Open resumes the session for appID or starts a new one. A cached session is
// dropped when its application was deleted or left the editable states.
func (s *Sessions) Open(ctx context.Context, appID, userID uuid.UUID) (*Controller, error) {
	s.mu.Lock()
	c, ok := s.byApp[appID]
	s.mu.Unlock()
	if ok {
		if c.UserID() != userID {
			return nil, service.ErrForbidden
		}
		if err := s.revalidate(ctx, c); err != nil {
			return nil, err
		}
		c.touch(s.now())
		return c, nil
	}

	c, err := Open(ctx, s.deps, appID, userID)
	if err != nil {
		return nil, err
	}
	c.touch(s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have opened it meanwhile
	if existing, ok := s.byApp[appID]; ok {
		c.saver.Close()
		return existing, nil
	}
	s.byApp[appID] = c
	slog.InfoContext(ctx, "wizard session opened", "applicationID", appID, "step", c.State().CurrentStep)
	return c, nil
}

// revalidate re-reads the application behind a cached session.
func (s *Sessions) revalidate(ctx context.Context, c *Controller) error {
	if c.isSubmitted() {
		return nil
	}
	app, err := s.deps.Gateway.GetApplication(ctx, c.appID)
	if errors.Is(err, service.ErrNotFound) {
		s.Discard(c.appID)
		return err
	}
	if err != nil {
		return err
	}
	if !app.Status.Editable() {
		s.Discard(c.appID)
		return fmt.Errorf("%w: application is %s", service.ErrNotEditable, app.Status)
	}
	c.setStatus(app.Status)
	return nil
}

// Get returns the open session for appID.
func (s *Sessions) Get(appID, userID uuid.UUID) (*Controller, error) {
	s.mu.Lock()
	c, ok := s.byApp[appID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	if c.UserID() != userID {
		return nil, service.ErrForbidden
	}
	c.touch(s.now())
	return c, nil
}

// Close flushes and drops the session for appID.
func (s *Sessions) Close(ctx context.Context, appID uuid.UUID) error {
	s.mu.Lock()
	c, ok := s.byApp[appID]
	delete(s.byApp, appID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(ctx)
}

// Discard drops the session for appID without saving its pending edits.
// Used once the application itself is gone.
func (s *Sessions) Discard(appID uuid.UUID) {
	s.mu.Lock()
	c, ok := s.byApp[appID]
	delete(s.byApp, appID)
	s.mu.Unlock()
	if !ok {
		return
	}
	c.saver.Close()
	c.saver.Wait()
	slog.Info("wizard session discarded", "applicationID", appID)
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byApp)
}

// Sweep flushes and drops sessions untouched for longer than the idle TTL.
// It returns how many were closed.
func (s *Sessions) Sweep(ctx context.Context) int {
	if s.deps.IdleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.deps.IdleTTL)

	s.mu.Lock()
	idle := make(map[uuid.UUID]*Controller)
	for appID, c := range s.byApp {
		if c.lastUsed().Before(cutoff) {
			idle[appID] = c
			delete(s.byApp, appID)
		}
	}
	s.mu.Unlock()

	for appID, c := range idle {
		if err := c.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to flush idle wizard session", "applicationID", appID, "error", err)
			continue
		}
		slog.InfoContext(ctx, "idle wizard session closed", "applicationID", appID)
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	if s.deps.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(max(s.deps.IdleTTL/2, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// CloseAll flushes and drops every session. Used on shutdown.
func (s *Sessions) CloseAll(ctx context.Context) {
	s.mu.Lock()
	all := s.byApp
	s.byApp = make(map[uuid.UUID]*Controller)
	s.mu.Unlock()

	for appID, c := range all {
		if err := c.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to flush wizard session", "applicationID", appID, "error", err)
		}
	}
}
