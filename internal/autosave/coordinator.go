package autosave

import (
	"context"
	"fmt"
)

// Coordinator runs at most one save per entity at a time. A save waits for the
// one already in flight on the same entity before it starts.
type Coordinator struct {
	locker Locker
}

// NewCoordinator creates a Coordinator over locker. A nil locker uses an in-process LocalLocker.
func NewCoordinator(locker Locker) *Coordinator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Coordinator{locker: locker}
}

// Do runs save while holding the lock for key.
func (c *Coordinator) Do(ctx context.Context, key EntityKey, save SaveFunc) error {
	release, err := c.locker.Lock(ctx, key.String())
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	defer release()
	return save(ctx)
}
