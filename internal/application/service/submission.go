package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/events"
	"github.com/OpenBPLS/bpls/internal/metrics"
	"github.com/OpenBPLS/bpls/internal/validation"
)

// SubmissionService runs the final cross-entity check and moves an application to SUBMITTED.
type SubmissionService struct {
	store     *Store
	sm        *StatusMachine
	publisher events.Publisher
}

// NewSubmissionService creates a new SubmissionService instance
func NewSubmissionService(store *Store, sm *StatusMachine, publisher events.Publisher) *SubmissionService {
	return &SubmissionService{store: store, sm: sm, publisher: publisher}
}

// Submit re-fetches business information, owner information, business lines and the
// declaration from the store and re-applies the step checklists in step order. The
// first failing part is returned as a *validation.SubmissionError naming its step.
// Only when every part passes is the status changed and submitted_at set.
func (s *SubmissionService) Submit(ctx context.Context, appID, userID uuid.UUID) (*model.Application, error) {
	var (
		app    *model.Application
		change *model.StatusChange
	)

	err := s.store.Transaction(ctx, func(tx *Store) error {
		var err error
		app, err = tx.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if !app.Status.Editable() {
			return fmt.Errorf("%w: application %s is %s", ErrInvalidTransition, appID, app.Status)
		}

		if err := s.checkParts(ctx, tx, appID); err != nil {
			return err
		}

		change, err = s.sm.TransitionToSubmitted(ctx, tx.db, app, userID)
		return err
	})
	if err != nil {
		var subErr *validation.SubmissionError
		if errors.As(err, &subErr) {
			metrics.SubmissionsTotal.WithLabelValues("incomplete").Inc()
			slog.InfoContext(ctx, "submission check failed",
				"applicationID", appID,
				"step", subErr.Step,
				"reason", subErr.Cause)
		} else {
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues("submitted").Inc()
	slog.InfoContext(ctx, "application submitted",
		"applicationID", appID,
		"submittedAt", app.SubmittedAt)
	notifyStatusChange(ctx, s.publisher, *change)
	return app, nil
}

func (s *SubmissionService) checkParts(ctx context.Context, tx *Store, appID uuid.UUID) error {
	info, err := tx.GetBusinessInformation(ctx, appID)
	if err != nil {
		return err
	}
	if err := validation.ValidateBusinessInformation(info); err != nil {
		return &validation.SubmissionError{Step: validation.StepBusinessInformation, Cause: err}
	}

	owner, err := tx.GetOwnerInformation(ctx, appID)
	if err != nil {
		return err
	}
	if err := validation.ValidateOwnerInformation(owner); err != nil {
		return &validation.SubmissionError{Step: validation.StepOwnerInformation, Cause: err}
	}

	lines, err := tx.ListBusinessLines(ctx, appID)
	if err != nil {
		return err
	}
	if err := validation.ValidateBusinessLines(lines); err != nil {
		return &validation.SubmissionError{Step: validation.StepBusinessOperations, Cause: err}
	}

	decl, err := tx.GetDeclaration(ctx, appID)
	if err != nil {
		return err
	}
	if err := validation.ValidateDeclaration(decl); err != nil {
		return &validation.SubmissionError{Step: validation.StepDeclaration, Cause: err}
	}
	return nil
}

// notifyStatusChange records and publishes an applied change. Publishing
// failures are logged and never fail the caller.
func notifyStatusChange(ctx context.Context, publisher events.Publisher, change model.StatusChange) {
	if change.From == change.To {
		return
	}
	metrics.StatusChangesTotal.WithLabelValues(string(change.From), string(change.To)).Inc()
	if publisher == nil {
		return
	}
	if err := publisher.PublishStatusChange(ctx, change); err != nil {
		metrics.EventPublishFailuresTotal.Inc()
		slog.WarnContext(ctx, "failed to publish status change",
			"applicationID", change.ApplicationID,
			"to", change.To,
			"error", err)
	}
}
