package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenBPLS/bpls/internal/application/model"
)

// Actor identifies who is asking for a status change.
type Actor string

const (
	ActorApplicant Actor = "applicant"
	ActorAdmin     Actor = "admin"
)

// applicantTransitions and adminTransitions list the allowed moves per actor.
// Status only moves forward except for an admin sending an application back
// for more information or rejecting it.
var (
	applicantTransitions = map[model.ApplicationStatus][]model.ApplicationStatus{
		model.ApplicationStatusDraft:                  {model.ApplicationStatusSubmitted},
		model.ApplicationStatusRequiresAdditionalInfo: {model.ApplicationStatusSubmitted},
	}
	adminTransitions = map[model.ApplicationStatus][]model.ApplicationStatus{
		model.ApplicationStatusSubmitted: {
			model.ApplicationStatusUnderReview,
			model.ApplicationStatusApproved,
			model.ApplicationStatusRejected,
			model.ApplicationStatusRequiresAdditionalInfo,
		},
		model.ApplicationStatusUnderReview: {
			model.ApplicationStatusApproved,
			model.ApplicationStatusRejected,
			model.ApplicationStatusRequiresAdditionalInfo,
		},
		model.ApplicationStatusApproved: {
			model.ApplicationStatusRejected,
			model.ApplicationStatusRequiresAdditionalInfo,
		},
		model.ApplicationStatusRejected: {
			model.ApplicationStatusRequiresAdditionalInfo,
		},
	}
)

// StatusMachine applies application status transitions inside a caller-provided transaction.
type StatusMachine struct {
	now func() time.Time
}

// NewStatusMachine creates a new instance of StatusMachine.
func NewStatusMachine() *StatusMachine {
	return &StatusMachine{now: func() time.Time { return time.Now().UTC() }}
}

// CanTransition reports whether actor may move an application from one status to another.
func (sm *StatusMachine) CanTransition(actor Actor, from, to model.ApplicationStatus) bool {
	table := adminTransitions
	if actor == ActorApplicant {
		table = applicantTransitions
	}
	for _, allowed := range table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionToSubmitted moves a draft or returned application to SUBMITTED and stamps submitted_at.
func (sm *StatusMachine) TransitionToSubmitted(ctx context.Context, tx *gorm.DB, app *model.Application, by uuid.UUID) (*model.StatusChange, error) {
	if app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	if !sm.CanTransition(ActorApplicant, app.Status, model.ApplicationStatusSubmitted) {
		return nil, fmt.Errorf("%w: cannot submit application %s from status %s", ErrInvalidTransition, app.ID, app.Status)
	}

	at := sm.now()
	from := app.Status
	if err := sm.persist(ctx, tx, app, from, map[string]any{
		"status":       model.ApplicationStatusSubmitted,
		"submitted_at": at,
		"updated_at":   at,
	}); err != nil {
		return nil, err
	}

	app.Status = model.ApplicationStatusSubmitted
	app.SubmittedAt = &at
	app.UpdatedAt = at
	return &model.StatusChange{
		ApplicationID: app.ID,
		OwnerUserID:   app.OwnerUserID,
		From:          from,
		To:            model.ApplicationStatusSubmitted,
		ChangedBy:     &by,
		ChangedAt:     at,
	}, nil
}

// TransitionByAdmin applies an admin status update with optional notes.
// Setting the current status again only refreshes the notes; the returned
// change then has From equal to To.
func (sm *StatusMachine) TransitionByAdmin(ctx context.Context, tx *gorm.DB, app *model.Application, req model.UpdateStatusDTO, reviewer uuid.UUID) (*model.StatusChange, error) {
	if app == nil {
		return nil, fmt.Errorf("application cannot be nil")
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Status)
	}
	if req.Status != app.Status && !sm.CanTransition(ActorAdmin, app.Status, req.Status) {
		return nil, fmt.Errorf("%w: cannot move application %s from %s to %s", ErrInvalidTransition, app.ID, app.Status, req.Status)
	}
	if req.Status == app.Status && app.Status == model.ApplicationStatusDraft {
		return nil, fmt.Errorf("%w: draft applications are not under review", ErrInvalidTransition)
	}

	at := sm.now()
	from := app.Status
	values := map[string]any{
		"status":      req.Status,
		"reviewed_by": reviewer,
		"reviewed_at": at,
		"updated_at":  at,
	}
	if req.Notes != nil {
		values["admin_notes"] = *req.Notes
	}
	if err := sm.persist(ctx, tx, app, from, values); err != nil {
		return nil, err
	}

	app.Status = req.Status
	app.ReviewedBy = &reviewer
	app.ReviewedAt = &at
	app.UpdatedAt = at
	if req.Notes != nil {
		notes := *req.Notes
		app.AdminNotes = &notes
	}
	return &model.StatusChange{
		ApplicationID: app.ID,
		OwnerUserID:   app.OwnerUserID,
		From:          from,
		To:            req.Status,
		Notes:         app.AdminNotes,
		ChangedBy:     &reviewer,
		ChangedAt:     at,
	}, nil
}

// persist writes the change only if the stored status still matches from.
func (sm *StatusMachine) persist(ctx context.Context, tx *gorm.DB, app *model.Application, from model.ApplicationStatus, values map[string]any) error {
	result := tx.WithContext(ctx).
		Model(&model.Application{}).
		Where("id = ? AND status = ?", app.ID, from).
		Updates(values)
	if result.Error != nil {
		return &PersistenceError{Op: "update application status", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: application %s is no longer %s", ErrInvalidTransition, app.ID, from)
	}
	return nil
}
