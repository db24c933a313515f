package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenBPLS/bpls/internal/application/model"
)

func TestStatusMachine_CanTransition(t *testing.T) {
	sm := NewStatusMachine()

	tests := []struct {
		name  string
		actor Actor
		from  model.ApplicationStatus
		to    model.ApplicationStatus
		want  bool
	}{
		{"applicant submits draft", ActorApplicant, model.ApplicationStatusDraft, model.ApplicationStatusSubmitted, true},
		{"applicant resubmits", ActorApplicant, model.ApplicationStatusRequiresAdditionalInfo, model.ApplicationStatusSubmitted, true},
		{"applicant cannot approve", ActorApplicant, model.ApplicationStatusSubmitted, model.ApplicationStatusApproved, false},
		{"applicant cannot resubmit rejected", ActorApplicant, model.ApplicationStatusRejected, model.ApplicationStatusSubmitted, false},
		{"admin starts review", ActorAdmin, model.ApplicationStatusSubmitted, model.ApplicationStatusUnderReview, true},
		{"admin rejects submitted", ActorAdmin, model.ApplicationStatusSubmitted, model.ApplicationStatusRejected, true},
		{"admin approves under review", ActorAdmin, model.ApplicationStatusUnderReview, model.ApplicationStatusApproved, true},
		{"admin revokes approval", ActorAdmin, model.ApplicationStatusApproved, model.ApplicationStatusRejected, true},
		{"admin reopens rejected", ActorAdmin, model.ApplicationStatusRejected, model.ApplicationStatusRequiresAdditionalInfo, true},
		{"admin cannot touch drafts", ActorAdmin, model.ApplicationStatusDraft, model.ApplicationStatusApproved, false},
		{"admin cannot move backwards to submitted", ActorAdmin, model.ApplicationStatusUnderReview, model.ApplicationStatusSubmitted, false},
		{"admin cannot approve rejected", ActorAdmin, model.ApplicationStatusRejected, model.ApplicationStatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sm.CanTransition(tt.actor, tt.from, tt.to))
		})
	}
}

func TestStatusMachine_TransitionToSubmitted(t *testing.T) {
	db := setupSQLite(t)
	store := NewStore(db)
	sm := NewStatusMachine()
	ctx := context.Background()
	owner := uuid.New()

	app, err := store.CreateApplication(ctx, owner, model.ApplicationTypeNew)
	require.NoError(t, err)

	change, err := sm.TransitionToSubmitted(ctx, db, app, owner)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusDraft, change.From)
	assert.Equal(t, model.ApplicationStatusSubmitted, change.To)
	require.NotNil(t, app.SubmittedAt)

	stored, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusSubmitted, stored.Status)
	require.NotNil(t, stored.SubmittedAt)

	_, err = sm.TransitionToSubmitted(ctx, db, app, owner)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = sm.TransitionToSubmitted(ctx, db, nil, owner)
	assert.Error(t, err)
}

func TestStatusMachine_StaleStatusIsRejected(t *testing.T) {
	db := setupSQLite(t)
	store := NewStore(db)
	sm := NewStatusMachine()
	ctx := context.Background()

	app, err := store.CreateApplication(ctx, uuid.New(), model.ApplicationTypeNew)
	require.NoError(t, err)

	stale := *app
	_, err = sm.TransitionToSubmitted(ctx, db, app, app.OwnerUserID)
	require.NoError(t, err)

	_, err = sm.TransitionToSubmitted(ctx, db, &stale, app.OwnerUserID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStatusMachine_TransitionByAdmin(t *testing.T) {
	db := setupSQLite(t)
	store := NewStore(db)
	sm := NewStatusMachine()
	ctx := context.Background()
	reviewer := uuid.New()

	app, err := store.CreateApplication(ctx, uuid.New(), model.ApplicationTypeNew)
	require.NoError(t, err)

	_, err = sm.TransitionByAdmin(ctx, db, app, model.UpdateStatusDTO{Status: model.ApplicationStatusApproved}, reviewer)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = sm.TransitionToSubmitted(ctx, db, app, app.OwnerUserID)
	require.NoError(t, err)

	notes := "checking documents"
	change, err := sm.TransitionByAdmin(ctx, db, app, model.UpdateStatusDTO{
		Status: model.ApplicationStatusUnderReview,
		Notes:  &notes,
	}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusSubmitted, change.From)
	assert.Equal(t, model.ApplicationStatusUnderReview, change.To)

	// Same status only refreshes the notes.
	newNotes := "waiting on barangay clearance"
	change, err = sm.TransitionByAdmin(ctx, db, app, model.UpdateStatusDTO{
		Status: model.ApplicationStatusUnderReview,
		Notes:  &newNotes,
	}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, change.From, change.To)

	stored, err := store.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusUnderReview, stored.Status)
	require.NotNil(t, stored.AdminNotes)
	assert.Equal(t, newNotes, *stored.AdminNotes)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, reviewer, *stored.ReviewedBy)

	_, err = sm.TransitionByAdmin(ctx, db, app, model.UpdateStatusDTO{Status: "archived"}, reviewer)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = sm.TransitionByAdmin(ctx, db, app, model.UpdateStatusDTO{Status: model.ApplicationStatusSubmitted}, reviewer)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
