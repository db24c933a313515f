package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/validation"
)

// FileRemover deletes uploaded files by storage key.
type FileRemover interface {
	Remove(ctx context.Context, key string) error
}

// ApplicationService exposes the applicant's own applications.
type ApplicationService struct {
	store *Store
	files FileRemover
}

// NewApplicationService creates a new ApplicationService instance
func NewApplicationService(store *Store, files FileRemover) *ApplicationService {
	return &ApplicationService{store: store, files: files}
}

// Create starts a new draft application for the user.
func (s *ApplicationService) Create(ctx context.Context, userID uuid.UUID, appType model.ApplicationType) (*model.Application, error) {
	if err := validation.ValidateApplicationType(appType); err != nil {
		return nil, err
	}
	return s.store.CreateApplication(ctx, userID, appType)
}

// ListMine returns the status view of the user's applications.
func (s *ApplicationService) ListMine(ctx context.Context, userID uuid.UUID, offset, limit *int) (*model.ApplicationListDTO, error) {
	return s.store.ListApplications(ctx, model.ApplicationFilter{
		OwnerUserID: &userID,
		Offset:      offset,
		Limit:       limit,
	})
}

// GetOwned returns the application after checking it belongs to the user.
func (s *ApplicationService) GetOwned(ctx context.Context, id, userID uuid.UUID) (*model.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	return app, nil
}

// GetAggregate returns the full application for the applicant's detail view.
func (s *ApplicationService) GetAggregate(ctx context.Context, id, userID uuid.UUID) (*model.ApplicationAggregate, error) {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.store.GetAggregate(ctx, id)
}

// Delete removes a draft application and its uploaded files.
func (s *ApplicationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return err
	}
	keys, err := s.store.DeleteDraft(ctx, id)
	if err != nil {
		return err
	}
	for _, key := range keys {
		s.removeFile(ctx, key)
	}
	return nil
}

// GetEditable returns the application if the user owns it and may still change it.
func (s *ApplicationService) GetEditable(ctx context.Context, id, userID uuid.UUID) (*model.Application, error) {
	app, err := s.GetOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !app.Status.Editable() {
		return nil, fmt.Errorf("%w: application is %s", ErrNotEditable, app.Status)
	}
	return app, nil
}

// ListDocuments returns the supporting documents attached to the application.
func (s *ApplicationService) ListDocuments(ctx context.Context, id, userID uuid.UUID) ([]model.Document, error) {
	if _, err := s.GetOwned(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, id)
}

// AddDocument records an uploaded supporting document. On failure the
// uploaded file is removed again.
func (s *ApplicationService) AddDocument(ctx context.Context, id, userID uuid.UUID, doc *model.Document) error {
	if _, err := s.GetEditable(ctx, id, userID); err != nil {
		s.removeFile(ctx, doc.Key)
		return err
	}
	if err := s.store.AddDocument(ctx, id, doc); err != nil {
		s.removeFile(ctx, doc.Key)
		return err
	}
	slog.InfoContext(ctx, "document attached",
		"applicationID", id,
		"documentID", doc.ID,
		"name", doc.Name)
	return nil
}

// RemoveDocument detaches a supporting document and deletes its file.
func (s *ApplicationService) RemoveDocument(ctx context.Context, id, userID, docID uuid.UUID) error {
	if _, err := s.GetEditable(ctx, id, userID); err != nil {
		return err
	}
	doc, err := s.store.RemoveDocument(ctx, id, docID)
	if err != nil {
		return err
	}
	s.removeFile(ctx, doc.Key)
	return nil
}

func (s *ApplicationService) removeFile(ctx context.Context, key string) {
	if s.files == nil || key == "" {
		return
	}
	if err := s.files.Remove(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to remove uploaded file", "key", key, "error", err)
	}
}
