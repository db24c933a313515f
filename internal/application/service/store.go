package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/utils"
)

// Store is the persistence gateway for applications and their child records.
// Every failure is logged here and returned as a *PersistenceError; a missing
// application or business line is reported as ErrNotFound.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store instance
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn against a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) fail(ctx context.Context, op string, appID uuid.UUID, err error) error {
	slog.ErrorContext(ctx, "persistence failure",
		"op", op,
		"applicationID", appID,
		"error", err)
	return &PersistenceError{Op: op, Err: err}
}

// CreateApplication starts a new draft application on step 1.
func (s *Store) CreateApplication(ctx context.Context, ownerID uuid.UUID, appType model.ApplicationType) (*model.Application, error) {
	app := &model.Application{
		Type:        appType,
		Status:      model.ApplicationStatusDraft,
		OwnerUserID: ownerID,
		CurrentStep: 1,
	}
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return nil, s.fail(ctx, "create application", uuid.Nil, err)
	}
	slog.InfoContext(ctx, "application created",
		"applicationID", app.ID,
		"ownerUserID", ownerID,
		"type", appType)
	return app, nil
}

// GetApplication returns the application row.
func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	if err := s.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.fail(ctx, "get application", id, err)
	}
	return &app, nil
}

// ListApplications returns one page of applications, newest first.
func (s *Store) ListApplications(ctx context.Context, filter model.ApplicationFilter) (*model.ApplicationListDTO, error) {
	offset, limit := utils.GetPaginationParams(filter.Offset, filter.Limit)

	query := s.filtered(ctx, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, s.fail(ctx, "count applications", uuid.Nil, err)
	}

	var apps []model.Application
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&apps).Error; err != nil {
		return nil, s.fail(ctx, "list applications", uuid.Nil, err)
	}

	names, err := s.businessNames(ctx, apps)
	if err != nil {
		return nil, err
	}

	items := make([]model.ApplicationSummary, 0, len(apps))
	for _, app := range apps {
		items = append(items, Summarize(app, names[app.ID]))
	}

	return &model.ApplicationListDTO{
		TotalCount: total,
		Items:      items,
		Offset:     offset,
		Limit:      limit,
	}, nil
}

func (s *Store) filtered(ctx context.Context, filter model.ApplicationFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&model.Application{})
	if filter.OwnerUserID != nil {
		query = query.Where("owner_user_id = ?", *filter.OwnerUserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(*filter.Search)) + "%"
		query = query.Where("id IN (?)", s.db.Model(&model.BusinessInformation{}).
			Select("application_id").
			Where("LOWER(business_name) LIKE ?", pattern))
	}
	return query.Session(&gorm.Session{})
}

func (s *Store) businessNames(ctx context.Context, apps []model.Application) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(apps))
	if len(apps) == 0 {
		return names, nil
	}
	ids := make([]uuid.UUID, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}

	var rows []model.BusinessInformation
	if err := s.db.WithContext(ctx).
		Select("application_id", "business_name").
		Where("application_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, s.fail(ctx, "list business names", uuid.Nil, err)
	}
	for _, row := range rows {
		names[row.ApplicationID] = row.BusinessName
	}
	return names, nil
}

// Summarize converts an application row into its list representation.
func Summarize(app model.Application, businessName string) model.ApplicationSummary {
	return model.ApplicationSummary{
		ID:           app.ID,
		Type:         app.Type,
		Status:       app.Status,
		BusinessName: businessName,
		OwnerUserID:  app.OwnerUserID,
		CurrentStep:  app.CurrentStep,
		AdminNotes:   app.AdminNotes,
		CreatedAt:    app.CreatedAt,
		SubmittedAt:  app.SubmittedAt,
		UpdatedAt:    app.UpdatedAt,
	}
}

// UpdateCurrentStep records the step the applicant is on, for resuming.
func (s *Store) UpdateCurrentStep(ctx context.Context, id uuid.UUID, step int) error {
	return s.updateApplication(ctx, "update current step", id, map[string]any{"current_step": step})
}

// UpdateApplicationType changes the step 1 selection.
func (s *Store) UpdateApplicationType(ctx context.Context, id uuid.UUID, appType model.ApplicationType) error {
	return s.updateApplication(ctx, "update application type", id, map[string]any{"type": appType})
}

func (s *Store) updateApplication(ctx context.Context, op string, id uuid.UUID, values map[string]any) error {
	values["updated_at"] = time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&model.Application{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return s.fail(ctx, op, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDraft removes a draft application and every child record. It returns the
// storage keys of uploaded files so the caller can remove them.
func (s *Store) DeleteDraft(ctx context.Context, id uuid.UUID) ([]string, error) {
	var keys []string
	err := s.Transaction(ctx, func(tx *Store) error {
		app, err := tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if app.Status != model.ApplicationStatusDraft {
			return ErrNotEditable
		}

		var docs []model.Document
		if err := tx.db.WithContext(ctx).Where("application_id = ?", id).Find(&docs).Error; err != nil {
			return tx.fail(ctx, "list documents", id, err)
		}
		for _, doc := range docs {
			keys = append(keys, doc.Key)
		}
		var decl model.Declaration
		if err := tx.db.WithContext(ctx).Where("application_id = ?", id).Limit(1).Find(&decl).Error; err != nil {
			return tx.fail(ctx, "get declaration", id, err)
		}
		if decl.SignatureKey != "" {
			keys = append(keys, decl.SignatureKey)
		}

		children := []any{
			&model.BusinessInformation{},
			&model.OwnerInformation{},
			&model.BusinessOperations{},
			&model.BusinessLine{},
			&model.Declaration{},
			&model.Document{},
		}
		for _, child := range children {
			if err := tx.db.WithContext(ctx).Where("application_id = ?", id).Delete(child).Error; err != nil {
				return tx.fail(ctx, "delete application children", id, err)
			}
		}
		if err := tx.db.WithContext(ctx).Delete(&model.Application{}, "id = ?", id).Error; err != nil {
			return tx.fail(ctx, "delete application", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "draft application deleted", "applicationID", id)
	return keys, nil
}

// childRecord is implemented by every 1:1 child model through its embedded ChildModel.
type childRecord[T any] interface {
	*T
	SetApplicationID(id uuid.UUID)
	SetIdentity(id uuid.UUID, createdAt time.Time)
	GetIdentity() (uuid.UUID, time.Time)
}

// getChild returns the child row of an application, or nil when none exists yet.
func getChild[T any](ctx context.Context, s *Store, op string, appID uuid.UUID) (*T, error) {
	var rows []T
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, s.fail(ctx, op, appID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// requireApplication returns ErrNotFound when appID has no application row.
// Child rows only exist under an application.
func (s *Store) requireApplication(ctx context.Context, op string, appID uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Application{}).Where("id = ?", appID).Count(&count).Error; err != nil {
		return s.fail(ctx, op, appID, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// upsertChild updates the existing child row of an application or inserts one.
// The one-to-one cardinality is enforced here rather than by a unique index.
func upsertChild[T any, P childRecord[T]](ctx context.Context, s *Store, op string, appID uuid.UUID, record P) error {
	if err := s.requireApplication(ctx, op, appID); err != nil {
		return err
	}
	existing, err := getChild[T](ctx, s, op, appID)
	if err != nil {
		return err
	}

	record.SetApplicationID(appID)
	if existing == nil {
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			return s.fail(ctx, op, appID, err)
		}
		return nil
	}

	record.SetIdentity(P(existing).GetIdentity())
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return s.fail(ctx, op, appID, err)
	}
	return nil
}

// GetBusinessInformation returns nil when the step has never been saved.
func (s *Store) GetBusinessInformation(ctx context.Context, appID uuid.UUID) (*model.BusinessInformation, error) {
	return getChild[model.BusinessInformation](ctx, s, "get business information", appID)
}

func (s *Store) SaveBusinessInformation(ctx context.Context, appID uuid.UUID, info *model.BusinessInformation) error {
	return upsertChild(ctx, s, "save business information", appID, info)
}

// GetOwnerInformation returns nil when the step has never been saved.
func (s *Store) GetOwnerInformation(ctx context.Context, appID uuid.UUID) (*model.OwnerInformation, error) {
	return getChild[model.OwnerInformation](ctx, s, "get owner information", appID)
}

func (s *Store) SaveOwnerInformation(ctx context.Context, appID uuid.UUID, owner *model.OwnerInformation) error {
	return upsertChild(ctx, s, "save owner information", appID, owner)
}

// GetBusinessOperations returns nil when the step has never been saved.
func (s *Store) GetBusinessOperations(ctx context.Context, appID uuid.UUID) (*model.BusinessOperations, error) {
	return getChild[model.BusinessOperations](ctx, s, "get business operations", appID)
}

func (s *Store) SaveBusinessOperations(ctx context.Context, appID uuid.UUID, ops *model.BusinessOperations) error {
	return upsertChild(ctx, s, "save business operations", appID, ops)
}

// GetDeclaration returns nil when the step has never been saved.
func (s *Store) GetDeclaration(ctx context.Context, appID uuid.UUID) (*model.Declaration, error) {
	return getChild[model.Declaration](ctx, s, "get declaration", appID)
}

func (s *Store) SaveDeclaration(ctx context.Context, appID uuid.UUID, decl *model.Declaration) error {
	return upsertChild(ctx, s, "save declaration", appID, decl)
}

// ListBusinessLines returns the lines of an application in the order they were added.
func (s *Store) ListBusinessLines(ctx context.Context, appID uuid.UUID) ([]model.BusinessLine, error) {
	lines := make([]model.BusinessLine, 0)
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("created_at ASC").
		Find(&lines).Error; err != nil {
		return nil, s.fail(ctx, "list business lines", appID, err)
	}
	return lines, nil
}

func (s *Store) AddBusinessLine(ctx context.Context, appID uuid.UUID, line *model.BusinessLine) error {
	if err := s.requireApplication(ctx, "add business line", appID); err != nil {
		return err
	}
	line.ApplicationID = appID
	if err := s.db.WithContext(ctx).Create(line).Error; err != nil {
		return s.fail(ctx, "add business line", appID, err)
	}
	return nil
}

// UpdateBusinessLine replaces the editable fields of one line.
func (s *Store) UpdateBusinessLine(ctx context.Context, appID, lineID uuid.UUID, in model.BusinessLineInput) (*model.BusinessLine, error) {
	var line model.BusinessLine
	if err := s.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", lineID, appID).
		First(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.fail(ctx, "get business line", appID, err)
	}
	line.Apply(in)
	if err := s.db.WithContext(ctx).Save(&line).Error; err != nil {
		return nil, s.fail(ctx, "update business line", appID, err)
	}
	return &line, nil
}

func (s *Store) RemoveBusinessLine(ctx context.Context, appID, lineID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", lineID, appID).
		Delete(&model.BusinessLine{})
	if result.Error != nil {
		return s.fail(ctx, "remove business line", appID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, appID uuid.UUID) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", appID).
		Order("created_at ASC").
		Find(&docs).Error; err != nil {
		return nil, s.fail(ctx, "list documents", appID, err)
	}
	return docs, nil
}

func (s *Store) AddDocument(ctx context.Context, appID uuid.UUID, doc *model.Document) error {
	if err := s.requireApplication(ctx, "add document", appID); err != nil {
		return err
	}
	doc.ApplicationID = appID
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return s.fail(ctx, "add document", appID, err)
	}
	return nil
}

// RemoveDocument deletes the document row and returns it so its file can be removed.
func (s *Store) RemoveDocument(ctx context.Context, appID, docID uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := s.db.WithContext(ctx).
		Where("id = ? AND application_id = ?", docID, appID).
		First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.fail(ctx, "get document", appID, err)
	}
	if err := s.db.WithContext(ctx).Delete(&doc).Error; err != nil {
		return nil, s.fail(ctx, "remove document", appID, err)
	}
	return &doc, nil
}

// GetAggregate re-fetches the application and all of its child records.
func (s *Store) GetAggregate(ctx context.Context, id uuid.UUID) (*model.ApplicationAggregate, error) {
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	agg := &model.ApplicationAggregate{Application: *app}

	if agg.BusinessInformation, err = s.GetBusinessInformation(ctx, id); err != nil {
		return nil, err
	}
	if agg.OwnerInformation, err = s.GetOwnerInformation(ctx, id); err != nil {
		return nil, err
	}
	if agg.BusinessOperations, err = s.GetBusinessOperations(ctx, id); err != nil {
		return nil, err
	}
	if agg.BusinessLines, err = s.ListBusinessLines(ctx, id); err != nil {
		return nil, err
	}
	if agg.Declaration, err = s.GetDeclaration(ctx, id); err != nil {
		return nil, err
	}
	if agg.Documents, err = s.ListDocuments(ctx, id); err != nil {
		return nil, err
	}
	return agg, nil
}
