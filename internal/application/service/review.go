package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
	"github.com/OpenBPLS/bpls/internal/events"
)

// ReviewService backs the admin console. Status updates bypass the wizard and
// act on the application row directly.
type ReviewService struct {
	store     *Store
	sm        *StatusMachine
	publisher events.Publisher
}

// NewReviewService creates a new ReviewService instance
func NewReviewService(store *Store, sm *StatusMachine, publisher events.Publisher) *ReviewService {
	return &ReviewService{store: store, sm: sm, publisher: publisher}
}

// ListApplications returns a filtered page of applications.
func (s *ReviewService) ListApplications(ctx context.Context, filter model.ApplicationFilter) (*model.ApplicationListDTO, error) {
	return s.store.ListApplications(ctx, filter)
}

// GetApplication returns the full aggregate for the detail view.
func (s *ReviewService) GetApplication(ctx context.Context, id uuid.UUID) (*model.ApplicationAggregate, error) {
	return s.store.GetAggregate(ctx, id)
}

// UpdateStatus sets the status of an application with optional reviewer notes.
func (s *ReviewService) UpdateStatus(ctx context.Context, id uuid.UUID, req model.UpdateStatusDTO, reviewer uuid.UUID) (*model.Application, error) {
	var (
		app    *model.Application
		change *model.StatusChange
	)
	err := s.store.Transaction(ctx, func(tx *Store) error {
		var err error
		app, err = tx.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		change, err = s.sm.TransitionByAdmin(ctx, tx.db, app, req, reviewer)
		return err
	})
	if err != nil {
		slog.WarnContext(ctx, "status update rejected",
			"applicationID", id,
			"status", req.Status,
			"error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "application status updated",
		"applicationID", id,
		"from", change.From,
		"to", change.To,
		"reviewer", reviewer)
	notifyStatusChange(ctx, s.publisher, *change)
	return app, nil
}

// Dashboard aggregates counts by status and type and submissions per day over
// the last days days, oldest day first.
func (s *ReviewService) Dashboard(ctx context.Context, days int) (*model.DashboardStats, error) {
	if days <= 0 {
		days = 30
	}
	db := s.store.db.WithContext(ctx)

	stats := &model.DashboardStats{
		ByStatus: make(map[model.ApplicationStatus]int64, len(model.AllStatuses)),
		ByType:   make(map[model.ApplicationType]int64),
	}
	for _, status := range model.AllStatuses {
		stats.ByStatus[status] = 0
	}

	var statusRows []struct {
		Status model.ApplicationStatus
		Count  int64
	}
	if err := db.Model(&model.Application{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, s.store.fail(ctx, "count applications by status", uuid.Nil, err)
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	var typeRows []struct {
		Type  model.ApplicationType
		Count int64
	}
	if err := db.Model(&model.Application{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Scan(&typeRows).Error; err != nil {
		return nil, s.store.fail(ctx, "count applications by type", uuid.Nil, err)
	}
	for _, row := range typeRows {
		stats.ByType[row.Type] = row.Count
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))
	var submitted []model.Application
	if err := db.Select("id", "submitted_at").
		Where("submitted_at IS NOT NULL AND submitted_at >= ?", since).
		Find(&submitted).Error; err != nil {
		return nil, s.store.fail(ctx, "list submissions", uuid.Nil, err)
	}

	perDay := make(map[string]int64, days)
	for _, app := range submitted {
		perDay[app.SubmittedAt.UTC().Format(time.DateOnly)]++
	}
	stats.Submissions = make([]model.DailyCount, 0, days)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		day := d.Format(time.DateOnly)
		stats.Submissions = append(stats.Submissions, model.DailyCount{Day: day, Count: perDay[day]})
	}
	return stats, nil
}
