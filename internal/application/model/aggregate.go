package model

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationAggregate combines an application with all of its child records.
// It is read-only; each part is changed through its own save path and the
// aggregate is rebuilt by fetching again.
type ApplicationAggregate struct {
	Application         Application          `json:"application"`
	BusinessInformation *BusinessInformation `json:"businessInformation,omitempty"`
	OwnerInformation    *OwnerInformation    `json:"ownerInformation,omitempty"`
	BusinessOperations  *BusinessOperations  `json:"businessOperations,omitempty"`
	BusinessLines       []BusinessLine       `json:"businessLines"`
	Declaration         *Declaration         `json:"declaration,omitempty"`
	Documents           []Document           `json:"documents"`
}

// ApplicationFilter narrows an application listing. Nil fields are ignored.
type ApplicationFilter struct {
	OwnerUserID *uuid.UUID
	Status      *ApplicationStatus
	Type        *ApplicationType
	Search      *string // matched against the business name
	Offset      *int
	Limit       *int
}

// ApplicationSummary is one row of the applicant status view and the admin list.
type ApplicationSummary struct {
	ID           uuid.UUID         `json:"id"`
	Type         ApplicationType   `json:"type"`
	Status       ApplicationStatus `json:"status"`
	BusinessName string            `json:"businessName"`
	OwnerUserID  uuid.UUID         `json:"ownerUserId"`
	CurrentStep  int               `json:"currentStep"`
	AdminNotes   *string           `json:"adminNotes,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	SubmittedAt  *time.Time        `json:"submittedAt,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ApplicationListDTO is a page of application summaries.
type ApplicationListDTO struct {
	TotalCount int64                `json:"totalCount"`
	Items      []ApplicationSummary `json:"items"`
	Offset     int                  `json:"offset"`
	Limit      int                  `json:"limit"`
}

// CreateApplicationDTO starts a new application.
type CreateApplicationDTO struct {
	Type ApplicationType `json:"type" binding:"required"`
}

// UpdateStatusDTO is the admin console's status change request.
type UpdateStatusDTO struct {
	Status ApplicationStatus `json:"status" binding:"required"`
	Notes  *string           `json:"notes,omitempty"`
}

// StatusChange describes one applied status transition.
type StatusChange struct {
	ApplicationID uuid.UUID         `json:"applicationId"`
	OwnerUserID   uuid.UUID         `json:"ownerUserId"`
	From          ApplicationStatus `json:"from"`
	To            ApplicationStatus `json:"to"`
	Notes         *string           `json:"notes,omitempty"`
	ChangedBy     *uuid.UUID        `json:"changedBy,omitempty"`
	ChangedAt     time.Time         `json:"changedAt"`
}

// DashboardStats feeds the admin dashboard.
type DashboardStats struct {
	Total       int64                       `json:"total"`
	ByStatus    map[ApplicationStatus]int64 `json:"byStatus"`
	ByType      map[ApplicationType]int64   `json:"byType"`
	Submissions []DailyCount                `json:"submissions"`
}

// DailyCount is the number of submissions on one calendar day (UTC).
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Models returns every persisted type, for migrations.
func Models() []any {
	return []any{
		&Application{},
		&BusinessInformation{},
		&OwnerInformation{},
		&BusinessOperations{},
		&BusinessLine{},
		&Declaration{},
		&Document{},
	}
}
