package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApplicationType represents the kind of permit being requested.
type ApplicationType string

const (
	ApplicationTypeNew       ApplicationType = "new"
	ApplicationTypeRenewal   ApplicationType = "renewal"
	ApplicationTypeAmendment ApplicationType = "amendment"
)

// Valid reports whether t is one of the known application types.
func (t ApplicationType) Valid() bool {
	switch t {
	case ApplicationTypeNew, ApplicationTypeRenewal, ApplicationTypeAmendment:
		return true
	}
	return false
}

// ParseApplicationType converts a raw string into an ApplicationType.
func ParseApplicationType(raw string) (ApplicationType, error) {
	t := ApplicationType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("invalid application type %q", raw)
	}
	return t, nil
}

// ApplicationStatus represents where an application is in its review lifecycle.
type ApplicationStatus string

const (
	ApplicationStatusDraft                  ApplicationStatus = "draft"
	ApplicationStatusSubmitted              ApplicationStatus = "submitted"
	ApplicationStatusUnderReview            ApplicationStatus = "under_review"
	ApplicationStatusApproved               ApplicationStatus = "approved"
	ApplicationStatusRejected               ApplicationStatus = "rejected"
	ApplicationStatusRequiresAdditionalInfo ApplicationStatus = "requires_additional_info"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ApplicationStatus{
	ApplicationStatusDraft,
	ApplicationStatusSubmitted,
	ApplicationStatusUnderReview,
	ApplicationStatusApproved,
	ApplicationStatusRejected,
	ApplicationStatusRequiresAdditionalInfo,
}

// Valid reports whether s is one of the known statuses.
func (s ApplicationStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Editable reports whether the applicant may still change the application's content.
func (s ApplicationStatus) Editable() bool {
	return s == ApplicationStatusDraft || s == ApplicationStatusRequiresAdditionalInfo
}

// Application is the top-level permit request a user fills out through the wizard.
type Application struct {
	BaseModel
	Type        ApplicationType   `gorm:"type:varchar(20);column:type;not null" json:"type"`
	Status      ApplicationStatus `gorm:"type:varchar(40);column:status;not null;index" json:"status"`
	OwnerUserID uuid.UUID         `gorm:"type:uuid;column:owner_user_id;not null;index" json:"ownerUserId"`
	CurrentStep int               `gorm:"column:current_step;not null;default:1" json:"currentStep"`
	SubmittedAt *time.Time        `gorm:"column:submitted_at" json:"submittedAt,omitempty"`
	AdminNotes  *string           `gorm:"type:text;column:admin_notes" json:"adminNotes,omitempty"`
	ReviewedBy  *uuid.UUID        `gorm:"type:uuid;column:reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time        `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
}

func (a *Application) TableName() string {
	return "applications"
}
