package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel defines the common identity and timestamp columns of every table.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;column:id;not null;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// BeforeCreate is a GORM hook that is triggered before a new record is created.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if base.ID == uuid.Nil {
		base.ID, err = uuid.NewRandom()
		if err != nil {
			return
		}
	}
	now := time.Now().UTC()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
	return
}

// BeforeUpdate is a GORM hook that is triggered before an existing record is updated.
func (base *BaseModel) BeforeUpdate(tx *gorm.DB) (err error) {
	base.UpdatedAt = time.Now().UTC()
	return
}

// ChildModel is embedded by every record owned by an application.
type ChildModel struct {
	BaseModel
	ApplicationID uuid.UUID `gorm:"type:uuid;column:application_id;not null;index" json:"applicationId"`
}

// GetApplicationID returns the owning application id.
func (c *ChildModel) GetApplicationID() uuid.UUID {
	return c.ApplicationID
}

// SetApplicationID assigns the owning application id.
func (c *ChildModel) SetApplicationID(id uuid.UUID) {
	c.ApplicationID = id
}

// SetIdentity copies the primary key and creation time of an existing row so that
// a Save issues an UPDATE instead of an INSERT.
func (c *ChildModel) SetIdentity(id uuid.UUID, createdAt time.Time) {
	c.ID = id
	c.CreatedAt = createdAt
}

// GetIdentity returns the primary key and creation time.
func (c *ChildModel) GetIdentity() (uuid.UUID, time.Time) {
	return c.ID, c.CreatedAt
}
