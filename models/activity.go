package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity is one row of a document's free-text activity log.
type Activity struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	DocumentType string    `gorm:"type:varchar(20);index:idx_activity_document;not null"`
	DocumentID   uuid.UUID `gorm:"type:uuid;index:idx_activity_document;not null"`

	Message string     `gorm:"type:text;not null"`
	UserID  *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
}

func (a *Activity) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
