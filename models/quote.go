package models

import (
	"time"

	"billflow-backend/lifecycle"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Quote struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	CompanyID       uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedByUserID uuid.UUID `gorm:"type:uuid;index;not null"`

	Number   string    `gorm:"uniqueIndex;not null"`
	ClientID uuid.UUID `gorm:"type:uuid;index;not null"`
	Client   Client    `gorm:"foreignKey:ClientID"`

	ProjectName        string `gorm:"not null"`
	ProjectDescription string

	Status  lifecycle.Status `gorm:"type:varchar(20);default:'draft';index"`
	TaxRate decimal.Decimal  `gorm:"type:decimal(5,2);default:8.0"`

	// Stored aggregates, refreshed on every mutation and frozen at send.
	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`

	IssuedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	ValidUntil *time.Time
	SentAt     *time.Time
	AcceptedAt *time.Time
	RejectedAt *time.Time

	// Single-use client approval credential; only the latest issued token
	// authorizes approval.
	ApprovalToken string `gorm:"index"`
	TokenIssuedAt *time.Time

	ConvertedInvoiceID *uuid.UUID `gorm:"type:uuid"`

	Notes string
	Terms string

	// Optimistic lock: every mutating write checks and increments this.
	Version int `gorm:"default:1;not null"`

	Items       []LineItem             `gorm:"polymorphic:Document;polymorphicValue:quote"`
	Assignments []ContractorAssignment `gorm:"polymorphic:Document;polymorphicValue:quote"`
	Activities  []Activity             `gorm:"polymorphic:Document;polymorphicValue:quote"`

	gorm.Model
}

func (q *Quote) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return
}

// ValidityWindow is the length of the quote's validity period, used to
// preserve the original window when an expired quote is resent.
func (q *Quote) ValidityWindow() time.Duration {
	if q.ValidUntil == nil {
		return 0
	}
	return q.ValidUntil.Sub(q.IssuedAt)
}
