package models

import (
	"time"

	"billflow-backend/billing"
	"billflow-backend/lifecycle"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
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

	Subtotal  decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`

	IssuedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	DueDate  *time.Time
	SentAt   *time.Time
	PaidDate *time.Time

	// Set when this invoice was created by converting a quote.
	SourceQuoteID *uuid.UUID `gorm:"type:uuid;index"`

	Notes string
	Terms string

	Version int `gorm:"default:1;not null"`

	Items       []LineItem             `gorm:"polymorphic:Document;polymorphicValue:invoice"`
	Assignments []ContractorAssignment `gorm:"polymorphic:Document;polymorphicValue:invoice"`
	Activities  []Activity             `gorm:"polymorphic:Document;polymorphicValue:invoice"`
	Payments    []Payment              `gorm:"foreignKey:InvoiceID"`

	gorm.Model
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}

type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	InvoiceID uuid.UUID `gorm:"type:uuid;index;not null"`

	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency string          `gorm:"type:varchar(3);default:'USD'"`
	Method   string          // e.g. "bank-transfer", "card", "cash"
	// External transaction id from the payment processor, if any.
	Reference string

	Status      billing.PaymentStatus `gorm:"type:varchar(20);default:'completed'"`
	ProcessedAt time.Time             `gorm:"default:CURRENT_TIMESTAMP"`

	CreatedAt time.Time
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
