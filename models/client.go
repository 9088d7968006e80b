package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Client struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	CompanyID       uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedByUserID uuid.UUID `gorm:"type:uuid;index;not null"`

	Name         string `gorm:"not null"`
	ContactName  string
	Email        string `gorm:"index"`
	Phone        string
	Address      string
	Notes        string
	TotalBilled  decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`
	TotalPaid    decimal.Decimal `gorm:"type:decimal(12,2);default:0.0"`
	LastInvoiced *time.Time
	IsActive     bool `gorm:"default:true"`

	Quotes   []Quote   `gorm:"foreignKey:ClientID"`
	Invoices []Invoice `gorm:"foreignKey:ClientID"`

	gorm.Model
}
