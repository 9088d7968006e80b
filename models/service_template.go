package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceTemplate struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	CompanyID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Name        string    `gorm:"not null"`
	Description string
	Rate        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PricingType string          `gorm:"type:varchar(20);default:'fixed'"` // 'fixed' or 'hourly'
	Taxable     bool            `gorm:"default:true"`
	IsActive    bool            `gorm:"default:true"`

	LineItems []LineItem `gorm:"foreignKey:ServiceTemplateID"`
}
