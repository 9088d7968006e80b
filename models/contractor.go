package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Contractor struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null"`

	Name   string     `gorm:"not null"`
	Email  string
	Phone  string
	Skills StringList `gorm:"type:jsonb;default:'[]'"`

	// Older records carry only the generic Rate; HourlyRate/FlatRate were
	// added later and stay null until set.
	HourlyRate *decimal.Decimal `gorm:"type:decimal(12,2)"`
	FlatRate   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Rate       decimal.Decimal  `gorm:"type:decimal(12,2);default:0.0"`

	Notes    string
	IsActive bool `gorm:"default:true"`

	Assignments []ContractorAssignment `gorm:"foreignKey:ContractorID"`

	gorm.Model
}
