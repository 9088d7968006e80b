package models

import (
	"time"

	"billflow-backend/billing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LineItem is a billable row on a quote or invoice (polymorphic parent).
type LineItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	DocumentType string    `gorm:"type:varchar(20);index:idx_item_document;not null"`
	DocumentID   uuid.UUID `gorm:"type:uuid;index:idx_item_document;not null"`

	Name        string `gorm:"not null"`
	Description string

	Quantity  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Always quantity × unit price; recomputed on every write, never set
	// independently.
	Total   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Taxable bool            `gorm:"default:true"`

	// Display ordering only; not part of totals.
	SortOrder int `gorm:"default:0"`

	ContractorID      *uuid.UUID `gorm:"type:uuid"`
	ServiceTemplateID *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (li *LineItem) BeforeCreate(tx *gorm.DB) (err error) {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return
}

// ContractorAssignment is a contractor's cost entry on a quote or invoice,
// tracked separately from service line items.
type ContractorAssignment struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	DocumentType string    `gorm:"type:varchar(20);index:idx_assignment_document;not null"`
	DocumentID   uuid.UUID `gorm:"type:uuid;index:idx_assignment_document;not null"`

	ContractorID uuid.UUID  `gorm:"type:uuid;index;not null"`
	Contractor   Contractor `gorm:"foreignKey:ContractorID"`

	Skills StringList `gorm:"type:jsonb;not null"`

	RateType billing.RateType `gorm:"type:varchar(10);not null"`
	// Required and > 0 when hourly, null otherwise.
	Hours *decimal.Decimal `gorm:"type:decimal(8,2)"`
	// Derived from the contractor's rates at assignment time, then
	// independently editable while the parent is editable.
	Cost decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	IncludeInTotal bool `gorm:"default:true"`

	// BilledSeparately + IncludeInTotal=false means the fee is funded
	// through an independent payment request; the assignment is then
	// locked except for display.
	BilledSeparately bool `gorm:"default:false"`
	BilledAt         *time.Time
	PaymentReference string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ca *ContractorAssignment) BeforeCreate(tx *gorm.DB) (err error) {
	if ca.ID == uuid.Nil {
		ca.ID = uuid.New()
	}
	return
}

// Funded reports whether this assignment is paid for independently and
// excluded from the parent document's grand total.
func (ca *ContractorAssignment) Funded() bool {
	return ca.BilledSeparately && !ca.IncludeInTotal
}

// BillingItems maps line items into the totals engine's input shape.
func BillingItems(items []LineItem) []billing.Item {
	out := make([]billing.Item, 0, len(items))
	for _, li := range items {
		out = append(out, billing.Item{
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			StoredTotal: li.Total,
			Taxable:     li.Taxable,
		})
	}
	return out
}

// BillingAssignments maps contractor assignments into the engine's input shape.
func BillingAssignments(assignments []ContractorAssignment) []billing.Assignment {
	out := make([]billing.Assignment, 0, len(assignments))
	for _, ca := range assignments {
		out = append(out, billing.Assignment{
			Cost:             ca.Cost,
			IncludeInTotal:   ca.IncludeInTotal,
			BilledSeparately: ca.BilledSeparately,
		})
	}
	return out
}

// BillingPayments maps payment rows into the engine's input shape.
func BillingPayments(payments []Payment) []billing.Payment {
	out := make([]billing.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, billing.Payment{Amount: p.Amount, Status: p.Status})
	}
	return out
}
