package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Company struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key"`
	Name    string    `gorm:"not null"`
	Address string
	Email   string
	Phone   string

	// Defaults applied to new documents.
	DefaultTaxRate    decimal.Decimal `gorm:"type:decimal(5,2);default:8.0"`
	QuoteValidityDays int             `gorm:"default:30"`

	// Sequential document number counters, advanced under a row lock by the
	// creating transaction.
	QuoteSequence   int `gorm:"default:0"`
	InvoiceSequence int `gorm:"default:0"`

	// Skill list and email templates, editable from the profile screen.
	Settings JSONB `gorm:"type:jsonb;default:'{}'"`

	EmailNotifications bool `gorm:"default:true"`
	SMSNotifications   bool `gorm:"default:false"`

	Users       []User            `gorm:"foreignKey:CompanyID"`
	Clients     []Client          `gorm:"foreignKey:CompanyID"`
	Contractors []Contractor      `gorm:"foreignKey:CompanyID"`
	Services    []ServiceTemplate `gorm:"foreignKey:CompanyID"`
	Quotes      []Quote           `gorm:"foreignKey:CompanyID"`
	Invoices    []Invoice         `gorm:"foreignKey:CompanyID"`
}

// DefaultSettings enumerates the settings a fresh company starts with.
func DefaultSettings() JSONB {
	return JSONB{
		"skills": []interface{}{
			"plumbing", "electrical", "carpentry", "painting", "landscaping", "general labor",
		},
		"quoteEmailTemplate":   "Hi [ClientName], your quote [Number] for [Project] is ready. Total: [GrandTotal].",
		"invoiceEmailTemplate": "Hi [ClientName], invoice [Number] for [Project] is due on [DueDate]. Amount due: [BalanceDue].",
		"reminderSMSTemplate":  "Reminder from [CompanyName]: invoice [Number] ([BalanceDue]) is overdue.",
	}
}
