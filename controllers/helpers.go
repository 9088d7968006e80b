// controllers/helpers.go
package controllers

import (
	"fmt"
	"log"
	"time"

	"billflow-backend/billing"
	"billflow-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// getCompanyUUID pulls the authenticated company id out of the gin context.
func getCompanyUUID(c *gin.Context) (uuid.UUID, bool) {
	companyID, exists := c.Get("companyId")
	if !exists {
		return uuid.Nil, false
	}
	companyUUID, err := uuid.Parse(companyID.(string))
	if err != nil {
		return uuid.Nil, false
	}
	return companyUUID, true
}

// nextDocumentNumber issues the next sequential number for a company, e.g.
// QT-2026-0042. The counter column is advanced under a row lock held for the
// duration of the creating transaction, so two concurrent creates cannot draw
// the same number and deleted documents never free a number for reuse.
func nextDocumentNumber(tx *gorm.DB, companyID uuid.UUID, prefix string) (string, error) {
	var company models.Company
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&company, "id = ?", companyID).Error; err != nil {
		return "", err
	}

	column := "quote_sequence"
	seq := company.QuoteSequence + 1
	if prefix == "INV" {
		column = "invoice_sequence"
		seq = company.InvoiceSequence + 1
	}
	if err := tx.Model(&models.Company{}).Where("id = ?", companyID).
		Update(column, seq).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d-%04d", prefix, time.Now().Year(), seq), nil
}

// logActivity appends a row to a document's activity trail.
func logActivity(tx *gorm.DB, docType string, docID uuid.UUID, userID *uuid.UUID, message string) {
	if err := tx.Create(&models.Activity{
		DocumentType: docType,
		DocumentID:   docID,
		Message:      message,
		UserID:       userID,
	}).Error; err != nil {
		log.Printf("Failed to log activity for %s %s: %v", docType, docID, err)
	}
}

// quoteTotals recomputes a quote's stored aggregates from its current items.
// Inconsistent stored item totals are logged and the derived values used.
func quoteTotals(quote *models.Quote) (billing.DocumentTotals, error) {
	totals, warnings, err := billing.ComputeDocumentTotals(models.BillingItems(quote.Items), quote.TaxRate)
	if err != nil {
		return billing.DocumentTotals{}, err
	}
	for _, w := range warnings {
		log.Printf("Quote %s: %v", quote.Number, w)
	}
	quote.Subtotal = totals.Subtotal
	quote.TaxAmount = totals.TaxAmount
	quote.Total = totals.Total
	return totals, nil
}

// invoiceTotals is quoteTotals for invoices.
func invoiceTotals(invoice *models.Invoice) (billing.DocumentTotals, error) {
	totals, warnings, err := billing.ComputeDocumentTotals(models.BillingItems(invoice.Items), invoice.TaxRate)
	if err != nil {
		return billing.DocumentTotals{}, err
	}
	for _, w := range warnings {
		log.Printf("Invoice %s: %v", invoice.Number, w)
	}
	invoice.Subtotal = totals.Subtotal
	invoice.TaxAmount = totals.TaxAmount
	invoice.Total = totals.Total
	return totals, nil
}

// quoteGrandTotal is the amount the client is asked to approve.
func quoteGrandTotal(quote *models.Quote) string {
	contractors := billing.ContractorsTotal(models.BillingAssignments(quote.Assignments))
	return "$" + billing.GrandTotal(quote.Total, contractors).Round(2).String()
}

// invoiceBalanceDue is the remaining amount owed, as a display string.
func invoiceBalanceDue(invoice *models.Invoice) string {
	contractors := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
	grand := billing.GrandTotal(invoice.Total, contractors)
	return "$" + billing.BalanceDue(grand, models.BillingPayments(invoice.Payments)).Round(2).String()
}

// versionedUpdate writes status-bearing fields guarded by the optimistic
// version check. Zero rows affected means a concurrent writer got there
// first.
func versionedUpdate(tx *gorm.DB, model interface{}, id uuid.UUID, version int, updates map[string]interface{}) error {
	updates["version"] = gorm.Expr("version + 1")
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &billing.ErrConcurrentModification{Entity: fmt.Sprintf("%T", model), ID: id.String()}
	}
	return nil
}
