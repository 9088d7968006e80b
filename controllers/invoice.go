// controllers/invoice.go
package controllers

import (
	"errors"
	"net/http"
	"time"

	"billflow-backend/billing"
	"billflow-backend/config"
	"billflow-backend/lifecycle"
	"billflow-backend/models"
	"billflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateInvoiceInput struct {
	ClientID           uuid.UUID         `json:"clientId" binding:"required"`
	ProjectName        string            `json:"projectName" binding:"required"`
	ProjectDescription string            `json:"projectDescription"`
	TaxRate            *decimal.Decimal  `json:"taxRate"`
	DueDate            *time.Time        `json:"dueDate"`
	Items              []LineItemInput   `json:"items"`
	Assignments        []AssignmentInput `json:"assignments"`
	Notes              string            `json:"notes"`
	Terms              string            `json:"terms"`
}

// UpdateInvoiceInput carries both item edits (draft only) and detail edits
// (allowed until the invoice is paid or cancelled).
type UpdateInvoiceInput struct {
	ProjectName        *string            `json:"projectName"`
	ProjectDescription *string            `json:"projectDescription"`
	TaxRate            *decimal.Decimal   `json:"taxRate"`
	DueDate            *time.Time         `json:"dueDate"`
	Items              *[]LineItemInput   `json:"items"`
	Assignments        *[]AssignmentInput `json:"assignments"`
	Notes              *string            `json:"notes"`
	Terms              *string            `json:"terms"`
}

// invoiceResponse recomputes every aggregate from the authoritative record.
func invoiceResponse(invoice *models.Invoice) gin.H {
	contractorsTotal := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
	grandTotal := billing.GrandTotal(invoice.Total, contractorsTotal)
	balanceDue := billing.BalanceDue(grandTotal, models.BillingPayments(invoice.Payments))
	return gin.H{
		"invoice":          invoice,
		"contractorsTotal": contractorsTotal.Round(2),
		"grandTotal":       grandTotal.Round(2),
		"balanceDue":       balanceDue.Round(2),
		"editable":         lifecycle.CanEdit(lifecycle.DocInvoice, invoice.Status),
		"actions":          lifecycle.AllowedTransitions(lifecycle.DocInvoice, invoice.Status),
	}
}

// CreateInvoice creates a new invoice in draft status
func CreateInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	var input CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// Validate client exists in the same company
	var client models.Client
	if err := config.DB.Where("company_id = ? AND id = ?", companyUUID, input.ClientID).
		First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusBadRequest, "Client not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	taxRate := company.DefaultTaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	dueDate := input.DueDate
	if dueDate == nil {
		v := time.Now().AddDate(0, 0, 30)
		dueDate = &v
	}

	invoice := models.Invoice{
		ID:                 uuid.New(),
		CompanyID:          companyUUID,
		CreatedByUserID:    userUUID,
		ClientID:           input.ClientID,
		ProjectName:        input.ProjectName,
		ProjectDescription: input.ProjectDescription,
		Status:             lifecycle.StatusDraft,
		TaxRate:            taxRate,
		IssuedAt:           time.Now(),
		DueDate:            dueDate,
		Notes:              input.Notes,
		Terms:              input.Terms,
		Version:            1,
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	number, err := nextDocumentNumber(tx, companyUUID, "INV")
	if err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to allocate invoice number")
		return
	}
	invoice.Number = number

	items, err := buildLineItems(tx, companyUUID, "invoice", invoice.ID, input.Items)
	if err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	assignments, err := buildAssignments(tx, companyUUID, "invoice", invoice.ID, input.Assignments)
	if err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	invoice.Items = items
	invoice.Assignments = assignments

	if _, err := invoiceTotals(&invoice); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}

	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create invoice")
		return
	}

	logActivity(tx, "invoice", invoice.ID, &userUUID, "Invoice created")
	tx.Commit()

	invoice.Client = client
	c.JSON(http.StatusCreated, invoiceResponse(&invoice))
}

// GetInvoices retrieves all invoices for the company
func GetInvoices(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var invoices []models.Invoice
	query := config.DB.Preload("Items").Preload("Assignments").Preload("Payments").
		Preload("Client").Where("company_id = ?", companyUUID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("issued_at desc").Find(&invoices).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve invoices")
		return
	}

	c.JSON(http.StatusOK, invoices)
}

// GetInvoice retrieves a specific invoice with recomputed totals
func GetInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	var invoice models.Invoice
	if err := config.DB.Preload("Items").Preload("Assignments").Preload("Assignments.Contractor").
		Preload("Payments").Preload("Client").Preload("Activities").
		Where("company_id = ? AND id = ?", companyUUID, invoiceUUID).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, invoiceResponse(&invoice))
}

// UpdateInvoice edits an invoice. Items and assignments only change while
// the invoice is a draft; details (project, due date, notes, terms) stay
// editable until the invoice is paid or cancelled.
func UpdateInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	var input UpdateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var invoice models.Invoice
	if err := tx.Preload("Items").Preload("Assignments").Preload("Payments").
		Where("company_id = ? AND id = ?", companyUUID, invoiceUUID).
		First(&invoice).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	itemEdit := input.Items != nil || input.Assignments != nil || input.TaxRate != nil
	if itemEdit && !lifecycle.CanEdit(lifecycle.DocInvoice, invoice.Status) {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusConflict, "Invoice items can no longer be edited in its current state")
		return
	}
	if invoice.Status == lifecycle.StatusPaid || invoice.Status == lifecycle.StatusCancelled {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusConflict, "Invoice can no longer be edited in its current state")
		return
	}

	if input.ProjectName != nil {
		invoice.ProjectName = *input.ProjectName
	}
	if input.ProjectDescription != nil {
		invoice.ProjectDescription = *input.ProjectDescription
	}
	if input.TaxRate != nil {
		invoice.TaxRate = *input.TaxRate
	}
	if input.DueDate != nil {
		invoice.DueDate = input.DueDate
	}
	if input.Notes != nil {
		invoice.Notes = *input.Notes
	}
	if input.Terms != nil {
		invoice.Terms = *input.Terms
	}

	if input.Items != nil {
		if err := tx.Where("document_type = ? AND document_id = ?", "invoice", invoice.ID).
			Delete(&models.LineItem{}).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to clear existing items")
			return
		}
		items, err := buildLineItems(tx, companyUUID, "invoice", invoice.ID, *input.Items)
		if err != nil {
			tx.Rollback()
			utils.RespondWithDomainError(c, err)
			return
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				tx.Rollback()
				utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save items")
				return
			}
		}
		invoice.Items = items
	}

	if input.Assignments != nil {
		var funded []models.ContractorAssignment
		for _, a := range invoice.Assignments {
			if a.Funded() {
				funded = append(funded, a)
			}
		}
		if err := tx.Where("document_type = ? AND document_id = ? AND NOT (billed_separately = true AND include_in_total = false)",
			"invoice", invoice.ID).Delete(&models.ContractorAssignment{}).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to clear existing assignments")
			return
		}
		assignments, err := buildAssignments(tx, companyUUID, "invoice", invoice.ID, *input.Assignments)
		if err != nil {
			tx.Rollback()
			utils.RespondWithDomainError(c, err)
			return
		}
		if len(assignments) > 0 {
			if err := tx.Create(&assignments).Error; err != nil {
				tx.Rollback()
				utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save assignments")
				return
			}
		}
		invoice.Assignments = append(funded, assignments...)
	}

	updates := map[string]interface{}{
		"project_name":        invoice.ProjectName,
		"project_description": invoice.ProjectDescription,
		"due_date":            invoice.DueDate,
		"notes":               invoice.Notes,
		"terms":               invoice.Terms,
	}
	if itemEdit {
		if _, err := invoiceTotals(&invoice); err != nil {
			tx.Rollback()
			utils.RespondWithDomainError(c, err)
			return
		}
		updates["tax_rate"] = invoice.TaxRate
		updates["subtotal"] = invoice.Subtotal
		updates["tax_amount"] = invoice.TaxAmount
		updates["total"] = invoice.Total
	}

	// Version-checked write: a concurrent edit since load rolls everything
	// back, item and assignment rows included.
	if err := versionedUpdate(tx, &models.Invoice{}, invoice.ID, invoice.Version, updates); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	invoice.Version++

	logActivity(tx, "invoice", invoice.ID, &userUUID, "Invoice updated")
	tx.Commit()

	c.JSON(http.StatusOK, invoiceResponse(&invoice))
}

// DeleteInvoice deletes a draft invoice and cascades to its items,
// assignments and payment records
func DeleteInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var invoice models.Invoice
	if err := tx.Where("company_id = ? AND id = ?", companyUUID, invoiceUUID).
		First(&invoice).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if invoice.Status != lifecycle.StatusDraft {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusConflict, "Only draft invoices can be deleted")
		return
	}

	if err := tx.Where("document_type = ? AND document_id = ?", "invoice", invoice.ID).
		Delete(&models.LineItem{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete invoice items")
		return
	}
	if err := tx.Where("document_type = ? AND document_id = ?", "invoice", invoice.ID).
		Delete(&models.ContractorAssignment{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete invoice assignments")
		return
	}
	if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.Payment{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete payment records")
		return
	}
	if err := tx.Where("document_type = ? AND document_id = ?", "invoice", invoice.ID).
		Delete(&models.Activity{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete invoice activity")
		return
	}
	if err := tx.Delete(&invoice).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete invoice")
		return
	}

	tx.Commit()

	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}
