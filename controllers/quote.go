// controllers/quote.go
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

// LineItemInput defines one billable row on a quote or invoice
type LineItemInput struct {
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Quantity          decimal.Decimal  `json:"quantity"`
	UnitPrice         *decimal.Decimal `json:"unitPrice"`
	Taxable           *bool            `json:"taxable"`
	SortOrder         int              `json:"sortOrder"`
	ContractorID      *uuid.UUID       `json:"contractorId"`
	ServiceTemplateID *uuid.UUID       `json:"serviceTemplateId"`
}

// AssignmentInput defines a contractor cost entry on a quote or invoice
type AssignmentInput struct {
	ContractorID   uuid.UUID        `json:"contractorId" binding:"required"`
	Skills         []string         `json:"skills" binding:"required,min=1"`
	RateType       billing.RateType `json:"rateType" binding:"required,oneof=hourly flat"`
	Hours          *decimal.Decimal `json:"hours"`
	Cost           *decimal.Decimal `json:"cost"` // overrides the derived cost
	IncludeInTotal *bool            `json:"includeInTotal"`
	Notes          string           `json:"notes"`
}

type CreateQuoteInput struct {
	ClientID           uuid.UUID         `json:"clientId" binding:"required"`
	ProjectName        string            `json:"projectName" binding:"required"`
	ProjectDescription string            `json:"projectDescription"`
	TaxRate            *decimal.Decimal  `json:"taxRate"`
	ValidUntil         *time.Time        `json:"validUntil"`
	Items              []LineItemInput   `json:"items"`
	Assignments        []AssignmentInput `json:"assignments"`
	Notes              string            `json:"notes"`
	Terms              string            `json:"terms"`
}

type UpdateQuoteInput struct {
	ProjectName        *string            `json:"projectName"`
	ProjectDescription *string            `json:"projectDescription"`
	TaxRate            *decimal.Decimal   `json:"taxRate"`
	ValidUntil         *time.Time         `json:"validUntil"`
	Items              *[]LineItemInput   `json:"items"`
	Assignments        *[]AssignmentInput `json:"assignments"`
	Notes              *string            `json:"notes"`
	Terms              *string            `json:"terms"`
}

// buildLineItems validates the inputs and materializes line items, resolving
// service templates and always deriving total = quantity × unit price.
func buildLineItems(tx *gorm.DB, companyUUID uuid.UUID, docType string, docID uuid.UUID, inputs []LineItemInput) ([]models.LineItem, error) {
	var items []models.LineItem
	for _, in := range inputs {
		name := in.Name
		description := in.Description
		unitPrice := decimal.Zero
		taxable := true

		if in.ServiceTemplateID != nil {
			var template models.ServiceTemplate
			if err := tx.Where("company_id = ? AND id = ?", companyUUID, *in.ServiceTemplateID).
				First(&template).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, &billing.ErrInvalidInput{Field: "serviceTemplateId", Reason: "service template not found"}
				}
				return nil, err
			}
			if name == "" {
				name = template.Name
			}
			if description == "" {
				description = template.Description
			}
			unitPrice = template.Rate
			taxable = template.Taxable
		}
		if in.UnitPrice != nil {
			unitPrice = *in.UnitPrice
		}
		if in.Taxable != nil {
			taxable = *in.Taxable
		}
		if name == "" {
			return nil, &billing.ErrInvalidInput{Field: "name", Reason: "item name is required"}
		}

		total, err := billing.ItemTotal(in.Quantity, unitPrice)
		if err != nil {
			return nil, err
		}

		items = append(items, models.LineItem{
			DocumentType:      docType,
			DocumentID:        docID,
			Name:              name,
			Description:       description,
			Quantity:          in.Quantity,
			UnitPrice:         unitPrice,
			Total:             total,
			Taxable:           taxable,
			SortOrder:         in.SortOrder,
			ContractorID:      in.ContractorID,
			ServiceTemplateID: in.ServiceTemplateID,
		})
	}
	return items, nil
}

// buildAssignments validates and materializes contractor assignments, deriving
// cost from the contractor's rates unless an explicit cost is supplied.
func buildAssignments(tx *gorm.DB, companyUUID uuid.UUID, docType string, docID uuid.UUID, inputs []AssignmentInput) ([]models.ContractorAssignment, error) {
	var assignments []models.ContractorAssignment
	for _, in := range inputs {
		var contractor models.Contractor
		if err := tx.Where("company_id = ? AND id = ?", companyUUID, in.ContractorID).
			First(&contractor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &billing.ErrInvalidInput{Field: "contractorId", Reason: "contractor not found"}
			}
			return nil, err
		}

		hours := decimal.Zero
		if in.Hours != nil {
			hours = *in.Hours
		}

		var cost decimal.Decimal
		if in.Cost != nil {
			if in.Cost.IsNegative() {
				return nil, &billing.ErrInvalidInput{Field: "cost", Reason: "must not be negative"}
			}
			if in.RateType == billing.RateHourly && !hours.IsPositive() {
				return nil, &billing.ErrInvalidInput{Field: "hours", Reason: "must be greater than zero for hourly assignments"}
			}
			cost = *in.Cost
		} else {
			derived, err := billing.ContractorCost(in.RateType, hours, contractor.HourlyRate, contractor.FlatRate, contractor.Rate)
			if err != nil {
				return nil, err
			}
			cost = derived
		}

		includeInTotal := true
		if in.IncludeInTotal != nil {
			includeInTotal = *in.IncludeInTotal
		}

		assignment := models.ContractorAssignment{
			DocumentType:   docType,
			DocumentID:     docID,
			ContractorID:   in.ContractorID,
			Skills:         in.Skills,
			RateType:       in.RateType,
			Cost:           cost,
			IncludeInTotal: includeInTotal,
			Notes:          in.Notes,
		}
		if in.RateType == billing.RateHourly {
			assignment.Hours = &hours
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// quoteResponse re-derives every aggregate from the authoritative record so
// callers never trust cached totals across a mutation.
func quoteResponse(quote *models.Quote) gin.H {
	contractorsTotal := billing.ContractorsTotal(models.BillingAssignments(quote.Assignments))
	grandTotal := billing.GrandTotal(quote.Total, contractorsTotal)
	return gin.H{
		"quote":            quote,
		"contractorsTotal": contractorsTotal.Round(2),
		"grandTotal":       grandTotal.Round(2),
		"editable":         lifecycle.CanEdit(lifecycle.DocQuote, quote.Status),
		"actions":          lifecycle.AllowedTransitions(lifecycle.DocQuote, quote.Status),
	}
}

// CreateQuote creates a new quote in draft status
func CreateQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	var input CreateQuoteInput
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
	validUntil := input.ValidUntil
	if validUntil == nil {
		v := time.Now().AddDate(0, 0, company.QuoteValidityDays)
		validUntil = &v
	}

	quote := models.Quote{
		ID:                 uuid.New(),
		CompanyID:          companyUUID,
		CreatedByUserID:    userUUID,
		ClientID:           input.ClientID,
		ProjectName:        input.ProjectName,
		ProjectDescription: input.ProjectDescription,
		Status:             lifecycle.StatusDraft,
		TaxRate:            taxRate,
		IssuedAt:           time.Now(),
		ValidUntil:         validUntil,
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

	number, err := nextDocumentNumber(tx, companyUUID, "QT")
	if err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to allocate quote number")
		return
	}
	quote.Number = number

	items, err := buildLineItems(tx, companyUUID, "quote", quote.ID, input.Items)
	if err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	assignments, err := buildAssignments(tx, companyUUID, "quote", quote.ID, input.Assignments)
	if err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	quote.Items = items
	quote.Assignments = assignments

	if _, err := quoteTotals(&quote); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}

	if err := tx.Create(&quote).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create quote")
		return
	}

	logActivity(tx, "quote", quote.ID, &userUUID, "Quote created")
	tx.Commit()

	quote.Client = client
	c.JSON(http.StatusCreated, quoteResponse(&quote))
}

// GetQuotes retrieves all quotes for the company
func GetQuotes(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var quotes []models.Quote
	query := config.DB.Preload("Items").Preload("Assignments").Preload("Client").
		Where("company_id = ?", companyUUID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("issued_at desc").Find(&quotes).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve quotes")
		return
	}

	c.JSON(http.StatusOK, quotes)
}

// GetQuote retrieves a specific quote with recomputed totals
func GetQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	quoteUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid quote ID format")
		return
	}

	var quote models.Quote
	if err := config.DB.Preload("Items").Preload("Assignments").Preload("Assignments.Contractor").
		Preload("Client").Preload("Activities").
		Where("company_id = ? AND id = ?", companyUUID, quoteUUID).
		First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Quote not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, quoteResponse(&quote))
}

// UpdateQuote edits a quote while it remains in an editable state
func UpdateQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	quoteUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid quote ID format")
		return
	}

	var input UpdateQuoteInput
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

	var quote models.Quote
	if err := tx.Preload("Items").Preload("Assignments").
		Where("company_id = ? AND id = ?", companyUUID, quoteUUID).
		First(&quote).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Quote not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if !lifecycle.CanEdit(lifecycle.DocQuote, quote.Status) {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusConflict, "Quote can no longer be edited in its current state")
		return
	}

	if input.ProjectName != nil {
		quote.ProjectName = *input.ProjectName
	}
	if input.ProjectDescription != nil {
		quote.ProjectDescription = *input.ProjectDescription
	}
	if input.TaxRate != nil {
		quote.TaxRate = *input.TaxRate
	}
	if input.ValidUntil != nil {
		quote.ValidUntil = input.ValidUntil
	}
	if input.Notes != nil {
		quote.Notes = *input.Notes
	}
	if input.Terms != nil {
		quote.Terms = *input.Terms
	}

	if input.Items != nil {
		if err := tx.Where("document_type = ? AND document_id = ?", "quote", quote.ID).
			Delete(&models.LineItem{}).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to clear existing items")
			return
		}
		items, err := buildLineItems(tx, companyUUID, "quote", quote.ID, *input.Items)
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
		quote.Items = items
	}

	if input.Assignments != nil {
		// Funded assignments are locked; they survive a full replace.
		var funded []models.ContractorAssignment
		for _, a := range quote.Assignments {
			if a.Funded() {
				funded = append(funded, a)
			}
		}
		if err := tx.Where("document_type = ? AND document_id = ? AND NOT (billed_separately = true AND include_in_total = false)",
			"quote", quote.ID).Delete(&models.ContractorAssignment{}).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to clear existing assignments")
			return
		}
		assignments, err := buildAssignments(tx, companyUUID, "quote", quote.ID, *input.Assignments)
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
		quote.Assignments = append(funded, assignments...)
	}

	if _, err := quoteTotals(&quote); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}

	// The quote row is written through the version check; a concurrent edit
	// since load rolls everything back, item and assignment rows included.
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, map[string]interface{}{
		"project_name":        quote.ProjectName,
		"project_description": quote.ProjectDescription,
		"tax_rate":            quote.TaxRate,
		"valid_until":         quote.ValidUntil,
		"notes":               quote.Notes,
		"terms":               quote.Terms,
		"subtotal":            quote.Subtotal,
		"tax_amount":          quote.TaxAmount,
		"total":               quote.Total,
	}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	quote.Version++

	logActivity(tx, "quote", quote.ID, &userUUID, "Quote updated")
	tx.Commit()

	c.JSON(http.StatusOK, quoteResponse(&quote))
}

// DeleteQuote deletes a quote and cascades to its items and assignments
func DeleteQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	quoteUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid quote ID format")
		return
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var quote models.Quote
	if err := tx.Where("company_id = ? AND id = ?", companyUUID, quoteUUID).
		First(&quote).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Quote not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if err := tx.Where("document_type = ? AND document_id = ?", "quote", quote.ID).
		Delete(&models.LineItem{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete quote items")
		return
	}
	if err := tx.Where("document_type = ? AND document_id = ?", "quote", quote.ID).
		Delete(&models.ContractorAssignment{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete quote assignments")
		return
	}
	if err := tx.Where("document_type = ? AND document_id = ?", "quote", quote.ID).
		Delete(&models.Activity{}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete quote activity")
		return
	}
	if err := tx.Delete(&quote).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete quote")
		return
	}

	tx.Commit()

	c.JSON(http.StatusOK, gin.H{"message": "Quote deleted successfully"})
}
