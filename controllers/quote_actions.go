// controllers/quote_actions.go
package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"billflow-backend/config"
	"billflow-backend/lifecycle"
	"billflow-backend/models"
	"billflow-backend/services"
	"billflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var Mailer *services.MailerService

type ResendQuoteInput struct {
	ValidUntil *time.Time `json:"validUntil"`
}

type ConvertQuoteInput struct {
	SendImmediately bool `json:"sendImmediately"`
}

type ToggleIncludeInput struct {
	IncludeInTotal *bool `json:"includeInTotal" binding:"required"`
}

func loadQuoteForAction(c *gin.Context, companyUUID uuid.UUID) (*models.Quote, bool) {
	quoteUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid quote ID format")
		return nil, false
	}

	var quote models.Quote
	if err := config.DB.Preload("Items").Preload("Assignments").Preload("Client").
		Where("company_id = ? AND id = ?", companyUUID, quoteUUID).
		First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Quote not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return nil, false
	}
	return &quote, true
}

// SendQuote transitions a draft quote to sent, freezing its totals, issuing a
// fresh approval token, and emailing the client. The status write is durable
// before any email attempt; a failed send comes back as partial success.
func SendQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	quote, ok := loadQuoteForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocQuote, quote.Status, lifecycle.TransitionSend)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	// Freeze totals at send time from the authoritative items.
	if _, err := quoteTotals(quote); err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	now := time.Now()
	token := utils.GenerateRandomString(24)

	tx := config.DB.Begin()
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, map[string]interface{}{
		"status":         result.NewStatus,
		"subtotal":       quote.Subtotal,
		"tax_amount":     quote.TaxAmount,
		"total":          quote.Total,
		"sent_at":        now,
		"approval_token": token,
		"token_issued_at": now,
	}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	logActivity(tx, "quote", quote.ID, &userUUID, "Quote sent to "+quote.Client.Email)
	tx.Commit()

	quote.Status = result.NewStatus
	quote.ApprovalToken = token
	quote.SentAt = &now

	emailSent := true
	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err == nil {
		if err := Mailer.SendQuote(&company, quote, quoteGrandTotal(quote)); err != nil {
			log.Printf("Quote %s: email delivery failed: %v", quote.Number, err)
			emailSent = false
		}
	} else {
		emailSent = false
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    quote.Status,
		"emailSent": emailSent,
		"quote":     quoteResponse(quote),
	})
}

// ResendQuote re-delivers a sent, rejected or expired quote. An expired quote
// returns to sent with a fresh validity window; a new approval token replaces
// the old one, which stops authorizing approval immediately.
func ResendQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	// Body is optional for resend
	var input ResendQuoteInput
	_ = c.ShouldBindJSON(&input)

	quote, ok := loadQuoteForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocQuote, quote.Status, lifecycle.TransitionResend)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	now := time.Now()
	token := utils.GenerateRandomString(24)
	updates := map[string]interface{}{
		"status":          result.NewStatus,
		"approval_token":  token,
		"token_issued_at": now,
	}

	// An expired quote gets a new validity date: caller-supplied, or today
	// plus the original validity-window length.
	if quote.Status == lifecycle.StatusExpired {
		validUntil := input.ValidUntil
		if validUntil == nil {
			v := now.Add(quote.ValidityWindow())
			validUntil = &v
		}
		updates["valid_until"] = validUntil
		quote.ValidUntil = validUntil
	}

	tx := config.DB.Begin()
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, updates); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	logActivity(tx, "quote", quote.ID, &userUUID, "Quote resent to "+quote.Client.Email)
	tx.Commit()

	quote.Status = result.NewStatus
	quote.ApprovalToken = token

	emailSent := true
	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err == nil {
		if err := Mailer.SendQuote(&company, quote, quoteGrandTotal(quote)); err != nil {
			log.Printf("Quote %s: email delivery failed: %v", quote.Number, err)
			emailSent = false
		}
	} else {
		emailSent = false
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    quote.Status,
		"emailSent": emailSent,
		"quote":     quoteResponse(quote),
	})
}

// AcceptQuote marks a sent quote accepted
func AcceptQuote(c *gin.Context) {
	quoteTransition(c, lifecycle.TransitionAccept, "Quote accepted")
}

// RejectQuote marks a sent quote rejected
func RejectQuote(c *gin.Context) {
	quoteTransition(c, lifecycle.TransitionReject, "Quote rejected")
}

func quoteTransition(c *gin.Context, transition lifecycle.Transition, activityMessage string) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	quote, ok := loadQuoteForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocQuote, quote.Status, transition)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	now := time.Now()
	updates := map[string]interface{}{"status": result.NewStatus}
	switch result.NewStatus {
	case lifecycle.StatusAccepted:
		updates["accepted_at"] = now
	case lifecycle.StatusRejected:
		updates["rejected_at"] = now
	}

	tx := config.DB.Begin()
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, updates); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	logActivity(tx, "quote", quote.ID, &userUUID, activityMessage)
	tx.Commit()

	quote.Status = result.NewStatus
	c.JSON(http.StatusOK, quoteResponse(quote))
}

// ApproveQuoteByToken is the public endpoint behind the approval link in the
// quote email. Only the latest issued token authorizes approval.
func ApproveQuoteByToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Missing approval token")
		return
	}

	var quote models.Quote
	if err := config.DB.Preload("Items").Preload("Assignments").Preload("Client").
		Where("approval_token = ?", token).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Approval link is no longer valid")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocQuote, quote.Status, lifecycle.TransitionAccept)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	now := time.Now()
	tx := config.DB.Begin()
	// The token is single-use: clear it with the same write that accepts.
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, map[string]interface{}{
		"status":         result.NewStatus,
		"accepted_at":    now,
		"approval_token": "",
	}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	logActivity(tx, "quote", quote.ID, nil, "Quote accepted by client via approval link")
	tx.Commit()

	quote.Status = result.NewStatus
	c.JSON(http.StatusOK, gin.H{
		"message": "Quote accepted",
		"number":  quote.Number,
		"status":  quote.Status,
	})
}

// ToggleAssignmentInclude flips a contractor assignment's includeInTotal flag.
// Setting it to false while billedSeparately is true marks the assignment
// funded, which locks it from further edits.
func ToggleAssignmentInclude(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	var input ToggleIncludeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	quote, ok := loadQuoteForAction(c, companyUUID)
	if !ok {
		return
	}

	if !lifecycle.CanEdit(lifecycle.DocQuote, quote.Status) {
		utils.RespondWithError(c, http.StatusConflict, "Quote can no longer be edited in its current state")
		return
	}

	assignmentUUID, err := uuid.Parse(c.Param("assignmentId"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid assignment ID format")
		return
	}

	var assignment models.ContractorAssignment
	if err := config.DB.Where("document_type = ? AND document_id = ? AND id = ?",
		"quote", quote.ID, assignmentUUID).First(&assignment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Assignment not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if assignment.Funded() {
		utils.RespondWithError(c, http.StatusConflict, "Assignment is funded and locked")
		return
	}

	assignment.IncludeInTotal = *input.IncludeInTotal
	if assignment.BilledSeparately && !assignment.IncludeInTotal {
		now := time.Now()
		assignment.BilledAt = &now
	}

	// The parent's version moves with the toggle, so a concurrent send or
	// edit that read the old assignment set loses its version check.
	tx := config.DB.Begin()
	if err := tx.Save(&assignment).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update assignment")
		return
	}
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, map[string]interface{}{}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	tx.Commit()

	// Reload so the response reflects the new grand total.
	config.DB.Preload("Items").Preload("Assignments").Preload("Client").
		First(quote, "id = ?", quote.ID)
	c.JSON(http.StatusOK, quoteResponse(quote))
}

// ConvertQuote copies a quote into a new draft invoice and marks the quote
// converted. The invoice insert commits before the quote status flips, so a
// failed conversion never strands the quote.
func ConvertQuote(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	// Body is optional; sendImmediately skips the invoice's draft state.
	var input ConvertQuoteInput
	_ = c.ShouldBindJSON(&input)

	quote, ok := loadQuoteForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocQuote, quote.Status, lifecycle.TransitionConvert)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	// Immediate send is only for conversions of quotes the client already
	// accepted; everything else starts as a draft.
	sendImmediately := input.SendImmediately && quote.Status == lifecycle.StatusAccepted

	dueDate := time.Now().AddDate(0, 0, 30)
	invoice := models.Invoice{
		ID:                 uuid.New(),
		CompanyID:          companyUUID,
		CreatedByUserID:    userUUID,
		ClientID:           quote.ClientID,
		ProjectName:        quote.ProjectName,
		ProjectDescription: quote.ProjectDescription,
		Status:             lifecycle.StatusDraft,
		TaxRate:            quote.TaxRate,
		IssuedAt:           time.Now(),
		DueDate:            &dueDate,
		SourceQuoteID:      &quote.ID,
		Notes:              quote.Notes,
		Terms:              quote.Terms,
		Version:            1,
	}
	if sendImmediately {
		now := time.Now()
		invoice.Status = lifecycle.StatusSent
		invoice.SentAt = &now
	}

	// Copy items and assignments by value; the quote keeps its own rows.
	for _, item := range quote.Items {
		invoice.Items = append(invoice.Items, models.LineItem{
			DocumentType:      "invoice",
			DocumentID:        invoice.ID,
			Name:              item.Name,
			Description:       item.Description,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			Total:             item.Total,
			Taxable:           item.Taxable,
			SortOrder:         item.SortOrder,
			ContractorID:      item.ContractorID,
			ServiceTemplateID: item.ServiceTemplateID,
		})
	}
	for _, a := range quote.Assignments {
		invoice.Assignments = append(invoice.Assignments, models.ContractorAssignment{
			DocumentType:     "invoice",
			DocumentID:       invoice.ID,
			ContractorID:     a.ContractorID,
			Skills:           a.Skills,
			RateType:         a.RateType,
			Hours:            a.Hours,
			Cost:             a.Cost,
			IncludeInTotal:   a.IncludeInTotal,
			BilledSeparately: a.BilledSeparately,
			BilledAt:         a.BilledAt,
			PaymentReference: a.PaymentReference,
			Notes:            a.Notes,
		})
	}

	if _, err := invoiceTotals(&invoice); err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	// Causally ordered writes: create the invoice first, in its own
	// transaction. Only after it is durable does the quote flip.
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

	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create invoice")
		return
	}
	logActivity(tx, "invoice", invoice.ID, &userUUID, "Created from quote "+quote.Number)
	if err := tx.Commit().Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create invoice")
		return
	}

	tx = config.DB.Begin()
	if err := versionedUpdate(tx, &models.Quote{}, quote.ID, quote.Version, map[string]interface{}{
		"status":               result.NewStatus,
		"converted_invoice_id": invoice.ID,
	}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	logActivity(tx, "quote", quote.ID, &userUUID, "Converted to invoice "+invoice.Number)
	tx.Commit()

	quote.Status = result.NewStatus

	emailSent := false
	if sendImmediately {
		var company models.Company
		if err := config.DB.First(&company, "id = ?", companyUUID).Error; err == nil {
			invoice.Client = quote.Client
			if err := Mailer.SendInvoice(&company, &invoice, invoiceBalanceDue(&invoice)); err != nil {
				log.Printf("Invoice %s: email delivery failed: %v", invoice.Number, err)
			} else {
				emailSent = true
			}
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"quote":     quoteResponse(quote),
		"invoice":   invoice,
		"emailSent": emailSent,
	})
}
