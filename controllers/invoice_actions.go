// controllers/invoice_actions.go
package controllers

import (
	"errors"
	"log"
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

// RecordPaymentInput adds a payment record to an invoice. Payment records are
// append-only and never change status: a pending record (e.g. a check not yet
// cleared) stays pending forever and never reduces the balance; once the funds
// clear, the caller records a new completed payment for the same amount.
type RecordPaymentInput struct {
	Amount    decimal.Decimal       `json:"amount" binding:"required"`
	Currency  string                `json:"currency"`
	Method    string                `json:"method"`
	Reference string                `json:"reference"`
	Status    billing.PaymentStatus `json:"status" binding:"omitempty,oneof=completed pending"`
}

func loadInvoiceForAction(c *gin.Context, companyUUID uuid.UUID) (*models.Invoice, bool) {
	invoiceUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid invoice ID format")
		return nil, false
	}

	var invoice models.Invoice
	if err := config.DB.Preload("Items").Preload("Assignments").Preload("Payments").
		Preload("Client").
		Where("company_id = ? AND id = ?", companyUUID, invoiceUUID).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Invoice not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return nil, false
	}
	return &invoice, true
}

// SendInvoice transitions a draft invoice to sent, freezing its totals and
// emailing the client. The status write is durable before the email attempt;
// a failed delivery comes back as partial success.
func SendInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	invoice, ok := loadInvoiceForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocInvoice, invoice.Status, lifecycle.TransitionSend)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	if _, err := invoiceTotals(invoice); err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	now := time.Now()
	contractorsTotal := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
	grandTotal := billing.GrandTotal(invoice.Total, contractorsTotal)

	tx := config.DB.Begin()
	if err := versionedUpdate(tx, &models.Invoice{}, invoice.ID, invoice.Version, map[string]interface{}{
		"status":     result.NewStatus,
		"subtotal":   invoice.Subtotal,
		"tax_amount": invoice.TaxAmount,
		"total":      invoice.Total,
		"sent_at":    now,
	}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	// Owed amount lands on the client's running balance at send time.
	if err := tx.Model(&models.Client{}).Where("id = ?", invoice.ClientID).
		Updates(map[string]interface{}{
			"total_billed":  gorm.Expr("total_billed + ?", grandTotal),
			"last_invoiced": now,
		}).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update client stats")
		return
	}
	logActivity(tx, "invoice", invoice.ID, &userUUID, "Invoice sent to "+invoice.Client.Email)
	tx.Commit()

	invoice.Status = result.NewStatus
	invoice.SentAt = &now

	emailSent := true
	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err == nil {
		if err := Mailer.SendInvoice(&company, invoice, invoiceBalanceDue(invoice)); err != nil {
			log.Printf("Invoice %s: email delivery failed: %v", invoice.Number, err)
			emailSent = false
		}
	} else {
		emailSent = false
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    invoice.Status,
		"emailSent": emailSent,
		"invoice":   invoiceResponse(invoice),
	})
}

// ResendInvoice re-delivers an invoice that is already out. Never a status
// change.
func ResendInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	invoice, ok := loadInvoiceForAction(c, companyUUID)
	if !ok {
		return
	}

	if _, err := lifecycle.Attempt(lifecycle.DocInvoice, invoice.Status, lifecycle.TransitionResend); err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	emailSent := true
	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err == nil {
		if err := Mailer.SendInvoice(&company, invoice, invoiceBalanceDue(invoice)); err != nil {
			log.Printf("Invoice %s: email delivery failed: %v", invoice.Number, err)
			emailSent = false
		}
	} else {
		emailSent = false
	}

	if emailSent {
		logActivity(config.DB, "invoice", invoice.ID, &userUUID, "Invoice resent to "+invoice.Client.Email)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    invoice.Status,
		"emailSent": emailSent,
	})
}

// CancelInvoice cancels a sent invoice
func CancelInvoice(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	invoice, ok := loadInvoiceForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocInvoice, invoice.Status, lifecycle.TransitionCancel)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	tx := config.DB.Begin()
	if err := versionedUpdate(tx, &models.Invoice{}, invoice.ID, invoice.Version, map[string]interface{}{
		"status": result.NewStatus,
	}); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}
	logActivity(tx, "invoice", invoice.ID, &userUUID, "Invoice cancelled")
	tx.Commit()

	invoice.Status = result.NewStatus
	c.JSON(http.StatusOK, invoiceResponse(invoice))
}

// RecordPayment appends a payment record to a sent or overdue invoice. When
// the balance reaches zero the invoice flips to paid and the paid date is
// stamped; a partial payment leaves the status alone.
func RecordPayment(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}
	userID, _ := c.Get("userId")
	userUUID, _ := uuid.Parse(userID.(string))

	var input RecordPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if !input.Amount.IsPositive() {
		utils.RespondWithError(c, http.StatusBadRequest, "Payment amount must be greater than zero")
		return
	}

	invoice, ok := loadInvoiceForAction(c, companyUUID)
	if !ok {
		return
	}

	result, err := lifecycle.Attempt(lifecycle.DocInvoice, invoice.Status, lifecycle.TransitionRecordPayment)
	if err != nil {
		utils.RespondWithDomainError(c, err)
		return
	}

	status := input.Status
	if status == "" {
		status = billing.PaymentCompleted
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	payment := models.Payment{
		ID:          uuid.New(),
		InvoiceID:   invoice.ID,
		Amount:      input.Amount,
		Currency:    currency,
		Method:      input.Method,
		Reference:   input.Reference,
		Status:      status,
		ProcessedAt: time.Now(),
	}

	tx := config.DB.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	// Recompute the balance with the new payment included.
	invoice.Payments = append(invoice.Payments, payment)
	contractorsTotal := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
	grandTotal := billing.GrandTotal(invoice.Total, contractorsTotal)
	balance := billing.BalanceDue(grandTotal, models.BillingPayments(invoice.Payments))

	newStatus := result.NewStatus
	updates := map[string]interface{}{"status": newStatus}
	if balance.LessThanOrEqual(decimal.Zero) {
		paidResult, err := lifecycle.Attempt(lifecycle.DocInvoice, invoice.Status, lifecycle.TransitionMarkPaid)
		if err != nil {
			tx.Rollback()
			utils.RespondWithDomainError(c, err)
			return
		}
		newStatus = paidResult.NewStatus
		now := time.Now()
		updates["status"] = newStatus
		updates["paid_date"] = now
		invoice.PaidDate = &now
	}

	if err := versionedUpdate(tx, &models.Invoice{}, invoice.ID, invoice.Version, updates); err != nil {
		tx.Rollback()
		utils.RespondWithDomainError(c, err)
		return
	}

	if payment.Status == billing.PaymentCompleted {
		if err := tx.Model(&models.Client{}).Where("id = ?", invoice.ClientID).
			Update("total_paid", gorm.Expr("total_paid + ?", payment.Amount)).Error; err != nil {
			tx.Rollback()
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update client stats")
			return
		}
	}

	logActivity(tx, "invoice", invoice.ID, &userUUID,
		"Payment of "+payment.Amount.Round(2).String()+" "+payment.Currency+" recorded")
	tx.Commit()

	invoice.Status = newStatus

	var company models.Company
	if err := config.DB.First(&company, "id = ?", companyUUID).Error; err == nil {
		if err := Mailer.SendPaymentReceipt(&company, invoice, &payment, "$"+balance.Round(2).String()); err != nil {
			log.Printf("Invoice %s: receipt delivery failed: %v", invoice.Number, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"payment":    payment,
		"balanceDue": balance.Round(2),
		"status":     invoice.Status,
	})
}

// GetPayments lists the payment records of an invoice
func GetPayments(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	invoice, ok := loadInvoiceForAction(c, companyUUID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments":   invoice.Payments,
		"balanceDue": invoiceBalanceDue(invoice),
	})
}
