// controllers/dashboard.go
package controllers

import (
	"net/http"
	"time"

	"billflow-backend/billing"
	"billflow-backend/config"
	"billflow-backend/lifecycle"
	"billflow-backend/models"
	"billflow-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type DashboardOverview struct {
	TotalClients       int64             `json:"totalClients"`
	OpenQuotes         int64             `json:"openQuotes"`
	UnpaidInvoices     int64             `json:"unpaidInvoices"`
	OutstandingBalance decimal.Decimal   `json:"outstandingBalance"`
	MonthlyRevenue     decimal.Decimal   `json:"monthlyRevenue"`
	RecentActivity     []models.Activity `json:"recentActivity"`
}

type ReceivablesBucket struct {
	Label   string          `json:"label"` // "current", "1-30", "31-60", "60+"
	Count   int             `json:"count"`
	Balance decimal.Decimal `json:"balance"`
}

// GetDashboardOverview summarizes the company's billing position
func GetDashboardOverview(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	overview := DashboardOverview{
		OutstandingBalance: decimal.Zero,
		MonthlyRevenue:     decimal.Zero,
	}

	config.DB.Model(&models.Client{}).
		Where("company_id = ? AND deleted_at IS NULL", companyUUID).
		Count(&overview.TotalClients)
	config.DB.Model(&models.Quote{}).
		Where("company_id = ? AND status IN ? AND deleted_at IS NULL", companyUUID,
			[]lifecycle.Status{lifecycle.StatusDraft, lifecycle.StatusSent}).
		Count(&overview.OpenQuotes)
	config.DB.Model(&models.Invoice{}).
		Where("company_id = ? AND status IN ? AND deleted_at IS NULL", companyUUID,
			[]lifecycle.Status{lifecycle.StatusSent, lifecycle.StatusOverdue}).
		Count(&overview.UnpaidInvoices)

	// Outstanding balance: sum of balance due across open invoices,
	// recomputed through the engine each time.
	var openInvoices []models.Invoice
	config.DB.Preload("Assignments").Preload("Payments").
		Where("company_id = ? AND status IN ?", companyUUID,
			[]lifecycle.Status{lifecycle.StatusSent, lifecycle.StatusOverdue}).
		Find(&openInvoices)
	for _, invoice := range openInvoices {
		contractors := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
		grand := billing.GrandTotal(invoice.Total, contractors)
		overview.OutstandingBalance = overview.OutstandingBalance.
			Add(billing.BalanceDue(grand, models.BillingPayments(invoice.Payments)))
	}
	overview.OutstandingBalance = overview.OutstandingBalance.Round(2)

	// This month's revenue: completed payments received since the 1st.
	now := time.Now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var payments []models.Payment
	config.DB.Joins("JOIN invoices ON invoices.id = payments.invoice_id").
		Where("invoices.company_id = ? AND payments.status = ? AND payments.processed_at >= ?",
			companyUUID, billing.PaymentCompleted, firstOfMonth).
		Find(&payments)
	for _, p := range payments {
		overview.MonthlyRevenue = overview.MonthlyRevenue.Add(p.Amount)
	}
	overview.MonthlyRevenue = overview.MonthlyRevenue.Round(2)

	config.DB.Joins("JOIN invoices ON invoices.id = activities.document_id AND activities.document_type = 'invoice'").
		Where("invoices.company_id = ?", companyUUID).
		Order("activities.created_at desc").Limit(10).
		Find(&overview.RecentActivity)

	c.JSON(http.StatusOK, overview)
}

// GetReceivablesReport buckets open invoice balances by days overdue
func GetReceivablesReport(c *gin.Context) {
	companyUUID, ok := getCompanyUUID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "Company ID not found in context")
		return
	}

	buckets := []ReceivablesBucket{
		{Label: "current", Balance: decimal.Zero},
		{Label: "1-30", Balance: decimal.Zero},
		{Label: "31-60", Balance: decimal.Zero},
		{Label: "60+", Balance: decimal.Zero},
	}

	var invoices []models.Invoice
	if err := config.DB.Preload("Assignments").Preload("Payments").
		Where("company_id = ? AND status IN ?", companyUUID,
			[]lifecycle.Status{lifecycle.StatusSent, lifecycle.StatusOverdue}).
		Find(&invoices).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve invoices")
		return
	}

	now := time.Now()
	for _, invoice := range invoices {
		contractors := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
		grand := billing.GrandTotal(invoice.Total, contractors)
		balance := billing.BalanceDue(grand, models.BillingPayments(invoice.Payments))
		if !balance.IsPositive() {
			continue
		}

		idx := 0
		if invoice.DueDate != nil && invoice.DueDate.Before(now) {
			overdueDays := utils.DaysBetween(*invoice.DueDate, now)
			switch {
			case overdueDays <= 30:
				idx = 1
			case overdueDays <= 60:
				idx = 2
			default:
				idx = 3
			}
		}
		buckets[idx].Count++
		buckets[idx].Balance = buckets[idx].Balance.Add(balance)
	}

	for i := range buckets {
		buckets[i].Balance = buckets[i].Balance.Round(2)
	}

	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}
