// services/scheduler.go
package services

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"billflow-backend/billing"
	"billflow-backend/lifecycle"
	"billflow-backend/models"

	"github.com/robfig/cron/v3"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

// SchedulerService runs the daily lifecycle sweep: sent invoices past their
// due date become overdue, sent quotes past their validity become expired,
// and overdue invoices trigger SMS payment reminders.
type SchedulerService struct {
	db     *gorm.DB
	client *twilio.RestClient
}

func NewSchedulerService(db *gorm.DB) *SchedulerService {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")

	return &SchedulerService{
		db: db,
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
	}
}

func (s *SchedulerService) StartScheduler() {
	c := cron.New()

	// Run every day at 9 AM
	c.AddFunc("0 9 * * *", func() {
		s.RunDailySweep()
	})

	c.Start()
	log.Println("Lifecycle scheduler started")
}

func (s *SchedulerService) RunDailySweep() {
	log.Println("Starting daily lifecycle sweep...")
	s.MarkOverdueInvoices()
	s.ExpireStaleQuotes()
	s.SendOverdueReminders()
	log.Println("Daily lifecycle sweep completed")
}

// MarkOverdueInvoices moves sent invoices past their due date to overdue,
// through the state machine so the sweep can never make an illegal move.
func (s *SchedulerService) MarkOverdueInvoices() {
	var invoices []models.Invoice
	today := time.Now()
	if err := s.db.Where("status = ? AND due_date IS NOT NULL AND due_date < ?",
		lifecycle.StatusSent, today).Find(&invoices).Error; err != nil {
		log.Printf("Failed to fetch due invoices: %v", err)
		return
	}

	for _, invoice := range invoices {
		result, err := lifecycle.Attempt(lifecycle.DocInvoice, invoice.Status, lifecycle.TransitionMarkOverdue)
		if err != nil {
			log.Printf("Invoice %s: %v", invoice.Number, err)
			continue
		}
		res := s.db.Model(&models.Invoice{}).
			Where("id = ? AND version = ?", invoice.ID, invoice.Version).
			Updates(map[string]interface{}{
				"status":  result.NewStatus,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil || res.RowsAffected == 0 {
			log.Printf("Invoice %s: overdue update skipped (concurrent edit?)", invoice.Number)
			continue
		}
		s.db.Create(&models.Activity{
			DocumentType: "invoice",
			DocumentID:   invoice.ID,
			Message:      "Marked overdue by daily sweep",
		})
	}
}

// ExpireStaleQuotes moves sent quotes past their validity date to expired.
func (s *SchedulerService) ExpireStaleQuotes() {
	var quotes []models.Quote
	today := time.Now()
	if err := s.db.Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?",
		lifecycle.StatusSent, today).Find(&quotes).Error; err != nil {
		log.Printf("Failed to fetch stale quotes: %v", err)
		return
	}

	for _, quote := range quotes {
		result, err := lifecycle.Attempt(lifecycle.DocQuote, quote.Status, lifecycle.TransitionExpire)
		if err != nil {
			log.Printf("Quote %s: %v", quote.Number, err)
			continue
		}
		res := s.db.Model(&models.Quote{}).
			Where("id = ? AND version = ?", quote.ID, quote.Version).
			Updates(map[string]interface{}{
				"status":  result.NewStatus,
				"version": gorm.Expr("version + 1"),
			})
		if res.Error != nil || res.RowsAffected == 0 {
			log.Printf("Quote %s: expire update skipped (concurrent edit?)", quote.Number)
			continue
		}
		s.db.Create(&models.Activity{
			DocumentType: "quote",
			DocumentID:   quote.ID,
			Message:      "Expired by daily sweep",
		})
	}
}

// SendOverdueReminders texts clients of overdue invoices for companies that
// enabled SMS notifications.
func (s *SchedulerService) SendOverdueReminders() {
	var companies []models.Company
	if err := s.db.Find(&companies, "sms_notifications = ?", true).Error; err != nil {
		log.Printf("Failed to fetch companies: %v", err)
		return
	}

	for _, company := range companies {
		var invoices []models.Invoice
		if err := s.db.Preload("Client").Preload("Assignments").Preload("Payments").
			Where("company_id = ? AND status = ?", company.ID, lifecycle.StatusOverdue).
			Find(&invoices).Error; err != nil {
			log.Printf("Company %s: failed to fetch overdue invoices: %v", company.ID, err)
			continue
		}
		for _, invoice := range invoices {
			s.sendReminderSMS(&company, &invoice)
		}
	}
}

func (s *SchedulerService) sendReminderSMS(company *models.Company, invoice *models.Invoice) {
	if invoice.Client.Phone == "" {
		return
	}

	contractors := billing.ContractorsTotal(models.BillingAssignments(invoice.Assignments))
	grand := billing.GrandTotal(invoice.Total, contractors)
	balance := billing.BalanceDue(grand, models.BillingPayments(invoice.Payments))

	template := settingString(company.Settings, "reminderSMSTemplate")
	message := substitute(template, map[string]string{
		"[CompanyName]": company.Name,
		"[Number]":      invoice.Number,
		"[BalanceDue]":  fmt.Sprintf("$%s", balance.Round(2)),
	})
	message = strings.TrimSpace(message)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(invoice.Client.Phone)
	params.SetFrom(os.Getenv("TWILIO_PHONE_NUMBER"))
	params.SetBody(message)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		log.Printf("Invoice %s: failed to send reminder SMS: %v", invoice.Number, err)
		return
	}

	s.db.Create(&models.Activity{
		DocumentType: "invoice",
		DocumentID:   invoice.ID,
		Message:      "Overdue payment reminder sent via SMS",
	})
}
