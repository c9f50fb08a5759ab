package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"cryptopay_app/internal/ipn"
	"cryptopay_app/internal/models"
)

// NotifyMerchantsTaskDef emails merchants about settled payments they
// have not been told about yet. NotifiedAt marks a payment as handled
// so a crashed run resends at most once.
type NotifyMerchantsTaskDef struct {
	deps *Deps
}

// TaskID returns the unique identifier for this task
func (t *NotifyMerchantsTaskDef) TaskID() string {
	return "notify_merchants"
}

// HandleExecution sends settlement notifications
func (t *NotifyMerchantsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	limit := intArg(task.Arguments, "limit", 50)

	var payments []models.Payment
	err := t.deps.DB.WithContext(ctx).
		Preload("Merchant").
		Preload("Invoice").
		Where("status = ? AND notified_at IS NULL", ipn.StatusFinished).
		Order("updated_at asc").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unnotified payments: %w", err)
	}

	var sent, failed int
	for _, payment := range payments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if payment.Merchant.Email == "" {
			// Nothing to send to; mark handled so the sweep does not
			// pick the row up forever.
			t.markNotified(&payment)
			continue
		}

		subject := fmt.Sprintf("Payment received for invoice %s", payment.Invoice.UUID)
		body := fmt.Sprintf(
			"Payment %s settled: %.8f %s (invoice %s, order %s).",
			payment.PaymentID, payment.OutcomeAmount, payment.OutcomeCurrency,
			payment.Invoice.UUID, payment.Invoice.OrderID,
		)
		if err := t.deps.Email.SendEmail([]string{payment.Merchant.Email}, subject, body); err != nil {
			failed++
			log.Printf("[Task: notify_merchants] email failed for payment %s: %v", payment.PaymentID, err)
			continue
		}
		t.markNotified(&payment)
		sent++
	}

	return map[string]interface{}{
		"status": "success",
		"sent":   sent,
		"failed": failed,
	}, nil
}

func (t *NotifyMerchantsTaskDef) markNotified(payment *models.Payment) {
	now := time.Now()
	if err := t.deps.DB.Model(payment).Update("notified_at", &now).Error; err != nil {
		log.Printf("[Task: notify_merchants] failed to mark payment %s notified: %v", payment.PaymentID, err)
	}
}
