package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cryptopay_app/internal/ipn"
	"cryptopay_app/internal/models"
)

// WebhookService is the GORM-backed ipn.EventStore. The event insert,
// the payment transition and the balance credit run in one transaction
// so a redelivery racing the first delivery can never double-apply.
type WebhookService struct {
	db *gorm.DB
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{db: db}
}

// InsertIfAbsent implements ipn.EventStore. The uniqueness check rides
// the external_event_id unique index via a conditional insert; there is
// no application-level check-then-act.
func (s *WebhookService) InsertIfAbsent(ctx context.Context, rec *ipn.EventRecord) (ipn.RecordOutcome, error) {
	var out ipn.RecordOutcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := models.WebhookEvent{
			ExternalEventID: rec.ExternalEventID,
			PaymentID:       rec.PaymentID,
			ParentPaymentID: optionalString(rec.ParentPaymentID),
			PaymentStatus:   string(rec.Status),
			DecisionKind:    string(rec.Decision.Kind),
			RawBody:         rec.RawBody,
			SignatureValid:  true,
			ReceivedAt:      rec.ReceivedAt,
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_event_id"}},
			DoNothing: true,
		}).Create(&event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Duplicate delivery, idempotent no-op.
			return nil
		}
		out.Inserted = true

		if err := s.applyEvent(tx, rec, &out); err != nil {
			return err
		}

		if out.TransitionApplied {
			if err := tx.Model(&event).Update("transition_applied", true).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ipn.RecordOutcome{}, err
	}
	return out, nil
}

// applyEvent advances the derived payment row for one freshly inserted
// event and credits the merchant balance when the event settles funds.
// Results land in out: TransitionApplied, BalanceApplied, or
// Unattributed when the event matched no invoice or parent payment.
func (s *WebhookService) applyEvent(tx *gorm.DB, rec *ipn.EventRecord, out *ipn.RecordOutcome) error {
	var payment models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ?", rec.PaymentID).First(&payment).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		payment, err = s.createPayment(tx, rec)
		if err != nil {
			return err
		}
		if payment.ID == 0 {
			// Could not attribute the payment to an invoice; the event
			// stays in the log for manual reconciliation.
			out.Unattributed = true
			return nil
		}
		out.TransitionApplied = true
	case err != nil:
		return err
	default:
		if !ipn.CanTransition(payment.Status, rec.Status) {
			return nil
		}
		updates := map[string]interface{}{
			"status": rec.Status,
		}
		if v, ok := numberValue(rec.Payload.ActuallyPaid); ok {
			updates["actually_paid"] = v
		}
		if v, ok := numberValue(rec.Payload.OutcomeAmount); ok {
			updates["outcome_amount"] = v
		}
		if rec.Payload.OutcomeCurrency != "" {
			updates["outcome_currency"] = rec.Payload.OutcomeCurrency
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return err
		}
		out.TransitionApplied = true
	}

	if !rec.Decision.ApplyBalance || payment.MerchantID == 0 {
		return nil
	}

	credited, err := s.creditBalance(tx, &payment, rec)
	if err != nil {
		return err
	}
	out.BalanceApplied = credited

	// A settled root payment also settles its invoice.
	if rec.Decision.Kind != ipn.DecisionRepeatDeposit && payment.InvoiceID != 0 {
		err = tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", payment.InvoiceID, models.InvoiceStatusActive).
			Update("status", models.InvoiceStatusPaid).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// createPayment materializes the derived row on first sighting of a
// payment id. Repeat deposits inherit merchant and invoice from their
// parent payment; root payments resolve through the invoice the
// processor echoes back in order_id.
func (s *WebhookService) createPayment(tx *gorm.DB, rec *ipn.EventRecord) (models.Payment, error) {
	payment := models.Payment{
		PaymentID:       rec.PaymentID,
		ParentPaymentID: optionalString(rec.ParentPaymentID),
		Status:          rec.Status,
		PriceCurrency:   rec.Payload.PriceCurrency,
		PayCurrency:     rec.Payload.PayCurrency,
		OutcomeCurrency: rec.Payload.OutcomeCurrency,
	}
	if v, ok := numberValue(rec.Payload.PriceAmount); ok {
		payment.PriceAmount = v
	}
	if v, ok := numberValue(rec.Payload.PayAmount); ok {
		payment.PayAmount = v
	}
	if v, ok := numberValue(rec.Payload.ActuallyPaid); ok {
		payment.ActuallyPaid = v
	}
	if v, ok := numberValue(rec.Payload.OutcomeAmount); ok {
		payment.OutcomeAmount = v
	}

	if rec.Decision.Kind == ipn.DecisionRepeatDeposit {
		var parent models.Payment
		err := tx.Where("payment_id = ?", rec.ParentPaymentID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("webhook: repeat deposit %s references unknown parent %s", rec.PaymentID, rec.ParentPaymentID)
			return models.Payment{}, nil
		}
		if err != nil {
			return models.Payment{}, err
		}
		payment.MerchantID = parent.MerchantID
		payment.InvoiceID = parent.InvoiceID
	} else {
		var invoice models.Invoice
		err := tx.Where("uuid = ?", rec.Payload.OrderID).First(&invoice).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("webhook: payment %s references unknown invoice %q", rec.PaymentID, rec.Payload.OrderID)
			return models.Payment{}, nil
		}
		if err != nil {
			return models.Payment{}, err
		}
		payment.MerchantID = invoice.MerchantID
		payment.InvoiceID = invoice.ID
	}

	if err := tx.Create(&payment).Error; err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

// creditBalance applies the settled amount as a delta-upsert on the
// per-currency balance row.
func (s *WebhookService) creditBalance(tx *gorm.DB, payment *models.Payment, rec *ipn.EventRecord) (bool, error) {
	currency := rec.Payload.OutcomeCurrency
	if currency == "" {
		currency = rec.Payload.PayCurrency
	}
	amount, ok := numberValue(rec.Payload.OutcomeAmount)
	if !ok {
		amount, ok = numberValue(rec.Payload.ActuallyPaid)
	}
	if !ok || amount <= 0 || currency == "" {
		log.Printf("webhook: settled payment %s carries no creditable amount", payment.PaymentID)
		return false, nil
	}

	balance := models.MerchantBalance{
		MerchantID: payment.MerchantID,
		Currency:   currency,
		Amount:     amount,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchant_id"}, {Name: "currency"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("merchant_balances.amount + ?", amount),
			"updated_at": time.Now(),
		}),
	}).Create(&balance).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// ApplyPolledStatus feeds a reconciliation poll result through the same
// transition guard as webhook deliveries. Idempotent against a webhook
// racing the poll: whichever applies the transition first wins, the
// other is a no-op.
func (s *WebhookService) ApplyPolledStatus(ctx context.Context, paymentID string, resp *PaymentResponse) (bool, error) {
	status := ipn.PaymentStatus(resp.PaymentStatus)
	if !status.Valid() {
		return false, fmt.Errorf("processor reported unknown status %q for payment %s", resp.PaymentStatus, paymentID)
	}

	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("payment_id = ?", paymentID).First(&payment).Error
		if err != nil {
			return err
		}
		if !ipn.CanTransition(payment.Status, status) {
			return nil
		}

		updates := map[string]interface{}{"status": status}
		if v, ok := numberValue(resp.ActuallyPaid); ok {
			updates["actually_paid"] = v
		}
		if v, ok := numberValue(resp.OutcomeAmount); ok {
			updates["outcome_amount"] = v
		}
		if resp.OutcomeCurrency != "" {
			updates["outcome_currency"] = resp.OutcomeCurrency
		}
		if err := tx.Model(&payment).Updates(updates).Error; err != nil {
			return err
		}
		applied = true

		if status != ipn.StatusFinished || payment.MerchantID == 0 {
			return nil
		}

		rec := &ipn.EventRecord{
			PaymentID: paymentID,
			Status:    status,
			Payload: &ipn.IPNPayload{
				ActuallyPaid:    resp.ActuallyPaid,
				OutcomeAmount:   resp.OutcomeAmount,
				OutcomeCurrency: resp.OutcomeCurrency,
				PayCurrency:     resp.PayCurrency,
			},
		}
		if _, err := s.creditBalance(tx, &payment, rec); err != nil {
			return err
		}
		if payment.InvoiceID != 0 {
			return tx.Model(&models.Invoice{}).
				Where("id = ? AND status = ?", payment.InvoiceID, models.InvoiceStatusActive).
				Update("status", models.InvoiceStatusPaid).Error
		}
		return nil
	})
	return applied, err
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func numberValue(n json.Number) (float64, bool) {
	if n.String() == "" {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}
