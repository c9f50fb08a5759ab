package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cryptopay_app/internal/ipn"
	"cryptopay_app/internal/models"
)

// PaymentService drives the invoice/payment lifecycle against the
// processor. Credentials are held here and handed to every client call
// explicitly.
type PaymentService struct {
	db        *gorm.DB
	processor *NowPaymentsService
	webhooks  *WebhookService
	creds     Credentials
}

func NewPaymentService(db *gorm.DB, processor *NowPaymentsService, webhooks *WebhookService, creds Credentials) *PaymentService {
	return &PaymentService{
		db:        db,
		processor: processor,
		webhooks:  webhooks,
		creds:     creds,
	}
}

// CreateInvoiceInput is what the merchant API hands over.
type CreateInvoiceInput struct {
	OrderID       string
	Description   string
	PriceAmount   float64
	PriceCurrency string
	PayCurrency   string
	SuccessURL    string
	ExpiresIn     time.Duration
	// ForceNew skips reuse of an active invoice for the same order id.
	ForceNew bool
}

// CreateInvoice stores the invoice and opens the matching processor
// payment. The invoice uuid doubles as the processor order_id so
// inbound webhooks can be attributed back to the merchant. When the
// merchant retries with the same order id while the previous invoice is
// still active, the open invoice and its payment are returned instead
// of opening a second processor payment.
func (s *PaymentService) CreateInvoice(ctx context.Context, merchant *models.Merchant, in *CreateInvoiceInput, callbackURL string) (*models.Invoice, *models.Payment, error) {
	if in.OrderID != "" && !in.ForceNew {
		invoice, payment, err := s.findReusableInvoice(ctx, merchant.ID, in.OrderID)
		if err != nil {
			return nil, nil, err
		}
		if invoice != nil {
			return invoice, payment, nil
		}
	}

	invoice := models.Invoice{
		UUID:          uuid.New().String(),
		MerchantID:    merchant.ID,
		OrderID:       in.OrderID,
		Description:   in.Description,
		PriceAmount:   in.PriceAmount,
		PriceCurrency: in.PriceCurrency,
		PayCurrency:   in.PayCurrency,
		SuccessURL:    in.SuccessURL,
		CallbackURL:   callbackURL,
		Status:        models.InvoiceStatusActive,
	}
	if in.ExpiresIn > 0 {
		expires := time.Now().Add(in.ExpiresIn)
		invoice.ExpiresAt = &expires
	}
	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		return nil, nil, err
	}

	resp, err := s.processor.CreatePayment(ctx, s.creds, &CreatePaymentRequest{
		PriceAmount:      in.PriceAmount,
		PriceCurrency:    in.PriceCurrency,
		PayCurrency:      in.PayCurrency,
		OrderID:          invoice.UUID,
		OrderDescription: in.Description,
		IPNCallbackURL:   callbackURL,
	})
	if err != nil {
		// Compensate: the invoice never reached the processor, a payer
		// can not complete it.
		s.db.Model(&invoice).Update("status", models.InvoiceStatusCanceled)
		return nil, nil, fmt.Errorf("processor rejected payment creation: %w", err)
	}

	payment := models.Payment{
		PaymentID:     resp.PaymentID.String(),
		InvoiceID:     invoice.ID,
		MerchantID:    merchant.ID,
		Status:        ipn.StatusWaiting,
		PayAddress:    resp.PayAddress,
		PriceAmount:   in.PriceAmount,
		PriceCurrency: in.PriceCurrency,
		PayCurrency:   resp.PayCurrency,
	}
	if v, ok := numberValue(resp.PayAmount); ok {
		payment.PayAmount = v
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, nil, err
	}

	return &invoice, &payment, nil
}

// findReusableInvoice returns the merchant's open invoice for an order
// id together with its open payment, or nil when none qualifies.
func (s *PaymentService) findReusableInvoice(ctx context.Context, merchantID uint, orderID string) (*models.Invoice, *models.Payment, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND order_id = ? AND status = ?", merchantID, orderID, models.InvoiceStatusActive).
		Order("created_at desc").
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if invoice.ExpiresAt != nil && invoice.ExpiresAt.Before(time.Now()) {
		return nil, nil, nil
	}

	payment, err := s.FindActivePayment(ctx, invoice.ID)
	if err != nil {
		return nil, nil, err
	}
	if payment == nil {
		return nil, nil, nil
	}
	return &invoice, payment, nil
}

// FindActivePayment returns the open payment for an invoice, or nil.
func (s *PaymentService) FindActivePayment(ctx context.Context, invoiceID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at desc").
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	if payment.Status.Terminal() {
		return nil, nil
	}
	return &payment, nil
}

// VerifyPaymentStatus polls the processor for a payment and applies the
// result through the recorder's transition guard. Used as a fallback
// when the payer is waiting on a checkout page and the webhook has not
// arrived yet.
func (s *PaymentService) VerifyPaymentStatus(ctx context.Context, paymentID string) (bool, error) {
	resp, err := s.processor.GetPaymentStatus(ctx, s.creds, paymentID)
	if err != nil {
		return false, err
	}
	return s.webhooks.ApplyPolledStatus(ctx, paymentID, resp)
}

// ExpireInvoices closes active invoices whose deadline passed. The
// worker runs this on a recurring schedule.
func (s *PaymentService) ExpireInvoices(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.InvoiceStatusActive, time.Now()).
		Update("status", models.InvoiceStatusExpired)
	return res.RowsAffected, res.Error
}

// ListOpenPayments returns payments still expecting processor updates,
// oldest first, for the reconciliation sweep.
func (s *PaymentService) ListOpenPayments(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Where("status IN ?", []ipn.PaymentStatus{
			ipn.StatusWaiting, ipn.StatusConfirming, ipn.StatusConfirmed,
			ipn.StatusSending, ipn.StatusPartiallyPaid,
		}).
		Order("updated_at asc").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
