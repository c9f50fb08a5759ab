package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"cryptopay_app/internal/models"
	"cryptopay_app/internal/services"
)

// statusCacheTTL bounds how often a public status poll hits the
// database and the processor.
const statusCacheTTL = 10 * time.Second

// PublicHandler serves the unauthenticated invoice pages a merchant
// links their customers to.
type PublicHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	cache    *services.RedisCache
}

func NewPublicHandler(db *gorm.DB, payments *services.PaymentService, cache *services.RedisCache) *PublicHandler {
	return &PublicHandler{db: db, payments: payments, cache: cache}
}

type publicStatusResponse struct {
	InvoiceStatus models.InvoiceStatus `json:"invoice_status"`
	PaymentStatus string               `json:"payment_status,omitempty"`
	PayAddress    string               `json:"pay_address,omitempty"`
	PayAmount     float64              `json:"pay_amount,omitempty"`
	PayCurrency   string               `json:"pay_currency,omitempty"`
}

// GetInvoice returns the public view of an invoice by its uuid.
func (h *PublicHandler) GetInvoice(c echo.Context) error {
	var invoice models.Invoice
	result := h.db.Where("uuid = ?", c.Param("uuid")).First(&invoice)
	if result.Error == gorm.ErrRecordNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
	}
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch invoice")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"uuid":           invoice.UUID,
		"description":    invoice.Description,
		"price_amount":   invoice.PriceAmount,
		"price_currency": invoice.PriceCurrency,
		"status":         invoice.Status,
		"expires_at":     invoice.ExpiresAt,
	})
}

// GetInvoiceStatus returns the current payment state of an invoice.
// Responses are cached briefly; on a cache miss the active payment is
// re-verified against the processor so a customer polling the page sees
// progress even if a webhook was lost.
func (h *PublicHandler) GetInvoiceStatus(c echo.Context) error {
	uuid := c.Param("uuid")
	ctx := c.Request().Context()

	status, err := services.GetOrSet(h.cache, ctx, "invoice_status:"+uuid, statusCacheTTL, func() (publicStatusResponse, error) {
		var invoice models.Invoice
		result := h.db.Where("uuid = ?", uuid).First(&invoice)
		if result.Error != nil {
			return publicStatusResponse{}, result.Error
		}

		resp := publicStatusResponse{InvoiceStatus: invoice.Status}

		payment, err := h.payments.FindActivePayment(ctx, invoice.ID)
		if err != nil {
			return publicStatusResponse{}, err
		}
		if payment == nil {
			return resp, nil
		}

		if !payment.Status.Terminal() {
			if _, err := h.payments.VerifyPaymentStatus(ctx, payment.PaymentID); err != nil {
				log.Printf("status verification failed for payment %s: %v", payment.PaymentID, err)
			} else if err := h.db.Where("id = ?", payment.ID).First(payment).Error; err != nil {
				return publicStatusResponse{}, err
			}
		}

		resp.PaymentStatus = string(payment.Status)
		resp.PayAddress = payment.PayAddress
		resp.PayAmount = payment.PayAmount
		resp.PayCurrency = payment.PayCurrency
		return resp, nil
	})
	if err == gorm.ErrRecordNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch invoice status")
	}

	return c.JSON(http.StatusOK, status)
}
