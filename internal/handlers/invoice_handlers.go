package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"cryptopay_app/internal/models"
	"cryptopay_app/internal/services"
)

type InvoiceHandler struct {
	db             *gorm.DB
	paymentService *services.PaymentService
}

func NewInvoiceHandler(db *gorm.DB, paymentService *services.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{db: db, paymentService: paymentService}
}

// CreateInvoice opens an invoice and its processor payment for the
// authenticated merchant.
func (h *InvoiceHandler) CreateInvoice(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}

	var req CreateInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	callbackURL := getEnv("APP_URL", "http://localhost:8080") + "/webhooks/nowpayments"

	in := &services.CreateInvoiceInput{
		OrderID:       req.OrderID,
		Description:   req.Description,
		PriceAmount:   req.PriceAmount,
		PriceCurrency: req.PriceCurrency,
		PayCurrency:   req.PayCurrency,
		SuccessURL:    req.SuccessURL,
	}
	if req.ExpiresInMin > 0 {
		in.ExpiresIn = time.Duration(req.ExpiresInMin) * time.Minute
	}
	in.ForceNew = req.ForceNew

	invoice, payment, err := h.paymentService.CreateInvoice(c.Request().Context(), merchant, in, callbackURL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to create invoice: "+err.Error())
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"invoice":      invoice,
		"payment_id":   payment.PaymentID,
		"pay_address":  payment.PayAddress,
		"pay_amount":   payment.PayAmount,
		"pay_currency": payment.PayCurrency,
	})
}

// ListInvoices returns the merchant's invoices, newest first, with
// optional status filtering.
func (h *InvoiceHandler) ListInvoices(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}

	page, pageSize := pageParams(c)

	query := h.db.Model(&models.Invoice{}).Where("merchant_id = ?", merchant.ID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to count invoices")
	}

	var invoices []models.Invoice
	err := query.Order("created_at desc").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&invoices).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch invoices")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"invoices":    invoices,
		"page":        page,
		"page_size":   pageSize,
		"total_count": totalCount,
	})
}

// GetInvoice returns one invoice with its payments.
func (h *InvoiceHandler) GetInvoice(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}

	var invoice models.Invoice
	err := h.db.Preload("Payments").
		Where("uuid = ? AND merchant_id = ?", c.Param("uuid"), merchant.ID).
		First(&invoice).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Invoice not found")
	}

	return c.JSON(http.StatusOK, invoice)
}
