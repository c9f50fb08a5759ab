package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"cryptopay_app/internal/models"
)

type PaymentHandler struct {
	db *gorm.DB
}

func NewPaymentHandler(db *gorm.DB) *PaymentHandler {
	return &PaymentHandler{db: db}
}

// ListPayments returns the merchant's payments, newest first. Supports
// optional ?status= and ?invoice_id= filters plus pagination.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}
	page, pageSize := pageParams(c)

	query := h.db.Model(&models.Payment{}).Where("merchant_id = ?", merchant.ID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if invoiceID := c.QueryParam("invoice_id"); invoiceID != "" {
		query = query.Where("invoice_id = ?", invoiceID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count payments")
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payments).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list payments")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data":      payments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetPayment returns a single payment by its processor payment id,
// scoped to the authenticated merchant.
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}

	var payment models.Payment
	result := h.db.Where("payment_id = ? AND merchant_id = ?", c.Param("id"), merchant.ID).
		First(&payment)
	if result.Error == gorm.ErrRecordNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "payment not found")
	}
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch payment")
	}

	return c.JSON(http.StatusOK, payment)
}

// ListBalances returns the merchant's per-currency settled balances.
func (h *PaymentHandler) ListBalances(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}

	var balances []models.MerchantBalance
	if err := h.db.Where("merchant_id = ?", merchant.ID).
		Order("currency ASC").
		Find(&balances).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list balances")
	}

	return c.JSON(http.StatusOK, echo.Map{"data": balances})
}
