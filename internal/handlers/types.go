package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator wires go-playground/validator into Echo so handlers
// can bind-and-validate in one step.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// CreateInvoiceRequest is the merchant API body for POST /api/invoices.
type CreateInvoiceRequest struct {
	OrderID       string  `json:"order_id"`
	Description   string  `json:"description"`
	PriceAmount   float64 `json:"price_amount" validate:"required,gt=0"`
	PriceCurrency string  `json:"price_currency" validate:"required,min=3,max=20"`
	PayCurrency   string  `json:"pay_currency" validate:"required,min=2,max=20"`
	SuccessURL    string  `json:"success_url" validate:"omitempty,url"`
	ExpiresInMin  int     `json:"expires_in_min" validate:"omitempty,gt=0"`
	// ForceNew opens a fresh invoice even when an active one exists
	// for the same order id.
	ForceNew bool `json:"force_new"`
}

// CreateWithdrawalRequest is the body for POST /api/withdrawals.
type CreateWithdrawalRequest struct {
	Currency string  `json:"currency" validate:"required,min=2,max=20"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Address  string  `json:"address" validate:"required"`
}
