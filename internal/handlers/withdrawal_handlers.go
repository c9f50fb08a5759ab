package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cryptopay_app/internal/models"
	"cryptopay_app/internal/services"
)

type WithdrawalHandler struct {
	db        *gorm.DB
	processor *services.NowPaymentsService
	creds     services.Credentials
}

func NewWithdrawalHandler(db *gorm.DB, processor *services.NowPaymentsService, creds services.Credentials) *WithdrawalHandler {
	return &WithdrawalHandler{db: db, processor: processor, creds: creds}
}

// CreateWithdrawal debits the merchant balance and submits a payout to
// the processor. The balance is debited before the payout call; a
// rejected payout refunds the hold.
func (h *WithdrawalHandler) CreateWithdrawal(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}

	var req CreateWithdrawalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var withdrawal models.Withdrawal
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var balance models.MerchantBalance
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("merchant_id = ? AND currency = ?", merchant.ID, req.Currency).
			First(&balance)
		if result.Error == gorm.ErrRecordNotFound || (result.Error == nil && balance.Amount < req.Amount) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "insufficient balance")
		}
		if result.Error != nil {
			return result.Error
		}

		if err := tx.Model(&balance).
			Update("amount", gorm.Expr("amount - ?", req.Amount)).Error; err != nil {
			return err
		}

		withdrawal = models.Withdrawal{
			MerchantID: merchant.ID,
			Currency:   req.Currency,
			Amount:     req.Amount,
			Address:    req.Address,
			Status:     models.WithdrawalStatusPending,
		}
		return tx.Create(&withdrawal).Error
	})
	if err != nil {
		if httpErr, ok := err.(*echo.HTTPError); ok {
			return httpErr
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create withdrawal")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	resp, err := h.processor.CreatePayout(ctx, h.creds, &services.PayoutRequest{
		Withdrawals: []services.PayoutItem{{
			Address:  req.Address,
			Currency: req.Currency,
			Amount:   req.Amount,
		}},
	})
	if err != nil {
		log.Printf("payout submission failed for withdrawal %d: %v", withdrawal.ID, err)
		if refundErr := h.refund(&withdrawal); refundErr != nil {
			log.Printf("failed to refund withdrawal %d: %v", withdrawal.ID, refundErr)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "payout submission failed")
	}

	payoutID := resp.ID.String()
	updates := map[string]interface{}{
		"payout_id": payoutID,
		"status":    models.WithdrawalStatusSending,
	}
	if err := h.db.Model(&withdrawal).Updates(updates).Error; err != nil {
		log.Printf("failed to record payout id for withdrawal %d: %v", withdrawal.ID, err)
	}

	return c.JSON(http.StatusCreated, withdrawal)
}

// refund reverses the balance hold and marks the withdrawal rejected.
func (h *WithdrawalHandler) refund(withdrawal *models.Withdrawal) error {
	return h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MerchantBalance{}).
			Where("merchant_id = ? AND currency = ?", withdrawal.MerchantID, withdrawal.Currency).
			Update("amount", gorm.Expr("amount + ?", withdrawal.Amount)).Error; err != nil {
			return err
		}
		return tx.Model(withdrawal).
			Update("status", models.WithdrawalStatusRejected).Error
	})
}

// ListWithdrawals returns the merchant's withdrawals, newest first.
func (h *WithdrawalHandler) ListWithdrawals(c echo.Context) error {
	merchant := merchantFromContext(c)
	if merchant == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Merchant not resolved")
	}
	page, pageSize := pageParams(c)

	query := h.db.Model(&models.Withdrawal{}).Where("merchant_id = ?", merchant.ID)
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count withdrawals")
	}

	var withdrawals []models.Withdrawal
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&withdrawals).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list withdrawals")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"data":      withdrawals,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
