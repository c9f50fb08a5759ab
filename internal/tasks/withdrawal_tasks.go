package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"cryptopay_app/internal/models"
)

// ReconcileWithdrawalsTaskDef polls the processor for payouts still in
// flight and settles their terminal state. A failed or rejected payout
// returns the held funds to the merchant balance.
type ReconcileWithdrawalsTaskDef struct {
	deps *Deps
}

// TaskID returns the unique identifier for this task
func (t *ReconcileWithdrawalsTaskDef) TaskID() string {
	return "reconcile_withdrawals"
}

// HandleExecution sweeps submitted withdrawals
func (t *ReconcileWithdrawalsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	limit := intArg(task.Arguments, "limit", 100)

	var withdrawals []models.Withdrawal
	err := t.deps.DB.WithContext(ctx).
		Where("status = ? AND payout_id IS NOT NULL", models.WithdrawalStatusSending).
		Order("updated_at asc").
		Limit(limit).
		Find(&withdrawals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open withdrawals: %w", err)
	}

	var settled, failed int
	for _, w := range withdrawals {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := t.deps.Processor.GetPayoutStatus(ctx, t.deps.Creds, *w.PayoutID)
		if err != nil {
			failed++
			log.Printf("[Task: reconcile_withdrawals] poll failed for payout %s: %v", *w.PayoutID, err)
			continue
		}
		if len(resp.Withdrawals) == 0 {
			continue
		}
		// Batches are submitted with a single withdrawal, so the first
		// item's status is the batch status.
		state, terminal := payoutState(resp.Withdrawals[0].Status)
		if !terminal {
			continue
		}

		if err := t.settle(&w, state); err != nil {
			failed++
			log.Printf("[Task: reconcile_withdrawals] failed to settle withdrawal %d: %v", w.ID, err)
			continue
		}
		settled++
	}

	return map[string]interface{}{
		"status":  "success",
		"swept":   len(withdrawals),
		"settled": settled,
		"failed":  failed,
	}, nil
}

// settle records a payout's terminal state. Funds were debited when
// the withdrawal was created, so anything but a completed payout puts
// them back.
func (t *ReconcileWithdrawalsTaskDef) settle(w *models.Withdrawal, state models.WithdrawalStatus) error {
	return t.deps.DB.Transaction(func(tx *gorm.DB) error {
		if state != models.WithdrawalStatusFinished {
			err := tx.Model(&models.MerchantBalance{}).
				Where("merchant_id = ? AND currency = ?", w.MerchantID, w.Currency).
				Update("amount", gorm.Expr("amount + ?", w.Amount)).Error
			if err != nil {
				return err
			}
		}
		return tx.Model(w).Update("status", state).Error
	})
}

// payoutState maps a processor payout status onto the withdrawal state
// machine. The second return is false for non-terminal states, which
// leave the withdrawal untouched until a later sweep.
func payoutState(processorStatus string) (models.WithdrawalStatus, bool) {
	switch strings.ToUpper(processorStatus) {
	case "FINISHED":
		return models.WithdrawalStatusFinished, true
	case "FAILED":
		return models.WithdrawalStatusFailed, true
	case "REJECTED":
		return models.WithdrawalStatusRejected, true
	}
	return "", false
}
