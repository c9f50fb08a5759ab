package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"cryptopay_app/internal/models"
)

// reconcileLockTTL keeps a second worker from running the sweep
// concurrently. Generously longer than one sweep takes.
const reconcileLockTTL = 10 * time.Minute

// ReconcilePaymentsTaskDef polls the processor for every payment still
// expecting updates and folds the answers through the same transition
// guard webhooks use. This is the safety net for lost deliveries.
type ReconcilePaymentsTaskDef struct {
	deps *Deps
}

// TaskID returns the unique identifier for this task
func (t *ReconcilePaymentsTaskDef) TaskID() string {
	return "reconcile_payments"
}

// HandleExecution sweeps open payments. The batch size is configurable
// through the "limit" argument.
func (t *ReconcilePaymentsTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	lockKey := "lock:" + t.TaskID()
	acquired, err := t.deps.Cache.AcquireLock(ctx, lockKey, reconcileLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire reconcile lock: %w", err)
	}
	if !acquired {
		return map[string]interface{}{"status": "skipped", "reason": "sweep already running"}, nil
	}
	defer func() {
		if err := t.deps.Cache.ReleaseLock(context.Background(), lockKey); err != nil {
			log.Printf("[Task: reconcile_payments] failed to release lock: %v", err)
		}
	}()

	limit := intArg(task.Arguments, "limit", 100)
	payments, err := t.deps.Payments.ListOpenPayments(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list open payments: %w", err)
	}

	var applied, failed int
	for _, payment := range payments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		changed, err := t.deps.Payments.VerifyPaymentStatus(ctx, payment.PaymentID)
		if err != nil {
			failed++
			log.Printf("[Task: reconcile_payments] poll failed for payment %s: %v", payment.PaymentID, err)
			continue
		}
		if changed {
			applied++
		}
	}

	return map[string]interface{}{
		"status":  "success",
		"swept":   len(payments),
		"applied": applied,
		"failed":  failed,
	}, nil
}

// ExpireInvoicesTaskDef closes active invoices whose deadline passed.
type ExpireInvoicesTaskDef struct {
	deps *Deps
}

// TaskID returns the unique identifier for this task
func (t *ExpireInvoicesTaskDef) TaskID() string {
	return "expire_invoices"
}

// HandleExecution expires overdue invoices
func (t *ExpireInvoicesTaskDef) HandleExecution(ctx context.Context, task models.ScheduledTask) (map[string]interface{}, error) {
	expired, err := t.deps.Payments.ExpireInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to expire invoices: %w", err)
	}
	if expired > 0 {
		log.Printf("[Task: expire_invoices] expired %d invoices", expired)
	}
	return map[string]interface{}{
		"status":  "success",
		"expired": expired,
	}, nil
}
