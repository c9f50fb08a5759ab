package models

import (
	"time"
)

// WebhookEvent is the append-only log of verified IPN deliveries.
// Rows are written once at ingestion and never updated or deleted;
// payment rows and merchant balances are derived from this log, the
// log itself is the audit trail. Only deliveries that passed signature
// verification are ever persisted.
type WebhookEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// ExternalEventID is the idempotency key; concurrent redeliveries
	// race on this unique index, not on application-level checks.
	ExternalEventID string `gorm:"type:varchar(255);uniqueIndex" json:"external_event_id"`

	PaymentID       string  `gorm:"type:varchar(100);index" json:"payment_id"`
	ParentPaymentID *string `gorm:"type:varchar(100)" json:"parent_payment_id,omitempty"`
	PaymentStatus   string  `gorm:"type:varchar(50)" json:"payment_status"`
	DecisionKind    string  `gorm:"type:varchar(50)" json:"decision_kind"`

	// RawBody keeps the exact bytes as transmitted, the same bytes the
	// signature was verified against.
	RawBody        []byte `gorm:"type:bytea" json:"raw_body"`
	SignatureValid bool   `gorm:"not null" json:"signature_valid"`

	// TransitionApplied is false for deliveries that were recorded for
	// audit but rejected from mutating the derived payment state.
	TransitionApplied bool      `json:"transition_applied"`
	ReceivedAt        time.Time `json:"received_at"`
}
