package models

import (
	"time"

	"gorm.io/gorm"
)

// WithdrawalStatus tracks a payout through the processor
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusSending  WithdrawalStatus = "sending"
	WithdrawalStatusFinished WithdrawalStatus = "finished"
	WithdrawalStatusFailed   WithdrawalStatus = "failed"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
)

// Withdrawal records a merchant payout request executed through the
// processor's custodial account.
type Withdrawal struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	MerchantID uint `gorm:"index" json:"merchant_id"`

	// PayoutID is assigned by the processor once the batch is accepted.
	PayoutID *string `gorm:"type:varchar(100);index" json:"payout_id,omitempty"`

	Currency string  `gorm:"type:varchar(20)" json:"currency"`
	Amount   float64 `gorm:"type:decimal(30,12)" json:"amount"`
	Address  string  `gorm:"type:varchar(255)" json:"address"`

	Status WithdrawalStatus `gorm:"type:varchar(20);index" json:"status"`

	// Relationships
	Merchant Merchant `gorm:"foreignKey:MerchantID" json:"merchant,omitempty"`
}
