package models

import (
	"time"
)

// MerchantBalance holds settled funds per merchant and currency. Rows
// are only ever mutated by delta-upserts inside the same transaction
// that records the settling webhook event, so a redelivered event can
// never credit twice.
type MerchantBalance struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MerchantID uint    `gorm:"uniqueIndex:idx_merchant_balance_currency" json:"merchant_id"`
	Currency   string  `gorm:"type:varchar(20);uniqueIndex:idx_merchant_balance_currency" json:"currency"`
	Amount     float64 `gorm:"type:decimal(30,12)" json:"amount"`
}
