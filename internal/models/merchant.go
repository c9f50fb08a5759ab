package models

import (
	"time"

	"gorm.io/gorm"
)

// Merchant is an account on the platform. The merchant API
// authenticates by APIKey. Webhook signatures are checked against the
// platform's processor-account secret, not a per-merchant one.
type Merchant struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name  string `gorm:"type:varchar(255)" json:"name"`
	Email string `gorm:"type:varchar(255);uniqueIndex" json:"email"`

	APIKey string `gorm:"type:varchar(64);uniqueIndex" json:"-"`

	PayoutAddress  string `gorm:"type:varchar(255)" json:"payout_address"`
	PayoutCurrency string `gorm:"type:varchar(20)" json:"payout_currency"`

	// Relationships
	Invoices    []Invoice         `gorm:"foreignKey:MerchantID" json:"invoices,omitempty"`
	Balances    []MerchantBalance `gorm:"foreignKey:MerchantID" json:"balances,omitempty"`
	Withdrawals []Withdrawal      `gorm:"foreignKey:MerchantID" json:"withdrawals,omitempty"`
}
