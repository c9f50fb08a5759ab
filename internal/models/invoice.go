package models

import (
	"time"

	"gorm.io/gorm"
)

// InvoiceStatus represents the lifecycle of a merchant invoice
type InvoiceStatus string

const (
	InvoiceStatusActive   InvoiceStatus = "active"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusExpired  InvoiceStatus = "expired"
	InvoiceStatusCanceled InvoiceStatus = "canceled"
)

// Invoice is a merchant-created payment request. Payers reach it
// through the public checkout endpoints; the processor reports against
// it via payments.
type Invoice struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UUID       string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	MerchantID uint   `gorm:"index" json:"merchant_id"`

	OrderID     string `gorm:"type:varchar(100);index" json:"order_id"`
	Description string `gorm:"type:text" json:"description"`

	PriceAmount   float64 `gorm:"type:decimal(30,12)" json:"price_amount"`
	PriceCurrency string  `gorm:"type:varchar(20)" json:"price_currency"`
	PayCurrency   string  `gorm:"type:varchar(20)" json:"pay_currency"`

	CallbackURL string `gorm:"type:text" json:"callback_url"`
	SuccessURL  string `gorm:"type:text" json:"success_url"`

	Status    InvoiceStatus `gorm:"type:varchar(20);index" json:"status"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`

	// Relationships
	Merchant Merchant  `gorm:"foreignKey:MerchantID" json:"merchant,omitempty"`
	Payments []Payment `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}
