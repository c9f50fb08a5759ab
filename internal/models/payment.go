package models

import (
	"time"

	"gorm.io/gorm"

	"cryptopay_app/internal/ipn"
)

// Payment is the derived state of one processor payment, folded from
// the webhook event log and reconciliation polls. Status only ever
// moves forward along the processor state machine.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// PaymentID is the processor-assigned identifier.
	PaymentID       string  `gorm:"type:varchar(100);uniqueIndex" json:"payment_id"`
	ParentPaymentID *string `gorm:"type:varchar(100);index" json:"parent_payment_id,omitempty"`

	InvoiceID  uint `gorm:"index" json:"invoice_id"`
	MerchantID uint `gorm:"index" json:"merchant_id"`

	Status ipn.PaymentStatus `gorm:"type:varchar(50);index" json:"status"`

	// PayAddress is the deposit address the processor issued for this
	// payment.
	PayAddress string `gorm:"type:varchar(255)" json:"pay_address"`

	PriceAmount     float64 `gorm:"type:decimal(30,12)" json:"price_amount"`
	PriceCurrency   string  `gorm:"type:varchar(20)" json:"price_currency"`
	PayAmount       float64 `gorm:"type:decimal(30,12)" json:"pay_amount"`
	PayCurrency     string  `gorm:"type:varchar(20)" json:"pay_currency"`
	ActuallyPaid    float64 `gorm:"type:decimal(30,12)" json:"actually_paid"`
	OutcomeAmount   float64 `gorm:"type:decimal(30,12)" json:"outcome_amount"`
	OutcomeCurrency string  `gorm:"type:varchar(20)" json:"outcome_currency"`

	// NotifiedAt is set once the merchant has been told about the
	// settled payment.
	NotifiedAt *time.Time `json:"notified_at,omitempty"`

	// Relationships
	Invoice  Invoice  `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Merchant Merchant `gorm:"foreignKey:MerchantID" json:"merchant,omitempty"`
}
