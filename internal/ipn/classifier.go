package ipn

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExternalID is a processor-assigned identifier. The processor encodes
// ids as JSON numbers on some endpoints and opaque strings on others;
// both decode to the literal text.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither a string nor a number: %w", err)
	}
	*id = ExternalID(n.String())
	return nil
}

func (id ExternalID) String() string {
	return string(id)
}

// IPNPayload is the payment notification body sent by the processor.
// Amounts stay json.Number so values survive untouched; the processor
// mixes integer and decimal encodings across currencies.
type IPNPayload struct {
	EventID         string        `json:"event_id,omitempty"`
	PaymentID       ExternalID    `json:"payment_id"`
	ParentPaymentID ExternalID    `json:"parent_payment_id,omitempty"`
	InvoiceID       ExternalID    `json:"invoice_id,omitempty"`
	OrderID         string        `json:"order_id,omitempty"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PriceAmount     json.Number   `json:"price_amount,omitempty"`
	PriceCurrency   string        `json:"price_currency,omitempty"`
	PayAmount       json.Number   `json:"pay_amount,omitempty"`
	PayCurrency     string        `json:"pay_currency,omitempty"`
	ActuallyPaid    json.Number   `json:"actually_paid,omitempty"`
	OutcomeAmount   json.Number   `json:"outcome_amount,omitempty"`
	OutcomeCurrency string        `json:"outcome_currency,omitempty"`
}

// ParsePayload decodes and validates a verified raw body.
func ParsePayload(raw []byte) (*IPNPayload, error) {
	var p IPNPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the fields every notification must carry.
func (p *IPNPayload) Validate() error {
	if strings.TrimSpace(p.PaymentID.String()) == "" {
		return fmt.Errorf("missing payment_id")
	}
	if p.PaymentStatus == "" {
		return fmt.Errorf("missing payment_status")
	}
	if !p.PaymentStatus.Valid() {
		return fmt.Errorf("unknown payment_status %q", p.PaymentStatus)
	}
	return nil
}

// DecisionKind tags the processing path for a verified notification.
type DecisionKind string

const (
	DecisionNewPayment    DecisionKind = "new_payment"
	DecisionRepeatDeposit DecisionKind = "repeat_deposit"
	DecisionWrongAsset    DecisionKind = "wrong_asset"
	DecisionStatusUpdate  DecisionKind = "status_update"
)

// Decision is the classified business event for one notification.
type Decision struct {
	Kind            DecisionKind
	Status          PaymentStatus
	ParentPaymentID string
	// ApplyBalance marks deliveries that settle funds; the recorder
	// credits the merchant balance exactly once for them.
	ApplyBalance bool
}

// Classify maps a verified payload onto its processing path. Pure
// function of the payload: all I/O stays with the recorder.
func Classify(p *IPNPayload) Decision {
	d := Decision{
		Status:       p.PaymentStatus,
		ApplyBalance: p.PaymentStatus == StatusFinished,
	}

	switch {
	case p.PaymentStatus == StatusWrongAsset:
		// Payer sent an unexpected asset. Parked for manual
		// reconciliation, never credited automatically.
		d.Kind = DecisionWrongAsset
		d.ApplyBalance = false
	case p.ParentPaymentID.String() != "":
		// A child deposit against an existing payment, e.g. the payer
		// topping up a partially paid invoice.
		d.Kind = DecisionRepeatDeposit
		d.ParentPaymentID = p.ParentPaymentID.String()
	case p.PaymentStatus == StatusWaiting:
		d.Kind = DecisionNewPayment
	default:
		d.Kind = DecisionStatusUpdate
	}

	return d
}
