package ipn

// PaymentStatus is a payment state as reported by the processor's IPN
// callbacks.
type PaymentStatus string

const (
	StatusWaiting       PaymentStatus = "waiting"
	StatusConfirming    PaymentStatus = "confirming"
	StatusConfirmed     PaymentStatus = "confirmed"
	StatusSending       PaymentStatus = "sending"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusFinished      PaymentStatus = "finished"
	StatusFailed        PaymentStatus = "failed"
	StatusRefunded      PaymentStatus = "refunded"
	StatusExpired       PaymentStatus = "expired"
	StatusWrongAsset    PaymentStatus = "wrong_asset"
)

// statusRank orders statuses along the processor state machine:
//
//	waiting -> confirming -> {confirmed, failed} -> {sending -> finished, refunded, expired}
//
// partially_paid and wrong_asset branch off before confirmation.
// Deliveries arrive out of order; a transition is applied only when the
// incoming rank is strictly higher than the stored one.
var statusRank = map[PaymentStatus]int{
	StatusWaiting:       1,
	StatusConfirming:    2,
	StatusPartiallyPaid: 3,
	StatusWrongAsset:    3,
	StatusConfirmed:     3,
	StatusSending:       4,
	StatusFinished:      5,
	StatusFailed:        5,
	StatusRefunded:      5,
	StatusExpired:       5,
}

// Valid reports whether s is a status the processor is known to emit.
func (s PaymentStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transitions are expected after s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether a payment currently stored at from may
// move to to. Equal or lower ranks are rejected so a late redelivery of
// an earlier state never regresses the derived payment row.
func CanTransition(from, to PaymentStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		// No stored state yet, anything valid applies.
		return to.Valid()
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
