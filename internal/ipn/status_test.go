package ipn

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     PaymentStatus
		to       PaymentStatus
		expected bool
	}{
		{name: "waiting to confirming", from: StatusWaiting, to: StatusConfirming, expected: true},
		{name: "confirming to confirmed", from: StatusConfirming, to: StatusConfirmed, expected: true},
		{name: "confirmed to sending", from: StatusConfirmed, to: StatusSending, expected: true},
		{name: "sending to finished", from: StatusSending, to: StatusFinished, expected: true},
		{name: "skip ahead waiting to finished", from: StatusWaiting, to: StatusFinished, expected: true},
		{name: "partially paid to finished", from: StatusPartiallyPaid, to: StatusFinished, expected: true},
		{name: "confirming to failed", from: StatusConfirming, to: StatusFailed, expected: true},
		{name: "regression finished to confirming", from: StatusFinished, to: StatusConfirming, expected: false},
		{name: "regression confirmed to waiting", from: StatusConfirmed, to: StatusWaiting, expected: false},
		{name: "terminal to terminal", from: StatusFinished, to: StatusRefunded, expected: false},
		{name: "same status redelivery", from: StatusConfirming, to: StatusConfirming, expected: false},
		{name: "unknown target", from: StatusWaiting, to: PaymentStatus("bogus"), expected: false},
		{name: "no stored state", from: PaymentStatus(""), to: StatusWaiting, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition(%q, %q) = %v; want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	terminal := []PaymentStatus{StatusFinished, StatusFailed, StatusRefunded, StatusExpired}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q.Terminal() = false; want true", s)
		}
	}

	open := []PaymentStatus{StatusWaiting, StatusConfirming, StatusConfirmed, StatusSending, StatusPartiallyPaid, StatusWrongAsset}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%q.Terminal() = true; want false", s)
		}
	}
}
