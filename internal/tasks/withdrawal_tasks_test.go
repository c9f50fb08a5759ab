package tasks

import (
	"testing"

	"cryptopay_app/internal/models"
)

func TestPayoutState(t *testing.T) {
	tests := []struct {
		processorStatus string
		want            models.WithdrawalStatus
		terminal        bool
	}{
		{"FINISHED", models.WithdrawalStatusFinished, true},
		{"finished", models.WithdrawalStatusFinished, true},
		{"FAILED", models.WithdrawalStatusFailed, true},
		{"REJECTED", models.WithdrawalStatusRejected, true},
		{"rejected", models.WithdrawalStatusRejected, true},
		{"WAITING", "", false},
		{"SENDING", "", false},
		{"PROCESSING", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, terminal := payoutState(tt.processorStatus)
		if got != tt.want || terminal != tt.terminal {
			t.Errorf("payoutState(%q) = (%q, %v); want (%q, %v)",
				tt.processorStatus, got, terminal, tt.want, tt.terminal)
		}
	}
}
