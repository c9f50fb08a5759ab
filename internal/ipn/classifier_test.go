package ipn

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		expectedKind DecisionKind
		parentID     string
		applyBalance bool
	}{
		{
			name:         "fresh payment",
			payload:      `{"payment_id":"p1","payment_status":"waiting"}`,
			expectedKind: DecisionNewPayment,
		},
		{
			name:         "status progress",
			payload:      `{"payment_id":"p1","payment_status":"confirming"}`,
			expectedKind: DecisionStatusUpdate,
		},
		{
			name:         "settled payment credits balance",
			payload:      `{"payment_id":"p1","payment_status":"finished","outcome_amount":0.5,"outcome_currency":"btc"}`,
			expectedKind: DecisionStatusUpdate,
			applyBalance: true,
		},
		{
			name:         "repeat deposit",
			payload:      `{"payment_id":"p2","parent_payment_id":"p1","payment_status":"finished"}`,
			expectedKind: DecisionRepeatDeposit,
			parentID:     "p1",
			applyBalance: true,
		},
		{
			name:         "repeat deposit numeric ids",
			payload:      `{"payment_id":5001,"parent_payment_id":5000,"payment_status":"confirming"}`,
			expectedKind: DecisionRepeatDeposit,
			parentID:     "5000",
		},
		{
			name:         "wrong asset never credits",
			payload:      `{"payment_id":"p3","payment_status":"wrong_asset"}`,
			expectedKind: DecisionWrongAsset,
		},
		{
			name:         "wrong asset wins over parent id",
			payload:      `{"payment_id":"p4","parent_payment_id":"p1","payment_status":"wrong_asset"}`,
			expectedKind: DecisionWrongAsset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParsePayload failed: %v", err)
			}

			d := Classify(p)
			if d.Kind != tt.expectedKind {
				t.Errorf("Classify kind = %q; want %q", d.Kind, tt.expectedKind)
			}
			if d.ParentPaymentID != tt.parentID {
				t.Errorf("Classify parent = %q; want %q", d.ParentPaymentID, tt.parentID)
			}
			if d.ApplyBalance != tt.applyBalance {
				t.Errorf("Classify applyBalance = %v; want %v", d.ApplyBalance, tt.applyBalance)
			}
		})
	}
}

func TestParsePayloadIDEncodings(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantID     string
		wantParent string
	}{
		{
			name:    "numeric id",
			payload: `{"payment_id":4745314525,"payment_status":"waiting"}`,
			wantID:  "4745314525",
		},
		{
			name:    "quoted numeric id",
			payload: `{"payment_id":"4745314525","payment_status":"waiting"}`,
			wantID:  "4745314525",
		},
		{
			name:    "opaque string id",
			payload: `{"payment_id":"p1","payment_status":"confirmed"}`,
			wantID:  "p1",
		},
		{
			name:       "string ids on a repeat deposit",
			payload:    `{"payment_id":"dep-2","parent_payment_id":"pay_abc","payment_status":"finished"}`,
			wantID:     "dep-2",
			wantParent: "pay_abc",
		},
		{
			name:    "null parent id",
			payload: `{"payment_id":"p1","parent_payment_id":null,"payment_status":"waiting"}`,
			wantID:  "p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParsePayload failed: %v", err)
			}
			if p.PaymentID.String() != tt.wantID {
				t.Errorf("payment id = %q; want %q", p.PaymentID, tt.wantID)
			}
			if p.ParentPaymentID.String() != tt.wantParent {
				t.Errorf("parent id = %q; want %q", p.ParentPaymentID, tt.wantParent)
			}
		})
	}
}

func TestParsePayloadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing payment id", payload: `{"payment_status":"waiting"}`},
		{name: "missing status", payload: `{"payment_id":"p1"}`},
		{name: "unknown status", payload: `{"payment_id":"p1","payment_status":"levitating"}`},
		{name: "not an object", payload: `[1,2,3]`},
		{name: "object payment id", payload: `{"payment_id":{"v":1},"payment_status":"waiting"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePayload([]byte(tt.payload)); err == nil {
				t.Errorf("ParsePayload(%q) succeeded; want error", tt.payload)
			}
		})
	}
}
