package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestProcessor(t *testing.T, handler http.HandlerFunc) *NowPaymentsService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &NowPaymentsService{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func TestCreatePaymentSendsCredentials(t *testing.T) {
	var gotKey, gotPath string
	var gotBody CreatePaymentRequest

	svc := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"payment_id":4745314525,"payment_status":"waiting","pay_address":"addr1","pay_amount":0.1057,"pay_currency":"btc","order_id":"inv-uuid"}`))
	})

	resp, err := svc.CreatePayment(context.Background(), Credentials{APIKey: "key-1"}, &CreatePaymentRequest{
		PriceAmount:   100,
		PriceCurrency: "usd",
		PayCurrency:   "btc",
		OrderID:       "inv-uuid",
	})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	if gotKey != "key-1" {
		t.Errorf("x-api-key = %q; want %q", gotKey, "key-1")
	}
	if gotPath != "/payment" {
		t.Errorf("path = %q; want /payment", gotPath)
	}
	if gotBody.PriceAmount != 100 || gotBody.PayCurrency != "btc" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
	if resp.PaymentID.String() != "4745314525" {
		t.Errorf("payment id = %q; want 4745314525", resp.PaymentID.String())
	}
	if resp.PaymentStatus != "waiting" {
		t.Errorf("status = %q; want waiting", resp.PaymentStatus)
	}
}

func TestGetPaymentStatus(t *testing.T) {
	svc := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/4745314525" {
			t.Errorf("path = %q; want /payment/4745314525", r.URL.Path)
		}
		w.Write([]byte(`{"payment_id":4745314525,"payment_status":"finished","outcome_amount":0.1042,"outcome_currency":"btc"}`))
	})

	resp, err := svc.GetPaymentStatus(context.Background(), Credentials{APIKey: "k"}, "4745314525")
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if resp.PaymentStatus != "finished" {
		t.Errorf("status = %q; want finished", resp.PaymentStatus)
	}
	if resp.OutcomeAmount.String() != "0.1042" {
		t.Errorf("outcome amount = %q; want 0.1042", resp.OutcomeAmount.String())
	}
}

func TestProcessorErrorResponses(t *testing.T) {
	svc := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Invalid api key"}`))
	})

	_, err := svc.CreatePayment(context.Background(), Credentials{APIKey: "bad"}, &CreatePaymentRequest{})
	if err == nil {
		t.Fatal("CreatePayment succeeded with a 403 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is %T; want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status code = %d; want 403", apiErr.StatusCode)
	}
}

func TestListCurrencies(t *testing.T) {
	svc := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/currencies" {
			t.Errorf("path = %q; want /currencies", r.URL.Path)
		}
		w.Write([]byte(`{"currencies":["btc","eth","usdttrc20"]}`))
	})

	resp, err := svc.ListCurrencies(context.Background(), Credentials{APIKey: "k"})
	if err != nil {
		t.Fatalf("ListCurrencies failed: %v", err)
	}
	if len(resp.Currencies) != 3 || resp.Currencies[0] != "btc" {
		t.Errorf("unexpected currencies: %v", resp.Currencies)
	}
}

func TestGetPayoutStatus(t *testing.T) {
	var gotKey string
	svc := newTestProcessor(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if r.URL.Path != "/payout/5000000001" {
			t.Errorf("path = %q; want /payout/5000000001", r.URL.Path)
		}
		w.Write([]byte(`{"id":5000000001,"withdrawals":[{"id":1,"address":"addr1","currency":"btc","amount":0.5,"status":"FINISHED"}]}`))
	})

	resp, err := svc.GetPayoutStatus(context.Background(), Credentials{APIKey: "k"}, "5000000001")
	if err != nil {
		t.Fatalf("GetPayoutStatus failed: %v", err)
	}
	if gotKey != "k" {
		t.Errorf("x-api-key = %q; want k", gotKey)
	}
	if len(resp.Withdrawals) != 1 || resp.Withdrawals[0].Status != "FINISHED" {
		t.Errorf("unexpected payout batch: %+v", resp)
	}
}
