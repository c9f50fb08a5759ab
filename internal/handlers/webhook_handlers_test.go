package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"cryptopay_app/internal/ipn"
)

type fakeEventStore struct {
	events   map[string]*ipn.EventRecord
	statuses map[string]ipn.PaymentStatus
	failWith error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:   make(map[string]*ipn.EventRecord),
		statuses: make(map[string]ipn.PaymentStatus),
	}
}

func (s *fakeEventStore) InsertIfAbsent(ctx context.Context, rec *ipn.EventRecord) (ipn.RecordOutcome, error) {
	if s.failWith != nil {
		return ipn.RecordOutcome{}, s.failWith
	}
	if _, ok := s.events[rec.ExternalEventID]; ok {
		return ipn.RecordOutcome{}, nil
	}
	s.events[rec.ExternalEventID] = rec

	if !ipn.CanTransition(s.statuses[rec.PaymentID], rec.Status) {
		return ipn.RecordOutcome{Inserted: true}, nil
	}
	s.statuses[rec.PaymentID] = rec.Status
	return ipn.RecordOutcome{
		Inserted:          true,
		TransitionApplied: true,
		BalanceApplied:    rec.Decision.ApplyBalance,
	}, nil
}

const testSecret = "ipn-secret-for-tests"

func newWebhookTestServer(store ipn.EventStore) *echo.Echo {
	e := echo.New()
	verifier := ipn.NewVerifier(testSecret)
	handler := NewWebhookHandler(ipn.NewPipeline(verifier, store))
	e.POST("/webhooks/nowpayments", handler.HandleIPN)
	return e
}

func signBody(t *testing.T, body string) string {
	t.Helper()
	canonical, err := ipn.Canonicalize([]byte(body))
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	return ipn.NewVerifier(testSecret).Sign(canonical)
}

func deliver(e *echo.Echo, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/nowpayments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set("x-nowpayments-sig", signature)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleIPNRecordsVerifiedDelivery(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	body := `{"payment_id":4745314525,"payment_status":"finished","order_id":"inv-1","pay_amount":0.1042,"pay_currency":"btc"}`
	rec := deliver(e, body, signBody(t, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("body = %s; want ok:true", rec.Body.String())
	}
	if len(store.events) != 1 {
		t.Fatalf("stored %d events; want 1", len(store.events))
	}
	if store.statuses["4745314525"] != ipn.StatusFinished {
		t.Errorf("payment status = %q; want finished", store.statuses["4745314525"])
	}
}

func TestHandleIPNAcceptsStringPaymentID(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	body := `{"payment_id":"pay_abc","payment_status":"waiting","order_id":"inv-9"}`
	rec := deliver(e, body, signBody(t, body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if store.statuses["pay_abc"] != ipn.StatusWaiting {
		t.Errorf("payment status = %q; want waiting", store.statuses["pay_abc"])
	}
}

func TestHandleIPNReplayedDeliveryIsIdempotent(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	body := `{"payment_id":1,"payment_status":"confirming"}`
	sig := signBody(t, body)

	for i := 0; i < 4; i++ {
		rec := deliver(e, body, sig)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d; want 200", i, rec.Code)
		}
	}
	if len(store.events) != 1 {
		t.Errorf("stored %d events after replays; want 1", len(store.events))
	}
}

func TestHandleIPNAcceptsReorderedKeys(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	// Signature computed over one key order, delivery arrives in
	// another. Canonicalization must make them agree.
	signed := `{"order_id":"inv-2","payment_id":77,"payment_status":"waiting"}`
	delivered := `{"payment_status":"waiting","payment_id":77,"order_id":"inv-2"}`

	rec := deliver(e, delivered, signBody(t, signed))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleIPNRejectsBadSignature(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	body := `{"payment_id":2,"payment_status":"finished"}`
	tampered := `{"payment_id":2,"payment_status":"finished","actually_paid":9999}`

	rec := deliver(e, tampered, signBody(t, body))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "BAD_SIG") {
		t.Errorf("body = %s; want BAD_SIG", rec.Body.String())
	}
	if len(store.events) != 0 {
		t.Errorf("stored %d events for a rejected delivery; want 0", len(store.events))
	}
}

func TestHandleIPNRejectsMissingSignature(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	body := `{"payment_id":3,"payment_status":"waiting"}`
	rec := deliver(e, body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", rec.Code)
	}
}

func TestHandleIPNRejectsMalformedBody(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	cases := []struct {
		name string
		body string
	}{
		{"truncated json", `{"payment_id":4,`},
		{"not an object", `[1,2,3]`},
		{"missing payment id", `{"payment_status":"waiting"}`},
		{"unknown status", `{"payment_id":4,"payment_status":"exploded"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Unparseable bodies fail before verification; the rest
			// must carry a valid signature so the payload check is
			// what rejects them.
			sig := "00"
			if canonical, err := ipn.Canonicalize([]byte(tc.body)); err == nil {
				sig = ipn.NewVerifier(testSecret).Sign(canonical)
			}
			rec := deliver(e, tc.body, sig)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "MALFORMED") {
				t.Errorf("body = %s; want MALFORMED", rec.Body.String())
			}
		})
	}
	if len(store.events) != 0 {
		t.Errorf("stored %d events for malformed deliveries; want 0", len(store.events))
	}
}

func TestHandleIPNStoreFailureAsksForRetry(t *testing.T) {
	store := newFakeEventStore()
	store.failWith = errors.New("connection refused")
	e := newWebhookTestServer(store)

	body := `{"payment_id":5,"payment_status":"finished"}`
	rec := deliver(e, body, signBody(t, body))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d; want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RETRY") {
		t.Errorf("body = %s; want RETRY", rec.Body.String())
	}
}

func TestHandleIPNOutOfOrderDeliveryStillAcknowledged(t *testing.T) {
	store := newFakeEventStore()
	e := newWebhookTestServer(store)

	finished := `{"payment_id":6,"payment_status":"finished"}`
	confirming := `{"payment_id":6,"payment_status":"confirming"}`

	if rec := deliver(e, finished, signBody(t, finished)); rec.Code != http.StatusOK {
		t.Fatalf("finished delivery: status = %d; want 200", rec.Code)
	}
	if rec := deliver(e, confirming, signBody(t, confirming)); rec.Code != http.StatusOK {
		t.Fatalf("late confirming delivery: status = %d; want 200", rec.Code)
	}

	if len(store.events) != 2 {
		t.Errorf("stored %d events; want 2 (late event kept for audit)", len(store.events))
	}
	if store.statuses["6"] != ipn.StatusFinished {
		t.Errorf("payment status = %q; want finished after late delivery", store.statuses["6"])
	}
}
