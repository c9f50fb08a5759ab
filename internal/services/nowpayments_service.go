package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cryptopay_app/internal/ipn"
)

const maxResponseBody = 1 << 20

// Credentials authenticate one call against the processor API. Every
// request-issuing method takes them explicitly; there is no package
// or process-wide key state to leak across concurrent requests.
type Credentials struct {
	APIKey string
}

// CredentialsFromEnv loads the platform's processor credentials.
func CredentialsFromEnv() Credentials {
	return Credentials{APIKey: os.Getenv("NOWPAYMENTS_API_KEY")}
}

// NowPaymentsService is the REST client for the custodial payment
// processor.
type NowPaymentsService struct {
	baseURL string
	client  *http.Client
}

func NewNowPaymentsService() *NowPaymentsService {
	url := os.Getenv("NOWPAYMENTS_BASE_URL")
	if url == "" {
		url = "https://api.nowpayments.io/v1"
	}
	return &NowPaymentsService{
		baseURL: url,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx reply from the processor.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("processor request failed with status %d: %s", e.StatusCode, e.Body)
}

func (s *NowPaymentsService) makeRequest(ctx context.Context, creds Credentials, method, endpoint string, payload, dest interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", s.baseURL, endpoint), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", creds.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreatePaymentRequest asks the processor to open a payment.
type CreatePaymentRequest struct {
	PriceAmount      float64 `json:"price_amount"`
	PriceCurrency    string  `json:"price_currency"`
	PayCurrency      string  `json:"pay_currency"`
	OrderID          string  `json:"order_id,omitempty"`
	OrderDescription string  `json:"order_description,omitempty"`
	IPNCallbackURL   string  `json:"ipn_callback_url,omitempty"`
}

// PaymentResponse is the processor's view of a payment. The id decodes
// through ipn.ExternalID since the processor mixes numeric and string
// encodings.
type PaymentResponse struct {
	PaymentID       ipn.ExternalID `json:"payment_id"`
	PaymentStatus   string         `json:"payment_status"`
	PayAddress      string         `json:"pay_address"`
	PriceAmount     json.Number    `json:"price_amount"`
	PriceCurrency   string         `json:"price_currency"`
	PayAmount       json.Number    `json:"pay_amount"`
	PayCurrency     string         `json:"pay_currency"`
	ActuallyPaid    json.Number    `json:"actually_paid"`
	OutcomeAmount   json.Number    `json:"outcome_amount"`
	OutcomeCurrency string         `json:"outcome_currency"`
	OrderID         string         `json:"order_id"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

// CreatePayment opens a payment for an invoice.
func (s *NowPaymentsService) CreatePayment(ctx context.Context, creds Credentials, req *CreatePaymentRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := s.makeRequest(ctx, creds, http.MethodPost, "/payment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentStatus fetches the processor's current state of a payment.
// The reconciliation worker feeds the result through the same
// transition guard as webhook deliveries.
func (s *NowPaymentsService) GetPaymentStatus(ctx context.Context, creds Credentials, paymentID string) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := s.makeRequest(ctx, creds, http.MethodGet, "/payment/"+paymentID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PayoutItem is one withdrawal inside a payout batch.
type PayoutItem struct {
	Address  string  `json:"address"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// PayoutRequest submits a payout batch.
type PayoutRequest struct {
	Withdrawals []PayoutItem `json:"withdrawals"`
}

// PayoutResponse is the processor's acknowledgment of a payout batch.
type PayoutResponse struct {
	ID          json.Number `json:"id"`
	Withdrawals []struct {
		ID       json.Number `json:"id"`
		Address  string      `json:"address"`
		Currency string      `json:"currency"`
		Amount   json.Number `json:"amount"`
		Status   string      `json:"status"`
	} `json:"withdrawals"`
}

// CreatePayout submits a withdrawal to the processor.
func (s *NowPaymentsService) CreatePayout(ctx context.Context, creds Credentials, req *PayoutRequest) (*PayoutResponse, error) {
	var resp PayoutResponse
	if err := s.makeRequest(ctx, creds, http.MethodPost, "/payout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPayoutStatus fetches the current state of a payout batch.
func (s *NowPaymentsService) GetPayoutStatus(ctx context.Context, creds Credentials, payoutID string) (*PayoutResponse, error) {
	var resp PayoutResponse
	if err := s.makeRequest(ctx, creds, http.MethodGet, "/payout/"+payoutID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CurrenciesResponse lists the assets the processor accepts.
type CurrenciesResponse struct {
	Currencies []string `json:"currencies"`
}

// ListCurrencies returns the currencies available for payments.
func (s *NowPaymentsService) ListCurrencies(ctx context.Context, creds Credentials) (*CurrenciesResponse, error) {
	var resp CurrenciesResponse
	if err := s.makeRequest(ctx, creds, http.MethodGet, "/currencies", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status checks processor availability. No credentials required.
func (s *NowPaymentsService) Status(ctx context.Context) error {
	return s.makeRequest(ctx, Credentials{}, http.MethodGet, "/status", nil, nil)
}
