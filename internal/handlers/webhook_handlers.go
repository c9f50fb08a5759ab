package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"cryptopay_app/internal/ipn"
)

const (
	// signatureHeader carries the hex HMAC the processor computed over
	// the sorted payload.
	signatureHeader = "x-nowpayments-sig"

	maxWebhookBody = 1 << 20

	// storeDeadline bounds the database work so the response always
	// lands inside the processor's webhook timeout; on overrun the
	// processor's own retry/backoff takes over.
	storeDeadline = 5 * time.Second
)

// WebhookHandler is the responder in front of the IPN pipeline. The
// status-code mapping is the processor's retry contract: 2xx stops
// redelivery, 5xx triggers it, 4xx marks the delivery dead.
type WebhookHandler struct {
	pipeline *ipn.Pipeline
}

func NewWebhookHandler(pipeline *ipn.Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// HandleIPN processes one inbound payment notification.
//
//	200 {"ok":true}        recorded, duplicate, or out-of-order (audit only)
//	400 {"error":"MALFORMED"}  body is not usable; retrying cannot help
//	401 {"error":"BAD_SIG"}    signature mismatch; never retried internally
//	503 {"error":"RETRY"}      store unavailable; processor should redeliver
func (h *WebhookHandler) HandleIPN(c echo.Context) error {
	// The raw bytes are read before any JSON parsing; verification
	// must see the payload exactly as transmitted.
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "MALFORMED"})
	}
	signature := strings.TrimSpace(c.Request().Header.Get(signatureHeader))

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeDeadline)
	defer cancel()

	outcome, err := h.pipeline.Process(ctx, body, signature)
	if err != nil {
		switch ipn.KindOf(err) {
		case ipn.KindSignatureInvalid:
			log.Printf("webhook: rejected delivery: %v", err)
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "BAD_SIG"})
		case ipn.KindMalformedPayload:
			log.Printf("webhook: rejected delivery: %v", err)
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "MALFORMED"})
		case ipn.KindTransientStore:
			log.Printf("webhook: store failure, asking processor to retry: %v", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "RETRY"})
		default:
			return err
		}
	}

	switch outcome.Code {
	case ipn.OutcomeDuplicate:
		log.Printf("webhook: duplicate delivery for payment %s ignored", outcome.PaymentID)
	case ipn.OutcomeUnattributed:
		log.Printf("webhook: delivery for payment %s kept for manual reconciliation", outcome.PaymentID)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}
