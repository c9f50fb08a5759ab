package ipn

import (
	"context"
	"fmt"
	"log"
	"time"
)

// EventRecord is what the recorder persists for one verified delivery.
type EventRecord struct {
	// ExternalEventID is the idempotency key. The processor retries a
	// state change with an identical body, so distinct deliveries of
	// the same change collapse onto this key.
	ExternalEventID string
	PaymentID       string
	ParentPaymentID string
	Status          PaymentStatus
	Decision        Decision
	Payload         *IPNPayload
	// RawBody holds the exact bytes received on the wire.
	RawBody    []byte
	ReceivedAt time.Time
}

// RecordOutcome reports what the store did with a delivery.
type RecordOutcome struct {
	// Inserted is false when a row with the same external event id
	// already existed; the delivery is then an idempotent no-op.
	Inserted bool
	// TransitionApplied is false (with Inserted true) when the event
	// was recorded for audit but regressed the derived payment state
	// and was not applied.
	TransitionApplied bool
	BalanceApplied    bool
	// Unattributed is true when the event was kept in the log but
	// matched no invoice or parent payment, so no payment row exists
	// for it.
	Unattributed bool
}

// EventStore is the durable collaborator behind the recorder. The GORM
// implementation and test doubles satisfy the same contract.
//
// InsertIfAbsent must persist the event, advance the derived payment
// row when the state machine permits, and apply at most one balance
// mutation, all atomically: the uniqueness check rides the store's own
// constraint, never an application-level check-then-act.
type EventStore interface {
	InsertIfAbsent(ctx context.Context, rec *EventRecord) (RecordOutcome, error)
}

// OutcomeCode summarizes a processed delivery for the responder.
type OutcomeCode string

const (
	OutcomeRecorded     OutcomeCode = "recorded"
	OutcomeDuplicate    OutcomeCode = "duplicate"
	OutcomeOutOfOrder   OutcomeCode = "out_of_order"
	OutcomeUnattributed OutcomeCode = "unattributed"
)

// Outcome is the result of running one delivery through the pipeline.
type Outcome struct {
	Code      OutcomeCode
	PaymentID string
	Decision  Decision
	Record    RecordOutcome
}

// Pipeline runs inbound IPN deliveries through canonicalization,
// signature verification, classification and idempotent recording.
type Pipeline struct {
	verifier *Verifier
	store    EventStore
	now      func() time.Time
}

func NewPipeline(verifier *Verifier, store EventStore) *Pipeline {
	return &Pipeline{
		verifier: verifier,
		store:    store,
		now:      time.Now,
	}
}

// Process handles a single delivery. rawBody must be the unparsed bytes
// as transmitted; signature is the hex HMAC from the request header.
// Failures come back as *PipelineError so the responder can map kinds
// onto the processor's retry contract.
func (p *Pipeline) Process(ctx context.Context, rawBody []byte, signature string) (*Outcome, error) {
	canonical, err := Canonicalize(rawBody)
	if err != nil {
		return nil, pipelineErr(KindMalformedPayload, "body is not a JSON document", err)
	}

	if !p.verifier.Verify(canonical, signature) {
		return nil, pipelineErr(KindSignatureInvalid, "signature mismatch", nil)
	}

	payload, err := ParsePayload(rawBody)
	if err != nil {
		return nil, pipelineErr(KindMalformedPayload, "payload rejected", err)
	}

	decision := Classify(payload)
	rec := &EventRecord{
		ExternalEventID: externalEventID(payload),
		PaymentID:       payload.PaymentID.String(),
		ParentPaymentID: decision.ParentPaymentID,
		Status:          payload.PaymentStatus,
		Decision:        decision,
		Payload:         payload,
		RawBody:         rawBody,
		ReceivedAt:      p.now(),
	}

	res, err := p.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, pipelineErr(KindTransientStore, "event store unavailable", err)
	}

	out := &Outcome{
		PaymentID: rec.PaymentID,
		Decision:  decision,
		Record:    res,
	}
	switch {
	case !res.Inserted:
		out.Code = OutcomeDuplicate
	case res.Unattributed:
		out.Code = OutcomeUnattributed
		log.Printf("ipn: unattributed delivery for payment %s: no matching invoice or parent payment", rec.PaymentID)
	case !res.TransitionApplied:
		out.Code = OutcomeOutOfOrder
		log.Printf("ipn: out-of-order delivery for payment %s: %s not applied", rec.PaymentID, rec.Status)
	default:
		out.Code = OutcomeRecorded
	}
	return out, nil
}

// externalEventID builds the idempotency key. Processor event ids are
// used when present; otherwise one delivery per distinct state change
// of a payment is recorded, which is exactly what the processor
// redelivers on timeout.
func externalEventID(p *IPNPayload) string {
	if p.EventID != "" {
		return p.EventID
	}
	return fmt.Sprintf("%s:%s", p.PaymentID.String(), p.PaymentStatus)
}
