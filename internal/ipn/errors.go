package ipn

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates pipeline failures. Handlers switch on the
// kind to pick a response code instead of matching concrete error
// types.
type ErrorKind string

const (
	// KindSignatureInvalid: payload/signature mismatch. Terminal for
	// the request, the processor must not retry.
	KindSignatureInvalid ErrorKind = "signature_invalid"
	// KindMalformedPayload: the body is not valid JSON or misses
	// required fields. Terminal.
	KindMalformedPayload ErrorKind = "malformed_payload"
	// KindTransientStore: the event store was unreachable or timed
	// out. The processor should retry per its backoff policy.
	KindTransientStore ErrorKind = "transient_store"
)

// PipelineError carries the failure kind through the call chain.
type PipelineError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func pipelineErr(kind ErrorKind, msg string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a
// pipeline error.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
