package telephony

import (
	"context"
	"time"
)

// Provider is the single capability every telephony vendor adapter exposes:
// attempt one call and report the outcome.
//
// Rules:
// - No provider SDK or wire code outside telephony adapters.
// - AttemptCall never returns an error; every failure mode is captured into
//   the returned CallAttempt so the dispatcher can fall through to the next
//   vendor without unwinding.
type Provider interface {
	Name() string
	AttemptCall(ctx context.Context, req CallRequest) CallAttempt
}

// CallRequest describes one outbound call. It is built from static
// configuration; there is no per-user variation.
type CallRequest struct {
	CallerID           string `json:"caller_id"`
	CalleeNumber       string `json:"callee_number"`
	MaxDurationSeconds int    `json:"max_duration"`
	AutoAnswer         bool   `json:"auto_answer"`
}

// CallAttempt is the record of one adapter invocation, success or not.
type CallAttempt struct {
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`

	// ProviderReference is the vendor's identifier for the call, when the
	// vendor returns one.
	ProviderReference string `json:"provider_reference,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// RequestTimeout bounds every outbound provider call.
const RequestTimeout = 10 * time.Second

func failedAttempt(provider string, ts time.Time, msg string) CallAttempt {
	return CallAttempt{Provider: provider, Timestamp: ts, ErrorMessage: msg}
}
