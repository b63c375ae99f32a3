// Package dispatch runs the ordered provider fallback chain for one
// gate-open request.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gatebot/internal/metrics"
	"gatebot/internal/telephony"
)

// Result is the outcome of one full dispatch: the ordered attempt history
// and whether any provider succeeded. It is reported, never persisted.
type Result struct {
	ID       string                  `json:"id"`
	Success  bool                    `json:"success"`
	Attempts []telephony.CallAttempt `json:"attempts"`
}

// Dispatcher tries each configured provider exactly once, in fixed priority
// order, stopping at the first success. No attempt is retried within a
// dispatch: worst-case latency stays bounded by the sum of per-provider
// timeouts, and the user gets a terminal answer fast.
type Dispatcher struct {
	providers []telephony.Provider
	request   telephony.CallRequest

	log   *slog.Logger
	clock func() time.Time
}

func New(providers []telephony.Provider, request telephony.CallRequest, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		providers: providers,
		request:   request,
		log:       log,
		clock:     time.Now,
	}
}

// Providers returns the configured chain order (for logging/admin).
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	return names
}

func (d *Dispatcher) Dispatch(ctx context.Context) Result {
	res := Result{ID: uuid.NewString()}

	for _, p := range d.providers {
		at := d.attempt(ctx, p)
		res.Attempts = append(res.Attempts, at)
		metrics.CallAttempts.WithLabelValues(p.Name(), metrics.Outcome(at.Success)).Inc()

		if at.Success {
			d.log.Info("gate call placed",
				"dispatch_id", res.ID,
				"provider", p.Name(),
				"reference", at.ProviderReference,
			)
			res.Success = true
			break
		}
		d.log.Warn("gate call attempt failed",
			"dispatch_id", res.ID,
			"provider", p.Name(),
			"err", at.ErrorMessage,
		)
	}

	metrics.Dispatches.WithLabelValues(metrics.Outcome(res.Success)).Inc()
	if !res.Success {
		d.log.Error("all providers exhausted", "dispatch_id", res.ID, "attempts", len(res.Attempts))
	}
	return res
}

// attempt shields the chain from a misbehaving adapter: a panic becomes a
// normal failed attempt and the dispatcher moves on.
func (d *Dispatcher) attempt(ctx context.Context, p telephony.Provider) (at telephony.CallAttempt) {
	defer func() {
		if r := recover(); r != nil {
			at = telephony.CallAttempt{
				Provider:     p.Name(),
				Timestamp:    d.clock().UTC(),
				ErrorMessage: fmt.Sprintf("adapter panic: %v", r),
			}
		}
	}()
	return p.AttemptCall(ctx, d.request)
}
