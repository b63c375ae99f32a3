package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"gatebot/internal/config"
)

// trunkDialer places one call on the native voice stack.
type trunkDialer interface {
	Dial(ctx context.Context, req CallRequest) (providerRef string, err error)
}

// TrunkProvider initiates calls through a voice trunk. It prefers the native
// SIP path (digest-authenticated registration to the configured trunk); when
// that capability is unavailable it posts to an HTTP endpoint on the same
// trunk host with basic auth.
//
// The available path is resolved exactly once at construction time. The
// attempt path itself is a plain result-returning call with no
// expected-failure error flow.
type TrunkProvider struct {
	cfg config.TrunkProviderConfig

	// dialer is nil when running in HTTP fallback mode.
	dialer trunkDialer

	httpc *http.Client
	clock func() time.Time
}

// NewTrunkProvider resolves the native SIP capability once and returns the
// adapter in whichever mode is available.
func NewTrunkProvider(ctx context.Context, cfg config.TrunkProviderConfig, log *slog.Logger) *TrunkProvider {
	p := &TrunkProvider{
		cfg:   cfg,
		httpc: &http.Client{Timeout: RequestTimeout},
		clock: time.Now,
	}
	if !cfg.SIPEnabled {
		log.Info("trunk adapter using http fallback", "host", cfg.Host)
		return p
	}

	d, err := newSIPDialer(ctx, cfg, log)
	if err != nil {
		log.Warn("sip trunk unavailable, using http fallback", "host", cfg.Host, "err", err)
		return p
	}
	log.Info("trunk adapter registered on sip", "host", cfg.Host, "extension", cfg.Extension)
	p.dialer = d
	return p
}

func (p *TrunkProvider) Name() string { return "trunk" }

// Native reports whether the adapter runs on the SIP path.
func (p *TrunkProvider) Native() bool { return p.dialer != nil }

func (p *TrunkProvider) AttemptCall(ctx context.Context, req CallRequest) CallAttempt {
	ts := p.clock().UTC()

	if p.dialer != nil {
		ref, err := p.dialer.Dial(ctx, req)
		if err != nil {
			return failedAttempt(p.Name(), ts, "sip: "+err.Error())
		}
		return CallAttempt{Provider: p.Name(), Timestamp: ts, Success: true, ProviderReference: ref}
	}

	return p.attemptHTTP(ctx, ts, req)
}

type trunkCallBody struct {
	Extension string `json:"extension"`
	Number    string `json:"number"`
	CallerID  string `json:"callerid"`
}

func (p *TrunkProvider) attemptHTTP(ctx context.Context, ts time.Time, req CallRequest) CallAttempt {
	body, err := json.Marshal(trunkCallBody{
		Extension: p.cfg.Extension,
		Number:    req.CalleeNumber,
		CallerID:  req.CallerID,
	})
	if err != nil {
		return failedAttempt(p.Name(), ts, "encode request: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.httpEndpoint(), bytes.NewReader(body))
	if err != nil {
		return failedAttempt(p.Name(), ts, "build request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(p.cfg.Username, p.cfg.Password)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return failedAttempt(p.Name(), ts, "transport: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failedAttempt(p.Name(), ts, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	return CallAttempt{Provider: p.Name(), Timestamp: ts, Success: true}
}

func (p *TrunkProvider) httpEndpoint() string {
	return fmt.Sprintf("http://%s/api/call", p.cfg.Host)
}
