package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatebot/internal/config"
)

// BearerProvider initiates calls against a REST vendor that authenticates
// with a static bearer token.
//
// Wire contract: POST {base}/calls with a JSON body; success iff the vendor
// answers 200 and the body carries a call identifier.
type BearerProvider struct {
	baseURL string
	token   string

	httpc *http.Client
	clock func() time.Time
}

func NewBearerProvider(cfg config.BearerProviderConfig) *BearerProvider {
	return &BearerProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: RequestTimeout},
		clock:   time.Now,
	}
}

func (p *BearerProvider) Name() string { return "bearer" }

type bearerCallResponse struct {
	CallID string `json:"call_id"`
}

func (p *BearerProvider) AttemptCall(ctx context.Context, req CallRequest) CallAttempt {
	ts := p.clock().UTC()

	body, err := json.Marshal(req)
	if err != nil {
		return failedAttempt(p.Name(), ts, "encode request: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/calls", bytes.NewReader(body))
	if err != nil {
		return failedAttempt(p.Name(), ts, "build request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return failedAttempt(p.Name(), ts, "transport: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failedAttempt(p.Name(), ts, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	var out bearerCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failedAttempt(p.Name(), ts, "decode response: "+err.Error())
	}
	if out.CallID == "" {
		return failedAttempt(p.Name(), ts, "response missing call id")
	}

	return CallAttempt{
		Provider:          p.Name(),
		Timestamp:         ts,
		Success:           true,
		ProviderReference: out.CallID,
	}
}
