package telephony

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gatebot/internal/config"
)

// SignedProvider initiates calls against a REST vendor that authenticates
// requests with an HMAC-SHA1 signature over the current unix timestamp.
//
// Wire contract: POST <url> with Authorization "<apiKey>:<hex signature>"
// and a JSON body {from, to, predicted}; success iff the vendor answers 200.
//
// The signature is recomputed from a fresh timestamp on every attempt; a
// stale timestamp must never be reused across attempts or dispatch cycles.
type SignedProvider struct {
	url    string
	apiKey string
	secret string

	httpc *http.Client
	clock func() time.Time
}

func NewSignedProvider(cfg config.SignedProviderConfig) *SignedProvider {
	return &SignedProvider{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		secret: cfg.Secret,
		httpc:  &http.Client{Timeout: RequestTimeout},
		clock:  time.Now,
	}
}

func (p *SignedProvider) Name() string { return "signed" }

type signedCallBody struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Predicted bool   `json:"predicted"`
}

func (p *SignedProvider) AttemptCall(ctx context.Context, req CallRequest) CallAttempt {
	ts := p.clock().UTC()

	body, err := json.Marshal(signedCallBody{
		From:      req.CallerID,
		To:        req.CalleeNumber,
		Predicted: req.AutoAnswer,
	})
	if err != nil {
		return failedAttempt(p.Name(), ts, "encode request: "+err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return failedAttempt(p.Name(), ts, "build request: "+err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", p.authorization(ts))

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

// authorization builds "<apiKey>:<hex hmac-sha1(secret, timestamp+secret)>"
// for the given moment.
func (p *SignedProvider) authorization(now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha1.New, []byte(p.secret))
	mac.Write([]byte(ts + p.secret))
	return p.apiKey + ":" + hex.EncodeToString(mac.Sum(nil))
}
