package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gatebot/internal/config"
)

func TestSignedProvider_ImplementsProvider(t *testing.T) {
	var _ Provider = (*SignedProvider)(nil)
}

func TestSignedProvider_SignatureFormat(t *testing.T) {
	var gotAuth string
	var gotBody signedCallBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	p := NewSignedProvider(config.SignedProviderConfig{URL: srv.URL, APIKey: "key", Secret: "s3cret"})
	fixed := time.Unix(1700000000, 0)
	p.clock = func() time.Time { return fixed }

	at := p.AttemptCall(context.Background(), CallRequest{CallerID: "+1", CalleeNumber: "+7", AutoAnswer: true})
	if !at.Success {
		t.Fatalf("expected success, got %+v", at)
	}

	mac := hmac.New(sha1.New, []byte("s3cret"))
	mac.Write([]byte("1700000000s3cret"))
	want := "key:" + hex.EncodeToString(mac.Sum(nil))
	if gotAuth != want {
		t.Fatalf("expected authorization %q, got %q", want, gotAuth)
	}
	if gotBody.From != "+1" || gotBody.To != "+7" || !gotBody.Predicted {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestSignedProvider_FreshSignaturePerAttempt(t *testing.T) {
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	p := NewSignedProvider(config.SignedProviderConfig{URL: srv.URL, APIKey: "key", Secret: "s3cret"})
	now := time.Unix(1700000000, 0)
	p.clock = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	p.AttemptCall(context.Background(), CallRequest{CallerID: "+1", CalleeNumber: "+7"})
	p.AttemptCall(context.Background(), CallRequest{CallerID: "+1", CalleeNumber: "+7"})

	if len(auths) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(auths))
	}
	if auths[0] == auths[1] {
		t.Fatalf("expected distinct signatures for attempts a second apart, got %q twice", auths[0])
	}
}

func TestSignedProvider_Non200IsFailedAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewSignedProvider(config.SignedProviderConfig{URL: srv.URL, APIKey: "key", Secret: "s3cret"})
	at := p.AttemptCall(context.Background(), CallRequest{CallerID: "+1", CalleeNumber: "+7"})

	if at.Success {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(at.ErrorMessage, "403") {
		t.Fatalf("expected status in error message, got %q", at.ErrorMessage)
	}
}
