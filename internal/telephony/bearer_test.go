package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatebot/internal/config"
)

func TestBearerProvider_ImplementsProvider(t *testing.T) {
	var _ Provider = (*BearerProvider)(nil)
}

func TestBearerProvider_SuccessfulCall(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody CallRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"call_id":"CA-42"}`))
	}))
	defer srv.Close()

	p := NewBearerProvider(config.BearerProviderConfig{BaseURL: srv.URL, Token: "tok"})
	at := p.AttemptCall(context.Background(), CallRequest{
		CallerID:           "+12345678900",
		CalleeNumber:       "+79876543210",
		MaxDurationSeconds: 30,
		AutoAnswer:         true,
	})

	if !at.Success {
		t.Fatalf("expected success, got %+v", at)
	}
	if at.ProviderReference != "CA-42" {
		t.Fatalf("expected provider reference CA-42, got %q", at.ProviderReference)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if gotPath != "/calls" {
		t.Fatalf("expected /calls path, got %q", gotPath)
	}
	if gotBody.CalleeNumber != "+79876543210" || gotBody.MaxDurationSeconds != 30 || !gotBody.AutoAnswer {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestBearerProvider_Non200IsFailedAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewBearerProvider(config.BearerProviderConfig{BaseURL: srv.URL, Token: "tok"})
	at := p.AttemptCall(context.Background(), CallRequest{CalleeNumber: "+7"})

	if at.Success {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(at.ErrorMessage, "503") {
		t.Fatalf("expected status in error message, got %q", at.ErrorMessage)
	}
}

func TestBearerProvider_MissingCallIDIsFailedAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewBearerProvider(config.BearerProviderConfig{BaseURL: srv.URL, Token: "tok"})
	at := p.AttemptCall(context.Background(), CallRequest{CalleeNumber: "+7"})

	if at.Success {
		t.Fatalf("expected failure for missing call id")
	}
}

func TestBearerProvider_TransportErrorIsFailedAttempt(t *testing.T) {
	// Closed server: connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewBearerProvider(config.BearerProviderConfig{BaseURL: srv.URL, Token: "tok"})
	at := p.AttemptCall(context.Background(), CallRequest{CalleeNumber: "+7"})

	if at.Success {
		t.Fatalf("expected failure")
	}
	if at.ErrorMessage == "" {
		t.Fatalf("expected error message")
	}
}
