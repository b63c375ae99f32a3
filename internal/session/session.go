// Package session holds the per-conversation authentication state machine
// and its storage backends.
package session

import (
	"context"
	"time"
)

// State is the conversation's position in the verification flow.
//
// Allowed transitions:
//
//	Unauthenticated -> AwaitingPhone -> Authenticated | Ended
//	Authenticated   -> Authenticated (commands loop)
//	AwaitingPhone | Authenticated -> Ended (explicit cancel)
//
// Ended is terminal; only a fresh start signal creates a new session.
// Cancel outside an active conversation is a no-op: there is nothing to end.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAwaitingPhone   State = "awaiting_phone"
	StateAuthenticated   State = "authenticated"
	StateEnded           State = "ended"
)

// Session is one conversation's state. It is created on first contact and
// never survives a process restart on the memory backend.
type Session struct {
	ChatID        int64     `json:"chat_id"`
	State         State     `json:"state"`
	VerifiedPhone string    `json:"verified_phone,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store keeps sessions keyed by conversation.
type Store interface {
	Get(ctx context.Context, chatID int64) (Session, bool, error)
	Put(ctx context.Context, s Session) error
	List(ctx context.Context) ([]Session, error)
}
