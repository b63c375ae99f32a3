package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gatebot/internal/metrics"
)

// Repository loads the member record set from the external store.
type Repository interface {
	Load(ctx context.Context) ([]Member, error)
}

// BindingWriter is implemented by repositories that can persist the bound
// chat identity. The file backend cannot; binds stay in memory there.
type BindingWriter interface {
	SaveBinding(ctx context.Context, phone string, chatID int64) error
}

var ErrNotFound = errors.New("directory: member not found")

// Service is the read-mostly lookup from normalized phone number to member
// identity. The one mutation point, binding a chat identity during
// verification, is serialized by the service mutex; last writer wins.
type Service struct {
	repo Repository
	log  *slog.Logger

	mu      sync.RWMutex
	members map[string]*Member
}

func NewService(ctx context.Context, repo Repository, log *slog.Logger) (*Service, error) {
	s := &Service{repo: repo, log: log, members: map[string]*Member{}}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory record set from the repository. In-memory
// binds on records that survive the reload are preserved.
func (s *Service) Reload(ctx context.Context) error {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("directory load: %w", err)
	}

	next := make(map[string]*Member, len(loaded))
	for _, m := range loaded {
		m.Phone = NormalizePhone(m.Phone)
		mm := m
		next[m.Phone] = &mm
	}

	s.mu.Lock()
	for phone, old := range s.members {
		if m, ok := next[phone]; ok && m.ChatID == 0 {
			m.ChatID = old.ChatID
		}
	}
	s.members = next
	s.mu.Unlock()

	s.log.Info("directory loaded", "members", len(next))
	return nil
}

// Lookup finds a member by phone in any format the chat transport delivers.
func (s *Service) Lookup(phone string) (Member, bool) {
	key := NormalizePhone(phone)
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[key]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// Authenticate verifies the phone against the directory and, on success,
// binds the chat identity onto the member. The bind happens only on success
// and is atomic per member; a later verification for the same phone simply
// overwrites it.
func (s *Service) Authenticate(ctx context.Context, phone string, chatID int64) (Member, bool) {
	key := NormalizePhone(phone)

	s.mu.Lock()
	m, ok := s.members[key]
	if !ok {
		s.mu.Unlock()
		metrics.Verifications.WithLabelValues(metrics.OutcomeFailure).Inc()
		return Member{}, false
	}
	m.ChatID = chatID
	out := *m
	s.mu.Unlock()

	metrics.Verifications.WithLabelValues(metrics.OutcomeSuccess).Inc()

	if w, canPersist := s.repo.(BindingWriter); canPersist {
		// Best-effort; verification never fails on a persistence hiccup.
		if err := w.SaveBinding(ctx, key, chatID); err != nil {
			s.log.Warn("binding persist failed", "phone", key, "err", err)
		}
	}
	return out, true
}

// Snapshot returns a copy of the current record set (for the admin API).
func (s *Service) Snapshot() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, *m)
	}
	return out
}

// Count returns the number of loaded members.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}
