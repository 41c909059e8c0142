package wshub

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TicketStore mints and verifies the short-lived bearer tickets that
// gate a websocket upgrade. internal/httpapi mints; this package
// verifies on upgrade, so both sides share one store.
type TicketStore struct {
	ttl time.Duration

	mu      sync.Mutex
	expires map[string]time.Time
}

// NewTicketStore constructs a store whose tickets live for ttl.
func NewTicketStore(ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &TicketStore{ttl: ttl, expires: make(map[string]time.Time)}
}

// Mint issues a fresh one-time ticket.
func (s *TicketStore) Mint() string {
	id := uuid.New().String()
	s.mu.Lock()
	s.expires[id] = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return id
}

// Verify consumes a ticket: a ticket is valid at most once and only
// before it expires.
func (s *TicketStore) Verify(ticket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.expires[ticket]
	delete(s.expires, ticket)
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}

// sweep discards expired-but-unused tickets so the map doesn't grow
// unbounded under clients that mint and never connect.
func (s *TicketStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, exp := range s.expires {
		if now.After(exp) {
			delete(s.expires, id)
		}
	}
}

// RunSweeper periodically discards expired tickets until ctx is
// cancelled. Callers that mint many tickets and don't want the map to
// grow without bound should run this alongside the hub.
func (s *TicketStore) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}
