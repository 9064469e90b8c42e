package web

import (
	"context"
	"sync"
	"time"

	"inventory-invoicing/internal/pos"

	"go.uber.org/zap"
)

type registerEntry struct {
	reg      *pos.Register
	lastUsed time.Time
}

// registerStore keeps one open register per user. Registers idle longer than
// ttl are closed and evicted, except while a submit is in flight.
type registerStore struct {
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*registerEntry
}

func newRegisterStore(ttl time.Duration, logger *zap.Logger) *registerStore {
	return &registerStore{
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		entries: make(map[string]*registerEntry),
	}
}

// get returns the user's register and marks it used.
func (s *registerStore) get(userID string) (*pos.Register, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return nil, false
	}
	e.lastUsed = s.now()
	return e.reg, true
}

// replace closes the user's current register, if any, and stores reg in its
// place. Both happen under the store lock; when the old register refuses to
// close (a submit is in flight) it stays and the error is returned.
func (s *registerStore) replace(userID string, reg *pos.Register) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		if err := e.reg.Close(); err != nil {
			return err
		}
	}
	s.entries[userID] = &registerEntry{reg: reg, lastUsed: s.now()}
	return nil
}

// add stores reg unless the user already has a register, and returns the one kept.
func (s *registerStore) add(userID string, reg *pos.Register) *pos.Register {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		e.lastUsed = s.now()
		return e.reg
	}
	s.entries[userID] = &registerEntry{reg: reg, lastUsed: s.now()}
	return reg
}

func (s *registerStore) remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// purge closes and evicts idle registers and returns how many were dropped.
func (s *registerStore) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	n := 0
	for userID, e := range s.entries {
		if e.lastUsed.After(cutoff) || e.reg.Busy() {
			continue
		}
		if err := e.reg.Close(); err != nil {
			continue
		}
		delete(s.entries, userID)
		n++
	}
	return n
}

func (s *registerStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// startPurge starts a background goroutine that evicts idle registers until ctx is done.
func (s *registerStore) startPurge(ctx context.Context) {
	interval := min(s.ttl/2, 5*time.Minute)
	if interval <= 0 {
		interval = s.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.purge(); n > 0 {
					s.logger.Info("idle carts closed", zap.Int("count", n))
				}
			}
		}
	}()
}
