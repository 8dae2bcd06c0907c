package ledger

import (
	// Go Internal Packages
	"context"
	"sync"

	// Local Packages
	models "nfc-bank/models"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps entries for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[models.CardIdentity][]models.LedgerEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[models.CardIdentity][]models.LedgerEntry)}
}

func (s *MemoryStore) InsertEntry(_ context.Context, entry models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.CardID] = append(s.entries[entry.CardID], entry)
	return nil
}

func (s *MemoryStore) FindEntries(_ context.Context, id models.CardIdentity) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.entries[id]
	out := make([]models.LedgerEntry, len(src))
	copy(out, src)
	return out, nil
}
