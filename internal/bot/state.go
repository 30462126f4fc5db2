package bot

import (
	"context"
	"sync"
	"time"
)

// PendingTransaction remembers which product a sender was last asked to
// confirm purchasing. At most one exists per sender.
type PendingTransaction struct {
	Sender    string    `json:"sender"`
	ProductID int       `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore is the persistence contract for pending transactions, keyed by
// sender. Get returns (nil, nil) when the sender has no pending transaction.
type StateStore interface {
	Get(ctx context.Context, sender string) (*PendingTransaction, error)
	Set(ctx context.Context, sender string, tx PendingTransaction) error
	Clear(ctx context.Context, sender string) error
}

// MemoryStateStore keeps pending transactions in a process-wide map. Entries
// never expire; they live until confirmed, overwritten, or process restart.
type MemoryStateStore struct {
	mu      sync.RWMutex
	pending map[string]PendingTransaction
}

// NewMemoryStateStore returns an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{pending: make(map[string]PendingTransaction)}
}

// Get returns the pending transaction for sender, or nil when absent.
func (s *MemoryStateStore) Get(ctx context.Context, sender string) (*PendingTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.pending[sender]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

// Set stores the pending transaction, overwriting any prior one for sender.
func (s *MemoryStateStore) Set(ctx context.Context, sender string, tx PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sender] = tx
	return nil
}

// Clear removes the pending transaction for sender. Clearing an absent entry
// is a no-op.
func (s *MemoryStateStore) Clear(ctx context.Context, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, sender)
	return nil
}

// Len reports how many senders currently hold a pending transaction.
func (s *MemoryStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}
