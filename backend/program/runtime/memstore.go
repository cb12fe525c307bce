package runtime

import (
	"context"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MemStore keeps accounts in a map. Used by tests and the "memory" backend.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

func NewMemStore() *MemStore {
	return &MemStore{accounts: make(map[solana.PublicKey]*Account)}
}

func (s *MemStore) LoadAccounts(_ context.Context, keys []solana.PublicKey) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, len(keys))
	for i, k := range keys {
		if acc, ok := s.accounts[k]; ok {
			out[i] = acc.Clone()
			continue
		}
		out[i] = emptyAccount(k)
	}
	return out, nil
}

func (s *MemStore) CommitAccounts(_ context.Context, accounts []*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range accounts {
		if acc.IsZero() {
			delete(s.accounts, acc.Key)
			continue
		}
		s.accounts[acc.Key] = acc.Clone()
	}
	return nil
}

func (s *MemStore) AccountsByOwner(_ context.Context, owner solana.PublicKey) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Account
	for _, acc := range s.accounts {
		if acc.Owner.Equals(owner) {
			out = append(out, acc.Clone())
		}
	}
	sortByKey(out)
	return out, nil
}

// Close satisfies io.Closer for symmetry with LevelStore.
func (s *MemStore) Close() error {
	return nil
}

func sortByKey(accounts []*Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return lessKey(accounts[i].Key, accounts[j].Key)
	})
}
