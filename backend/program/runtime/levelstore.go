package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	accountPrefix = []byte("acct:")
	ownerPrefix   = []byte("owner:")
)

// LevelStore persists accounts in LevelDB. Each account lives under
// "acct:<key>"; "owner:<owner><key>" indexes accounts by owner.
type LevelStore struct {
	// commits read the previous owner before writing the batch
	mu sync.Mutex
	db *leveldb.DB
}

// OpenLevelStore creates or opens a LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

func accountKey(key solana.PublicKey) []byte {
	return append(append([]byte(nil), accountPrefix...), key[:]...)
}

func ownerKey(owner, key solana.PublicKey) []byte {
	k := append(append([]byte(nil), ownerPrefix...), owner[:]...)
	return append(k, key[:]...)
}

func (s *LevelStore) get(key solana.PublicKey) (*Account, error) {
	raw, err := s.db.Get(accountKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return emptyAccount(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return UnmarshalAccount(key, raw)
}

func (s *LevelStore) LoadAccounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error) {
	out := make([]*Account, len(keys))
	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		acc, err := s.get(k)
		if err != nil {
			return nil, err
		}
		out[i] = acc
	}
	return out, nil
}

func (s *LevelStore) CommitAccounts(ctx context.Context, accounts []*Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := new(leveldb.Batch)
	for _, acc := range accounts {
		prev, err := s.get(acc.Key)
		if err != nil {
			return err
		}
		if !prev.IsZero() {
			batch.Delete(ownerKey(prev.Owner, acc.Key))
		}
		if acc.IsZero() {
			batch.Delete(accountKey(acc.Key))
			continue
		}
		raw, err := MarshalAccount(acc)
		if err != nil {
			return err
		}
		batch.Put(accountKey(acc.Key), raw)
		batch.Put(ownerKey(acc.Owner, acc.Key), nil)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("commit %d accounts: %w", len(accounts), err)
	}
	return nil
}

func (s *LevelStore) AccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*Account, error) {
	prefix := append(append([]byte(nil), ownerPrefix...), owner[:]...)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []*Account
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var key solana.PublicKey
		copy(key[:], iter.Key()[len(prefix):])
		acc, err := s.get(key)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan owner %s: %w", owner, err)
	}
	return out, nil
}

// Close closes the database.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
