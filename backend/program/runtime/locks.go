package runtime

import (
	"bytes"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

type lockRequest struct {
	key      solana.PublicKey
	writable bool
}

// lockTable serializes transactions that touch the same accounts. Writers
// take the key exclusively, readers share it. Keys are always acquired in
// ascending order so two transactions cannot deadlock. An entry lives only
// while some transaction holds or waits on it.
type lockTable struct {
	mu    sync.Mutex
	locks map[solana.PublicKey]*keyLock
}

type keyLock struct {
	sync.RWMutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[solana.PublicKey]*keyLock)}
}

func (t *lockTable) ref(key solana.PublicKey) *keyLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = new(keyLock)
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(key solana.PublicKey, l *keyLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

// acquire locks every requested key and returns the release function.
// Requests must not repeat a key.
func (t *lockTable) acquire(reqs []lockRequest) func() {
	sorted := append([]lockRequest(nil), reqs...)
	sort.Slice(sorted, func(i, j int) bool {
		return lessKey(sorted[i].key, sorted[j].key)
	})
	held := make([]func(), 0, len(sorted))
	for _, r := range sorted {
		key := r.key
		l := t.ref(key)
		if r.writable {
			l.Lock()
			held = append(held, func() { l.Unlock(); t.unref(key, l) })
		} else {
			l.RLock()
			held = append(held, func() { l.RUnlock(); t.unref(key, l) })
		}
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
}

func lessKey(a, b solana.PublicKey) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
