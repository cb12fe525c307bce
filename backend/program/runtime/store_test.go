package runtime

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charge2earn/backend/program/ledgererr"
)

func TestAccountMarshalRoundTrip(t *testing.T) {
	in := &Account{
		Key:      solana.NewWallet().PublicKey(),
		Lamports: 42,
		Owner:    testProgramID,
		Data:     []byte{2, 1, 3},
	}
	raw, err := MarshalAccount(in)
	require.NoError(t, err)
	out, err := UnmarshalAccount(in.Key, raw)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	_, err = UnmarshalAccount(in.Key, raw[:len(raw)-1])
	assert.True(t, errors.Is(err, ledgererr.ErrMalformedAccount))
}

// storeContract exercises the behavior every AccountStore must share.
func storeContract(t *testing.T, store AccountStore) {
	ctx := context.Background()
	a, b, c := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	accs, err := store.LoadAccounts(ctx, []solana.PublicKey{a})
	require.NoError(t, err)
	assert.Equal(t, solana.SystemProgramID, accs[0].Owner)
	assert.True(t, accs[0].IsZero())

	require.NoError(t, store.CommitAccounts(ctx, []*Account{
		{Key: a, Lamports: 1, Owner: testProgramID, Data: []byte{1}},
		{Key: b, Lamports: 2, Owner: testProgramID, Data: []byte{2}},
		{Key: c, Lamports: 3, Owner: solana.SystemProgramID},
	}))

	accs, err = store.LoadAccounts(ctx, []solana.PublicKey{b, a, c})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), accs[0].Lamports)
	assert.Equal(t, []byte{1}, accs[1].Data)
	assert.Equal(t, uint64(3), accs[2].Lamports)

	owned, err := store.AccountsByOwner(ctx, testProgramID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	// ownership moves the account between owner listings
	require.NoError(t, store.CommitAccounts(ctx, []*Account{
		{Key: b, Lamports: 2, Owner: solana.SystemProgramID},
	}))
	owned, err = store.AccountsByOwner(ctx, testProgramID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, a, owned[0].Key)

	// mutating a loaded account does not leak into the store
	accs, err = store.LoadAccounts(ctx, []solana.PublicKey{a})
	require.NoError(t, err)
	accs[0].Data[0] = 0xff
	accs, err = store.LoadAccounts(ctx, []solana.PublicKey{a})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, accs[0].Data)
}

func TestMemStore(t *testing.T) {
	storeContract(t, NewMemStore())
}

func TestLevelStore(t *testing.T) {
	store, err := OpenLevelStore(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestLevelStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ledger")
	key := solana.NewWallet().PublicKey()

	store, err := OpenLevelStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.CommitAccounts(ctx, []*Account{{Key: key, Lamports: 7, Owner: testProgramID, Data: []byte{5, 1}}}))
	require.NoError(t, store.Close())

	store, err = OpenLevelStore(dir)
	require.NoError(t, err)
	defer store.Close()
	accs, err := store.LoadAccounts(ctx, []solana.PublicKey{key})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), accs[0].Lamports)
	assert.Equal(t, []byte{5, 1}, accs[0].Data)
}

func TestLockTableSerializesWriters(t *testing.T) {
	table := newLockTable()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	release := table.acquire([]lockRequest{{key: a, writable: true}, {key: b}})
	acquired := make(chan struct{})
	go func() {
		r := table.acquire([]lockRequest{{key: b, writable: true}, {key: a}})
		close(acquired)
		r()
	}()
	select {
	case <-acquired:
		t.Fatal("conflicting request acquired while held")
	default:
	}

	release()
	<-acquired
}

func TestLockTableDropsReleasedKeys(t *testing.T) {
	table := newLockTable()
	shared := solana.NewWallet().PublicKey()

	release := table.acquire([]lockRequest{{key: shared, writable: true}})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			r := table.acquire([]lockRequest{{key: shared}, {key: solana.NewWallet().PublicKey(), writable: true}})
			r()
		}
	}()
	release()
	<-done

	for i := 0; i < 50; i++ {
		table.acquire([]lockRequest{{key: solana.NewWallet().PublicKey()}})()
	}
	table.mu.Lock()
	defer table.mu.Unlock()
	assert.Empty(t, table.locks)
}
