package scan

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/runtime"
	"charge2earn/backend/program/state"
)

var programID = solana.MustPublicKeyFromBase58("9kH9wQbeFXKr1FQ9jcQv51F5wn2XP9D2MVx7CFa72mfr")

type encoder interface {
	Encode() ([]byte, error)
}

func put(t *testing.T, store *runtime.MemStore, key solana.PublicKey, rec encoder) {
	t.Helper()
	data, err := rec.Encode()
	require.NoError(t, err)
	require.NoError(t, store.CommitAccounts(context.Background(), []*runtime.Account{
		{Key: key, Owner: programID, Data: data},
	}))
}

func driverAt(t *testing.T, store *runtime.MemStore, owner solana.PublicKey, points uint64) solana.PublicKey {
	t.Helper()
	d, err := address.Driver(programID, owner)
	require.NoError(t, err)
	put(t, store, d.Address, &state.Driver{Initialized: true, Owner: owner, AmpBalance: points})
	return d.Address
}

func TestLeaderboardRanksDrivers(t *testing.T) {
	store := runtime.NewMemStore()
	a, b, c := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	driverAt(t, store, a, 10)
	driverAt(t, store, b, 900)
	driverAt(t, store, c, 300)

	board, err := New(store, programID, nil).Leaderboard(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, b, board[0].Owner)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, uint64(300), board[1].Points)
}

func TestScanSkipsUndecodableAccounts(t *testing.T) {
	ctx := context.Background()
	store := runtime.NewMemStore()
	owner := solana.NewWallet().PublicKey()
	driverAt(t, store, owner, 5)
	require.NoError(t, store.CommitAccounts(ctx, []*runtime.Account{
		{Key: solana.NewWallet().PublicKey(), Owner: programID, Data: []byte{9, 1, 1}},
		{Key: solana.NewWallet().PublicKey(), Owner: programID, Data: []byte{byte(state.KindListing), 1, 0}},
	}))

	records, err := New(store, programID, nil).All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.KindDriver, records[0].Kind)
}

func TestOpenListingsAndChargers(t *testing.T) {
	ctx := context.Background()
	store := runtime.NewMemStore()
	s1, s2, s3 := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	for _, l := range []*state.Listing{
		{Initialized: true, Seller: s1, AmountTotal: 10, PricePerPoint: 9},
		{Initialized: true, Seller: s2, AmountTotal: 0, PricePerPoint: 1},
		{Initialized: true, Seller: s3, AmountTotal: 4, PricePerPoint: 2},
	} {
		addr, err := address.Listing(programID, l.Seller)
		require.NoError(t, err)
		put(t, store, addr.Address, l)
	}
	charger, err := address.Charger(programID, "c1", s1)
	require.NoError(t, err)
	put(t, store, charger.Address, &state.Charger{Initialized: true, Authority: s1, Code: "c1"})

	sc := New(store, programID, nil)
	listings, err := sc.OpenListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, s3, listings[0].Seller)
	assert.Equal(t, s1, listings[1].Seller)

	chargers, err := sc.Chargers(ctx)
	require.NoError(t, err)
	require.Len(t, chargers, 1)
	assert.Equal(t, "c1", chargers[0].Code)
	assert.Equal(t, charger.Address, chargers[0].Account)
}

func TestSessionsForDriver(t *testing.T) {
	ctx := context.Background()
	store := runtime.NewMemStore()
	owner, other := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	driver := driverAt(t, store, owner, 0)
	otherDriver := driverAt(t, store, other, 0)
	charger := solana.NewWallet().PublicKey()

	for _, s := range []*state.Session{
		{Initialized: true, Driver: driver, Charger: charger, StartTS: 100},
		{Initialized: true, Driver: driver, Charger: charger, StartTS: 300, EndTS: 400, Settled: true},
		{Initialized: true, Driver: otherDriver, Charger: charger, StartTS: 200},
	} {
		addr, err := address.Session(programID, s.Charger, s.Driver, s.StartTS)
		require.NoError(t, err)
		put(t, store, addr.Address, s)
	}

	sessions, err := New(store, programID, nil).SessionsForDriver(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, int64(300), sessions[0].StartTS)
	assert.Equal(t, int64(100), sessions[1].StartTS)
}

func TestDecodeDispatchesOnKind(t *testing.T) {
	data, err := (&state.User{Initialized: true, AmpBalance: 7}).Encode()
	require.NoError(t, err)
	kind, v, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, state.KindUser, kind)
	assert.Equal(t, uint64(7), v.(*state.User).AmpBalance)

	_, _, err = Decode([]byte{1})
	require.Error(t, err)
}
