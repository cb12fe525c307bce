package processor_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/processor"
	"charge2earn/backend/program/runtime"
	"charge2earn/backend/program/state"
)

var programID = solana.MustPublicKeyFromBase58("9kH9wQbeFXKr1FQ9jcQv51F5wn2XP9D2MVx7CFa72mfr")

// harness drives the processor through the executor on an in-memory store.
type harness struct {
	t     *testing.T
	ctx   context.Context
	exec  *runtime.Executor
	store *runtime.MemStore
	admin solana.PublicKey
}

func newHarness(t *testing.T, rent processor.Rent) *harness {
	t.Helper()
	admin := solana.NewWallet().PublicKey()
	p := processor.New(processor.Config{ProgramID: programID, AdminKey: admin, Rent: rent}, zaptest.NewLogger(t))
	store := runtime.NewMemStore()
	return &harness{
		t:     t,
		ctx:   context.Background(),
		exec:  runtime.NewExecutor(p, store, zaptest.NewLogger(t)),
		store: store,
		admin: admin,
	}
}

func (h *harness) wallet(lamports uint64) solana.PublicKey {
	h.t.Helper()
	pk := solana.NewWallet().PublicKey()
	if lamports > 0 {
		_, err := h.exec.Airdrop(h.ctx, pk, lamports)
		require.NoError(h.t, err)
	}
	return pk
}

func (h *harness) ix(ix *solana.GenericInstruction, err error) *solana.GenericInstruction {
	h.t.Helper()
	require.NoError(h.t, err)
	return ix
}

func (h *harness) run(ix *solana.GenericInstruction, signers ...solana.PublicKey) error {
	_, err := h.exec.Execute(h.ctx, runtime.Transaction{Instruction: ix, Signers: signers})
	return err
}

func (h *harness) account(key solana.PublicKey) *runtime.Account {
	h.t.Helper()
	acc, err := h.exec.Account(h.ctx, key)
	require.NoError(h.t, err)
	return acc
}

func (h *harness) lamports(key solana.PublicKey) uint64 {
	return h.account(key).Lamports
}

func (h *harness) derived(d address.Derived, err error) solana.PublicKey {
	h.t.Helper()
	require.NoError(h.t, err)
	return d.Address
}

func chargerArgs(code string, rate, price uint64) instruction.RegisterCharger {
	return instruction.RegisterCharger{
		Code:             code,
		Name:             "charger " + code,
		City:             "jaipur",
		Address:          "MI Road, Jaipur",
		Latitude:         26.9124,
		Longitude:        75.7873,
		PowerKW:          22,
		RatePointsPerSec: rate,
		PricePerSec:      price,
	}
}

// registerCharger registers a charger owned by a fresh funded wallet and
// returns the owner and the charger record address.
func (h *harness) registerCharger(code string, rate, price uint64) (solana.PublicKey, solana.PublicKey) {
	h.t.Helper()
	owner := h.wallet(processor.RegistrationFee + 10*processor.LamportsPerUnit)
	ix := h.ix(instruction.NewRegisterCharger(programID, owner, h.admin, chargerArgs(code, rate, price)))
	require.NoError(h.t, h.run(ix, owner))
	return owner, h.derived(address.Charger(programID, code, owner))
}

func (h *harness) startSession(user, charger solana.PublicKey, startTS int64) error {
	return h.run(h.ix(instruction.NewStartSession(programID, user, charger, startTS)), user)
}

func (h *harness) stopSession(user, charger, owner solana.PublicKey, startTS, endTS int64) error {
	return h.run(h.ix(instruction.NewStopSession(programID, user, charger, owner, startTS, endTS)), user)
}

// earn gives a fresh driver points by charging for seconds at one point per
// second, with a free charger.
func (h *harness) earn(points int64) solana.PublicKey {
	h.t.Helper()
	owner, charger := h.registerCharger("earn-"+solana.NewWallet().PublicKey().String()[:8], 1, 0)
	driver := h.wallet(processor.LamportsPerUnit)
	require.NoError(h.t, h.startSession(driver, charger, 1))
	require.NoError(h.t, h.stopSession(driver, charger, owner, 1, 1+points))
	return driver
}

func (h *harness) driver(owner solana.PublicKey) *state.Driver {
	h.t.Helper()
	d, err := state.DecodeDriver(h.account(h.derived(address.Driver(programID, owner))).Data)
	require.NoError(h.t, err)
	return d
}

func (h *harness) user(owner solana.PublicKey) *state.User {
	h.t.Helper()
	u, err := state.DecodeUser(h.account(h.derived(address.User(programID, owner))).Data)
	require.NoError(h.t, err)
	return u
}

func (h *harness) listing(seller solana.PublicKey) *state.Listing {
	h.t.Helper()
	l, err := state.DecodeListing(h.account(h.derived(address.Listing(programID, seller))).Data)
	require.NoError(h.t, err)
	return l
}

func (h *harness) session(charger, user solana.PublicKey, startTS int64) *state.Session {
	h.t.Helper()
	driver := h.derived(address.Driver(programID, user))
	s, err := state.DecodeSession(h.account(h.derived(address.Session(programID, charger, driver, startTS))).Data)
	require.NoError(h.t, err)
	return s
}
