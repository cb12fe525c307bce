package runtime

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/processor"
	"charge2earn/backend/program/state"
)

var testProgramID = solana.MustPublicKeyFromBase58("9kH9wQbeFXKr1FQ9jcQv51F5wn2XP9D2MVx7CFa72mfr")

type programFunc func(accounts []*processor.AccountInfo, data []byte) error

func (programFunc) ProgramID() solana.PublicKey { return testProgramID }

func (f programFunc) Process(accounts []*processor.AccountInfo, data []byte) error {
	return f(accounts, data)
}

func rawTx(signers []solana.PublicKey, metas ...*solana.AccountMeta) Transaction {
	return Transaction{
		Instruction: solana.NewInstruction(testProgramID, solana.AccountMetaSlice(metas), []byte{0}),
		Signers:     signers,
	}
}

func TestExecuteRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, store.CommitAccounts(ctx, []*Account{{Key: a, Lamports: 100, Owner: solana.SystemProgramID}}))

	exec := NewExecutor(programFunc(func(accs []*processor.AccountInfo, _ []byte) error {
		accs[0].Lamports -= 50
		accs[1].Lamports += 50
		return ledgererr.ErrSessionSettled
	}), store, zaptest.NewLogger(t))

	_, err := exec.Execute(ctx, rawTx([]solana.PublicKey{a}, solana.Meta(a).WRITE().SIGNER(), solana.Meta(b).WRITE()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrSessionSettled))

	accs, err := store.LoadAccounts(ctx, []solana.PublicKey{a, b})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), accs[0].Lamports)
	assert.Equal(t, uint64(0), accs[1].Lamports)
}

func TestExecuteRejectsReadonlyMutation(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, store.CommitAccounts(ctx, []*Account{{Key: a, Lamports: 100, Owner: solana.SystemProgramID}}))

	exec := NewExecutor(programFunc(func(accs []*processor.AccountInfo, _ []byte) error {
		accs[0].Lamports -= 1
		accs[1].Lamports += 1
		return nil
	}), store, nil)

	_, err := exec.Execute(ctx, rawTx([]solana.PublicKey{a}, solana.Meta(a).WRITE().SIGNER(), solana.Meta(b)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrReadonlyAccount))
}

func TestExecuteRejectsMintedLamports(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	exec := NewExecutor(programFunc(func(accs []*processor.AccountInfo, _ []byte) error {
		accs[0].Lamports += 1
		return nil
	}), NewMemStore(), nil)

	_, err := exec.Execute(context.Background(), rawTx(nil, solana.Meta(a).WRITE()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrUnbalanced))
}

func TestExecuteRejectsUnsignedDebit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	require.NoError(t, store.CommitAccounts(ctx, []*Account{{Key: a, Lamports: 100, Owner: solana.SystemProgramID}}))

	exec := NewExecutor(programFunc(func(accs []*processor.AccountInfo, _ []byte) error {
		accs[0].Lamports -= 10
		accs[1].Lamports += 10
		return nil
	}), store, nil)

	_, err := exec.Execute(ctx, rawTx(nil, solana.Meta(a).WRITE(), solana.Meta(b).WRITE()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrIllegalOwner))
}

func TestExecuteRejectsForeignDataWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	a := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	require.NoError(t, store.CommitAccounts(ctx, []*Account{{Key: a, Owner: other, Data: []byte{1, 2, 3}}}))

	exec := NewExecutor(programFunc(func(accs []*processor.AccountInfo, _ []byte) error {
		accs[0].Data[0] = 9
		return nil
	}), store, nil)

	_, err := exec.Execute(ctx, rawTx(nil, solana.Meta(a).WRITE()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrIllegalOwner))
}

func TestExecuteRequiresDeclaredSigners(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	called := false
	exec := NewExecutor(programFunc(func([]*processor.AccountInfo, []byte) error {
		called = true
		return nil
	}), NewMemStore(), nil)

	_, err := exec.Execute(context.Background(), rawTx(nil, solana.Meta(a).SIGNER()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrMissingSignature))
	assert.False(t, called)
}

func TestExecuteRejectsForeignProgram(t *testing.T) {
	exec := NewExecutor(programFunc(func([]*processor.AccountInfo, []byte) error { return nil }), NewMemStore(), nil)
	ix := solana.NewInstruction(solana.NewWallet().PublicKey(), solana.AccountMetaSlice{}, []byte{0})

	_, err := exec.Execute(context.Background(), Transaction{Instruction: ix})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrAccountMismatch))
}

func TestExecuteSharesRepeatedAccounts(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	exec := NewExecutor(programFunc(func(accs []*processor.AccountInfo, _ []byte) error {
		require.Len(t, accs, 2)
		assert.Same(t, accs[0], accs[1])
		assert.True(t, accs[1].IsSigner)
		assert.True(t, accs[0].IsWritable)
		return nil
	}), NewMemStore(), nil)

	_, err := exec.Execute(context.Background(), rawTx([]solana.PublicKey{a}, solana.Meta(a).WRITE(), solana.Meta(a).SIGNER()))
	require.NoError(t, err)
}

func TestObserversSeeCommittedAccounts(t *testing.T) {
	ctx := context.Background()
	exec := NewExecutor(programFunc(func([]*processor.AccountInfo, []byte) error { return nil }), NewMemStore(), nil)
	var got []Receipt
	exec.Subscribe(func(_ context.Context, r Receipt) { got = append(got, r) })

	key := solana.NewWallet().PublicKey()
	r1, err := exec.Airdrop(ctx, key, 10)
	require.NoError(t, err)
	r2, err := exec.Airdrop(ctx, key, 5)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.NotEqual(t, r1.TxID, r2.TxID)
	assert.Equal(t, uint64(15), got[1].Modified[0].Lamports)
	assert.Less(t, r1.Sequence, r2.Sequence)
}

func TestAirdropOverflow(t *testing.T) {
	ctx := context.Background()
	exec := NewExecutor(programFunc(func([]*processor.AccountInfo, []byte) error { return nil }), NewMemStore(), nil)
	key := solana.NewWallet().PublicKey()
	_, err := exec.Airdrop(ctx, key, math.MaxUint64)
	require.NoError(t, err)

	_, err = exec.Airdrop(ctx, key, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrArithmeticOverflow))
}

// Two racing stops of the same session: exactly one settles it.
func TestConcurrentStopSettlesOnce(t *testing.T) {
	ctx := context.Background()
	admin := solana.NewWallet().PublicKey()
	p := processor.New(processor.Config{ProgramID: testProgramID, AdminKey: admin}, nil)
	exec := NewExecutor(p, NewMemStore(), nil)

	owner, user := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	_, err := exec.Airdrop(ctx, owner, processor.LamportsPerUnit)
	require.NoError(t, err)
	_, err = exec.Airdrop(ctx, user, processor.LamportsPerUnit)
	require.NoError(t, err)

	args := instruction.RegisterCharger{Code: "race", RatePointsPerSec: 10, PricePerSec: 1000}
	ix, err := instruction.NewRegisterCharger(testProgramID, owner, admin, args)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, Transaction{Instruction: ix, Signers: []solana.PublicKey{owner}})
	require.NoError(t, err)
	charger, err := address.Charger(testProgramID, "race", owner)
	require.NoError(t, err)

	start, err := instruction.NewStartSession(testProgramID, user, charger.Address, 1000)
	require.NoError(t, err)
	_, err = exec.Execute(ctx, Transaction{Instruction: start, Signers: []solana.PublicKey{user}})
	require.NoError(t, err)

	stop, err := instruction.NewStopSession(testProgramID, user, charger.Address, owner, 1000, 1090)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = exec.Execute(ctx, Transaction{Instruction: stop, Signers: []solana.PublicKey{user}})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ledgererr.ErrSessionSettled))
	}
	assert.Equal(t, 1, succeeded)

	driver, err := address.Driver(testProgramID, user)
	require.NoError(t, err)
	acc, err := exec.Account(ctx, driver.Address)
	require.NoError(t, err)
	d, err := state.DecodeDriver(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), d.AmpBalance)

	acc, err = exec.Account(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, processor.LamportsPerUnit-90000, acc.Lamports)
}
