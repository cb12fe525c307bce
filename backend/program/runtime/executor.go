package runtime

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/processor"
)

// Program is what the executor hosts.
type Program interface {
	ProgramID() solana.PublicKey
	Process(accounts []*processor.AccountInfo, data []byte) error
}

// Transaction is one instruction plus the keys that signed it.
type Transaction struct {
	Instruction solana.Instruction
	Signers     []solana.PublicKey
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxID     solana.Hash `json:"tx_id"`
	Sequence uint64      `json:"sequence"`
	Modified []*Account  `json:"modified"`
}

// Observer is called after every commit, outside the account locks.
type Observer func(ctx context.Context, receipt Receipt)

// Executor runs transactions against a store. Transactions touching
// disjoint accounts run concurrently.
type Executor struct {
	program Program
	store   AccountStore
	locks   *lockTable
	logger  *zap.Logger
	seq     atomic.Uint64

	obsMu     sync.RWMutex
	observers []Observer
}

func NewExecutor(program Program, store AccountStore, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		program: program,
		store:   store,
		locks:   newLockTable(),
		logger:  logger.Named("executor"),
	}
}

// Subscribe registers an observer for committed transactions.
func (e *Executor) Subscribe(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

// Store exposes the underlying store for read-only queries.
func (e *Executor) Store() AccountStore {
	return e.store
}

// ProgramID returns the hosted program's id.
func (e *Executor) ProgramID() solana.PublicKey {
	return e.program.ProgramID()
}

// Account loads a single account.
func (e *Executor) Account(ctx context.Context, key solana.PublicKey) (*Account, error) {
	accs, err := e.store.LoadAccounts(ctx, []solana.PublicKey{key})
	if err != nil {
		return nil, err
	}
	return accs[0], nil
}

type slot struct {
	key      solana.PublicKey
	signer   bool
	writable bool
	before   *Account
	info     *processor.AccountInfo
}

// Execute runs tx. Either every account change it makes is committed or
// none is.
func (e *Executor) Execute(ctx context.Context, tx Transaction) (Receipt, error) {
	ix := tx.Instruction
	if ix == nil {
		return Receipt{}, ledgererr.Wrap(ledgererr.ErrInvalidInstructionData, "no instruction")
	}
	if !ix.ProgramID().Equals(e.program.ProgramID()) {
		return Receipt{}, ledgererr.Wrap(ledgererr.ErrAccountMismatch, "instruction targets %s, executor hosts %s", ix.ProgramID(), e.program.ProgramID())
	}
	data, err := ix.Data()
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ledgererr.ErrInvalidInstructionData, err)
	}

	slots, order, err := collectSlots(ix.Accounts(), tx.Signers)
	if err != nil {
		return Receipt{}, err
	}

	reqs := make([]lockRequest, len(slots))
	keys := make([]solana.PublicKey, len(slots))
	for i, s := range slots {
		reqs[i] = lockRequest{key: s.key, writable: s.writable}
		keys[i] = s.key
	}
	release := e.locks.acquire(reqs)

	receipt, err := e.run(ctx, ix.ProgramID(), data, slots, order, keys)
	release()
	if err != nil {
		e.logger.Warn("transaction failed",
			zap.String("class", ledgererr.ClassOf(err).String()),
			zap.String("code", ledgererr.CodeOf(err)),
			zap.Error(err),
		)
		return Receipt{}, err
	}
	e.notify(ctx, receipt)
	return receipt, nil
}

func (e *Executor) run(ctx context.Context, programID solana.PublicKey, data []byte, slots []*slot, order []int, keys []solana.PublicKey) (Receipt, error) {
	loaded, err := e.store.LoadAccounts(ctx, keys)
	if err != nil {
		return Receipt{}, fmt.Errorf("load accounts: %w", err)
	}
	for i, s := range slots {
		s.before = loaded[i]
		s.info = &processor.AccountInfo{
			Key:        s.key,
			IsSigner:   s.signer,
			IsWritable: s.writable,
			Lamports:   s.before.Lamports,
			Owner:      s.before.Owner,
			Data:       append([]byte(nil), s.before.Data...),
		}
	}
	infos := make([]*processor.AccountInfo, len(order))
	for pos, idx := range order {
		infos[pos] = slots[idx].info
	}

	if err := e.program.Process(infos, data); err != nil {
		return Receipt{}, err
	}

	modified, err := e.verify(slots)
	if err != nil {
		return Receipt{}, err
	}
	if len(modified) > 0 {
		if err := e.store.CommitAccounts(ctx, modified); err != nil {
			return Receipt{}, fmt.Errorf("commit: %w", err)
		}
	}
	seq := e.seq.Add(1)
	return Receipt{
		TxID:     txID(programID, data, keys, seq),
		Sequence: seq,
		Modified: modified,
	}, nil
}

// collectSlots merges repeated keys into one slot and maps every
// instruction position to its slot.
func collectSlots(metas []*solana.AccountMeta, signers []solana.PublicKey) ([]*slot, []int, error) {
	signed := make(map[solana.PublicKey]struct{}, len(signers))
	for _, s := range signers {
		signed[s] = struct{}{}
	}
	index := make(map[solana.PublicKey]int, len(metas))
	var slots []*slot
	order := make([]int, len(metas))
	for pos, m := range metas {
		if m == nil {
			return nil, nil, ledgererr.Wrap(ledgererr.ErrNotEnoughAccountKeys, "nil account meta at %d", pos)
		}
		if m.IsSigner {
			if _, ok := signed[m.PublicKey]; !ok {
				return nil, nil, ledgererr.Wrap(ledgererr.ErrMissingSignature, "%s", m.PublicKey)
			}
		}
		idx, ok := index[m.PublicKey]
		if !ok {
			idx = len(slots)
			index[m.PublicKey] = idx
			slots = append(slots, &slot{key: m.PublicKey})
		}
		s := slots[idx]
		s.signer = s.signer || m.IsSigner
		s.writable = s.writable || m.IsWritable
		order[pos] = idx
	}
	return slots, order, nil
}

// verify checks what the program did against what it may do and returns
// the accounts that changed.
//
// Read-only accounts must be untouched. An account not owned by the program
// may only have its data or owner changed when it was empty and is being
// allocated to the program, and may only be debited when it signed. The
// lamport total must not change.
func (e *Executor) verify(slots []*slot) ([]*Account, error) {
	programID := e.program.ProgramID()
	var beforeHi, beforeLo, afterHi, afterLo uint64
	var modified []*Account
	for _, s := range slots {
		after := &Account{Key: s.key, Lamports: s.info.Lamports, Owner: s.info.Owner, Data: s.info.Data}
		beforeHi, beforeLo = add128(beforeHi, beforeLo, s.before.Lamports)
		afterHi, afterLo = add128(afterHi, afterLo, after.Lamports)
		if s.before.Equal(after) {
			continue
		}
		if !s.writable {
			return nil, ledgererr.Wrap(ledgererr.ErrReadonlyAccount, "%s modified", s.key)
		}
		ownedBefore := s.before.Owner.Equals(programID)
		dataChanged := !bytes.Equal(s.before.Data, after.Data) || !s.before.Owner.Equals(after.Owner)
		if dataChanged && !ownedBefore {
			allocating := len(s.before.Data) == 0 && after.Owner.Equals(programID)
			if !allocating {
				return nil, ledgererr.Wrap(ledgererr.ErrIllegalOwner, "%s data changed by non-owner", s.key)
			}
		}
		if after.Lamports < s.before.Lamports && !ownedBefore && !s.signer {
			return nil, ledgererr.Wrap(ledgererr.ErrIllegalOwner, "%s debited without signature", s.key)
		}
		modified = append(modified, after)
	}
	if beforeHi != afterHi || beforeLo != afterLo {
		return nil, ledgererr.Wrap(ledgererr.ErrUnbalanced, "before %d:%d, after %d:%d", beforeHi, beforeLo, afterHi, afterLo)
	}
	return modified, nil
}

func add128(hi, lo, v uint64) (uint64, uint64) {
	lo, carry := bits.Add64(lo, v, 0)
	return hi + carry, lo
}

// Airdrop credits lamports to key out of thin air.
func (e *Executor) Airdrop(ctx context.Context, key solana.PublicKey, lamports uint64) (Receipt, error) {
	release := e.locks.acquire([]lockRequest{{key: key, writable: true}})
	accs, err := e.store.LoadAccounts(ctx, []solana.PublicKey{key})
	if err != nil {
		release()
		return Receipt{}, fmt.Errorf("load %s: %w", key, err)
	}
	acc := accs[0]
	sum, carry := bits.Add64(acc.Lamports, lamports, 0)
	if carry != 0 {
		release()
		return Receipt{}, ledgererr.Wrap(ledgererr.ErrArithmeticOverflow, "airdrop to %s", key)
	}
	acc.Lamports = sum
	if err := e.store.CommitAccounts(ctx, []*Account{acc}); err != nil {
		release()
		return Receipt{}, fmt.Errorf("commit airdrop: %w", err)
	}
	release()

	seq := e.seq.Add(1)
	var amount [8]byte
	binary.LittleEndian.PutUint64(amount[:], lamports)
	receipt := Receipt{
		TxID:     txID(solana.SystemProgramID, amount[:], []solana.PublicKey{key}, seq),
		Sequence: seq,
		Modified: []*Account{acc},
	}
	e.logger.Info("airdrop", zap.Stringer("to", key), zap.Uint64("lamports", lamports))
	e.notify(ctx, receipt)
	return receipt, nil
}

func (e *Executor) notify(ctx context.Context, r Receipt) {
	e.obsMu.RLock()
	observers := append([]Observer(nil), e.observers...)
	e.obsMu.RUnlock()
	for _, o := range observers {
		o(ctx, r)
	}
}

func txID(programID solana.PublicKey, data []byte, keys []solana.PublicKey, seq uint64) solana.Hash {
	h, _ := blake2b.New256(nil)
	h.Write(programID[:])
	for _, k := range keys {
		h.Write(k[:])
	}
	h.Write(data)
	var s [8]byte
	binary.LittleEndian.PutUint64(s[:], seq)
	h.Write(s[:])
	var out solana.Hash
	copy(out[:], h.Sum(nil))
	return out
}
