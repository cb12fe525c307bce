package processor

import (
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/state"
)

// AccountInfo is the view of one referenced account during a single
// instruction. Handlers mutate Lamports, Owner and Data in place; the
// executor decides whether those mutations become visible.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
}

// Empty reports whether no record has been allocated at this address.
func (a *AccountInfo) Empty() bool {
	return len(a.Data) == 0 || (a.Owner.Equals(solana.SystemProgramID) && state.IsEmpty(a.Data))
}

type accountIter struct {
	accounts []*AccountInfo
	pos      int
}

func (it *accountIter) next(role string) (*AccountInfo, error) {
	if it.pos >= len(it.accounts) {
		return nil, ledgererr.Wrap(ledgererr.ErrNotEnoughAccountKeys, "missing %s account at position %d", role, it.pos)
	}
	acc := it.accounts[it.pos]
	it.pos++
	return acc, nil
}

func requireSigner(acc *AccountInfo, role string) error {
	if !acc.IsSigner {
		return ledgererr.Wrap(ledgererr.ErrMissingSignature, "%s %s must sign", role, acc.Key)
	}
	return nil
}

func requireWritable(acc *AccountInfo, role string) error {
	if !acc.IsWritable {
		return ledgererr.Wrap(ledgererr.ErrReadonlyAccount, "%s %s", role, acc.Key)
	}
	return nil
}

func requireDerived(acc *AccountInfo, derived address.Derived, derr error, role string) error {
	if derr != nil {
		return fmt.Errorf("%w: %v", ledgererr.ErrInvalidSeeds, derr)
	}
	if !acc.Key.Equals(derived.Address) {
		return ledgererr.Wrap(ledgererr.ErrInvalidSeeds, "%s: expected %s, got %s", role, derived.Address, acc.Key)
	}
	return nil
}

func requireSystemProgram(acc *AccountInfo) error {
	if !acc.Key.Equals(solana.SystemProgramID) {
		return ledgererr.Wrap(ledgererr.ErrAccountMismatch, "expected system program, got %s", acc.Key)
	}
	return nil
}

// requireRecord rejects accounts that hold no record or a record owned by
// another program.
func (p *Processor) requireRecord(acc *AccountInfo, role string) error {
	if acc.Empty() {
		return ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "%s %s", role, acc.Key)
	}
	if !acc.Owner.Equals(p.cfg.ProgramID) {
		return ledgererr.Wrap(ledgererr.ErrIllegalOwner, "%s %s owned by %s", role, acc.Key, acc.Owner)
	}
	return nil
}

type encoder interface {
	Encode() ([]byte, error)
}

func (p *Processor) writeRecord(acc *AccountInfo, rec encoder) error {
	if err := requireWritable(acc, "record"); err != nil {
		return err
	}
	if !acc.Owner.Equals(p.cfg.ProgramID) {
		return ledgererr.Wrap(ledgererr.ErrIllegalOwner, "cannot write %s", acc.Key)
	}
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	if len(data) > len(acc.Data) {
		return ledgererr.Wrap(ledgererr.ErrMalformedAccount, "record needs %d bytes, account has %d", len(data), len(acc.Data))
	}
	copy(acc.Data, data)
	return nil
}

func mulU64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ledgererr.Wrap(ledgererr.ErrArithmeticOverflow, "%d * %d", a, b)
	}
	return lo, nil
}

func addU64(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ledgererr.Wrap(ledgererr.ErrArithmeticOverflow, "%d + %d", a, b)
	}
	return sum, nil
}

// elapsedSeconds clamps a negative interval to zero. The subtraction is done
// on the unsigned bit patterns, which yields the exact difference for any
// pair with end > start.
func elapsedSeconds(startTS, endTS int64) uint64 {
	if endTS <= startTS {
		return 0
	}
	return uint64(endTS) - uint64(startTS)
}
