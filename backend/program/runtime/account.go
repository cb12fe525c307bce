// Package runtime hosts the program: it loads the accounts an instruction
// references, runs the processor against private copies, checks the result
// and commits it atomically to an AccountStore.
package runtime

import (
	"bytes"
	"context"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/program/codec"
	"charge2earn/backend/program/ledgererr"
)

// Account is the persisted state at one address.
type Account struct {
	Key      solana.PublicKey `json:"key"`
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Data     []byte           `json:"data"`
}

// emptyAccount is what a never-written address looks like.
func emptyAccount(key solana.PublicKey) *Account {
	return &Account{Key: key, Owner: solana.SystemProgramID}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}

// Equal compares balances, owner and data.
func (a *Account) Equal(b *Account) bool {
	return a.Key.Equals(b.Key) &&
		a.Lamports == b.Lamports &&
		a.Owner.Equals(b.Owner) &&
		bytes.Equal(a.Data, b.Data)
}

// IsZero reports whether the account holds nothing worth storing.
func (a *Account) IsZero() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner.Equals(solana.SystemProgramID)
}

// MarshalAccount encodes lamports, owner and data; the key is stored alongside.
func MarshalAccount(a *Account) ([]byte, error) {
	return codec.NewWriter().U64(a.Lamports).Pubkey(a.Owner).Blob(a.Data).Bytes()
}

// UnmarshalAccount is the inverse of MarshalAccount.
func UnmarshalAccount(key solana.PublicKey, raw []byte) (*Account, error) {
	r := codec.NewReader(raw, ledgererr.ErrMalformedAccount)
	a := &Account{
		Key:      key,
		Lamports: r.U64("lamports"),
		Owner:    r.Pubkey("owner"),
		Data:     r.Blob("data"),
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return a, nil
}

// AccountStore persists accounts.
type AccountStore interface {
	// LoadAccounts returns one account per key, in order. Unknown keys come
	// back as empty system-owned accounts.
	LoadAccounts(ctx context.Context, keys []solana.PublicKey) ([]*Account, error)
	// CommitAccounts writes every account or none.
	CommitAccounts(ctx context.Context, accounts []*Account) error
	// AccountsByOwner lists the accounts owned by owner.
	AccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*Account, error)
}
