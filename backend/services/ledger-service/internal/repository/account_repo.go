package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/libs/db"
	"charge2earn/backend/program/runtime"
)

// AccountRepository persists ledger accounts in Postgres. It implements
// runtime.AccountStore.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository returns repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

var _ runtime.AccountStore = (*AccountRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*runtime.Account, error) {
	var (
		address, owner, data []byte
		lamports             string
	)
	if err := row.Scan(&address, &lamports, &owner, &data); err != nil {
		return nil, err
	}
	if len(address) != solana.PublicKeyLength || len(owner) != solana.PublicKeyLength {
		return nil, fmt.Errorf("account row has bad key length")
	}
	parsed, err := strconv.ParseUint(lamports, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("account lamports %q: %w", lamports, err)
	}
	return &runtime.Account{
		Key:      solana.PublicKeyFromBytes(address),
		Lamports: parsed,
		Owner:    solana.PublicKeyFromBytes(owner),
		Data:     data,
	}, nil
}

// LoadAccounts returns one account per key, in order. Unknown keys come back
// empty and system-owned.
func (r *AccountRepository) LoadAccounts(ctx context.Context, keys []solana.PublicKey) ([]*runtime.Account, error) {
	const query = `
		SELECT address, lamports::text, owner, data
		FROM ledger_accounts
		WHERE address = ANY($1)
	`
	params := make([][]byte, len(keys))
	for i, k := range keys {
		params[i] = k.Bytes()
	}
	rows, err := r.db.QueryContext(ctx, query, params)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[solana.PublicKey]*runtime.Account, len(keys))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		found[acc.Key] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*runtime.Account, len(keys))
	for i, k := range keys {
		if acc, ok := found[k]; ok {
			out[i] = acc.Clone()
			continue
		}
		out[i] = &runtime.Account{Key: k, Owner: solana.SystemProgramID}
	}
	return out, nil
}

// CommitAccounts upserts every account in one transaction. Accounts that
// hold nothing are deleted.
func (r *AccountRepository) CommitAccounts(ctx context.Context, accounts []*runtime.Account) error {
	const upsert = `
		INSERT INTO ledger_accounts (address, lamports, owner, data, updated_at)
		VALUES ($1, $2::numeric, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			lamports = EXCLUDED.lamports,
			owner = EXCLUDED.owner,
			data = EXCLUDED.data,
			updated_at = NOW()
	`
	const remove = `DELETE FROM ledger_accounts WHERE address = $1`

	return db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, acc := range accounts {
			if acc.IsZero() {
				if _, err := tx.ExecContext(ctx, remove, acc.Key.Bytes()); err != nil {
					return fmt.Errorf("delete %s: %w", acc.Key, err)
				}
				continue
			}
			data := acc.Data
			if data == nil {
				data = []byte{}
			}
			if _, err := tx.ExecContext(ctx, upsert,
				acc.Key.Bytes(),
				strconv.FormatUint(acc.Lamports, 10),
				acc.Owner.Bytes(),
				data,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", acc.Key, err)
			}
		}
		return nil
	})
}

// AccountsByOwner lists owner's accounts ordered by address.
func (r *AccountRepository) AccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*runtime.Account, error) {
	const query = `
		SELECT address, lamports::text, owner, data
		FROM ledger_accounts
		WHERE owner = $1
		ORDER BY address
	`
	rows, err := r.db.QueryContext(ctx, query, owner.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*runtime.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}
