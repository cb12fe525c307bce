package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Lamports are u64, which overflows BIGINT; they are stored as NUMERIC and
// moved as decimal text.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	address    BYTEA PRIMARY KEY,
	lamports   NUMERIC(20, 0) NOT NULL,
	owner      BYTEA NOT NULL,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ledger_accounts_owner_idx ON ledger_accounts (owner);
`

// Migrate creates the tables the repository needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}
