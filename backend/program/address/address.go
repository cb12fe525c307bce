// Package address derives the program's record addresses. Every address is a
// program-derived address: a deterministic, off-curve key computed from a tag,
// the record's identifying parts and the program id, together with the bump
// seed that made it canonical. No ledger state is read.
package address

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/program/codec"
)

// TagVersion is appended to every tag. Bumping it moves every record to a
// fresh address space so a new schema never collides with the previous one.
const TagVersion = "1"

const (
	TagCharger = "charger" + TagVersion
	TagDriver  = "driver" + TagVersion
	TagSession = "session" + TagVersion
	TagListing = "listing" + TagVersion
	TagUser    = "user" + TagVersion
)

// MaxSeedLength is the longest single seed accepted by the derivation.
const MaxSeedLength = solana.MaxSeedLength

// Derived is a derived address and its canonicalization nonce.
type Derived struct {
	Address solana.PublicKey
	Bump    uint8
}

// Derive maps tag and parts to a program-derived address.
func Derive(programID solana.PublicKey, tag string, parts ...[]byte) (Derived, error) {
	seeds := make([][]byte, 0, len(parts)+1)
	seeds = append(seeds, []byte(tag))
	for i, p := range parts {
		if len(p) > MaxSeedLength {
			return Derived{}, fmt.Errorf("address: %s seed %d is %d bytes, max %d", tag, i, len(p), MaxSeedLength)
		}
		seeds = append(seeds, p)
	}
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Derived{}, fmt.Errorf("address: derive %s: %w", tag, err)
	}
	return Derived{Address: addr, Bump: bump}, nil
}

// Charger derives the charger record for code registered by authority.
func Charger(programID solana.PublicKey, code string, authority solana.PublicKey) (Derived, error) {
	return Derive(programID, TagCharger, []byte(code), authority.Bytes())
}

// Driver derives the driver record of owner.
func Driver(programID, owner solana.PublicKey) (Derived, error) {
	return Derive(programID, TagDriver, owner.Bytes())
}

// Session derives the session slot for a charger record, a driver record and
// a start timestamp. Two starts in the same second collide by construction.
func Session(programID, charger, driver solana.PublicKey, startTS int64) (Derived, error) {
	ts, err := codec.NewWriter().I64(startTS).Bytes()
	if err != nil {
		return Derived{}, err
	}
	return Derive(programID, TagSession, charger.Bytes(), driver.Bytes(), ts)
}

// Listing derives the single listing slot of seller.
func Listing(programID, seller solana.PublicKey) (Derived, error) {
	return Derive(programID, TagListing, seller.Bytes())
}

// User derives the purchased-points record of owner.
func User(programID, owner solana.PublicKey) (Derived, error) {
	return Derive(programID, TagUser, owner.Bytes())
}
