package instruction

import (
	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/program/address"
)

// Builders derive every record address from the signer and the identifying
// inputs, then return the payload with its ordered account list. The order
// is part of the protocol: handlers read accounts positionally.

func build(programID solana.PublicKey, p Payload, metas ...*solana.AccountMeta) (*solana.GenericInstruction, error) {
	data, err := Encode(p)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice(metas), data), nil
}

// NewRegisterCharger: payer, charger, admin, system.
func NewRegisterCharger(programID, payer, admin solana.PublicKey, p RegisterCharger) (*solana.GenericInstruction, error) {
	charger, err := address.Charger(programID, p.Code, payer)
	if err != nil {
		return nil, err
	}
	return build(programID, p,
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(charger.Address).WRITE(),
		solana.Meta(admin).WRITE(),
		solana.Meta(solana.SystemProgramID),
	)
}

// NewStartSession: user, driver, session, charger, system.
func NewStartSession(programID, user, charger solana.PublicKey, startTS int64) (*solana.GenericInstruction, error) {
	driver, err := address.Driver(programID, user)
	if err != nil {
		return nil, err
	}
	session, err := address.Session(programID, charger, driver.Address, startTS)
	if err != nil {
		return nil, err
	}
	return build(programID, StartSession{StartTS: startTS},
		solana.Meta(user).WRITE().SIGNER(),
		solana.Meta(driver.Address).WRITE(),
		solana.Meta(session.Address).WRITE(),
		solana.Meta(charger),
		solana.Meta(solana.SystemProgramID),
	)
}

// NewStopSession: user, session, driver, charger, charger owner, system.
func NewStopSession(programID, user, charger, chargerOwner solana.PublicKey, startTS, endTS int64) (*solana.GenericInstruction, error) {
	driver, err := address.Driver(programID, user)
	if err != nil {
		return nil, err
	}
	session, err := address.Session(programID, charger, driver.Address, startTS)
	if err != nil {
		return nil, err
	}
	return build(programID, StopSession{EndTS: endTS},
		solana.Meta(user).WRITE().SIGNER(),
		solana.Meta(session.Address).WRITE(),
		solana.Meta(driver.Address).WRITE(),
		solana.Meta(charger),
		solana.Meta(chargerOwner).WRITE(),
		solana.Meta(solana.SystemProgramID),
	)
}

// NewCreateOrUpdateListing: seller, driver, listing, system.
func NewCreateOrUpdateListing(programID, seller solana.PublicKey, amountPoints, pricePerPoint uint64) (*solana.GenericInstruction, error) {
	driver, err := address.Driver(programID, seller)
	if err != nil {
		return nil, err
	}
	listing, err := address.Listing(programID, seller)
	if err != nil {
		return nil, err
	}
	return build(programID, CreateOrUpdateListing{AmountPoints: amountPoints, PricePerPoint: pricePerPoint},
		solana.Meta(seller).WRITE().SIGNER(),
		solana.Meta(driver.Address).WRITE(),
		solana.Meta(listing.Address).WRITE(),
		solana.Meta(solana.SystemProgramID),
	)
}

// NewBuyFromListing: buyer, user, listing, seller, system.
func NewBuyFromListing(programID, buyer, seller solana.PublicKey, buyPoints uint64) (*solana.GenericInstruction, error) {
	user, err := address.User(programID, buyer)
	if err != nil {
		return nil, err
	}
	listing, err := address.Listing(programID, seller)
	if err != nil {
		return nil, err
	}
	return build(programID, BuyFromListing{BuyPoints: buyPoints},
		solana.Meta(buyer).WRITE().SIGNER(),
		solana.Meta(user.Address).WRITE(),
		solana.Meta(listing.Address).WRITE(),
		solana.Meta(seller).WRITE(),
		solana.Meta(solana.SystemProgramID),
	)
}

// NewCancelListing: seller, driver, listing.
func NewCancelListing(programID, seller solana.PublicKey) (*solana.GenericInstruction, error) {
	driver, err := address.Driver(programID, seller)
	if err != nil {
		return nil, err
	}
	listing, err := address.Listing(programID, seller)
	if err != nil {
		return nil, err
	}
	return build(programID, CancelListing{},
		solana.Meta(seller).SIGNER(),
		solana.Meta(driver.Address).WRITE(),
		solana.Meta(listing.Address).WRITE(),
	)
}
