package processor

import (
	"go.uber.org/zap"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/state"
)

// Accounts: seller (signer, writable), driver (writable), listing (writable), system.
//
// A repeated call replaces amount and price. Points escrowed by the previous
// listing are returned to the driver before the new amount is taken.
func (p *Processor) createOrUpdateListing(accounts []*AccountInfo, payload instruction.Payload) error {
	args := payload.(instruction.CreateOrUpdateListing)
	it := &accountIter{accounts: accounts}
	seller, err := it.next("seller")
	if err != nil {
		return err
	}
	driverAcc, err := it.next("driver")
	if err != nil {
		return err
	}
	listingAcc, err := it.next("listing")
	if err != nil {
		return err
	}
	system, err := it.next("system")
	if err != nil {
		return err
	}

	if err := requireSigner(seller, "seller"); err != nil {
		return err
	}
	if err := requireSystemProgram(system); err != nil {
		return err
	}
	derivedDriver, derr := address.Driver(p.cfg.ProgramID, seller.Key)
	if err := requireDerived(driverAcc, derivedDriver, derr, "driver"); err != nil {
		return err
	}
	derivedListing, derr := address.Listing(p.cfg.ProgramID, seller.Key)
	if err := requireDerived(listingAcc, derivedListing, derr, "listing"); err != nil {
		return err
	}
	driver, err := p.loadDriver(driverAcc, seller)
	if err != nil {
		return err
	}

	available := driver.AmpBalance
	createListing := listingAcc.Empty()
	var listingRent uint64
	if createListing {
		if listingRent, err = p.creationCost(listingAcc, state.ListingSize); err != nil {
			return err
		}
	} else {
		prev, err := p.loadListing(listingAcc, seller)
		if err != nil {
			return err
		}
		if available, err = addU64(available, prev.AmountTotal); err != nil {
			return err
		}
	}
	if args.AmountPoints > available {
		return ledgererr.Wrap(ledgererr.ErrInsufficientPoints, "listing %d points, %d available", args.AmountPoints, available)
	}
	if err := requireFunds(seller, listingRent); err != nil {
		return err
	}

	if createListing {
		if err := p.createAccount(seller, listingAcc, state.ListingSize); err != nil {
			return err
		}
	}
	driver.AmpBalance = available - args.AmountPoints
	if err := p.writeRecord(driverAcc, driver); err != nil {
		return err
	}
	listing := &state.Listing{
		Initialized:   true,
		Seller:        seller.Key,
		AmountTotal:   args.AmountPoints,
		PricePerPoint: args.PricePerPoint,
	}
	if err := p.writeRecord(listingAcc, listing); err != nil {
		return err
	}
	p.log("listing updated",
		zap.Stringer("seller", seller.Key),
		zap.Uint64("amount", args.AmountPoints),
		zap.Uint64("price", args.PricePerPoint),
	)
	return nil
}

// Accounts: buyer (signer, writable), user (writable), listing (writable),
// seller (writable), system.
func (p *Processor) buyFromListing(accounts []*AccountInfo, payload instruction.Payload) error {
	args := payload.(instruction.BuyFromListing)
	it := &accountIter{accounts: accounts}
	buyer, err := it.next("buyer")
	if err != nil {
		return err
	}
	userAcc, err := it.next("user")
	if err != nil {
		return err
	}
	listingAcc, err := it.next("listing")
	if err != nil {
		return err
	}
	seller, err := it.next("seller")
	if err != nil {
		return err
	}
	system, err := it.next("system")
	if err != nil {
		return err
	}

	if err := requireSigner(buyer, "buyer"); err != nil {
		return err
	}
	if err := requireSystemProgram(system); err != nil {
		return err
	}
	if args.BuyPoints == 0 {
		return ledgererr.Wrap(ledgererr.ErrInvalidArgument, "buy_points must be positive")
	}
	derivedUser, derr := address.User(p.cfg.ProgramID, buyer.Key)
	if err := requireDerived(userAcc, derivedUser, derr, "user"); err != nil {
		return err
	}
	derivedListing, derr := address.Listing(p.cfg.ProgramID, seller.Key)
	if err := requireDerived(listingAcc, derivedListing, derr, "listing"); err != nil {
		return err
	}
	listing, err := p.loadListing(listingAcc, seller)
	if err != nil {
		return err
	}
	if listing.AmountTotal == 0 {
		return ledgererr.Wrap(ledgererr.ErrListingEmpty, "listing %s", listingAcc.Key)
	}
	if args.BuyPoints > listing.AmountTotal {
		return ledgererr.Wrap(ledgererr.ErrInsufficientListed, "requested %d, listed %d", args.BuyPoints, listing.AmountTotal)
	}
	cost, err := mulU64(args.BuyPoints, listing.PricePerPoint)
	if err != nil {
		return err
	}

	createUser := userAcc.Empty()
	user := &state.User{Initialized: true, Owner: buyer.Key}
	var userRent uint64
	if createUser {
		if userRent, err = p.creationCost(userAcc, state.UserSize); err != nil {
			return err
		}
	} else {
		if user, err = p.loadUser(userAcc, buyer); err != nil {
			return err
		}
	}
	balance, err := addU64(user.AmpBalance, args.BuyPoints)
	if err != nil {
		return err
	}
	if err := requireFunds(buyer, cost, userRent); err != nil {
		return err
	}

	if createUser {
		if err := p.createAccount(buyer, userAcc, state.UserSize); err != nil {
			return err
		}
	}
	if err := transfer(buyer, seller, cost); err != nil {
		return err
	}
	user.AmpBalance = balance
	if err := p.writeRecord(userAcc, user); err != nil {
		return err
	}
	listing.AmountTotal -= args.BuyPoints
	if err := p.writeRecord(listingAcc, listing); err != nil {
		return err
	}
	p.log("listing filled",
		zap.Stringer("buyer", buyer.Key),
		zap.Stringer("seller", seller.Key),
		zap.Uint64("points", args.BuyPoints),
		zap.Uint64("cost", cost),
	)
	return nil
}

// Accounts: seller (signer), driver (writable), listing (writable).
//
// Cancelling returns escrowed points and leaves the listing in place with a
// zero amount, so a second cancel is a no-op.
func (p *Processor) cancelListing(accounts []*AccountInfo, _ instruction.Payload) error {
	it := &accountIter{accounts: accounts}
	seller, err := it.next("seller")
	if err != nil {
		return err
	}
	driverAcc, err := it.next("driver")
	if err != nil {
		return err
	}
	listingAcc, err := it.next("listing")
	if err != nil {
		return err
	}

	if err := requireSigner(seller, "seller"); err != nil {
		return err
	}
	derivedDriver, derr := address.Driver(p.cfg.ProgramID, seller.Key)
	if err := requireDerived(driverAcc, derivedDriver, derr, "driver"); err != nil {
		return err
	}
	derivedListing, derr := address.Listing(p.cfg.ProgramID, seller.Key)
	if err := requireDerived(listingAcc, derivedListing, derr, "listing"); err != nil {
		return err
	}
	listing, err := p.loadListing(listingAcc, seller)
	if err != nil {
		return err
	}
	driver, err := p.loadDriver(driverAcc, seller)
	if err != nil {
		return err
	}
	if listing.AmountTotal == 0 {
		return nil
	}
	balance, err := addU64(driver.AmpBalance, listing.AmountTotal)
	if err != nil {
		return err
	}

	returned := listing.AmountTotal
	driver.AmpBalance = balance
	if err := p.writeRecord(driverAcc, driver); err != nil {
		return err
	}
	listing.AmountTotal = 0
	if err := p.writeRecord(listingAcc, listing); err != nil {
		return err
	}
	p.log("listing cancelled", zap.Stringer("seller", seller.Key), zap.Uint64("returned", returned))
	return nil
}

func (p *Processor) loadListing(acc *AccountInfo, seller *AccountInfo) (*state.Listing, error) {
	if err := p.requireRecord(acc, "listing"); err != nil {
		return nil, err
	}
	listing, err := state.DecodeListing(acc.Data)
	if err != nil {
		return nil, err
	}
	if !listing.Initialized {
		return nil, ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "listing %s", acc.Key)
	}
	if !listing.Seller.Equals(seller.Key) {
		return nil, ledgererr.Wrap(ledgererr.ErrAccountMismatch, "listing seller is %s, got %s", listing.Seller, seller.Key)
	}
	return listing, nil
}

func (p *Processor) loadUser(acc *AccountInfo, owner *AccountInfo) (*state.User, error) {
	if err := p.requireRecord(acc, "user"); err != nil {
		return nil, err
	}
	user, err := state.DecodeUser(acc.Data)
	if err != nil {
		return nil, err
	}
	if !user.Initialized {
		return nil, ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "user %s", acc.Key)
	}
	if !user.Owner.Equals(owner.Key) {
		return nil, ledgererr.Wrap(ledgererr.ErrIllegalOwner, "user %s belongs to %s", acc.Key, user.Owner)
	}
	return user, nil
}
