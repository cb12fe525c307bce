package processor

import (
	"go.uber.org/zap"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/state"
)

// Accounts: user (signer, writable), driver (writable), session (writable), charger, system.
func (p *Processor) startSession(accounts []*AccountInfo, payload instruction.Payload) error {
	args := payload.(instruction.StartSession)
	it := &accountIter{accounts: accounts}
	user, err := it.next("user")
	if err != nil {
		return err
	}
	driverAcc, err := it.next("driver")
	if err != nil {
		return err
	}
	sessionAcc, err := it.next("session")
	if err != nil {
		return err
	}
	chargerAcc, err := it.next("charger")
	if err != nil {
		return err
	}
	system, err := it.next("system")
	if err != nil {
		return err
	}

	if err := requireSigner(user, "user"); err != nil {
		return err
	}
	if err := requireSystemProgram(system); err != nil {
		return err
	}
	derivedDriver, derr := address.Driver(p.cfg.ProgramID, user.Key)
	if err := requireDerived(driverAcc, derivedDriver, derr, "driver"); err != nil {
		return err
	}
	if err := p.requireRecord(chargerAcc, "charger"); err != nil {
		return err
	}
	charger, err := state.DecodeCharger(chargerAcc.Data)
	if err != nil {
		return err
	}
	if !charger.Initialized {
		return ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "charger %s", chargerAcc.Key)
	}
	derivedSession, derr := address.Session(p.cfg.ProgramID, chargerAcc.Key, driverAcc.Key, args.StartTS)
	if err := requireDerived(sessionAcc, derivedSession, derr, "session"); err != nil {
		return err
	}
	if !sessionAcc.Empty() {
		return ledgererr.Wrap(ledgererr.ErrAccountAlreadyInitialized, "session at %d already started", args.StartTS)
	}

	// Driver upsert: absent -> initialize with zero balance; present -> must be ours.
	createDriver := driverAcc.Empty()
	var driverRent uint64
	if createDriver {
		if driverRent, err = p.creationCost(driverAcc, state.DriverSize); err != nil {
			return err
		}
	} else {
		if _, err := p.loadDriver(driverAcc, user); err != nil {
			return err
		}
	}
	sessionRent, err := p.creationCost(sessionAcc, state.SessionSize)
	if err != nil {
		return err
	}
	if err := requireFunds(user, driverRent, sessionRent); err != nil {
		return err
	}

	if createDriver {
		if err := p.createAccount(user, driverAcc, state.DriverSize); err != nil {
			return err
		}
		if err := p.writeRecord(driverAcc, &state.Driver{Initialized: true, Owner: user.Key}); err != nil {
			return err
		}
		p.log("driver created", zap.Stringer("driver", driverAcc.Key), zap.Stringer("owner", user.Key))
	}
	if err := p.createAccount(user, sessionAcc, state.SessionSize); err != nil {
		return err
	}
	session := &state.Session{
		Initialized: true,
		Driver:      driverAcc.Key,
		Charger:     chargerAcc.Key,
		StartTS:     args.StartTS,
	}
	if err := p.writeRecord(sessionAcc, session); err != nil {
		return err
	}
	p.log("session started", zap.Stringer("session", sessionAcc.Key), zap.Int64("start_ts", args.StartTS))
	return nil
}

// Accounts: user (signer, writable), session (writable), driver (writable),
// charger, charger owner (writable), system.
func (p *Processor) stopSession(accounts []*AccountInfo, payload instruction.Payload) error {
	args := payload.(instruction.StopSession)
	it := &accountIter{accounts: accounts}
	user, err := it.next("user")
	if err != nil {
		return err
	}
	sessionAcc, err := it.next("session")
	if err != nil {
		return err
	}
	driverAcc, err := it.next("driver")
	if err != nil {
		return err
	}
	chargerAcc, err := it.next("charger")
	if err != nil {
		return err
	}
	ownerAcc, err := it.next("charger owner")
	if err != nil {
		return err
	}
	system, err := it.next("system")
	if err != nil {
		return err
	}

	if err := requireSigner(user, "user"); err != nil {
		return err
	}
	if err := requireSystemProgram(system); err != nil {
		return err
	}
	if err := p.requireRecord(sessionAcc, "session"); err != nil {
		return err
	}
	session, err := state.DecodeSession(sessionAcc.Data)
	if err != nil {
		return err
	}
	if !session.Initialized {
		return ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "session %s", sessionAcc.Key)
	}
	if session.Settled {
		return ledgererr.Wrap(ledgererr.ErrSessionSettled, "session %s ended at %d", sessionAcc.Key, session.EndTS)
	}
	if !session.Driver.Equals(driverAcc.Key) {
		return ledgererr.Wrap(ledgererr.ErrAccountMismatch, "session driver is %s, got %s", session.Driver, driverAcc.Key)
	}
	if !session.Charger.Equals(chargerAcc.Key) {
		return ledgererr.Wrap(ledgererr.ErrAccountMismatch, "session charger is %s, got %s", session.Charger, chargerAcc.Key)
	}
	driver, err := p.loadDriver(driverAcc, user)
	if err != nil {
		return err
	}
	if err := p.requireRecord(chargerAcc, "charger"); err != nil {
		return err
	}
	charger, err := state.DecodeCharger(chargerAcc.Data)
	if err != nil {
		return err
	}
	if !ownerAcc.Key.Equals(charger.Authority) {
		return ledgererr.Wrap(ledgererr.ErrAccountMismatch, "charger owner is %s, got %s", charger.Authority, ownerAcc.Key)
	}

	elapsed := elapsedSeconds(session.StartTS, args.EndTS)
	points, err := mulU64(elapsed, charger.RatePointsPerSec)
	if err != nil {
		return err
	}
	cost, err := mulU64(elapsed, charger.PricePerSec)
	if err != nil {
		return err
	}
	balance, err := addU64(driver.AmpBalance, points)
	if err != nil {
		return err
	}
	if err := requireFunds(user, cost); err != nil {
		return err
	}

	if err := transfer(user, ownerAcc, cost); err != nil {
		return err
	}
	driver.AmpBalance = balance
	if err := p.writeRecord(driverAcc, driver); err != nil {
		return err
	}
	session.EndTS = args.EndTS
	session.PointsAwarded = points
	session.Settled = true
	if err := p.writeRecord(sessionAcc, session); err != nil {
		return err
	}
	p.log("session settled",
		zap.Stringer("session", sessionAcc.Key),
		zap.Uint64("elapsed", elapsed),
		zap.Uint64("points", points),
		zap.Uint64("cost", cost),
	)
	return nil
}

// loadDriver decodes a driver record and checks it belongs to owner.
func (p *Processor) loadDriver(acc *AccountInfo, owner *AccountInfo) (*state.Driver, error) {
	if err := p.requireRecord(acc, "driver"); err != nil {
		return nil, err
	}
	driver, err := state.DecodeDriver(acc.Data)
	if err != nil {
		return nil, err
	}
	if !driver.Initialized {
		return nil, ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "driver %s", acc.Key)
	}
	if !driver.Owner.Equals(owner.Key) {
		return nil, ledgererr.Wrap(ledgererr.ErrIllegalOwner, "driver %s belongs to %s", acc.Key, driver.Owner)
	}
	return driver, nil
}
