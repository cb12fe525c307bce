package processor

import (
	"math"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/state"
)

// Accounts: payer (signer, writable), charger (writable), admin (writable), system.
func (p *Processor) registerCharger(accounts []*AccountInfo, payload instruction.Payload) error {
	args := payload.(instruction.RegisterCharger)
	it := &accountIter{accounts: accounts}
	payer, err := it.next("payer")
	if err != nil {
		return err
	}
	charger, err := it.next("charger")
	if err != nil {
		return err
	}
	admin, err := it.next("admin")
	if err != nil {
		return err
	}
	system, err := it.next("system")
	if err != nil {
		return err
	}

	if err := requireSigner(payer, "payer"); err != nil {
		return err
	}
	if err := requireSystemProgram(system); err != nil {
		return err
	}
	if err := validateCharger(args); err != nil {
		return err
	}
	derived, derr := address.Charger(p.cfg.ProgramID, args.Code, payer.Key)
	if err := requireDerived(charger, derived, derr, "charger"); err != nil {
		return err
	}
	if admin.Key.Equals(solana.SystemProgramID) {
		return ledgererr.Wrap(ledgererr.ErrIllegalOwner, "admin account cannot be the system program")
	}
	if !p.cfg.AdminKey.IsZero() && !admin.Key.Equals(p.cfg.AdminKey) {
		return ledgererr.Wrap(ledgererr.ErrIllegalOwner, "admin account %s is not the configured admin", admin.Key)
	}
	if !charger.Empty() {
		return ledgererr.Wrap(ledgererr.ErrAccountAlreadyInitialized, "charger %q already registered by %s", args.Code, payer.Key)
	}

	rec := &state.Charger{
		Initialized:      true,
		Authority:        payer.Key,
		Code:             args.Code,
		Name:             args.Name,
		City:             args.City,
		Address:          args.Address,
		Latitude:         args.Latitude,
		Longitude:        args.Longitude,
		PowerKW:          args.PowerKW,
		RatePointsPerSec: args.RatePointsPerSec,
		PricePerSec:      args.PricePerSec,
	}
	rent, err := p.creationCost(charger, rec.Size())
	if err != nil {
		return err
	}
	if err := requireFunds(payer, rent, RegistrationFee); err != nil {
		return err
	}

	if err := p.createAccount(payer, charger, rec.Size()); err != nil {
		return err
	}
	if err := transfer(payer, admin, RegistrationFee); err != nil {
		return err
	}
	if err := p.writeRecord(charger, rec); err != nil {
		return err
	}
	p.log("charger registered",
		zap.String("code", args.Code),
		zap.Stringer("charger", charger.Key),
		zap.Stringer("authority", payer.Key),
	)
	return nil
}

func validateCharger(args instruction.RegisterCharger) error {
	if strings.TrimSpace(args.Code) == "" {
		return ledgererr.Wrap(ledgererr.ErrInvalidArgument, "charger code is required")
	}
	if len(args.Code) > address.MaxSeedLength {
		return ledgererr.Wrap(ledgererr.ErrInvalidArgument, "charger code is %d bytes, max %d", len(args.Code), address.MaxSeedLength)
	}
	if math.IsNaN(args.Latitude) || args.Latitude < -90 || args.Latitude > 90 {
		return ledgererr.Wrap(ledgererr.ErrInvalidArgument, "latitude %v out of range", args.Latitude)
	}
	if math.IsNaN(args.Longitude) || args.Longitude < -180 || args.Longitude > 180 {
		return ledgererr.Wrap(ledgererr.ErrInvalidArgument, "longitude %v out of range", args.Longitude)
	}
	power := float64(args.PowerKW)
	if math.IsNaN(power) || math.IsInf(power, 0) || power < 0 {
		return ledgererr.Wrap(ledgererr.ErrInvalidArgument, "power_kw %v invalid", args.PowerKW)
	}
	return nil
}
