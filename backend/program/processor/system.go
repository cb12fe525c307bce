package processor

import (
	"charge2earn/backend/program/ledgererr"
)

const (
	// LamportsPerUnit is the number of minor units in one currency unit.
	LamportsPerUnit uint64 = 1_000_000_000
	// RegistrationFee is charged to a charger's payer and credited to the admin.
	RegistrationFee = LamportsPerUnit / 2

	accountStorageOverhead = 128
)

// Rent prices account storage. A zero rate makes account creation free.
type Rent struct {
	LamportsPerByte uint64
}

// MinimumBalance is what a new account of size bytes must hold.
func (r Rent) MinimumBalance(size int) (uint64, error) {
	return mulU64(uint64(accountStorageOverhead+size), r.LamportsPerByte)
}

// transfer moves native units. Balances are checked before either side changes.
func transfer(from, to *AccountInfo, amount uint64) error {
	if err := requireSigner(from, "payer"); err != nil {
		return err
	}
	if err := requireWritable(from, "payer"); err != nil {
		return err
	}
	if err := requireWritable(to, "recipient"); err != nil {
		return err
	}
	if from.Lamports < amount {
		return ledgererr.Wrap(ledgererr.ErrInsufficientFunds, "%s has %d, needs %d", from.Key, from.Lamports, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	credited, err := addU64(to.Lamports, amount)
	if err != nil {
		return err
	}
	from.Lamports -= amount
	to.Lamports = credited
	return nil
}

// createAccount allocates a zeroed record of size bytes owned by the program,
// funded with the rent minimum by payer.
func (p *Processor) createAccount(payer, acc *AccountInfo, size int) error {
	if !acc.Empty() {
		return ledgererr.Wrap(ledgererr.ErrAccountAlreadyInitialized, "%s", acc.Key)
	}
	if err := requireWritable(acc, "new account"); err != nil {
		return err
	}
	minimum, err := p.cfg.Rent.MinimumBalance(size)
	if err != nil {
		return err
	}
	if acc.Lamports < minimum {
		if err := transfer(payer, acc, minimum-acc.Lamports); err != nil {
			return err
		}
	}
	acc.Owner = p.cfg.ProgramID
	acc.Data = make([]byte, size)
	return nil
}

// creationCost is what payer must cover to allocate size bytes at acc.
func (p *Processor) creationCost(acc *AccountInfo, size int) (uint64, error) {
	minimum, err := p.cfg.Rent.MinimumBalance(size)
	if err != nil {
		return 0, err
	}
	if acc.Lamports >= minimum {
		return 0, nil
	}
	return minimum - acc.Lamports, nil
}

func requireFunds(payer *AccountInfo, costs ...uint64) error {
	var total uint64
	for _, c := range costs {
		var err error
		if total, err = addU64(total, c); err != nil {
			return err
		}
	}
	if payer.Lamports < total {
		return ledgererr.Wrap(ledgererr.ErrInsufficientFunds, "%s has %d, needs %d", payer.Key, payer.Lamports, total)
	}
	return nil
}
