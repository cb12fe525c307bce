// Package processor implements the program's instruction handlers: charger
// registration, session start/stop settlement and the points marketplace.
package processor

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/ledgererr"
)

// Config fixes the program's identity and economics.
type Config struct {
	ProgramID solana.PublicKey
	// AdminKey receives registration fees. Zero accepts any admin account
	// except the system program.
	AdminKey solana.PublicKey
	Rent     Rent
}

type handlerFunc func(accounts []*AccountInfo, payload instruction.Payload) error

// Processor dispatches decoded instructions to handlers.
type Processor struct {
	cfg      Config
	logger   *zap.Logger
	handlers map[instruction.Discriminator]handlerFunc
}

// New builds a processor. A nil logger discards program logs.
func New(cfg Config, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		cfg:      cfg,
		logger:   logger.Named("program"),
		handlers: make(map[instruction.Discriminator]handlerFunc),
	}
	p.register(instruction.RegisterChargerIx, p.registerCharger)
	p.register(instruction.StartSessionIx, p.startSession)
	p.register(instruction.StopSessionIx, p.stopSession)
	p.register(instruction.CreateOrUpdateListingIx, p.createOrUpdateListing)
	p.register(instruction.BuyFromListingIx, p.buyFromListing)
	p.register(instruction.CancelListingIx, p.cancelListing)
	return p
}

func (p *Processor) register(d instruction.Discriminator, h handlerFunc) {
	p.handlers[d] = h
}

// ProgramID returns the id records must be owned by.
func (p *Processor) ProgramID() solana.PublicKey {
	return p.cfg.ProgramID
}

// Process decodes data and runs its handler against accounts, in the order
// the instruction's account list declares them.
func (p *Processor) Process(accounts []*AccountInfo, data []byte) error {
	payload, err := instruction.Decode(data)
	if err != nil {
		return err
	}
	handler, ok := p.handlers[payload.Discriminator()]
	if !ok {
		return fmt.Errorf("%w: no handler for %s", ledgererr.ErrInvalidInstructionData, payload.Discriminator())
	}
	if err := handler(accounts, payload); err != nil {
		return fmt.Errorf("%s: %w", payload.Discriminator(), err)
	}
	return nil
}

func (p *Processor) log(msg string, fields ...zap.Field) {
	p.logger.Debug(msg, fields...)
}
