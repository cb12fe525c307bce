package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"charge2earn/backend/program/instruction"
	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/program/runtime"
	"charge2earn/backend/program/scan"
	"charge2earn/backend/program/state"
	"charge2earn/backend/services/ledger-service/internal/models"
)

// ErrNotFound is returned for addresses that hold nothing.
var ErrNotFound = errors.New("not found")

// LeaderboardCache is satisfied by the redis store. A nil cache disables caching.
type LeaderboardCache interface {
	Get(ctx context.Context) ([]scan.LeaderboardEntry, bool, error)
	Set(ctx context.Context, entries []scan.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// LedgerService builds program instructions on behalf of authenticated
// wallets, executes them and answers read queries.
type LedgerService struct {
	exec     *runtime.Executor
	scanner  *scan.Scanner
	cache    LeaderboardCache
	adminKey solana.PublicKey
	now      func() time.Time
	logger   *zap.Logger

	// cacheMu orders cache fills against invalidations. generation counts
	// driver commits so a scan that raced one is not cached.
	cacheMu    sync.Mutex
	generation uint64
}

// NewLedgerService wires the service. adminKey receives charger registration fees.
func NewLedgerService(exec *runtime.Executor, cache LeaderboardCache, adminKey solana.PublicKey, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		exec:     exec,
		scanner:  scan.New(exec.Store(), exec.ProgramID(), logger),
		cache:    cache,
		adminKey: adminKey,
		now:      time.Now,
		logger:   logger,
	}
	exec.Subscribe(s.onCommit)
	return s
}

// ProgramID returns the hosted program id.
func (s *LedgerService) ProgramID() solana.PublicKey {
	return s.exec.ProgramID()
}

// AdminKey returns the configured admin wallet.
func (s *LedgerService) AdminKey() solana.PublicKey {
	return s.adminKey
}

func (s *LedgerService) onCommit(ctx context.Context, receipt runtime.Receipt) {
	if s.cache == nil {
		return
	}
	for _, acc := range receipt.Modified {
		if kind, err := state.PeekKind(acc.Data); err == nil && kind == state.KindDriver {
			s.cacheMu.Lock()
			s.generation++
			err := s.cache.Invalidate(ctx)
			s.cacheMu.Unlock()
			if err != nil {
				s.logger.Warn("leaderboard invalidate failed", zap.Error(err))
			}
			return
		}
	}
}

func (s *LedgerService) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// fillCache stores entries unless a driver commit landed after gen was read.
func (s *LedgerService) fillCache(ctx context.Context, gen uint64, entries []scan.LeaderboardEntry) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation != gen {
		s.logger.Debug("leaderboard changed during scan, not caching")
		return
	}
	if err := s.cache.Set(ctx, entries); err != nil {
		s.logger.Warn("leaderboard cache write failed", zap.Error(err))
	}
}

func (s *LedgerService) submit(ctx context.Context, signer solana.PublicKey, ix *solana.GenericInstruction, err error) (*models.TxResult, error) {
	if err != nil {
		return nil, err
	}
	receipt, err := s.exec.Execute(ctx, runtime.Transaction{
		Instruction: ix,
		Signers:     []solana.PublicKey{signer},
	})
	if err != nil {
		return nil, err
	}
	views := make([]models.AccountView, 0, len(receipt.Modified))
	for _, acc := range receipt.Modified {
		views = append(views, s.view(acc))
	}
	return &models.TxResult{
		TxID:     receipt.TxID.String(),
		Sequence: receipt.Sequence,
		Accounts: views,
	}, nil
}

// RegisterCharger registers a charger owned by signer.
func (s *LedgerService) RegisterCharger(ctx context.Context, signer solana.PublicKey, req models.RegisterChargerRequest) (*models.TxResult, error) {
	ix, err := instruction.NewRegisterCharger(s.ProgramID(), signer, s.adminKey, instruction.RegisterCharger{
		Code:             req.Code,
		Name:             req.Name,
		City:             req.City,
		Address:          req.Address,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		PowerKW:          req.PowerKW,
		RatePointsPerSec: req.RatePointsPerSec,
		PricePerSec:      req.PricePerSec,
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ledgererr.ErrInvalidArgument, err)
	}
	return s.submit(ctx, signer, ix, err)
}

// StartSession opens a session at startTS, or now when startTS is zero.
func (s *LedgerService) StartSession(ctx context.Context, signer, charger solana.PublicKey, startTS int64) (*models.TxResult, int64, error) {
	if startTS == 0 {
		startTS = s.now().Unix()
	}
	ix, err := instruction.NewStartSession(s.ProgramID(), signer, charger, startTS)
	res, err := s.submit(ctx, signer, ix, err)
	return res, startTS, err
}

// StopSession settles the session started at startTS. The charger owner
// is read from the charger record.
func (s *LedgerService) StopSession(ctx context.Context, signer, charger solana.PublicKey, startTS, endTS int64) (*models.TxResult, error) {
	if endTS == 0 {
		endTS = s.now().Unix()
	}
	acc, err := s.exec.Account(ctx, charger)
	if err != nil {
		return nil, err
	}
	if acc.IsZero() {
		return nil, ledgererr.Wrap(ledgererr.ErrUninitializedAccount, "charger %s", charger)
	}
	rec, err := state.DecodeCharger(acc.Data)
	if err != nil {
		return nil, err
	}
	ix, err := instruction.NewStopSession(s.ProgramID(), signer, charger, rec.Authority, startTS, endTS)
	return s.submit(ctx, signer, ix, err)
}

func (s *LedgerService) CreateOrUpdateListing(ctx context.Context, signer solana.PublicKey, amount, price uint64) (*models.TxResult, error) {
	ix, err := instruction.NewCreateOrUpdateListing(s.ProgramID(), signer, amount, price)
	return s.submit(ctx, signer, ix, err)
}

func (s *LedgerService) BuyFromListing(ctx context.Context, signer, seller solana.PublicKey, points uint64) (*models.TxResult, error) {
	ix, err := instruction.NewBuyFromListing(s.ProgramID(), signer, seller, points)
	return s.submit(ctx, signer, ix, err)
}

func (s *LedgerService) CancelListing(ctx context.Context, signer solana.PublicKey) (*models.TxResult, error) {
	ix, err := instruction.NewCancelListing(s.ProgramID(), signer)
	return s.submit(ctx, signer, ix, err)
}

// SubmitRaw executes caller-encoded instruction data. Only signer may be
// marked as a signing account.
func (s *LedgerService) SubmitRaw(ctx context.Context, signer solana.PublicKey, req models.RawTransactionRequest) (*models.TxResult, error) {
	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, ledgererr.Wrap(ledgererr.ErrInvalidInstructionData, "data is not base64")
	}
	metas := make(solana.AccountMetaSlice, 0, len(req.Accounts))
	for i, a := range req.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Address)
		if err != nil {
			return nil, ledgererr.Wrap(ledgererr.ErrInvalidArgument, "account %d: %v", i, err)
		}
		metas = append(metas, solana.NewAccountMeta(pk, a.IsWritable, a.IsSigner))
	}
	ix := solana.NewInstruction(s.ProgramID(), metas, data)
	return s.submit(ctx, signer, ix, nil)
}

// Airdrop credits lamports to address.
func (s *LedgerService) Airdrop(ctx context.Context, address solana.PublicKey, lamports uint64) (*models.TxResult, error) {
	if lamports == 0 {
		return nil, ledgererr.Wrap(ledgererr.ErrInvalidArgument, "lamports must be positive")
	}
	receipt, err := s.exec.Airdrop(ctx, address, lamports)
	if err != nil {
		return nil, err
	}
	return &models.TxResult{
		TxID:     receipt.TxID.String(),
		Sequence: receipt.Sequence,
		Accounts: []models.AccountView{s.view(receipt.Modified[0])},
	}, nil
}

// Account returns one account with its record decoded.
func (s *LedgerService) Account(ctx context.Context, address solana.PublicKey) (*models.AccountView, error) {
	acc, err := s.exec.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	if acc.IsZero() {
		return nil, ErrNotFound
	}
	view := s.view(acc)
	return &view, nil
}

func (s *LedgerService) view(acc *runtime.Account) models.AccountView {
	v := models.AccountView{Address: acc.Key, Lamports: acc.Lamports, Owner: acc.Owner}
	if !acc.Owner.Equals(s.ProgramID()) {
		v.Data = acc.Data
		return v
	}
	kind, rec, err := scan.Decode(acc.Data)
	if err != nil {
		v.Data = acc.Data
		return v
	}
	v.Kind = kind.String()
	v.Record = rec
	return v
}

func (s *LedgerService) Chargers(ctx context.Context) ([]scan.ChargerEntry, error) {
	return s.scanner.Chargers(ctx)
}

func (s *LedgerService) OpenListings(ctx context.Context) ([]scan.ListingEntry, error) {
	return s.scanner.OpenListings(ctx)
}

func (s *LedgerService) SessionsForDriver(ctx context.Context, owner solana.PublicKey) ([]scan.SessionEntry, error) {
	return s.scanner.SessionsForDriver(ctx, owner)
}

// Leaderboard serves from the cache when it can. Cache failures fall back
// to a scan.
func (s *LedgerService) Leaderboard(ctx context.Context, limit int) ([]scan.LeaderboardEntry, error) {
	var gen uint64
	if s.cache != nil {
		gen = s.cacheGeneration()
		entries, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("leaderboard cache read failed", zap.Error(err))
		}
		if ok {
			return truncate(entries, limit), nil
		}
	}
	entries, err := s.scanner.Leaderboard(ctx, 0)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.fillCache(ctx, gen, entries)
	}
	return truncate(entries, limit), nil
}

func truncate(entries []scan.LeaderboardEntry, limit int) []scan.LeaderboardEntry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
