// Package scan enumerates program-owned accounts and decodes them into
// typed records for read-side queries.
package scan

import (
	"context"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/runtime"
	"charge2earn/backend/program/state"
)

// Source lists accounts by owner. runtime.AccountStore satisfies it.
type Source interface {
	AccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*runtime.Account, error)
}

// Record is one decoded program account.
type Record struct {
	Address  solana.PublicKey `json:"address"`
	Kind     state.Kind       `json:"kind"`
	Lamports uint64           `json:"lamports"`
	Value    any              `json:"value"`
}

type ChargerEntry struct {
	Account solana.PublicKey `json:"account"`
	*state.Charger
}

type ListingEntry struct {
	Account solana.PublicKey `json:"account"`
	*state.Listing
}

type SessionEntry struct {
	Account solana.PublicKey `json:"account"`
	*state.Session
}

type LeaderboardEntry struct {
	Rank   int              `json:"rank"`
	Owner  solana.PublicKey `json:"owner"`
	Driver solana.PublicKey `json:"driver"`
	Points uint64           `json:"points"`
}

// Scanner reads every record the program owns. Scans are best effort:
// accounts that fail to decode are logged and skipped.
type Scanner struct {
	src       Source
	programID solana.PublicKey
	logger    *zap.Logger
}

func New(src Source, programID solana.PublicKey, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{src: src, programID: programID, logger: logger.Named("scan")}
}

// Decode dispatches on the kind byte and returns the typed record.
func Decode(data []byte) (state.Kind, any, error) {
	kind, err := state.PeekKind(data)
	if err != nil {
		return 0, nil, err
	}
	var v any
	switch kind {
	case state.KindCharger:
		v, err = state.DecodeCharger(data)
	case state.KindDriver:
		v, err = state.DecodeDriver(data)
	case state.KindSession:
		v, err = state.DecodeSession(data)
	case state.KindListing:
		v, err = state.DecodeListing(data)
	case state.KindUser:
		v, err = state.DecodeUser(data)
	default:
		return kind, nil, fmt.Errorf("unknown record kind %d", kind)
	}
	if err != nil {
		return kind, nil, err
	}
	return kind, v, nil
}

// All returns every decodable program record ordered by address.
func (s *Scanner) All(ctx context.Context) ([]Record, error) {
	accounts, err := s.src.AccountsByOwner(ctx, s.programID)
	if err != nil {
		return nil, fmt.Errorf("scan program accounts: %w", err)
	}
	records := make([]Record, 0, len(accounts))
	for _, acc := range accounts {
		kind, v, err := Decode(acc.Data)
		if err != nil {
			s.logger.Debug("skip undecodable account", zap.Stringer("address", acc.Key), zap.Error(err))
			continue
		}
		records = append(records, Record{Address: acc.Key, Kind: kind, Lamports: acc.Lamports, Value: v})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Address.String() < records[j].Address.String()
	})
	return records, nil
}

func (s *Scanner) Chargers(ctx context.Context) ([]ChargerEntry, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []ChargerEntry
	for _, r := range records {
		if c, ok := r.Value.(*state.Charger); ok && c.Initialized {
			out = append(out, ChargerEntry{Account: r.Address, Charger: c})
		}
	}
	return out, nil
}

// OpenListings returns listings with something left to buy, cheapest first.
func (s *Scanner) OpenListings(ctx context.Context) ([]ListingEntry, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []ListingEntry
	for _, r := range records {
		if l, ok := r.Value.(*state.Listing); ok && l.Open() {
			out = append(out, ListingEntry{Account: r.Address, Listing: l})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PricePerPoint < out[j].PricePerPoint
	})
	return out, nil
}

// Leaderboard ranks drivers by earned points. limit <= 0 returns everyone.
func (s *Scanner) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []LeaderboardEntry
	for _, r := range records {
		if d, ok := r.Value.(*state.Driver); ok && d.Initialized {
			out = append(out, LeaderboardEntry{Owner: d.Owner, Driver: r.Address, Points: d.AmpBalance})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Owner.String() < out[j].Owner.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// SessionsForDriver returns owner's sessions, newest first.
func (s *Scanner) SessionsForDriver(ctx context.Context, owner solana.PublicKey) ([]SessionEntry, error) {
	driver, err := address.Driver(s.programID, owner)
	if err != nil {
		return nil, err
	}
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []SessionEntry
	for _, r := range records {
		if sess, ok := r.Value.(*state.Session); ok && sess.Initialized && sess.Driver.Equals(driver.Address) {
			out = append(out, SessionEntry{Account: r.Address, Session: sess})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTS > out[j].StartTS
	})
	return out, nil
}
