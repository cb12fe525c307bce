package state

import (
	"github.com/gagliardetto/solana-go"
)

// Charger is a registered charging point. Metadata and rates are fixed for
// the lifetime of the record.
type Charger struct {
	Initialized      bool             `json:"initialized"`
	Authority        solana.PublicKey `json:"authority"`
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	City             string           `json:"city"`
	Address          string           `json:"address"`
	Latitude         float64          `json:"latitude"`
	Longitude        float64          `json:"longitude"`
	PowerKW          float32          `json:"power_kw"`
	RatePointsPerSec uint64           `json:"rate_points_per_sec"`
	PricePerSec      uint64           `json:"price_per_sec"`
}

// Size is the encoded length of c.
func (c *Charger) Size() int {
	return headerSize + 32 +
		4 + len(c.Code) + 4 + len(c.Name) + 4 + len(c.City) + 4 + len(c.Address) +
		8 + 8 + 4 + 8 + 8
}

func (c *Charger) Encode() ([]byte, error) {
	return header(KindCharger, c.Initialized).
		Pubkey(c.Authority).
		String(c.Code).
		String(c.Name).
		String(c.City).
		String(c.Address).
		F64(c.Latitude).
		F64(c.Longitude).
		F32(c.PowerKW).
		U64(c.RatePointsPerSec).
		U64(c.PricePerSec).
		Bytes()
}

func DecodeCharger(data []byte) (*Charger, error) {
	r, initialized, err := openRecord(data, KindCharger)
	if err != nil {
		return nil, err
	}
	c := &Charger{
		Initialized:      initialized,
		Authority:        r.Pubkey("authority"),
		Code:             r.String("code"),
		Name:             r.String("name"),
		City:             r.String("city"),
		Address:          r.String("address"),
		Latitude:         r.F64("latitude"),
		Longitude:        r.F64("longitude"),
		PowerKW:          r.F32("power_kw"),
		RatePointsPerSec: r.U64("rate_points_per_sec"),
		PricePerSec:      r.U64("price_per_sec"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Driver accrues earned points. One per owner.
type Driver struct {
	Initialized bool             `json:"initialized"`
	Owner       solana.PublicKey `json:"owner"`
	AmpBalance  uint64           `json:"amp_balance"`
}

func (d *Driver) Encode() ([]byte, error) {
	return header(KindDriver, d.Initialized).Pubkey(d.Owner).U64(d.AmpBalance).Bytes()
}

func DecodeDriver(data []byte) (*Driver, error) {
	r, initialized, err := openRecord(data, KindDriver)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		Initialized: initialized,
		Owner:       r.Pubkey("owner"),
		AmpBalance:  r.U64("amp_balance"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Session is one charging session. Driver and Charger hold record addresses.
type Session struct {
	Initialized   bool             `json:"initialized"`
	Driver        solana.PublicKey `json:"driver"`
	Charger       solana.PublicKey `json:"charger"`
	StartTS       int64            `json:"start_ts"`
	EndTS         int64            `json:"end_ts"`
	PointsAwarded uint64           `json:"points_awarded"`
	Settled       bool             `json:"settled"`
}

// Open reports whether the session can still be settled.
func (s *Session) Open() bool {
	return s.Initialized && !s.Settled
}

func (s *Session) Encode() ([]byte, error) {
	return header(KindSession, s.Initialized).
		Pubkey(s.Driver).
		Pubkey(s.Charger).
		I64(s.StartTS).
		I64(s.EndTS).
		U64(s.PointsAwarded).
		Bool(s.Settled).
		Bytes()
}

func DecodeSession(data []byte) (*Session, error) {
	r, initialized, err := openRecord(data, KindSession)
	if err != nil {
		return nil, err
	}
	s := &Session{
		Initialized:   initialized,
		Driver:        r.Pubkey("driver"),
		Charger:       r.Pubkey("charger"),
		StartTS:       r.I64("start_ts"),
		EndTS:         r.I64("end_ts"),
		PointsAwarded: r.U64("points_awarded"),
		Settled:       r.Bool("settled"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Listing escrows a seller's points. AmountTotal is what is still for sale.
type Listing struct {
	Initialized   bool             `json:"initialized"`
	Seller        solana.PublicKey `json:"seller"`
	AmountTotal   uint64           `json:"amount_total"`
	PricePerPoint uint64           `json:"price_per_point"`
}

// Open reports whether anything can be bought.
func (l *Listing) Open() bool {
	return l.Initialized && l.AmountTotal > 0
}

func (l *Listing) Encode() ([]byte, error) {
	return header(KindListing, l.Initialized).
		Pubkey(l.Seller).
		U64(l.AmountTotal).
		U64(l.PricePerPoint).
		Bytes()
}

func DecodeListing(data []byte) (*Listing, error) {
	r, initialized, err := openRecord(data, KindListing)
	if err != nil {
		return nil, err
	}
	l := &Listing{
		Initialized:   initialized,
		Seller:        r.Pubkey("seller"),
		AmountTotal:   r.U64("amount_total"),
		PricePerPoint: r.U64("price_per_point"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// User holds purchased points, kept apart from earned driver points.
type User struct {
	Initialized bool             `json:"initialized"`
	Owner       solana.PublicKey `json:"owner"`
	AmpBalance  uint64           `json:"amp_balance"`
}

func (u *User) Encode() ([]byte, error) {
	return header(KindUser, u.Initialized).Pubkey(u.Owner).U64(u.AmpBalance).Bytes()
}

func DecodeUser(data []byte) (*User, error) {
	r, initialized, err := openRecord(data, KindUser)
	if err != nil {
		return nil, err
	}
	u := &User{
		Initialized: initialized,
		Owner:       r.Pubkey("owner"),
		AmpBalance:  r.U64("amp_balance"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return u, nil
}
