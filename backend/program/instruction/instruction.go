// Package instruction encodes and decodes the program's instruction payloads.
// Wire format: [discriminator u8][borsh payload].
package instruction

import (
	"fmt"

	"charge2earn/backend/program/codec"
	"charge2earn/backend/program/ledgererr"
)

// Discriminator selects the handler.
type Discriminator uint8

const (
	RegisterChargerIx Discriminator = iota
	StartSessionIx
	StopSessionIx
	CreateOrUpdateListingIx
	BuyFromListingIx
	CancelListingIx
)

func (d Discriminator) String() string {
	switch d {
	case RegisterChargerIx:
		return "register_charger"
	case StartSessionIx:
		return "start_session"
	case StopSessionIx:
		return "stop_session"
	case CreateOrUpdateListingIx:
		return "create_or_update_listing"
	case BuyFromListingIx:
		return "buy_from_listing"
	case CancelListingIx:
		return "cancel_listing"
	default:
		return fmt.Sprintf("instruction(%d)", uint8(d))
	}
}

// Payload is one decoded instruction.
type Payload interface {
	Discriminator() Discriminator
	writeTo(w *codec.Writer)
}

type RegisterCharger struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	City             string  `json:"city"`
	Address          string  `json:"address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	PowerKW          float32 `json:"power_kw"`
	RatePointsPerSec uint64  `json:"rate_points_per_sec"`
	PricePerSec      uint64  `json:"price_per_sec"`
}

func (RegisterCharger) Discriminator() Discriminator { return RegisterChargerIx }

func (p RegisterCharger) writeTo(w *codec.Writer) {
	w.String(p.Code).
		String(p.Name).
		String(p.City).
		String(p.Address).
		F64(p.Latitude).
		F64(p.Longitude).
		F32(p.PowerKW).
		U64(p.RatePointsPerSec).
		U64(p.PricePerSec)
}

type StartSession struct {
	StartTS int64 `json:"start_ts"`
}

func (StartSession) Discriminator() Discriminator { return StartSessionIx }

func (p StartSession) writeTo(w *codec.Writer) { w.I64(p.StartTS) }

type StopSession struct {
	EndTS int64 `json:"end_ts"`
}

func (StopSession) Discriminator() Discriminator { return StopSessionIx }

func (p StopSession) writeTo(w *codec.Writer) { w.I64(p.EndTS) }

type CreateOrUpdateListing struct {
	AmountPoints  uint64 `json:"amount_points"`
	PricePerPoint uint64 `json:"price_per_point"`
}

func (CreateOrUpdateListing) Discriminator() Discriminator { return CreateOrUpdateListingIx }

func (p CreateOrUpdateListing) writeTo(w *codec.Writer) {
	w.U64(p.AmountPoints).U64(p.PricePerPoint)
}

type BuyFromListing struct {
	BuyPoints uint64 `json:"buy_points"`
}

func (BuyFromListing) Discriminator() Discriminator { return BuyFromListingIx }

func (p BuyFromListing) writeTo(w *codec.Writer) { w.U64(p.BuyPoints) }

type CancelListing struct{}

func (CancelListing) Discriminator() Discriminator { return CancelListingIx }

func (CancelListing) writeTo(*codec.Writer) {}

// Encode returns the wire bytes of p.
func Encode(p Payload) ([]byte, error) {
	w := codec.NewWriter().U8(uint8(p.Discriminator()))
	p.writeTo(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("instruction: encode %s: %w", p.Discriminator(), err)
	}
	return data, nil
}

// Decode parses wire bytes. Unknown discriminators, short payloads and
// trailing bytes all fail with ErrInvalidInstructionData.
func Decode(data []byte) (Payload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty instruction", ledgererr.ErrInvalidInstructionData)
	}
	r := codec.NewReader(data[1:], ledgererr.ErrInvalidInstructionData)
	var p Payload
	switch d := Discriminator(data[0]); d {
	case RegisterChargerIx:
		p = RegisterCharger{
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
	case StartSessionIx:
		p = StartSession{StartTS: r.I64("start_ts")}
	case StopSessionIx:
		p = StopSession{EndTS: r.I64("end_ts")}
	case CreateOrUpdateListingIx:
		p = CreateOrUpdateListing{
			AmountPoints:  r.U64("amount_points"),
			PricePerPoint: r.U64("price_per_point"),
		}
	case BuyFromListingIx:
		p = BuyFromListing{BuyPoints: r.U64("buy_points")}
	case CancelListingIx:
		p = CancelListing{}
	default:
		return nil, fmt.Errorf("%w: unknown discriminator %d", ledgererr.ErrInvalidInstructionData, uint8(d))
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return p, nil
}
