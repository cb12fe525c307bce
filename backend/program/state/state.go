// Package state defines the five account records owned by the program and
// their byte layouts. Every record starts with [kind u8][initialized bool] so
// a scanner can classify raw accounts without auxiliary indices.
package state

import (
	"fmt"

	"charge2earn/backend/program/codec"
	"charge2earn/backend/program/ledgererr"
)

// Kind discriminates record types.
type Kind uint8

const (
	KindUnknown Kind = 0
	KindCharger Kind = 1
	KindDriver  Kind = 2
	KindSession Kind = 3
	KindListing Kind = 4
	KindUser    Kind = 5
)

func (k Kind) String() string {
	switch k {
	case KindCharger:
		return "charger"
	case KindDriver:
		return "driver"
	case KindSession:
		return "session"
	case KindListing:
		return "listing"
	case KindUser:
		return "user"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText renders the kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

const headerSize = 2

// Fixed record sizes. Charger is variable because of its strings.
const (
	DriverSize  = headerSize + 32 + 8
	SessionSize = headerSize + 32 + 32 + 8 + 8 + 8 + 1
	ListingSize = headerSize + 32 + 8 + 8
	UserSize    = headerSize + 32 + 8
)

// PeekKind reads the discriminator without decoding the rest.
func PeekKind(data []byte) (Kind, error) {
	if len(data) < headerSize {
		return KindUnknown, fmt.Errorf("%w: %d bytes, header needs %d", ledgererr.ErrMalformedAccount, len(data), headerSize)
	}
	return Kind(data[0]), nil
}

// IsEmpty reports whether an account carries no record at all.
func IsEmpty(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// openRecord checks the kind byte before any field is decoded, so a foreign
// record is reported as the wrong kind rather than as malformed.
func openRecord(data []byte, want Kind) (*codec.Reader, bool, error) {
	kind, err := PeekKind(data)
	if err != nil {
		return nil, false, err
	}
	if kind != want {
		return nil, false, fmt.Errorf("%w: want %s, got %s", ledgererr.ErrWrongAccountKind, want, kind)
	}
	r := codec.NewReader(data, ledgererr.ErrMalformedAccount)
	_ = r.U8("kind")
	initialized := r.Bool("initialized")
	return r, initialized, r.Err()
}

func header(kind Kind, initialized bool) *codec.Writer {
	return codec.NewWriter().U8(uint8(kind)).Bool(initialized)
}
