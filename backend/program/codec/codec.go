// Package codec wraps the borsh encoder/decoder with the fixed-width,
// little-endian field conventions shared by every record and instruction
// payload of the program.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/program/ledgererr"
)

var le = binary.LittleEndian

// Writer appends borsh fields to an in-memory buffer. The first failure sticks;
// subsequent writes are no-ops and Bytes reports it.
type Writer struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

// NewWriter returns an empty writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.enc = bin.NewBorshEncoder(&w.buf)
	return w
}

// do runs one encoder write. Encoder failures are caller input the schema
// cannot carry, so they surface as ErrInvalidArgument.
func (w *Writer) do(fn func() error) *Writer {
	if w.err != nil {
		return w
	}
	if err := fn(); err != nil {
		w.err = fmt.Errorf("%w: %v", ledgererr.ErrInvalidArgument, err)
	}
	return w
}

func (w *Writer) U8(v uint8) *Writer {
	return w.do(func() error { return w.enc.WriteUint8(v) })
}

func (w *Writer) Bool(v bool) *Writer {
	var b uint8
	if v {
		b = 1
	}
	return w.U8(b)
}

func (w *Writer) U32(v uint32) *Writer {
	return w.do(func() error { return w.enc.WriteUint32(v, le) })
}

func (w *Writer) U64(v uint64) *Writer {
	return w.do(func() error { return w.enc.WriteUint64(v, le) })
}

func (w *Writer) I64(v int64) *Writer {
	return w.do(func() error { return w.enc.WriteInt64(v, le) })
}

func (w *Writer) F32(v float32) *Writer {
	return w.do(func() error { return w.enc.WriteFloat32(v, le) })
}

func (w *Writer) F64(v float64) *Writer {
	return w.do(func() error { return w.enc.WriteFloat64(v, le) })
}

// String writes a u32 length prefix followed by the UTF-8 bytes.
func (w *Writer) String(s string) *Writer {
	if w.err == nil && !utf8.ValidString(s) {
		w.err = ledgererr.Wrap(ledgererr.ErrInvalidArgument, "string is not valid utf-8")
		return w
	}
	return w.U32(uint32(len(s))).do(func() error { return w.enc.WriteBytes([]byte(s), false) })
}

func (w *Writer) Pubkey(pk solana.PublicKey) *Writer {
	return w.do(func() error { return w.enc.WriteBytes(pk[:], false) })
}

// Blob writes a u32 length prefix followed by b.
func (w *Writer) Blob(b []byte) *Writer {
	return w.U32(uint32(len(b))).Raw(b)
}

func (w *Writer) Raw(b []byte) *Writer {
	return w.do(func() error { return w.enc.WriteBytes(b, false) })
}

// Bytes returns the encoded buffer or the first write error.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// Reader consumes borsh fields. Every failure is reported as the sentinel the
// reader was built with, so account decoding and instruction decoding surface
// distinct errors for the same truncation.
type Reader struct {
	dec      *bin.Decoder
	sentinel *ledgererr.Error
	err      error
}

// NewReader decodes data, mapping failures to sentinel.
func NewReader(data []byte, sentinel *ledgererr.Error) *Reader {
	return &Reader{dec: bin.NewBorshDecoder(data), sentinel: sentinel}
}

func (r *Reader) fail(field string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %v", r.sentinel, field, err)
	}
}

func (r *Reader) U8(field string) uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *Reader) Bool(field string) bool {
	v := r.U8(field)
	if r.err == nil && v > 1 {
		r.fail(field, fmt.Errorf("invalid bool byte %d", v))
	}
	return v == 1
}

func (r *Reader) U32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(le)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *Reader) U64(field string) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(le)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *Reader) I64(field string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(le)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *Reader) F32(field string) float32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadFloat32(le)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *Reader) F64(field string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadFloat64(le)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *Reader) String(field string) string {
	n := r.U32(field)
	if r.err != nil {
		return ""
	}
	if int(n) > r.dec.Remaining() {
		r.fail(field, fmt.Errorf("string length %d exceeds remaining %d", n, r.dec.Remaining()))
		return ""
	}
	raw, err := r.dec.ReadNBytes(int(n))
	if err != nil {
		r.fail(field, err)
		return ""
	}
	if !utf8.Valid(raw) {
		r.fail(field, fmt.Errorf("invalid utf-8"))
		return ""
	}
	return string(raw)
}

func (r *Reader) Pubkey(field string) solana.PublicKey {
	var pk solana.PublicKey
	if r.err != nil {
		return pk
	}
	raw, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.fail(field, err)
		return pk
	}
	copy(pk[:], raw)
	return pk
}

// Blob reads a u32 length prefix and that many bytes. The result is a copy.
func (r *Reader) Blob(field string) []byte {
	n := r.U32(field)
	if r.err != nil {
		return nil
	}
	if int(n) > r.dec.Remaining() {
		r.fail(field, fmt.Errorf("blob length %d exceeds remaining %d", n, r.dec.Remaining()))
		return nil
	}
	raw, err := r.dec.ReadNBytes(int(n))
	if err != nil {
		r.fail(field, err)
		return nil
	}
	return append([]byte(nil), raw...)
}

// Remaining reports unread bytes.
func (r *Reader) Remaining() int {
	return r.dec.Remaining()
}

// Err returns the first decode failure.
func (r *Reader) Err() error {
	return r.err
}

// Finish returns the first failure, or a failure if unread bytes remain.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if n := r.dec.Remaining(); n > 0 {
		return fmt.Errorf("%w: %d trailing bytes", r.sentinel, n)
	}
	return nil
}
