package codec

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charge2earn/backend/program/ledgererr"
)

func TestWriterLittleEndianLayout(t *testing.T) {
	data, err := NewWriter().U8(2).Bool(true).I64(1000).String("ab").Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		2, 1,
		0xe8, 0x03, 0, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 'a', 'b',
	}, data)
}

func TestReaderRejectsTruncation(t *testing.T) {
	r := NewReader([]byte{1, 2, 3}, ledgererr.ErrMalformedAccount)
	_ = r.U64("amount")
	require.Error(t, r.Err())
	assert.True(t, errors.Is(r.Err(), ledgererr.ErrMalformedAccount))

	// sticky: later reads do not panic or overwrite the first failure
	_ = r.Pubkey("owner")
	_ = r.String("name")
	assert.Contains(t, r.Err().Error(), "amount")
}

func TestReaderStringLengthBeyondBuffer(t *testing.T) {
	r := NewReader([]byte{0xff, 0xff, 0, 0, 'x'}, ledgererr.ErrInvalidInstructionData)
	_ = r.String("code")
	assert.True(t, errors.Is(r.Err(), ledgererr.ErrInvalidInstructionData))
}

func TestReaderInvalidBool(t *testing.T) {
	r := NewReader([]byte{7}, ledgererr.ErrMalformedAccount)
	_ = r.Bool("settled")
	assert.True(t, errors.Is(r.Err(), ledgererr.ErrMalformedAccount))
}

func TestFinishRejectsTrailingBytes(t *testing.T) {
	r := NewReader([]byte{5, 0, 0, 0, 0, 0, 0, 0, 9}, ledgererr.ErrInvalidInstructionData)
	assert.Equal(t, uint64(5), r.U64("amount"))
	assert.True(t, errors.Is(r.Finish(), ledgererr.ErrInvalidInstructionData))
}

func TestPubkeyRoundTrip(t *testing.T) {
	pk := solana.NewWallet().PublicKey()
	data, err := NewWriter().Pubkey(pk).Bytes()
	require.NoError(t, err)
	require.Len(t, data, 32)

	r := NewReader(data, ledgererr.ErrMalformedAccount)
	assert.Equal(t, pk, r.Pubkey("key"))
	assert.NoError(t, r.Finish())
}

func TestBlobRoundTrip(t *testing.T) {
	data, err := NewWriter().Blob([]byte{7, 8, 9}).U8(1).Bytes()
	require.NoError(t, err)

	r := NewReader(data, ledgererr.ErrMalformedAccount)
	assert.Equal(t, []byte{7, 8, 9}, r.Blob("data"))
	assert.Equal(t, uint8(1), r.U8("tail"))
	require.NoError(t, r.Finish())
}
