package processor

import (
	"errors"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charge2earn/backend/program/ledgererr"
)

func TestElapsedSeconds(t *testing.T) {
	assert.Equal(t, uint64(90), elapsedSeconds(1000, 1090))
	assert.Equal(t, uint64(0), elapsedSeconds(1090, 1000))
	assert.Equal(t, uint64(0), elapsedSeconds(5, 5))
	assert.Equal(t, uint64(math.MaxUint64), elapsedSeconds(math.MinInt64, math.MaxInt64))
	assert.Equal(t, uint64(20), elapsedSeconds(-10, 10))
}

func TestCheckedArithmetic(t *testing.T) {
	v, err := mulU64(90, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(90000), v)

	_, err = mulU64(math.MaxUint64, 2)
	assert.True(t, errors.Is(err, ledgererr.ErrArithmeticOverflow))

	_, err = addU64(math.MaxUint64, 1)
	assert.True(t, errors.Is(err, ledgererr.ErrArithmeticOverflow))
}

func TestRentMinimumBalance(t *testing.T) {
	free, err := Rent{}.MinimumBalance(91)
	require.NoError(t, err)
	assert.Zero(t, free)

	v, err := Rent{LamportsPerByte: 10}.MinimumBalance(42)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700), v)
}

func TestTransfer(t *testing.T) {
	from := &AccountInfo{Key: solana.NewWallet().PublicKey(), IsSigner: true, IsWritable: true, Lamports: 100}
	to := &AccountInfo{Key: solana.NewWallet().PublicKey(), IsWritable: true, Lamports: math.MaxUint64 - 10}

	err := transfer(from, to, 101)
	assert.True(t, errors.Is(err, ledgererr.ErrInsufficientFunds))

	err = transfer(from, to, 11)
	assert.True(t, errors.Is(err, ledgererr.ErrArithmeticOverflow))
	assert.Equal(t, uint64(100), from.Lamports)

	to.Lamports = 0
	require.NoError(t, transfer(from, to, 40))
	assert.Equal(t, uint64(60), from.Lamports)
	assert.Equal(t, uint64(40), to.Lamports)

	from.IsSigner = false
	err = transfer(from, to, 1)
	assert.True(t, errors.Is(err, ledgererr.ErrMissingSignature))
}

func TestAccountEmpty(t *testing.T) {
	assert.True(t, (&AccountInfo{}).Empty())
	assert.True(t, (&AccountInfo{Owner: solana.SystemProgramID, Data: make([]byte, 8)}).Empty())
	assert.False(t, (&AccountInfo{Owner: solana.NewWallet().PublicKey(), Data: make([]byte, 8)}).Empty())
	assert.False(t, (&AccountInfo{Owner: solana.SystemProgramID, Data: []byte{2, 1}}).Empty())
}
