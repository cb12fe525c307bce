package instruction

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charge2earn/backend/program/address"
	"charge2earn/backend/program/ledgererr"
)

var programID = solana.MustPublicKeyFromBase58("9kH9wQbeFXKr1FQ9jcQv51F5wn2XP9D2MVx7CFa72mfr")

func TestEncodeStartSessionBytes(t *testing.T) {
	data, err := Encode(StartSession{StartTS: 123})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 123, 0, 0, 0, 0, 0, 0, 0}, data)
}

func TestCancelListingHasNoPayload(t *testing.T) {
	data, err := Encode(CancelListing{})
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, data)

	p, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CancelListingIx, p.Discriminator())
}

func TestDecodeRegisterCharger(t *testing.T) {
	in := RegisterCharger{
		Code: "xyz40", Name: "charger3", City: "jaipur1", Address: "jaipur, Rajasthan",
		Latitude: 34.5, Longitude: 67.8, PowerKW: 3.4, RatePointsPerSec: 45, PricePerSec: 78,
	}
	data, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[0])

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":         nil,
		"unknown":       {9},
		"short payload": {2, 1, 2, 3},
		"trailing":      {4, 1, 0, 0, 0, 0, 0, 0, 0, 0xff},
		"cancel extra":  {5, 0},
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ledgererr.ErrInvalidInstructionData))
		})
	}
}

func TestStopSessionAccountOrder(t *testing.T) {
	user := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	charger, err := address.Charger(programID, "c1", owner)
	require.NoError(t, err)

	ix, err := NewStopSession(programID, user, charger.Address, owner, 1000, 1090)
	require.NoError(t, err)

	driver, err := address.Driver(programID, user)
	require.NoError(t, err)
	session, err := address.Session(programID, charger.Address, driver.Address, 1000)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, user, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.Equal(t, session.Address, accounts[1].PublicKey)
	assert.Equal(t, driver.Address, accounts[2].PublicKey)
	assert.Equal(t, charger.Address, accounts[3].PublicKey)
	assert.False(t, accounts[3].IsWritable)
	assert.Equal(t, owner, accounts[4].PublicKey)
	assert.Equal(t, solana.SystemProgramID, accounts[5].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	p, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, StopSession{EndTS: 1090}, p)
}

func TestCancelListingAccounts(t *testing.T) {
	seller := solana.NewWallet().PublicKey()
	ix, err := NewCancelListing(programID, seller)
	require.NoError(t, err)
	require.Len(t, ix.Accounts(), 3)
	assert.True(t, ix.Accounts()[0].IsSigner)
	assert.Equal(t, programID, ix.ProgramID())
}
