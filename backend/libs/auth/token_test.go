package auth

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Minute)
	wallet := solana.NewWallet().PublicKey()

	token, err := svc.GenerateToken(wallet, RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	got, err := claims.Wallet()
	require.NoError(t, err)
	assert.Equal(t, wallet, got)
}

func TestValidateRejectsForeignSecretAndExpiry(t *testing.T) {
	wallet := solana.NewWallet().PublicKey()
	token, err := NewTokenService("a", time.Minute).GenerateToken(wallet, "")
	require.NoError(t, err)

	_, err = NewTokenService("b", time.Minute).ValidateToken(token)
	require.Error(t, err)

	late := NewTokenService("a", time.Minute)
	late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = late.ValidateToken(token)
	require.Error(t, err)
}

func TestGenerateRequiresWallet(t *testing.T) {
	_, err := NewTokenService("s", 0).GenerateToken(solana.PublicKey{}, RoleDriver)
	require.Error(t, err)
}

func TestVerifyLogin(t *testing.T) {
	svc := NewTokenService("s", time.Minute)
	key := solana.NewWallet().PrivateKey
	msg := LoginMessage(time.Now())
	sig, err := key.Sign([]byte(msg))
	require.NoError(t, err)

	require.NoError(t, svc.VerifyLogin(key.PublicKey(), msg, sig, time.Minute))
	require.Error(t, svc.VerifyLogin(solana.NewWallet().PublicKey(), msg, sig, time.Minute))
	require.Error(t, svc.VerifyLogin(key.PublicKey(), "hello", sig, time.Minute))

	old := LoginMessage(time.Now().Add(-time.Hour))
	oldSig, err := key.Sign([]byte(old))
	require.NoError(t, err)
	require.Error(t, svc.VerifyLogin(key.PublicKey(), old, oldSig, time.Minute))
}
