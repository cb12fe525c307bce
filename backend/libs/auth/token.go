// Package auth issues and validates the bearer tokens that bind an HTTP
// caller to a wallet public key.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// LoginPrefix starts every message a wallet signs to obtain a token.
const LoginPrefix = "charge2earn login:"

// Claims carries the wallet as the JWT subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Wallet returns the subject as a public key.
func (c *Claims) Wallet() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.Subject)
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

// NewTokenService returns configured token service.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return &TokenService{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
}

// GenerateToken issues JWT for given wallet.
func (t *TokenService) GenerateToken(wallet solana.PublicKey, role string) (string, error) {
	if wallet.IsZero() {
		return "", errors.New("token: wallet is required")
	}
	if role == "" {
		role = RoleDriver
	}

	now := t.now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken verifies and decodes JWT.
func (t *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("token: unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("token: invalid claims")
	}
	if _, err := claims.Wallet(); err != nil {
		return nil, fmt.Errorf("token: subject is not a wallet: %w", err)
	}
	return claims, nil
}

// LoginMessage is what a wallet signs at ts to prove key ownership.
func LoginMessage(ts time.Time) string {
	return LoginPrefix + strconv.FormatInt(ts.Unix(), 10)
}

// VerifyLogin checks an ed25519 signature over a login message and that the
// message is no older than maxAge.
func (t *TokenService) VerifyLogin(wallet solana.PublicKey, message string, sig solana.Signature, maxAge time.Duration) error {
	if !strings.HasPrefix(message, LoginPrefix) {
		return errors.New("login: unexpected message")
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(message, LoginPrefix), 10, 64)
	if err != nil {
		return fmt.Errorf("login: bad timestamp: %w", err)
	}
	age := t.now().Sub(time.Unix(ts, 0))
	if age < -maxAge || age > maxAge {
		return errors.New("login: message expired")
	}
	if !sig.Verify(wallet, []byte(message)) {
		return errors.New("login: signature mismatch")
	}
	return nil
}
