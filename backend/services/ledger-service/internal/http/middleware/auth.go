package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/libs/auth"
)

type contextKey string

const (
	walletKey contextKey = "wallet"
	roleKey   contextKey = "role"
)

// TokenValidator is satisfied by auth.TokenService.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// AuthMiddleware validates bearer tokens and stores the wallet in the context.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			wallet, err := claims.Wallet()
			if err != nil {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), walletKey, wallet)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose token lacks role. It must run after AuthMiddleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got, _ := r.Context().Value(roleKey).(string); got != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed runs first.
func Chain(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// WalletFromContext retrieves the authenticated wallet.
func WalletFromContext(ctx context.Context) (solana.PublicKey, bool) {
	wallet, ok := ctx.Value(walletKey).(solana.PublicKey)
	return wallet, ok
}

// WithWallet returns ctx carrying wallet and role, for tests and internal callers.
func WithWallet(ctx context.Context, wallet solana.PublicKey, role string) context.Context {
	ctx = context.WithValue(ctx, walletKey, wallet)
	return context.WithValue(ctx, roleKey, role)
}
