package handlers

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"charge2earn/backend/libs/auth"
	"charge2earn/backend/services/ledger-service/internal/models"
)

// AuthHandlers exchanges a signed login message for a bearer token.
type AuthHandlers struct {
	tokens   *auth.TokenService
	adminKey solana.PublicKey
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewAuthHandlers builds handlers. The wallet equal to adminKey logs in as admin.
func NewAuthHandlers(tokens *auth.TokenService, adminKey solana.PublicKey, maxAge time.Duration, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{tokens: tokens, adminKey: adminKey, maxAge: maxAge, logger: logger}
}

// Login handles POST /v1/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	pk, ok := parseKey(w, "wallet", req.Wallet)
	if !ok {
		return
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature is not valid base58")
		return
	}
	if err := h.tokens.VerifyLogin(pk, req.Message, sig, h.maxAge); err != nil {
		h.logger.Info("login rejected", zap.Stringer("wallet", pk), zap.Error(err))
		writeError(w, http.StatusUnauthorized, "invalid login")
		return
	}

	role := auth.RoleDriver
	if !h.adminKey.IsZero() && pk.Equals(h.adminKey) {
		role = auth.RoleAdmin
	}
	token, err := h.tokens.GenerateToken(pk, role)
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, Role: role})
}
