package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"charge2earn/backend/services/ledger-service/internal/service"
)

const defaultLeaderboardLimit = 50

// QueryHandlers serve read-only views of ledger state.
type QueryHandlers struct {
	svc    *service.LedgerService
	logger *zap.Logger
}

func NewQueryHandlers(svc *service.LedgerService, logger *zap.Logger) *QueryHandlers {
	return &QueryHandlers{svc: svc, logger: logger}
}

// Account handles GET /v1/accounts/{address}.
func (h *QueryHandlers) Account(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseKey(w, "address", r.PathValue("address"))
	if !ok {
		return
	}
	view, err := h.svc.Account(r.Context(), addr)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Chargers handles GET /v1/chargers.
func (h *QueryHandlers) Chargers(w http.ResponseWriter, r *http.Request) {
	chargers, err := h.svc.Chargers(r.Context())
	if err != nil {
		h.logger.Error("list chargers failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list chargers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chargers": chargers})
}

// Listings handles GET /v1/listings.
func (h *QueryHandlers) Listings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.svc.OpenListings(r.Context())
	if err != nil {
		h.logger.Error("list listings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"listings": listings})
}

// Leaderboard handles GET /v1/leaderboard?limit=N.
func (h *QueryHandlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// DriverSessions handles GET /v1/drivers/{owner}/sessions.
func (h *QueryHandlers) DriverSessions(w http.ResponseWriter, r *http.Request) {
	owner, ok := parseKey(w, "owner", r.PathValue("owner"))
	if !ok {
		return
	}
	sessions, err := h.svc.SessionsForDriver(r.Context(), owner)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}
