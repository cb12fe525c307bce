package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/services/ledger-service/internal/http/middleware"
	"charge2earn/backend/services/ledger-service/internal/models"
	"charge2earn/backend/services/ledger-service/internal/service"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

// writeLedgerError maps a classified ledger failure onto an HTTP status.
func writeLedgerError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	class := ledgererr.ClassOf(err)
	status := http.StatusInternalServerError
	switch class {
	case ledgererr.ClassIdentity:
		status = http.StatusNotFound
		if errors.Is(err, ledgererr.ErrAccountAlreadyInitialized) {
			status = http.StatusConflict
		}
	case ledgererr.ClassAuthorization:
		status = http.StatusForbidden
	case ledgererr.ClassState:
		status = http.StatusConflict
	case ledgererr.ClassArithmetic:
		status = http.StatusUnprocessableEntity
	case ledgererr.ClassEncoding:
		status = http.StatusBadRequest
	}
	resp := models.ErrorResponse{Error: err.Error(), Code: ledgererr.CodeOf(err), Class: class.String()}
	if status == http.StatusInternalServerError {
		resp = models.ErrorResponse{Error: "internal error", Code: "internal"}
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseKey(w http.ResponseWriter, field, raw string) (solana.PublicKey, bool) {
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, field+" is not a valid public key")
		return solana.PublicKey{}, false
	}
	return pk, true
}

func wallet(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	pk, ok := middleware.WalletFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing wallet")
	}
	return pk, ok
}

// NewHealthHandler returns GET /health handler.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
