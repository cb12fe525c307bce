package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"charge2earn/backend/program/ledgererr"
	"charge2earn/backend/services/ledger-service/internal/models"
	"charge2earn/backend/services/ledger-service/internal/service"
)

// LedgerHandlers submit instructions signed by the authenticated wallet.
type LedgerHandlers struct {
	svc    *service.LedgerService
	logger *zap.Logger
}

func NewLedgerHandlers(svc *service.LedgerService, logger *zap.Logger) *LedgerHandlers {
	return &LedgerHandlers{svc: svc, logger: logger}
}

func (h *LedgerHandlers) reply(w http.ResponseWriter, res *models.TxResult, err error) {
	if err != nil {
		if ledgererr.ClassOf(err) == ledgererr.ClassUnknown && !errors.Is(err, service.ErrNotFound) {
			h.logger.Error("submission failed", zap.Error(err))
		}
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RegisterCharger handles POST /v1/chargers.
func (h *LedgerHandlers) RegisterCharger(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	var req models.RegisterChargerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.RegisterCharger(r.Context(), signer, req)
	h.reply(w, res, err)
}

// StartSession handles POST /v1/sessions/start. The response carries the
// start timestamp needed to stop the session later.
func (h *LedgerHandlers) StartSession(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	var req models.StartSessionRequest
	if !decode(w, r, &req) {
		return
	}
	charger, ok := parseKey(w, "charger", req.Charger)
	if !ok {
		return
	}
	res, startTS, err := h.svc.StartSession(r.Context(), signer, charger, req.StartTS)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"start_ts":    startTS,
		"transaction": res,
	})
}

// StopSession handles POST /v1/sessions/stop.
func (h *LedgerHandlers) StopSession(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	var req models.StopSessionRequest
	if !decode(w, r, &req) {
		return
	}
	charger, ok := parseKey(w, "charger", req.Charger)
	if !ok {
		return
	}
	res, err := h.svc.StopSession(r.Context(), signer, charger, req.StartTS, req.EndTS)
	h.reply(w, res, err)
}

// CreateOrUpdateListing handles POST /v1/listings.
func (h *LedgerHandlers) CreateOrUpdateListing(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	var req models.ListingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.CreateOrUpdateListing(r.Context(), signer, req.AmountPoints, req.PricePerPoint)
	h.reply(w, res, err)
}

// BuyFromListing handles POST /v1/listings/buy.
func (h *LedgerHandlers) BuyFromListing(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	var req models.BuyRequest
	if !decode(w, r, &req) {
		return
	}
	seller, ok := parseKey(w, "seller", req.Seller)
	if !ok {
		return
	}
	res, err := h.svc.BuyFromListing(r.Context(), signer, seller, req.BuyPoints)
	h.reply(w, res, err)
}

// CancelListing handles POST /v1/listings/cancel.
func (h *LedgerHandlers) CancelListing(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	res, err := h.svc.CancelListing(r.Context(), signer)
	h.reply(w, res, err)
}

// SubmitRaw handles POST /v1/transactions.
func (h *LedgerHandlers) SubmitRaw(w http.ResponseWriter, r *http.Request) {
	signer, ok := wallet(w, r)
	if !ok {
		return
	}
	var req models.RawTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.SubmitRaw(r.Context(), signer, req)
	h.reply(w, res, err)
}

// Airdrop handles POST /v1/airdrop (admin only).
func (h *LedgerHandlers) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req models.AirdropRequest
	if !decode(w, r, &req) {
		return
	}
	to, ok := parseKey(w, "address", req.Address)
	if !ok {
		return
	}
	res, err := h.svc.Airdrop(r.Context(), to, req.Lamports)
	h.reply(w, res, err)
}
