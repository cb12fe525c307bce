package models

import (
	"github.com/gagliardetto/solana-go"
)

// LoginRequest proves wallet ownership with a signed login message.
type LoginRequest struct {
	Wallet    string `json:"wallet"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type RegisterChargerRequest struct {
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	City             string  `json:"city"`
	Address          string  `json:"address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	PowerKW          float32 `json:"power_kw"`
	RatePointsPerSec uint64  `json:"rate_points_per_sec"`
	PricePerSec      uint64  `json:"price_per_sec"`
}

// StartSessionRequest opens a session. A zero StartTS means now.
type StartSessionRequest struct {
	Charger string `json:"charger"`
	StartTS int64  `json:"start_ts"`
}

// StopSessionRequest settles a session. A zero EndTS means now.
type StopSessionRequest struct {
	Charger string `json:"charger"`
	StartTS int64  `json:"start_ts"`
	EndTS   int64  `json:"end_ts"`
}

type ListingRequest struct {
	AmountPoints  uint64 `json:"amount_points"`
	PricePerPoint uint64 `json:"price_per_point"`
}

type BuyRequest struct {
	Seller    string `json:"seller"`
	BuyPoints uint64 `json:"buy_points"`
}

// AccountMetaRequest is one entry of a raw instruction's account list.
type AccountMetaRequest struct {
	Address    string `json:"address"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// RawTransactionRequest submits pre-encoded instruction data (base64).
type RawTransactionRequest struct {
	Accounts []AccountMetaRequest `json:"accounts"`
	Data     string               `json:"data"`
}

type AirdropRequest struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

// AccountView is an account with its record decoded when the program owns it.
type AccountView struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Kind     string           `json:"kind,omitempty"`
	Record   any              `json:"record,omitempty"`
	Data     []byte           `json:"data,omitempty"`
}

// TxResult is returned for every committed transaction.
type TxResult struct {
	TxID     string        `json:"tx_id"`
	Sequence uint64        `json:"sequence"`
	Accounts []AccountView `json:"accounts"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Class string `json:"class,omitempty"`
}
