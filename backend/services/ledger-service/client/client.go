// Package client is a typed HTTP client for ledger-service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"charge2earn/backend/libs/auth"
	"charge2earn/backend/program/scan"
	"charge2earn/backend/services/ledger-service/internal/models"
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// APIError is a non-2xx reply.
type APIError struct {
	Status int
	Code   string
	Class  string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ledger: %d %s: %s", e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("ledger: %d: %s", e.Status, e.Msg)
}

// Client talks to one ledger-service instance. Submissions need Login first.
type Client struct {
	baseURL string
	http    HTTPDoer
	token   string
	now     func() time.Time
}

// New builds a client. A nil doer uses an http.Client with a 10s timeout.
func New(baseURL string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: doer, now: time.Now}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(raw))}
		var er models.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Code, apiErr.Class, apiErr.Msg = er.Code, er.Class, er.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Login signs a fresh login message with key and keeps the issued token.
func (c *Client) Login(ctx context.Context, key solana.PrivateKey) (string, error) {
	msg := auth.LoginMessage(c.now())
	sig, err := key.Sign([]byte(msg))
	if err != nil {
		return "", err
	}
	var resp models.LoginResponse
	err = c.do(ctx, http.MethodPost, "/v1/auth/login", models.LoginRequest{
		Wallet:    key.PublicKey().String(),
		Message:   msg,
		Signature: sig.String(),
	}, &resp)
	if err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Role, nil
}

func (c *Client) RegisterCharger(ctx context.Context, req models.RegisterChargerRequest) (*models.TxResult, error) {
	var res models.TxResult
	if err := c.do(ctx, http.MethodPost, "/v1/chargers", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StartSession returns the start timestamp the server recorded.
func (c *Client) StartSession(ctx context.Context, charger solana.PublicKey, startTS int64) (int64, error) {
	var res struct {
		StartTS int64 `json:"start_ts"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/sessions/start", models.StartSessionRequest{Charger: charger.String(), StartTS: startTS}, &res)
	return res.StartTS, err
}

func (c *Client) StopSession(ctx context.Context, charger solana.PublicKey, startTS, endTS int64) (*models.TxResult, error) {
	var res models.TxResult
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/stop", models.StopSessionRequest{
		Charger: charger.String(), StartTS: startTS, EndTS: endTS,
	}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CreateOrUpdateListing(ctx context.Context, amount, price uint64) (*models.TxResult, error) {
	var res models.TxResult
	if err := c.do(ctx, http.MethodPost, "/v1/listings", models.ListingRequest{AmountPoints: amount, PricePerPoint: price}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) BuyFromListing(ctx context.Context, seller solana.PublicKey, points uint64) (*models.TxResult, error) {
	var res models.TxResult
	if err := c.do(ctx, http.MethodPost, "/v1/listings/buy", models.BuyRequest{Seller: seller.String(), BuyPoints: points}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CancelListing(ctx context.Context) (*models.TxResult, error) {
	var res models.TxResult
	if err := c.do(ctx, http.MethodPost, "/v1/listings/cancel", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Account fetches one account; the record is left as generic JSON.
func (c *Client) Account(ctx context.Context, address solana.PublicKey) (*models.AccountView, error) {
	var res models.AccountView
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(address.String()), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Chargers(ctx context.Context) ([]scan.ChargerEntry, error) {
	var res struct {
		Chargers []scan.ChargerEntry `json:"chargers"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/chargers", nil, &res)
	return res.Chargers, err
}

func (c *Client) Listings(ctx context.Context) ([]scan.ListingEntry, error) {
	var res struct {
		Listings []scan.ListingEntry `json:"listings"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/listings", nil, &res)
	return res.Listings, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]scan.LeaderboardEntry, error) {
	var res struct {
		Leaderboard []scan.LeaderboardEntry `json:"leaderboard"`
	}
	path := "/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &res)
	return res.Leaderboard, err
}
