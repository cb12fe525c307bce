package httpserver

import (
	"net/http"
	"sort"
	"strings"

	"charge2earn/backend/services/ledger-service/internal/http/handlers"
	"charge2earn/backend/services/ledger-service/internal/http/middleware"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	Auth      *handlers.AuthHandlers
	Ledger    *handlers.LedgerHandlers
	Queries   *handlers.QueryHandlers
	Stream    http.HandlerFunc
	Health    http.HandlerFunc
	Authn     func(http.Handler) http.Handler
	AdminOnly func(http.Handler) http.Handler
}

// NewRouter wires HTTP routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", method(http.MethodGet, deps.Health))
	mux.Handle("/v1/auth/login", method(http.MethodPost, http.HandlerFunc(deps.Auth.Login)))

	authenticated := func(handler http.HandlerFunc) http.Handler {
		return middleware.Chain(handler, deps.Authn)
	}

	mux.Handle("/v1/chargers", methods{
		http.MethodGet:  http.HandlerFunc(deps.Queries.Chargers),
		http.MethodPost: authenticated(deps.Ledger.RegisterCharger),
	})
	mux.Handle("/v1/sessions/start", method(http.MethodPost, authenticated(deps.Ledger.StartSession)))
	mux.Handle("/v1/sessions/stop", method(http.MethodPost, authenticated(deps.Ledger.StopSession)))
	mux.Handle("/v1/listings", methods{
		http.MethodGet:  http.HandlerFunc(deps.Queries.Listings),
		http.MethodPost: authenticated(deps.Ledger.CreateOrUpdateListing),
	})
	mux.Handle("/v1/listings/buy", method(http.MethodPost, authenticated(deps.Ledger.BuyFromListing)))
	mux.Handle("/v1/listings/cancel", method(http.MethodPost, authenticated(deps.Ledger.CancelListing)))
	mux.Handle("/v1/transactions", method(http.MethodPost, authenticated(deps.Ledger.SubmitRaw)))
	mux.Handle("/v1/airdrop", method(http.MethodPost, middleware.Chain(http.HandlerFunc(deps.Ledger.Airdrop), deps.Authn, deps.AdminOnly)))

	mux.Handle("/v1/accounts/{address}", method(http.MethodGet, http.HandlerFunc(deps.Queries.Account)))
	mux.Handle("/v1/leaderboard", method(http.MethodGet, http.HandlerFunc(deps.Queries.Leaderboard)))
	mux.Handle("/v1/drivers/{owner}/sessions", method(http.MethodGet, http.HandlerFunc(deps.Queries.DriverSessions)))
	if deps.Stream != nil {
		mux.Handle("/v1/stream", method(http.MethodGet, deps.Stream))
	}

	return mux
}

func method(expected string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// methods dispatches one path to a handler per HTTP method.
type methods map[string]http.Handler

func (m methods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, ok := m[r.Method]
	if !ok {
		allowed := make([]string, 0, len(m))
		for k := range m {
			allowed = append(allowed, k)
		}
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	handler.ServeHTTP(w, r)
}
