package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests into commit-event streams.
type Server struct {
	hub          *Hub
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds the stream endpoint. An empty allowedOrigins accepts any origin.
func NewServer(hub *Hub, writeTimeout time.Duration, allowedOrigins []string, logger *zap.Logger) *Server {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Server{
		hub:          hub,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// HandleWS serves GET /v1/stream[?account=<base58>].
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	var filter *solana.PublicKey
	if raw := r.URL.Query().Get("account"); raw != "" {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			http.Error(w, "account is not a valid public key", http.StatusBadRequest)
			return
		}
		filter = &pk
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(conn, filter, s.writeTimeout, s.logger, func(c *Connection) {
		s.hub.Remove(c)
		cancel()
	})
	s.hub.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("stream subscriber connected", zap.String("remote", r.RemoteAddr))
}
