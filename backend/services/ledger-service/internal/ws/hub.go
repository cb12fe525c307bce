package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"charge2earn/backend/program/runtime"
	"charge2earn/backend/program/state"
)

// AccountEvent describes one account touched by a committed transaction.
type AccountEvent struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Kind     string           `json:"kind,omitempty"`
}

// CommitEvent is pushed to subscribers after every commit.
type CommitEvent struct {
	TxID     string         `json:"tx_id"`
	Sequence uint64         `json:"sequence"`
	Accounts []AccountEvent `json:"accounts"`
}

// Hub tracks stream subscribers and fans commit events out to them.
type Hub struct {
	mu           sync.RWMutex
	connections  map[*Connection]struct{}
	pingInterval time.Duration
	ping         func(*Connection) error
	logger       *zap.Logger
}

// NewHub builds a subscriber hub.
func NewHub(pingInterval time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		connections:  make(map[*Connection]struct{}),
		pingInterval: pingInterval,
		ping:         (*Connection).Ping,
		logger:       logger,
	}
}

func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = struct{}{}
}

func (h *Hub) Remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// OnCommit is a runtime.Observer.
func (h *Hub) OnCommit(_ context.Context, receipt runtime.Receipt) {
	event := CommitEvent{
		TxID:     receipt.TxID.String(),
		Sequence: receipt.Sequence,
		Accounts: make([]AccountEvent, 0, len(receipt.Modified)),
	}
	for _, acc := range receipt.Modified {
		ev := AccountEvent{Address: acc.Key, Lamports: acc.Lamports}
		if kind, err := state.PeekKind(acc.Data); err == nil && kind != state.KindUnknown {
			ev.Kind = kind.String()
		}
		event.Accounts = append(event.Accounts, ev)
	}
	h.Broadcast(event)
}

// Broadcast sends event to every subscriber whose filter matches.
func (h *Hub) Broadcast(event CommitEvent) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encode commit event", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.connections {
		if conn.Wants(event) {
			conn.Send(msg)
		}
	}
}

// Start pings subscribers until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pingAll()
		}
	}
}

// pingAll writes outside the lock; a slow peer must not stall Broadcast.
func (h *Hub) pingAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()
	for _, conn := range conns {
		_ = h.ping(conn)
	}
}
