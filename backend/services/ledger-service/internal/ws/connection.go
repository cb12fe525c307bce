package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit  = 4096
	pongWait   = 60 * time.Second
	sendBuffer = 64
)

// Connection is one stream subscriber. Clients only read; anything they
// send is discarded.
type Connection struct {
	ws           *websocket.Conn
	filter       *solana.PublicKey
	send         chan []byte
	writeMu      sync.Mutex
	writeTimeout time.Duration
	logger       *zap.Logger
	closeOnce    sync.Once
	onClose      func(*Connection)
}

// NewConnection wraps ws. A non-nil filter limits events to those touching that account.
func NewConnection(ws *websocket.Conn, filter *solana.PublicKey, writeTimeout time.Duration, logger *zap.Logger, onClose func(*Connection)) *Connection {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Connection{
		ws:           ws,
		filter:       filter,
		send:         make(chan []byte, sendBuffer),
		writeTimeout: writeTimeout,
		logger:       logger,
		onClose:      onClose,
	}
}

// Wants reports whether event passes the connection's filter.
func (c *Connection) Wants(event CommitEvent) bool {
	if c.filter == nil {
		return true
	}
	for _, acc := range event.Accounts {
		if acc.Address.Equals(*c.filter) {
			return true
		}
	}
	return false
}

// Start runs the write pump in the background and the read pump until the peer goes away.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("stream read closed", zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// Send enqueues msg. Slow subscribers lose messages rather than block commits.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping stream event, buffer full")
	}
}

// Ping writes a ping control frame.
func (c *Connection) Ping() error {
	return c.write(websocket.PingMessage, nil)
}

func (c *Connection) write(messageType int, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, payload)
}

func (c *Connection) cleanup() {
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		_ = c.ws.Close()
	})
}
