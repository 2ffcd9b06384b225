package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simrelay/simrelay/internal/infrastructure/config"
	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// sendBufferSize is the per-connection outbound message buffer size.
const sendBufferSize = 256

// Conn is the duplex transport a channel drives. *websocket.Conn
// satisfies it; tests substitute in-memory fakes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Channel is one registered connection. Every outbound message goes
// through a buffered send queue drained by a single write pump, so the
// session goroutine and registry callers never write to the underlying
// connection concurrently.
type Channel struct {
	key    string
	conn   Conn
	send   chan []byte
	cfg    config.WebSocketConfig
	logger *logging.Logger

	stopOnce sync.Once
}

func newChannel(key string, conn Conn, cfg config.WebSocketConfig, logger *logging.Logger) *Channel {
	return &Channel{
		key:    key,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		cfg:    cfg,
		logger: logger,
	}
}

// Key returns the connection key the channel is registered under.
func (ch *Channel) Key() string {
	return ch.key
}

// enqueue queues v for delivery by the write pump. It never blocks: a
// full buffer drops the message, and enqueueing on a stopped channel is
// a no-op. Returns whether the message was queued.
func (ch *Channel) enqueue(v any) (queued bool) {
	data, err := json.Marshal(v)
	if err != nil {
		ch.logger.Error("marshalling outbound message failed", "connection_key", ch.key, "error", err)
		return false
	}

	// Enqueueing races with stop closing the queue; absorb the
	// send-on-closed-channel panic and report the message as dropped.
	defer func() {
		if recover() != nil {
			queued = false
		}
	}()

	select {
	case ch.send <- data:
		return true
	default:
		ch.logger.Warn("send buffer full, dropping message", "connection_key", ch.key)
		return false
	}
}

// writePump is the single writer on the connection. It drains the send
// queue and emits protocol pings until the queue is closed or a write
// fails, then closes the connection so the read loop unblocks.
func (ch *Channel) writePump() {
	pingInterval := time.Duration(ch.cfg.PingInterval) * time.Second
	pongWait := time.Duration(ch.cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = ch.conn.Close()
	}()

	for {
		select {
		case data, ok := <-ch.send:
			if !ok {
				// Registry stopped the channel.
				_ = ch.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = ch.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := ch.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				ch.logger.Warn("write failed, closing connection", "connection_key", ch.key, "error", err)
				return
			}
		case <-ticker.C:
			_ = ch.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := ch.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// stop closes the send queue, which makes the write pump emit a close
// frame and drop the connection. Safe to call more than once.
func (ch *Channel) stop() {
	ch.stopOnce.Do(func() {
		close(ch.send)
	})
}
