package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simrelay/simrelay/internal/infrastructure/config"
	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// fakeConn is an in-memory Conn. Frames pushed through pushFrame are
// handed to ReadMessage; frames the write pump emits are recorded.
type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	pings    int
	closes   int
	writeErr error
	closed   bool

	readCh   chan []byte
	closedCh chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		readCh:   make(chan []byte, 16),
		closedCh: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.readCh:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, data, nil
	case <-c.closedCh:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("use of closed connection")
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	switch messageType {
	case websocket.TextMessage:
		buf := make([]byte, len(data))
		copy(buf, data)
		c.frames = append(c.frames, buf)
	case websocket.PingMessage:
		c.pings++
	case websocket.CloseMessage:
		c.closes++
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) pushFrame(data []byte) {
	c.readCh <- data
}

func (c *fakeConn) endInput() {
	close(c.readCh)
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) frame(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(logging.Default())
}

// registerConn builds a channel over conn and registers it, starting the
// write pump.
func registerConn(r *Registry, key string, conn *fakeConn) *Channel {
	ch := newChannel(key, conn, testWSConfig(), logging.Default())
	r.Register(ch)
	return ch
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRegistry_Register(t *testing.T) {
	t.Run("registers and counts", func(t *testing.T) {
		r := newTestRegistry()
		registerConn(r, "a", newFakeConn())
		registerConn(r, "b", newFakeConn())

		if got := r.Count(); got != 2 {
			t.Errorf("Count() = %d, want 2", got)
		}
	})

	t.Run("replacing a key stops the old channel", func(t *testing.T) {
		r := newTestRegistry()
		oldConn := newFakeConn()
		newConn := newFakeConn()

		registerConn(r, "a", oldConn)
		registerConn(r, "a", newConn)

		waitFor(t, oldConn.isClosed, "replaced connection was not closed")
		if newConn.isClosed() {
			t.Error("replacement connection must stay open")
		}
		if got := r.Count(); got != 1 {
			t.Errorf("Count() = %d, want 1", got)
		}
	})
}

func TestRegistry_Unregister(t *testing.T) {
	t.Run("removes own entry", func(t *testing.T) {
		r := newTestRegistry()
		conn := newFakeConn()
		ch := registerConn(r, "a", conn)

		r.Unregister(ch)
		if got := r.Count(); got != 0 {
			t.Errorf("Count() = %d, want 0", got)
		}
		waitFor(t, conn.isClosed, "unregistered connection was not closed")

		// Repeated unregistration is a no-op.
		r.Unregister(ch)
	})

	t.Run("stale channel does not evict its replacement", func(t *testing.T) {
		r := newTestRegistry()
		stale := registerConn(r, "dev-1", newFakeConn())
		replacementConn := newFakeConn()
		registerConn(r, "dev-1", replacementConn)

		// The stale session's deferred cleanup runs after the replacement
		// is installed; the live entry must survive it.
		r.Unregister(stale)

		if got := r.Count(); got != 1 {
			t.Errorf("Count() = %d after stale unregister, want 1", got)
		}
		if !r.Send("dev-1", "msg") {
			t.Error("Send() = false, want delivery to the replacement")
		}
		waitFor(t, func() bool { return replacementConn.frameCount() == 1 },
			"replacement connection never received the message")
	})
}

func TestRegistry_Send(t *testing.T) {
	t.Run("delivers to registered key", func(t *testing.T) {
		r := newTestRegistry()
		conn := newFakeConn()
		registerConn(r, "a", conn)

		if !r.Send("a", map[string]string{"hello": "world"}) {
			t.Fatal("Send() = false, want true")
		}
		waitFor(t, func() bool { return conn.frameCount() == 1 },
			"connection never received the message")
	})

	t.Run("unknown key reports non-delivery", func(t *testing.T) {
		r := newTestRegistry()
		if r.Send("missing", "msg") {
			t.Error("Send() to unknown key = true, want false")
		}
	})

	t.Run("stopped channel drops the message", func(t *testing.T) {
		r := newTestRegistry()
		ch := registerConn(r, "a", newFakeConn())
		ch.stop()

		if r.Send("a", "msg") {
			t.Error("Send() = true, want false on a stopped channel")
		}
	})
}

func TestRegistry_Broadcast(t *testing.T) {
	t.Run("reaches every registered channel", func(t *testing.T) {
		r := newTestRegistry()
		conns := map[string]*fakeConn{"a": newFakeConn(), "b": newFakeConn(), "c": newFakeConn()}
		for key, conn := range conns {
			registerConn(r, key, conn)
		}

		if got := r.Broadcast("msg"); got != 3 {
			t.Errorf("Broadcast() = %d, want 3", got)
		}
		for name, conn := range conns {
			conn := conn
			waitFor(t, func() bool { return conn.frameCount() == 1 },
				"channel "+name+" never received the broadcast")
		}
	})

	t.Run("broken connection does not disturb the iteration", func(t *testing.T) {
		r := newTestRegistry()
		good := newFakeConn()
		bad := newFakeConn()
		bad.writeErr = errors.New("broken pipe")
		registerConn(r, "bad", bad)
		registerConn(r, "good", good)

		if got := r.Broadcast("msg"); got != 2 {
			t.Errorf("Broadcast() = %d attempted, want 2", got)
		}
		waitFor(t, func() bool { return good.frameCount() == 1 },
			"healthy channel never received the broadcast")
		waitFor(t, bad.isClosed, "broken connection was not closed by its pump")
	})
}

func TestRegistry_Keys(t *testing.T) {
	r := newTestRegistry()
	registerConn(r, "zeta", newFakeConn())
	registerConn(r, "alpha", newFakeConn())

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zeta" {
		t.Errorf("Keys() = %v, want [alpha zeta]", keys)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := newTestRegistry()
	a, b := newFakeConn(), newFakeConn()
	registerConn(r, "a", a)
	registerConn(r, "b", b)

	r.CloseAll()

	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d after CloseAll, want 0", got)
	}
	waitFor(t, func() bool { return a.isClosed() && b.isClosed() },
		"CloseAll left a connection open")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 50; j++ {
				ch := newChannel(key, newFakeConn(), testWSConfig(), logging.Default())
				r.Register(ch)
				r.Send(key, "msg")
				r.Broadcast("all")
				r.Unregister(ch)
			}
		}(i)
	}
	wg.Wait()

	if got := r.Count(); got != 0 {
		t.Errorf("Count() = %d after churn, want 0", got)
	}
}

func TestChannel_Enqueue(t *testing.T) {
	t.Run("full buffer drops without blocking", func(t *testing.T) {
		// No pump draining the queue, so the buffer fills.
		ch := newChannel("a", newFakeConn(), testWSConfig(), logging.Default())
		for i := 0; i < sendBufferSize; i++ {
			if !ch.enqueue("msg") {
				t.Fatalf("enqueue %d = false, want true", i)
			}
		}
		if ch.enqueue("overflow") {
			t.Error("enqueue on full buffer = true, want false")
		}
	})

	t.Run("stopped channel is a no-op", func(t *testing.T) {
		ch := newChannel("a", newFakeConn(), testWSConfig(), logging.Default())
		ch.stop()
		if ch.enqueue("msg") {
			t.Error("enqueue after stop = true, want false")
		}
		// Repeated stop must not panic.
		ch.stop()
	})
}

func TestChannel_WritePump(t *testing.T) {
	t.Run("drains queued messages in order", func(t *testing.T) {
		conn := newFakeConn()
		ch := newChannel("a", conn, testWSConfig(), logging.Default())
		ch.enqueue("first")
		ch.enqueue("second")
		go ch.writePump()

		waitFor(t, func() bool { return conn.frameCount() == 2 },
			"pump did not drain the queue")
		if string(conn.frame(0)) != `"first"` || string(conn.frame(1)) != `"second"` {
			t.Errorf("frames = %q, %q; want ordered delivery", conn.frame(0), conn.frame(1))
		}
	})

	t.Run("stop emits a close frame and closes the connection", func(t *testing.T) {
		conn := newFakeConn()
		ch := newChannel("a", conn, testWSConfig(), logging.Default())
		go ch.writePump()

		ch.stop()
		waitFor(t, conn.isClosed, "pump did not close the connection")
	})

	t.Run("write failure closes the connection", func(t *testing.T) {
		conn := newFakeConn()
		conn.writeErr = errors.New("broken pipe")
		ch := newChannel("a", conn, testWSConfig(), logging.Default())
		go ch.writePump()

		ch.enqueue("msg")
		waitFor(t, conn.isClosed, "pump did not close the broken connection")
	})

	t.Run("emits protocol pings", func(t *testing.T) {
		conn := newFakeConn()
		cfg := testWSConfig()
		cfg.PingInterval = 1
		ch := newChannel("a", conn, cfg, logging.Default())
		go ch.writePump()
		defer ch.stop()

		waitFor(t, func() bool { return conn.pingCount() >= 1 },
			"pump never pinged an idle connection")
	})
}
