package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/simrelay/simrelay/internal/relay"
)

// closeWriteTimeout bounds the close-frame write on auth failure.
const closeWriteTimeout = time.Second

func closeDeadline() time.Time {
	return time.Now().Add(closeWriteTimeout)
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleWebSocket upgrades a device connection and runs its session.
//
//	GET /ws/{connectionKey}
//
// When a bearer token is configured, it is accepted via the
// Authorization header or the ?token= query parameter; a mismatch
// closes the connection with a policy-violation code before any
// envelope is exchanged.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	connectionKey := chi.URLParam(r, "connectionKey")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "connection_key", connectionKey, "error", err)
		return
	}

	if !s.authorizeWebSocket(r) {
		s.logger.Warn("websocket auth failed", "connection_key", connectionKey)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid bearer token"),
			closeDeadline())
		conn.Close()
		return
	}

	session := relay.NewSession(connectionKey, conn, s.registry, s.pool, s.provCfg, s.wsCfg, s.logger)
	session.Run(r.Context())
}

// authorizeWebSocket checks the shared bearer token for a websocket
// request. Header takes precedence; the query parameter is the fallback
// for clients that cannot set headers.
func (s *Server) authorizeWebSocket(r *http.Request) bool {
	if s.secCfg.BearerToken == "" {
		return true
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	return tokenMatches(token, s.secCfg.BearerToken)
}
