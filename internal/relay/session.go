package relay

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/simrelay/simrelay/internal/envelope"
	"github.com/simrelay/simrelay/internal/identity"
	"github.com/simrelay/simrelay/internal/infrastructure/config"
	"github.com/simrelay/simrelay/internal/infrastructure/logging"
)

// ActionConfigUpdate is the action carried by a successful identity
// assignment response.
const ActionConfigUpdate = "device.config.update"

// IdentityAssigner is the slice of the identity pool a session needs:
// claim an identity for a token and render its connection string.
type IdentityAssigner interface {
	Claim(ctx context.Context, token string) (string, error)
	ConnectionString(deviceID string) string
}

// Session runs the envelope protocol for one connection. Frames are
// processed strictly in receipt order by a single goroutine; outbound
// messages are queued on the session's channel and written by its pump.
type Session struct {
	key      string
	conn     Conn
	ch       *Channel
	registry *Registry
	pool     IdentityAssigner
	tuning   config.ProvisioningConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
}

// NewSession prepares a session for the connection registered under key.
func NewSession(key string, conn Conn, registry *Registry, pool IdentityAssigner, tuning config.ProvisioningConfig, wsCfg config.WebSocketConfig, logger *logging.Logger) *Session {
	return &Session{
		key:      key,
		conn:     conn,
		registry: registry,
		pool:     pool,
		tuning:   tuning,
		wsCfg:    wsCfg,
		logger:   logger.With("connection_key", key),
	}
}

// Run registers the connection, then reads and dispatches envelopes
// until the connection closes. The channel is unregistered on every exit
// path; a replaced channel leaves its successor's registration intact.
func (s *Session) Run(ctx context.Context) {
	s.ch = newChannel(s.key, s.conn, s.wsCfg, s.logger)
	s.registry.Register(s.ch)
	defer s.registry.Unregister(s.ch)

	if s.wsCfg.MaxMessageSize > 0 {
		s.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	}
	readWait := time.Duration(s.wsCfg.PingInterval+s.wsCfg.PongTimeout) * time.Second
	_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("connection closed unexpectedly", "error", err)
			} else {
				s.logger.Info("client disconnected")
			}
			return
		}
		// Any client frame resets the read deadline, alongside the pong
		// handler above.
		_ = s.conn.SetReadDeadline(time.Now().Add(readWait))

		env, err := envelope.Parse(data)
		if err != nil {
			s.logger.Warn("discarding malformed frame", "error", err)
			continue
		}

		s.logger.Debug("envelope received",
			"type", env.Type, "id", env.ID, "correlation_id", env.CorrelationID,
			"action", env.Action, "status", env.Status)

		switch env.Type {
		case envelope.TypeRequest:
			s.handleRequest(ctx, env)
		case envelope.TypeReport:
			s.handleReport(env)
		default:
			// Unhandled types are logged rather than silently dropped so
			// misbehaving clients show up in debug output.
			s.logger.Debug("ignoring unhandled envelope type", "type", env.Type, "id", env.ID)
		}
	}
}

// handleRequest claims an identity using the request's own id as the
// binding token and answers with connection parameters. Claim failures
// are answered with an error envelope and keep the session open; a
// response that cannot be written makes the pump close the connection,
// ending the read loop.
func (s *Session) handleRequest(ctx context.Context, req envelope.Envelope) {
	deviceID, err := s.pool.Claim(ctx, req.ID)
	if err != nil {
		if errors.Is(err, identity.ErrPoolExhausted) {
			s.logger.Warn("identity claim failed, pool exhausted", "request_id", req.ID)
		} else {
			s.logger.Error("identity claim failed", "request_id", req.ID, "error", err)
		}
		s.sendError(req, err)
		return
	}

	resp := envelope.New(ActionConfigUpdate,
		envelope.WithType(envelope.TypeResponse),
		envelope.WithCorrelationID(req.ID),
		envelope.WithStatus(envelope.StatusSuccess),
		envelope.WithPayload(map[string]any{
			"device_id":                       deviceID,
			"IOTHUB_DEVICE_CONNECTION_STRING": s.pool.ConnectionString(deviceID),
			"initialRetryTimeout":             s.tuning.InitialRetryTimeout,
			"maxRetry":                        s.tuning.MaxRetry,
			"messageIntervalSeconds":          s.tuning.MessageIntervalSeconds,
		}),
	)
	if !s.ch.enqueue(resp) {
		s.logger.Error("queueing assignment response failed", "device_id", deviceID)
		return
	}

	s.logger.Info("identity assigned", "device_id", deviceID, "request_id", req.ID)
}

// handleReport acknowledges a telemetry report. Report contents are not
// processed on this path; persistence happens through the HTTP report
// endpoint.
func (s *Session) handleReport(req envelope.Envelope) {
	ack := envelope.New("none",
		envelope.WithType(envelope.TypeResponse),
		envelope.WithCorrelationID(req.ID),
		envelope.WithStatus(envelope.StatusReceived),
	)
	if s.ch.enqueue(ack) {
		s.logger.Debug("report acknowledged", "correlation_id", req.ID)
	}
}

// sendError answers req with an error envelope carrying the failure
// reason in meta. The session stays open; only a connection-level write
// failure, surfaced through the pump, ends it.
func (s *Session) sendError(req envelope.Envelope, cause error) {
	errEnv := envelope.New(defaultAction(req.Action, "unknown"),
		envelope.WithType(envelope.TypeError),
		envelope.WithCorrelationID(req.ID),
		envelope.WithStatus(envelope.StatusFailure),
		envelope.WithMeta(map[string]any{"error": cause.Error()}),
	)
	if !s.ch.enqueue(errEnv) {
		s.logger.Error("queueing error envelope failed", "correlation_id", req.ID)
	}
}

func defaultAction(action, fallback string) string {
	if action == "" {
		return fallback
	}
	return action
}
