package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

var errInvalidJSON = errors.New("api: request body is not valid JSON")

// readCommandBody decodes an arbitrary JSON command payload. Commands
// are forwarded as-is; the relay does not validate their shape.
func readCommandBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, errInvalidJSON
	}
	return json.RawMessage(body), nil
}

// handleBroadcastCommand forwards a command to every connected device.
//
//	POST /command/broadcast
//
// Response: {"status": "broadcasted"}
func (s *Server) handleBroadcastCommand(w http.ResponseWriter, r *http.Request) {
	body, err := readCommandBody(r)
	if err != nil {
		writeBadRequest(w, "request body must be valid JSON")
		return
	}

	attempted := s.registry.Broadcast(body)
	s.logger.Info("command broadcast", "connections", attempted)

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "broadcasted",
	})
}

// handleSendCommand forwards a command to one connected device. Delivery
// is best-effort: the response reports the attempt, not receipt, and an
// unknown key is not an error for the relay.
//
//	POST /command/{connectionKey}
//
// Response: {"status": "sent", "uuid": key}
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	connectionKey := chi.URLParam(r, "connectionKey")

	body, err := readCommandBody(r)
	if err != nil {
		writeBadRequest(w, "request body must be valid JSON")
		return
	}

	if !s.registry.Send(connectionKey, body) {
		s.logger.Debug("command not delivered", "connection_key", connectionKey)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "sent",
		"uuid":   connectionKey,
	})
}

// handleClients lists the currently registered connection keys.
//
//	GET /clients
func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected_clients": s.registry.Keys(),
	})
}
