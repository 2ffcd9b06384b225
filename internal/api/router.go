package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Paths follow the device-simulator convention: the admin and command
// surface lives at the root, health under /api, and the device-facing
// WebSocket endpoint under /ws. The WebSocket route sits outside the
// bearer middleware because it accepts the token via query parameter as
// well as header.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuthMiddleware)

		// Identity administration
		r.Post("/generate_device/{count}", s.handleGenerateDevices)
		r.Post("/delete_device/{deviceID}", s.handleDeleteDevice)
		r.Post("/delete_all_devices", s.handleDeleteAllDevices)
		r.Post("/clear_mappings", s.handleClearMappings)

		// Command delivery
		r.Post("/command/broadcast", s.handleBroadcastCommand)
		r.Post("/command/{connectionKey}", s.handleSendCommand)

		// Telemetry ingestion and introspection
		r.Post("/report/{deviceID}", s.handleReport)
		r.Get("/clients", s.handleClients)

		r.Get("/api/health", s.handleHealth)
	})

	r.Get("/ws/{connectionKey}", s.handleWebSocket)

	return r
}
