package api

import "net/http"

// handleHealth returns a fixed ok status. Exempt from the bearer check
// so load balancers and probes need no credentials.
//
//	GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}
