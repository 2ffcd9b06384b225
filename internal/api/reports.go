package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simrelay/simrelay/internal/telemetry"
)

// handleReport appends a telemetry report to durable storage. The path
// device id identifies the submitting device for logging and the
// response; the stored row uses the body's deviceId field, matching the
// device-side payload convention.
//
//	POST /report/{deviceID}
//
// Response: {"status": "saved", "device_id": id}
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var report telemetry.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeBadRequest(w, "request body must be a JSON report")
		return
	}

	if err := s.recorder.Save(r.Context(), report); err != nil {
		s.logger.Error("saving report failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "saved",
		"device_id": deviceID,
	})
}
