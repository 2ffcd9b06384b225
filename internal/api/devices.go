package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/simrelay/simrelay/internal/identity"
)

// handleGenerateDevices provisions N new device identities.
//
//	POST /generate_device/{count}
//
// Response: 201 {"generated_device_ids": [...]}
func (s *Server) handleGenerateDevices(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(chi.URLParam(r, "count"))
	if err != nil || count < 1 {
		writeBadRequest(w, "count must be a positive integer")
		return
	}

	generated, err := s.pool.Provision(r.Context(), count)
	if err != nil {
		// Identities recorded before the failure stay provisioned;
		// report the infrastructure error to the operator.
		s.logger.Error("provisioning failed", "requested", count, "provisioned", len(generated), "error", err)
		if errors.Is(err, identity.ErrCredentialIssuance) {
			writeInternalError(w, "credential issuance error")
		} else {
			writeInternalError(w, "database error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"generated_device_ids": generated,
	})
}

// handleDeleteDevice deletes one identity, external credential first.
//
//	POST /delete_device/{deviceID}
//
// Response: 200 {"deleted_device_id": id}, 404 when unknown.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if err := s.pool.Delete(r.Context(), deviceID); err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			writeNotFound(w, "device id not found")
		case errors.Is(err, identity.ErrCredentialIssuance):
			writeInternalError(w, "credential deletion error")
		default:
			writeInternalError(w, "database error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted_device_id": deviceID,
	})
}

// handleDeleteAllDevices deletes every identity. Per-identity credential
// failures are logged and skipped; an empty pool is a no-op.
//
//	POST /delete_all_devices
func (s *Server) handleDeleteAllDevices(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.pool.DeleteAll(r.Context())
	if err != nil {
		writeInternalError(w, "database error")
		return
	}

	s.logger.Info("all devices deleted", "count", deleted)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "all devices deleted",
	})
}

// handleClearMappings unbinds every identity without deleting it.
//
//	POST /clear_mappings
func (s *Server) handleClearMappings(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.ReleaseAll(r.Context()); err != nil {
		writeInternalError(w, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "all mappings cleared",
	})
}
