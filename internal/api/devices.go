package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/euklyde/iothink-core/internal/device"
)

// registerRequest is the request body for POST /devices/register.
type registerRequest struct {
	DeviceID    string `json:"device_id"`
	MAC         string `json:"mac"`
	Description string `json:"description,omitempty"`
}

// credentialsRequest is the request body for POST /devices/credentials.
type credentialsRequest struct {
	DeviceID string `json:"device_id"`
	MAC      string `json:"mac"`
}

// handleRegisterDevice records a device registration. A brand-new device
// gets 202 pending; re-registering reports the current approval state
// with 200 and never creates a duplicate.
func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	state, created, err := s.devices.Register(r.Context(), req.DeviceID, req.MAC)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrMissingFields):
			writeBadRequest(w, "device_id and mac are required")
		case errors.Is(err, device.ErrInvalidDeviceID):
			writeBadRequest(w, "invalid device_id")
		default:
			writeInternalError(w, "registration failed")
		}
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{"status": string(state)})
}

// handleDeviceCredentials exchanges a device_id/mac pair for a device JWT
// and broker connection parameters. An unknown device is 404; a MAC
// mismatch or unapproved device is a uniform 403.
func (s *Server) handleDeviceCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" || req.MAC == "" {
		writeBadRequest(w, "device_id and mac are required")
		return
	}

	creds, err := s.devices.IssueCredentials(r.Context(), req.DeviceID, req.MAC)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrNotAuthorized):
			writeJSON(w, http.StatusForbidden, map[string]any{"authorized": false})
		default:
			writeInternalError(w, "credential issuance failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authorized": true,
		"device_id":  creds.DeviceID,
		"jwt":        creds.JWT,
		"mqtt_host":  creds.MQTTHost,
		"mqtt_port":  creds.MQTTPort,
		"topic":      creds.Topic,
	})
}

// handleAuthorizeDevice approves a device (admin only). Idempotent: a
// second call succeeds without rotating the API key.
func (s *Server) handleAuthorizeDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.Authorize(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "authorization failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "device authorized",
		"device_id": d.ID,
	})
}

// handleRenewToken re-issues a device access token. The bearer token's
// subject must be the device in the path — a device can only renew itself.
func (s *Server) handleRenewToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims := claimsFrom(r)
	if claims == nil || claims.Subject != id {
		writeForbidden(w, "token does not match device")
		return
	}

	token, err := s.devices.RenewToken(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrNotAuthorized) {
			writeForbidden(w, "device not authorized")
			return
		}
		writeInternalError(w, "token renewal failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"jwt": token})
}

// handleDeviceStatus returns the liveness view of a device (admin only).
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "status lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": d.ID,
		"status":    string(d.Status),
		"last_seen": d.LastSeen,
	})
}

// handleListDevices returns the device fleet (admin only).
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		writeInternalError(w, "listing devices failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleDeviceStats returns fleet counts (admin only).
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.devices.Stats(r.Context())
	if err != nil {
		writeInternalError(w, "device stats failed")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
