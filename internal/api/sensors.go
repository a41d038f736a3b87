package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleSensorStatus reports which of a device's telemetry fields are
// live in the external store (admin only). Returns 503 when the store
// is not configured — the core runs fine without it.
func (s *Server) handleSensorStatus(w http.ResponseWriter, r *http.Request) {
	if s.sensors == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "telemetry store not configured")
		return
	}

	deviceID := chi.URLParam(r, "device_id")

	status, err := s.sensors.SensorStatus(r.Context(), deviceID)
	if err != nil {
		s.logger.Error("sensor status query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "sensor status query failed")
		return
	}

	writeJSON(w, http.StatusOK, status)
}
