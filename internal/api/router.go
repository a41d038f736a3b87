package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Admin auth flow (no auth required)
	r.Post("/login", s.handleLogin)
	r.Post("/refresh", s.handleRefresh)

	// Device lifecycle
	r.Route("/devices", func(r chi.Router) {
		// Device-facing, unauthenticated: registration and credential exchange
		r.Post("/register", s.handleRegisterDevice)
		r.Post("/credentials", s.handleDeviceCredentials)

		// Device-facing, device bearer token
		r.Group(func(r chi.Router) {
			r.Use(s.requireDevice)
			r.Get("/{id}/token", s.handleRenewToken)
		})

		// Admin-facing fleet management
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleListDevices)
			r.Get("/stats", s.handleDeviceStats)
			r.Patch("/{id}/authorize", s.handleAuthorizeDevice)
			r.Get("/{id}/status", s.handleDeviceStatus)
		})
	})

	// Broker hook endpoints. The broker itself is the caller; these are
	// reachable without bearer auth because the hook payload carries the
	// credentials under test.
	r.Route("/mqtt", func(r chi.Router) {
		r.Post("/auth", s.handleMQTTAuth)
		r.Post("/superuser", s.handleMQTTSuperuser)
		r.Post("/acl", s.handleMQTTACL)

		r.Route("/jwt", func(r chi.Router) {
			r.Post("/auth", s.handleMQTTAuthJWT)
			r.Post("/superuser", s.handleMQTTSuperuserJWT)
			r.Post("/acl", s.handleMQTTACLJWT)
		})
	})

	// Telemetry store liveness read (admin only)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/sensors/{device_id}", s.handleSensorStatus)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
