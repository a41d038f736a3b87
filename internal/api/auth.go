package api

import (
	"encoding/json"
	"net/http"

	"github.com/euklyde/iothink-core/internal/auth"
)

// loginRequest is the request body for POST /login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /login.
type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshRequest is the request body for POST /refresh.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse is the response body for POST /refresh.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// handleLogin authenticates an admin and returns an access/refresh token
// pair. The refresh token's hash is stored on the admin row, which
// invalidates any previously issued refresh token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	admin, err := s.admins.GetByUsername(r.Context(), req.Username)
	if err != nil {
		// Unknown admin and bad password are indistinguishable
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, admin.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	accessToken, err := auth.GenerateAccessToken(admin.ID, auth.TypeAdmin,
		s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(admin.ID,
		s.secCfg.JWT.Secret, s.secCfg.JWT.RefreshTokenTTL)
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	if err := s.admins.SetRefreshTokenHash(r.Context(), admin.ID, auth.HashToken(refreshToken)); err != nil {
		writeInternalError(w, "failed to persist session")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// handleRefresh exchanges a valid refresh token for a new access token.
// The presented token must exactly match the one stored against the admin
// — a rotated-out token is rejected even if its signature still verifies.
// The refresh token itself is not rotated on this path.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.RefreshToken == "" {
		writeBadRequest(w, "refreshToken is required")
		return
	}

	claims, err := auth.ParseToken(req.RefreshToken, s.secCfg.JWT.Secret)
	if err != nil || claims.Type != auth.TypeAdmin {
		writeForbidden(w, "invalid refresh token")
		return
	}

	admin, err := s.admins.GetByID(r.Context(), claims.Subject)
	if err != nil {
		writeForbidden(w, "invalid refresh token")
		return
	}

	if admin.RefreshTokenHash == "" || admin.RefreshTokenHash != auth.HashToken(req.RefreshToken) {
		writeForbidden(w, "invalid refresh token")
		return
	}

	accessToken, err := auth.GenerateAccessToken(admin.ID, auth.TypeAdmin,
		s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
}
