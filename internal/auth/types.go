package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for admin usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// PrincipalType distinguishes the two kinds of authenticated identity.
type PrincipalType string

const (
	// TypeDevice is a registered sensor node. Devices authenticate with an
	// API key and are scoped to their own publish topic on the broker.
	TypeDevice PrincipalType = "device"

	// TypeAdmin is a human operator account. Admins manage the device
	// fleet over the HTTP API but hold no broker permissions.
	TypeAdmin PrincipalType = "admin"
)

// IsValidPrincipalType returns true if the type is one the system issues.
func IsValidPrincipalType(t PrincipalType) bool {
	return t == TypeDevice || t == TypeAdmin
}

// Admin represents a human operator account.
type Admin struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	PasswordHash     string    `json:"-"` // never serialised
	RefreshTokenHash string    `json:"-"` // never serialised
	CreatedAt        time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminNotFound      = errors.New("admin not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrRefreshMismatch    = errors.New("refresh token not recognised")
)
