package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims extends JWT standard claims with the IoThink principal type.
// The subject is a device ID for device tokens and an admin ID for
// admin tokens; the broker bridge trusts the type field to tell them apart.
type Claims struct {
	jwt.RegisteredClaims
	Type PrincipalType `json:"type"`
}

// GenerateAccessToken creates a signed JWT access token for a principal.
// Access tokens are short-lived (configured TTL) and validated by signature only (no DB hit).
func GenerateAccessToken(subject string, principalType PrincipalType, secret string, ttlMinutes int) (string, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = 60 //nolint:mnd // default 60-minute access token TTL
	}
	return generateToken(subject, principalType, secret, ttlMinutes)
}

// GenerateRefreshToken creates a signed long-lived JWT refresh token for an
// admin. The raw token is returned to the client; its SHA-256 hash is stored
// on the admin row so a refresh can be checked against the issued token.
func GenerateRefreshToken(adminID, secret string, ttlMinutes int) (string, error) {
	if ttlMinutes <= 0 {
		ttlMinutes = 7 * 24 * 60 //nolint:mnd // default 7-day refresh token TTL
	}
	return generateToken(adminID, TypeAdmin, secret, ttlMinutes)
}

func generateToken(subject string, principalType PrincipalType, secret string, ttlMinutes int) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
		Type: principalType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates and parses a JWT, returning the claims.
// It checks the signature, expiry, and required fields.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	if !IsValidPrincipalType(claims.Type) {
		return nil, fmt.Errorf("%w: unknown principal type %q", ErrTokenInvalid, claims.Type)
	}

	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a raw token for storage.
// Stored hashes let a leaked database reveal nothing usable for refresh.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
