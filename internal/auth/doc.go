// Package auth provides authentication for IoThink Core.
//
// It implements the two principal types the broker bridge distinguishes
// (device and admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - HS256 JWT access tokens carrying the principal type
//   - Long-lived admin refresh tokens, stored server-side as SHA-256 hashes
//   - First-boot admin seeding with a generated one-time password
//
// Device principals never hold passwords: they authenticate with an
// opaque API key issued at approval time, exchanged for a short-lived
// device JWT. Admin principals log in with username/password and receive
// an access/refresh token pair.
package auth
