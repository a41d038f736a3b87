package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdminRepository defines the interface for admin account persistence.
type AdminRepository interface {
	Create(ctx context.Context, admin *Admin) error
	GetByID(ctx context.Context, id string) (*Admin, error)
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	SetRefreshTokenHash(ctx context.Context, id, tokenHash string) error
	Count(ctx context.Context) (int, error)
}

// SQLiteAdminRepository implements AdminRepository using SQLite.
type SQLiteAdminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new SQLite-backed admin repository.
func NewAdminRepository(db *sql.DB) *SQLiteAdminRepository {
	return &SQLiteAdminRepository{db: db}
}

// Create inserts a new admin account. The ID is generated if empty.
func (r *SQLiteAdminRepository) Create(ctx context.Context, admin *Admin) error {
	if admin.ID == "" {
		admin.ID = "adm-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	admin.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (id, username, password_hash, refresh_token_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		admin.ID, admin.Username, admin.PasswordHash,
		nullString(admin.RefreshTokenHash), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("creating admin: %w", err)
	}

	return nil
}

// GetByID retrieves an admin by their unique ID.
func (r *SQLiteAdminRepository) GetByID(ctx context.Context, id string) (*Admin, error) {
	return r.getAdmin(ctx, "SELECT id, username, password_hash, refresh_token_hash, created_at FROM admins WHERE id = ?", id)
}

// GetByUsername retrieves an admin by their username.
func (r *SQLiteAdminRepository) GetByUsername(ctx context.Context, username string) (*Admin, error) {
	return r.getAdmin(ctx, "SELECT id, username, password_hash, refresh_token_hash, created_at FROM admins WHERE username = ?", username)
}

// SetRefreshTokenHash stores the hash of the most recently issued refresh
// token. An empty hash clears it, invalidating any outstanding refresh token.
func (r *SQLiteAdminRepository) SetRefreshTokenHash(ctx context.Context, id, tokenHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE admins SET refresh_token_hash = ? WHERE id = ?`,
		nullString(tokenHash), id,
	)
	if err != nil {
		return fmt.Errorf("storing refresh token hash: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrAdminNotFound
	}
	return nil
}

// Count returns the total number of admin accounts.
func (r *SQLiteAdminRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admins").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}

// getAdmin executes a query and scans a single admin result.
func (r *SQLiteAdminRepository) getAdmin(ctx context.Context, query string, args ...any) (*Admin, error) {
	var a Admin
	var refreshHash sql.NullString
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Username, &a.PasswordHash, &refreshHash, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("scanning admin: %w", err)
	}

	if refreshHash.Valid {
		a.RefreshTokenHash = refreshHash.String
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &a, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (contains(err.Error(), "UNIQUE constraint failed") ||
		contains(err.Error(), "unique constraint"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
