package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// Create inserts a new device in the pending state.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Authorize issues an API key and flips the authorized flag.
	// Idempotent: an already-authorized device is returned unchanged,
	// its key is never rotated. Returns ErrDeviceNotFound if absent.
	Authorize(ctx context.Context, id string) (*Device, error)

	// Touch records broker-observed liveness: last_seen=now, status=active.
	Touch(ctx context.Context, id string) error

	// SweepInactive marks active devices not seen within the threshold as
	// inactive. Bulk, idempotent, returns the number of devices demoted.
	SweepInactive(ctx context.Context, threshold time.Duration) (int64, error)

	// List returns all devices ordered by creation, excluding excludeID
	// (empty string excludes nothing).
	List(ctx context.Context, excludeID string) ([]Device, error)

	// Stats returns fleet counts, excluding excludeID.
	Stats(ctx context.Context, excludeID string) (*Stats, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "device_id, mac, api_key, description, authorized, status, last_seen, created_at"

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE device_id = ?", id)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// Create inserts a new device in the pending state.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC().Format(time.RFC3339)
	device.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	device.Authorized = false
	device.Status = StatusInactive

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, mac, api_key, description, authorized, status, last_seen, created_at)
		 VALUES (?, ?, NULL, ?, 0, ?, NULL, ?)`,
		device.ID, device.MAC, nullString(device.Description), string(StatusInactive), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("creating device: %w", err)
	}

	return nil
}

// Authorize issues an API key and flips the authorized flag, exactly once.
func (r *SQLiteRepository) Authorize(ctx context.Context, id string) (*Device, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Authorized {
		return d, nil
	}

	apiKey := uuid.NewString()
	_, err = r.db.ExecContext(ctx,
		`UPDATE devices SET api_key = ?, authorized = 1 WHERE device_id = ? AND authorized = 0`,
		apiKey, id,
	)
	if err != nil {
		return nil, fmt.Errorf("authorizing device: %w", err)
	}

	// Re-read so a concurrent authorize can't hand out two different keys
	return r.GetByID(ctx, id)
}

// Touch records broker-observed liveness for a device.
func (r *SQLiteRepository) Touch(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = ?, status = ? WHERE device_id = ?`,
		now, string(StatusActive), id,
	)
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// SweepInactive demotes active devices whose last_seen predates the threshold.
// RFC3339 UTC timestamps compare correctly as text, so the cutoff is applied
// in the database rather than row by row.
func (r *SQLiteRepository) SweepInactive(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-threshold).Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ? WHERE status = ? AND (last_seen IS NULL OR last_seen < ?)`,
		string(StatusInactive), string(StatusActive), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweeping inactive devices: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return rows, nil
}

// List returns all devices ordered by creation date.
func (r *SQLiteRepository) List(ctx context.Context, excludeID string) ([]Device, error) {
	query := "SELECT " + deviceColumns + " FROM devices"
	var args []any
	if excludeID != "" {
		query += " WHERE device_id != ?"
		args = append(args, excludeID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	if devices == nil {
		devices = []Device{}
	}
	return devices, nil
}

// Stats returns fleet counts for the admin dashboard.
func (r *SQLiteRepository) Stats(ctx context.Context, excludeID string) (*Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(authorized), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0)
		FROM devices`
	var args []any
	if excludeID != "" {
		query += " WHERE device_id != ?"
		args = append(args, excludeID)
	}

	var s Stats
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&s.Total, &s.Authorized, &s.Active); err != nil {
		return nil, fmt.Errorf("counting devices: %w", err)
	}
	s.Pending = s.Total - s.Authorized
	s.Inactive = s.Total - s.Active
	return &s, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device from any scanner (Row or Rows).
func scanDevice(s scanner) (*Device, error) {
	var d Device
	var apiKey, description, lastSeen sql.NullString
	var authorized int
	var status, createdAt string

	err := s.Scan(&d.ID, &d.MAC, &apiKey, &description, &authorized,
		&status, &lastSeen, &createdAt)
	if err != nil {
		return nil, err
	}

	d.Authorized = authorized != 0
	d.Status = Status(status)
	if apiKey.Valid {
		d.APIKey = apiKey.String
	}
	if description.Valid {
		d.Description = description.String
	}
	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err == nil {
			d.LastSeen = &t
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &d, nil
}

// Helper functions.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation checks if a SQLite error is a UNIQUE or primary key
// constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
