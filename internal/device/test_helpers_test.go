package device

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
)

// testDB creates a temporary SQLite database with the devices schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "device-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrationSQL := `
		CREATE TABLE devices (
			device_id TEXT PRIMARY KEY,
			mac TEXT NOT NULL,
			api_key TEXT,
			description TEXT,
			authorized INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'inactive' CHECK (status IN ('inactive', 'active')),
			last_seen TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE INDEX idx_devices_status ON devices(status);
		CREATE INDEX idx_devices_last_seen ON devices(last_seen);
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying devices migration: %v", err)
	}

	return db
}

// testServiceConfig is the standard lifecycle config used across tests.
func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		JWTSecret:      "test-secret-key-for-jwt-signing-32ch",
		AccessTokenTTL: 60,
		BrokerHost:     "broker.test",
		BrokerPort:     8883,
		TopicPrefix:    "pico",
		SystemUsername: "telegraf",
	}
}

// newTestService wires a Service over a fresh test database.
func newTestService(t *testing.T) (*Service, *SQLiteRepository) {
	t.Helper()
	repo := NewSQLiteRepository(testDB(t))
	return NewService(repo, testServiceConfig(), logging.Default()), repo
}

// seedDevice registers and optionally authorizes a device directly via the
// repository, returning the stored record.
func seedDevice(t *testing.T, repo *SQLiteRepository, id, mac string, authorize bool) *Device {
	t.Helper()

	d := &Device{ID: id, MAC: mac}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("creating device %s: %v", id, err)
	}
	if authorize {
		var err error
		d, err = repo.Authorize(context.Background(), id)
		if err != nil {
			t.Fatalf("authorizing device %s: %v", id, err)
		}
	}
	return d
}
