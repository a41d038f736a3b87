package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAdminRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewAdminRepository(db)

	admin := &Admin{
		Username:     "alice",
		PasswordHash: "$argon2id$fake",
	}

	if err := repo.Create(context.Background(), admin); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(admin.ID, "adm-") {
		t.Errorf("generated ID = %q, want adm- prefix", admin.ID)
	}

	got, err := repo.GetByID(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if got.RefreshTokenHash != "" {
		t.Errorf("RefreshTokenHash = %q, want empty", got.RefreshTokenHash)
	}

	got, err = repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if got.ID != admin.ID {
		t.Errorf("ID = %q, want %q", got.ID, admin.ID)
	}
}

func TestAdminRepository_DuplicateUsername(t *testing.T) {
	db := testDB(t)
	repo := NewAdminRepository(db)

	if err := repo.Create(context.Background(), &Admin{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(context.Background(), &Admin{Username: "alice", PasswordHash: "h"})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("Create() duplicate error = %v, want ErrUsernameExists", err)
	}
}

func TestAdminRepository_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewAdminRepository(db)

	if _, err := repo.GetByID(context.Background(), "adm-missing"); !errors.Is(err, ErrAdminNotFound) {
		t.Errorf("GetByID() error = %v, want ErrAdminNotFound", err)
	}

	if _, err := repo.GetByUsername(context.Background(), "nobody"); !errors.Is(err, ErrAdminNotFound) {
		t.Errorf("GetByUsername() error = %v, want ErrAdminNotFound", err)
	}
}

func TestAdminRepository_SetRefreshTokenHash(t *testing.T) {
	db := testDB(t)
	repo := NewAdminRepository(db)
	admin := seedTestAdmin(t, db, "alice")

	hash := HashToken("raw-refresh-token")
	if err := repo.SetRefreshTokenHash(context.Background(), admin.ID, hash); err != nil {
		t.Fatalf("SetRefreshTokenHash() error = %v", err)
	}

	got, err := repo.GetByID(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.RefreshTokenHash != hash {
		t.Errorf("RefreshTokenHash = %q, want %q", got.RefreshTokenHash, hash)
	}

	// Clearing invalidates the stored token
	if err := repo.SetRefreshTokenHash(context.Background(), admin.ID, ""); err != nil {
		t.Fatalf("SetRefreshTokenHash() clear error = %v", err)
	}
	got, _ = repo.GetByID(context.Background(), admin.ID)
	if got.RefreshTokenHash != "" {
		t.Errorf("RefreshTokenHash = %q, want empty after clear", got.RefreshTokenHash)
	}

	// Unknown admin
	err = repo.SetRefreshTokenHash(context.Background(), "adm-missing", hash)
	if !errors.Is(err, ErrAdminNotFound) {
		t.Errorf("SetRefreshTokenHash() error = %v, want ErrAdminNotFound", err)
	}
}

func TestAdminRepository_Count(t *testing.T) {
	db := testDB(t)
	repo := NewAdminRepository(db)

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	seedTestAdmin(t, db, "alice")
	seedTestAdmin(t, db, "bob")

	count, err = repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}
