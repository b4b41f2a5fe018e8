package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/db"
	"gorm.io/gorm"
)

func integrationDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	return dsn
}

func openIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(integrationDSN(t), "silent")
	if err != nil {
		t.Fatalf("failed to connect db: %v", err)
	}
	if err := db.Migrate(context.Background(), gdb); err != nil {
		t.Fatalf("failed schema setup: %v", err)
	}
	return gdb
}

func openIntegrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := db.NewPool(context.Background(), integrationDSN(t))
	if err != nil {
		t.Fatalf("failed to connect pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// seedUser inserts a manager and removes it, with everything it owns, when
// the test ends.
func seedUser(t *testing.T, gdb *gorm.DB) string {
	t.Helper()

	id := uuid.NewString()
	if err := gdb.Exec("INSERT INTO users (id, name, email) VALUES (?, ?, ?)", id, "Manager", id+"@example.com").Error; err != nil {
		t.Fatalf("insert user failed: %v", err)
	}
	t.Cleanup(func() {
		_ = gdb.Exec("DELETE FROM users WHERE id = ?", id).Error
	})
	return id
}
