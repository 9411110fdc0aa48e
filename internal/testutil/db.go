package testutil

import (
	"database/sql"
	"testing"

	"github.com/vrsandeep/seo-batch/internal/assets"
	"github.com/vrsandeep/seo-batch/internal/db"

	_ "github.com/mattn/go-sqlite3" // Blank import for sql driver
)

// SetupTestDB creates an in-memory SQLite database and applies all migrations.
// It returns the database connection, ready for use in tests.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use in-memory database for testing to ensure tests are fast and isolated.
	database, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// Every new connection to :memory: is a fresh, empty database.
	database.SetMaxOpenConns(1)

	// Attach a cleanup function to automatically close the DB when the test completes.
	t.Cleanup(func() {
		database.Close()
	})

	if err := db.RunMigrations(database, assets.MigrationsFS, nil); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}
