package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/seo-batch/internal/assets"
	"github.com/vrsandeep/seo-batch/internal/db"
	"github.com/vrsandeep/seo-batch/internal/testutil"
)

func TestForeignKeyCascadeDelete(t *testing.T) {
	database := testutil.SetupTestDB(t)

	var foreignKeysEnabled int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysEnabled))
	assert.Equal(t, 1, foreignKeysEnabled)

	_, err := database.Exec(`INSERT INTO batch_runs (id, started_at) VALUES ('r1', ?)`, time.Now().UTC())
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO batch_items (run_id, position, url, topic, language, query_text) VALUES ('r1', 0, 'https://a.com', 'a', 'en', 'q')`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO batch_outcomes (run_id, position, url, succeeded) VALUES ('r1', 0, 'https://a.com', 1)`)
	require.NoError(t, err)

	_, err = database.Exec("DELETE FROM batch_runs WHERE id = 'r1'")
	require.NoError(t, err)

	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM batch_items WHERE run_id = 'r1'").Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM batch_outcomes WHERE run_id = 'r1'").Scan(&count))
	assert.Zero(t, count)
}

func TestInitDB_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	database, err := db.InitDB(path)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, db.RunMigrations(database, assets.MigrationsFS, nil))
	// Running twice is a no-op.
	require.NoError(t, db.RunMigrations(database, assets.MigrationsFS, nil))

	var foreignKeysEnabled int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysEnabled))
	assert.Equal(t, 1, foreignKeysEnabled)
}
