package storage

import (
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedMigrationCount is the number of migrations we expect to have
// Update this when adding new migrations
// Note: goose adds a version 0 entry when initializing, so total count is migrations + 1
const expectedMigrationCount = 1
const gooseVersionCount = expectedMigrationCount + 1 // includes goose's version 0 entry

func TestMigrations_FreshDatabase(t *testing.T) {
	tmpDB := createTempDB(t)

	// Creating storage runs migrations
	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE is_applied = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, gooseVersionCount, count, "Should have %d version entries (including goose init)", gooseVersionCount)
}

func TestMigrations_Idempotency(t *testing.T) {
	tmpDB := createTempDB(t)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	store.Close()

	// Opening again must not re-apply anything
	store, err = NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE is_applied = 1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, gooseVersionCount, count)
}

func TestMigrations_CreatesExpectedTables(t *testing.T) {
	tmpDB := createTempDB(t)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	tables := []string{
		"bank_movements",
		"invoices",
		"reconciliation_records",
		"reconciliation_links",
	}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrations_ForeignKeysEnforced(t *testing.T) {
	tmpDB := createTempDB(t)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	// A link to a record that does not exist must be rejected
	_, err = store.db.Exec(
		"INSERT INTO reconciliation_links (record_id, movement_id) VALUES ('missing', 'also-missing')")
	assert.Error(t, err)
}

func createTempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}
