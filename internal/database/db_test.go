package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := New(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.NoError(t, db.Conn().Ping())
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())

	// Both tables exist and are queryable
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM instrument_meta").Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM report_runs").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestNew_InMemory(t *testing.T) {
	db, err := New("file:memtest?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
}
