// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/oliverandrich/votany/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, dsn, name string) bool {
	t.Helper()

	db, err := database.Open(dsn)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE name = ?", name)
	require.NoError(t, err)
	return count == 1
}

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)

	require.NoError(t, db.Close())
}

func TestOpen_DefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	_ = os.Chdir(tmpDir)
	defer func() {
		_ = os.Chdir(oldWd)
	}()

	db, err := database.Open("")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	_, err = os.Stat(filepath.Join(tmpDir, "data", "votany.db"))
	assert.NoError(t, err)
}

func TestOpen_MigrationsApplied(t *testing.T) {
	for _, name := range []string{"users", "reset_tokens", "polls", "polls_fts"} {
		assert.True(t, tableExists(t, ":memory:", name), "table %s should exist", name)
	}
}

func TestOpen_ForeignKeysAndBusyTimeout(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var fk int
	require.NoError(t, db.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)

	var timeout int
	require.NoError(t, db.Get(&timeout, "PRAGMA busy_timeout"))
	assert.Equal(t, 5000, timeout)
}

func TestOpen_FileDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "test.db")

	assert.True(t, tableExists(t, dbPath, "polls"))
}

func TestOpen_ModeMemory(t *testing.T) {
	db, err := database.Open("file::memory:?mode=memory")

	require.NoError(t, err)
	require.NotNil(t, db)

	_ = db.Close()
}

func TestFullTextTriggers(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	_, err = db.Exec(`INSERT INTO polls (id, author, issue, keywords, post_date, choices)
		VALUES ('p1', 'alice123', 'Best pizza topping?', 'food pizza', 0, '[]')`)
	require.NoError(t, err)

	var ids []string
	require.NoError(t, db.Select(&ids,
		`SELECT p.id FROM polls p JOIN polls_fts ON polls_fts.rowid = p.seq WHERE polls_fts MATCH 'pizza'`))
	assert.Equal(t, []string{"p1"}, ids)

	_, err = db.Exec(`UPDATE polls SET keywords = 'food' , issue = 'Best topping?' WHERE id = 'p1'`)
	require.NoError(t, err)

	ids = nil
	require.NoError(t, db.Select(&ids,
		`SELECT p.id FROM polls p JOIN polls_fts ON polls_fts.rowid = p.seq WHERE polls_fts MATCH 'pizza'`))
	assert.Empty(t, ids)

	_, err = db.Exec(`DELETE FROM polls WHERE id = 'p1'`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Get(&count, `SELECT count(*) FROM polls_fts WHERE polls_fts MATCH 'food'`))
	assert.Zero(t, count)
}

func TestMigrateResetAndUp(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	version, err := database.Version(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	require.NoError(t, database.MigrateDown(db.DB))
	version, err = database.Version(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	require.NoError(t, database.MigrateReset(db.DB))
	require.NoError(t, database.RunMigrations(db.DB))

	version, err = database.Version(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)
}

func TestOpenRaw_SkipsMigrations(t *testing.T) {
	db, err := database.OpenRaw(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var count int64
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE name = 'users'"))
	assert.Zero(t, count)

	require.NoError(t, database.RunMigrations(db.DB))
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE name = 'users'"))
	assert.Equal(t, int64(1), count)
}
