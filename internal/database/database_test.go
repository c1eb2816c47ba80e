package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SQLiteFileCreatesDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "mirror.db")

	db, err := New(context.Background(), dsn)
	require.NoError(t, err)
	defer db.Close()

	assert.Nil(t, db.Pool)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNew_SQLiteMemory(t *testing.T) {
	db, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost:5432/db"))
	assert.True(t, isPostgres("postgresql://localhost/db"))
	assert.False(t, isPostgres("./storage/mirror.db"))
}
