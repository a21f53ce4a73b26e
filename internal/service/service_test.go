package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gongzuo-server/internal/repository"
	"gongzuo-server/internal/repository/sqlite"
)

func newTestRepos(t *testing.T) (repository.UserRepository, repository.EntryRepository) {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	entries := sqlite.NewEntryRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, entries.Init(ctx))
	return users, entries
}
