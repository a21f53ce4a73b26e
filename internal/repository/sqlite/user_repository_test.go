package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/repository"
)

func TestUserCreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &domain.User{
		Username:     "alice",
		PasswordHash: "hash",
		Salt:         "salt",
		IsAdmin:      true,
	}
	id, err := repo.Create(ctx, user)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.False(t, user.CreatedAt.IsZero())

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)
	assert.True(t, byName.IsAdmin)
	assert.Nil(t, byName.SessionToken)

	byID, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h", Salt: "s"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "h2", Salt: "s2"})
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserGetUnknown(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetBySessionToken(ctx, "no-such-token")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionTokenLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	require.NoError(t, repo.SetSessionToken(ctx, user.ID, "token-1"))

	resolved, err := repo.GetBySessionToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
	require.NotNil(t, resolved.SessionToken)
	assert.Equal(t, "token-1", *resolved.SessionToken)

	// tokens are single-valued: a new token replaces the old one
	require.NoError(t, repo.SetSessionToken(ctx, user.ID, "token-2"))
	_, err = repo.GetBySessionToken(ctx, "token-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.ClearSessionToken(ctx, user.ID))
	_, err = repo.GetBySessionToken(ctx, "token-2")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.ErrorIs(t, repo.SetSessionToken(ctx, 999, "token-3"), repository.ErrNotFound)
}

func TestUserList(t *testing.T) {
	db := openTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}
