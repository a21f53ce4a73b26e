package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/repository"
)

func newTestEntryService(t *testing.T) (EntryService, repository.UserRepository) {
	t.Helper()
	users, entries := newTestRepos(t)
	return NewEntryService(entries), users
}

func seedUser(t *testing.T, users repository.UserRepository, username string) int64 {
	t.Helper()
	id, err := users.Create(context.Background(), &domain.User{
		Username:     username,
		PasswordHash: "hash",
		Salt:         "salt",
	})
	require.NoError(t, err)
	return id
}

func hourAt(hour int) time.Time {
	return time.Date(2024, time.March, 5, hour, 0, 0, 0, time.UTC)
}

func TestStartOpensAnEntry(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	userID := seedUser(t, users, "alice")

	id, err := svc.Start(ctx, userID, domain.KindWork, "writing")
	require.NoError(t, err)

	entry, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, userID, entry.UserID)
	assert.Equal(t, domain.KindWork, entry.Kind)
	assert.Equal(t, "writing", entry.Label)
	assert.Nil(t, entry.EndedAt)
	assert.False(t, entry.StartedAt.IsZero())
}

func TestCreateValidatesPayload(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	userID := seedUser(t, users, "alice")
	start := hourAt(9)

	tests := []struct {
		name    string
		payload domain.EntryPayload
		want    error
	}{
		{
			name:    "unknown kind",
			payload: domain.EntryPayload{Kind: "nap", Label: "x", StartedAt: start},
			want:    ErrInvalidPayload,
		},
		{
			name:    "empty label",
			payload: domain.EntryPayload{Kind: domain.KindWork, Label: "", StartedAt: start},
			want:    ErrInvalidPayload,
		},
		{
			name:    "missing start",
			payload: domain.EntryPayload{Kind: domain.KindWork, Label: "x"},
			want:    ErrInvalidPayload,
		},
		{
			name: "end equals start",
			payload: domain.EntryPayload{
				Kind: domain.KindWork, Label: "x", StartedAt: start, EndedAt: &start,
			},
			want: ErrInvalidRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, userID, tt.payload)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEndClosesAnOpenEntry(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	userID := seedUser(t, users, "alice")

	id, err := svc.Create(ctx, userID, domain.EntryPayload{
		Kind:      domain.KindWork,
		Label:     "writing",
		StartedAt: hourAt(9),
	})
	require.NoError(t, err)

	endedAt, err := svc.End(ctx, id, userID)
	require.NoError(t, err)
	assert.True(t, endedAt.After(hourAt(9)))

	entry, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry.EndedAt)
	assert.Equal(t, endedAt, *entry.EndedAt)

	_, err = svc.End(ctx, id, userID)
	require.ErrorIs(t, err, ErrAlreadyEnded)
}

func TestEndUnknownEntry(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	seedUser(t, users, "alice")

	_, err := svc.End(ctx, 999, 1)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEndRequiresOwnership(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	id, err := svc.Create(ctx, alice, domain.EntryPayload{
		Kind:      domain.KindWork,
		Label:     "writing",
		StartedAt: hourAt(9),
	})
	require.NoError(t, err)

	_, err = svc.End(ctx, id, bob)
	require.ErrorIs(t, err, repository.ErrNotOwner)

	entry, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, entry.EndedAt)
}

func TestEditRejectsOverlap(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	userID := seedUser(t, users, "alice")

	nine, eleven, noon, one := hourAt(9), hourAt(11), hourAt(12), hourAt(13)
	_, err := svc.Create(ctx, userID, domain.EntryPayload{
		Kind: domain.KindWork, Label: "writing", StartedAt: nine, EndedAt: &eleven,
	})
	require.NoError(t, err)
	later, err := svc.Create(ctx, userID, domain.EntryPayload{
		Kind: domain.KindNotWork, Label: "lunch", StartedAt: noon, EndedAt: &one,
	})
	require.NoError(t, err)

	err = svc.Edit(ctx, later, userID, domain.EntryPayload{
		Kind: domain.KindNotWork, Label: "lunch", StartedAt: hourAt(10), EndedAt: &one,
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	// the rejected edit leaves the row untouched
	entry, err := svc.Get(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, noon, entry.StartedAt)
}

func TestEditRewritesEntry(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	userID := seedUser(t, users, "alice")

	id, err := svc.Create(ctx, userID, domain.EntryPayload{
		Kind:      domain.KindWork,
		Label:     "writing",
		StartedAt: hourAt(9),
	})
	require.NoError(t, err)

	ten := hourAt(10)
	require.NoError(t, svc.Edit(ctx, id, userID, domain.EntryPayload{
		Kind: domain.KindNotWork, Label: "reading", StartedAt: hourAt(8), EndedAt: &ten,
	}))

	entry, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.KindNotWork, entry.Kind)
	assert.Equal(t, "reading", entry.Label)
	assert.Equal(t, hourAt(8), entry.StartedAt)
	require.NotNil(t, entry.EndedAt)
	assert.Equal(t, ten, *entry.EndedAt)
}

func TestDeleteRequiresOwnership(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	id, err := svc.Create(ctx, alice, domain.EntryPayload{
		Kind: domain.KindWork, Label: "writing", StartedAt: hourAt(9),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, id, bob), repository.ErrNotOwner)
	require.NoError(t, svc.Delete(ctx, id, alice))

	_, err = svc.Get(ctx, id)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListForUserAndActive(t *testing.T) {
	svc, users := newTestEntryService(t)
	ctx := context.Background()
	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")

	_, err := svc.Create(ctx, alice, domain.EntryPayload{
		Kind: domain.KindWork, Label: "writing", StartedAt: hourAt(9),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, domain.EntryPayload{
		Kind: domain.KindWork, Label: "review", StartedAt: hourAt(9),
	})
	require.NoError(t, err)

	mine, err := svc.ListForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "writing", mine[0].Label)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := svc.GetActiveAt(ctx, alice, hourAt(10))
	require.NoError(t, err)
	assert.Equal(t, "writing", active.Label)

	_, err = svc.GetActiveAt(ctx, alice, hourAt(8))
	require.ErrorIs(t, err, repository.ErrNotFound)
}
