package repository

import (
	"context"
	"time"

	"gongzuo-server/internal/domain"
)

// EntryRepository exposes persistence operations for time entries and the
// contents they reference. Create, Update and Delete each run inside a
// single transaction and return one of the typed rejections in errors.go
// when a business-rule check fails; the transaction is rolled back before
// the rejection is returned.
type EntryRepository interface {
	Init(ctx context.Context) error

	// Create inserts an entry for the user, resolving (kind, label) to a
	// content row inside the same transaction. It performs no overlap check.
	Create(ctx context.Context, userID int64, p domain.EntryPayload) (int64, error)

	// Update rewrites the entry's content, start and end in one step. The
	// candidate interval is checked for overlap (excluding the entry itself)
	// before anything is written; ownership is re-checked on the row the
	// update matched.
	Update(ctx context.Context, entryID, userID int64, p domain.EntryPayload) error

	// Delete removes the entry, re-checking ownership against the deleted
	// row's prior owner.
	Delete(ctx context.Context, entryID, userID int64) error

	Get(ctx context.Context, entryID int64) (*domain.Entry, error)
	List(ctx context.Context) ([]domain.Entry, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Entry, error)

	// GetActiveAt returns the entry active at the given instant, i.e. the
	// one with started_at <= at and an absent or later end. When several
	// rows qualify the lowest id wins.
	GetActiveAt(ctx context.Context, userID int64, at time.Time) (*domain.Entry, error)

	// HasConflict reports whether the candidate interval collides with an
	// existing entry of the user. excludeID is 0 for creation.
	HasConflict(ctx context.Context, userID int64, start time.Time, end *time.Time, excludeID int64) (bool, error)
}
