package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/repository"
)

const createEntriesSchema = `
CREATE TABLE IF NOT EXISTS contents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	label TEXT NOT NULL,
	UNIQUE(kind, label)
);
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	content_id INTEGER NOT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME NULL,
	FOREIGN KEY(user_id) REFERENCES users(id),
	FOREIGN KEY(content_id) REFERENCES contents(id)
);
CREATE INDEX IF NOT EXISTS idx_entries_user_id ON entries(user_id);
`

const entryColumns = `
SELECT entries.id, entries.user_id, entries.content_id, entries.started_at, entries.ended_at, contents.kind, contents.label
FROM entries
JOIN contents ON entries.content_id = contents.id`

type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) repository.EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createEntriesSchema); err != nil {
		return fmt.Errorf("create entries schema: %w", err)
	}
	return nil
}

// querier is the subset of *sql.DB / *sql.Tx the lookup helpers need.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// resolveContent maps (kind, label) to a content id, inserting the row if
// absent. The UNIQUE(kind, label) constraint plus the upsert make the call
// idempotent, so concurrent callers converge on the same id. Runs on the
// caller's transaction so a content insert rolls back with a failed
// dependent entry write.
func resolveContent(ctx context.Context, q querier, kind domain.ContentKind, label string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
INSERT INTO contents (kind, label)
VALUES (?, ?)
ON CONFLICT(kind, label) DO UPDATE SET label = excluded.label
RETURNING id`,
		string(kind),
		label,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolve content: %w", err)
	}
	return id, nil
}

// hasConflict reports whether the candidate start instant lands inside an
// existing interval of the user. The check is one-sided on purpose: it does
// not detect an existing entry starting inside the candidate interval, and
// the candidate end never participates. An absent end is open-ended.
func hasConflict(ctx context.Context, q querier, userID int64, start time.Time, excludeID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
SELECT COUNT(1)
FROM entries
WHERE user_id = ?
  AND id <> ?
  AND started_at <= ?
  AND (ended_at IS NULL OR ended_at > ?)`,
		userID,
		excludeID,
		normalize(start),
		normalize(start),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return n > 0, nil
}

func (r *EntryRepository) HasConflict(ctx context.Context, userID int64, start time.Time, end *time.Time, excludeID int64) (bool, error) {
	_ = end // the one-sided predicate only examines the candidate start
	return hasConflict(ctx, r.db, userID, start, excludeID)
}

func (r *EntryRepository) Create(ctx context.Context, userID int64, p domain.EntryPayload) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	contentID, err := resolveContent(ctx, tx, p.Kind, p.Label)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO entries (user_id, content_id, started_at, ended_at)
VALUES (?, ?, ?, ?)
RETURNING id`,
		userID,
		contentID,
		normalize(p.StartedAt),
		normalizePtr(p.EndedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit entry create: %w", err)
	}
	return id, nil
}

func (r *EntryRepository) Update(ctx context.Context, entryID, userID int64, p domain.EntryPayload) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	conflict, err := hasConflict(ctx, tx, userID, p.StartedAt, entryID)
	if err != nil {
		return err
	}
	if conflict {
		return repository.ErrConflict
	}

	contentID, err := resolveContent(ctx, tx, p.Kind, p.Label)
	if err != nil {
		return err
	}

	var owner int64
	err = tx.QueryRowContext(ctx, `
UPDATE entries
SET content_id = ?, started_at = ?, ended_at = ?
WHERE id = ?
RETURNING user_id`,
		contentID,
		normalize(p.StartedAt),
		normalizePtr(p.EndedAt),
		entryID,
	).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("update entry: %w", err)
	}
	if owner != userID {
		return repository.ErrNotOwner
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry update: %w", err)
	}
	return nil
}

func (r *EntryRepository) Delete(ctx context.Context, entryID, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var owner int64
	err = tx.QueryRowContext(ctx, `
DELETE FROM entries
WHERE id = ?
RETURNING user_id`,
		entryID,
	).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("delete entry: %w", err)
	}
	if owner != userID {
		return repository.ErrNotOwner
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry delete: %w", err)
	}
	return nil
}

func (r *EntryRepository) Get(ctx context.Context, entryID int64) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, entryColumns+`
WHERE entries.id = ?`,
		entryID,
	)
	return scanEntry(row)
}

func (r *EntryRepository) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, entryColumns+`
ORDER BY entries.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return collectEntries(rows)
}

func (r *EntryRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, entryColumns+`
WHERE entries.user_id = ?
ORDER BY entries.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries by user: %w", err)
	}
	return collectEntries(rows)
}

func (r *EntryRepository) GetActiveAt(ctx context.Context, userID int64, at time.Time) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, entryColumns+`
WHERE entries.user_id = ?
  AND entries.started_at <= ?
  AND (entries.ended_at IS NULL OR entries.ended_at > ?)
ORDER BY entries.id ASC
LIMIT 1`,
		userID,
		normalize(at),
		normalize(at),
	)
	return scanEntry(row)
}

func collectEntries(rows *sql.Rows) ([]domain.Entry, error) {
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

func scanEntry(scanner interface {
	Scan(dest ...any) error
}) (*domain.Entry, error) {
	var (
		entry   domain.Entry
		endedAt sql.NullTime
		kind    string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.ContentID,
		&entry.StartedAt,
		&endedAt,
		&kind,
		&entry.Label,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	entry.StartedAt = entry.StartedAt.UTC()
	entry.Kind = domain.ContentKind(kind)
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		entry.EndedAt = &t
	}
	return &entry, nil
}

// Timestamps are stored at second precision in UTC so the textual DATETIME
// encoding compares chronologically inside SQL predicates.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func normalizePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return normalize(*t)
}
