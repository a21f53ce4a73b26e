package domain

import (
	"fmt"
	"time"
)

type ContentKind string

const (
	KindWork    ContentKind = "work"
	KindNotWork ContentKind = "not_work"
)

// ParseContentKind validates a kind string received at the boundary.
func ParseContentKind(s string) (ContentKind, error) {
	switch ContentKind(s) {
	case KindWork, KindNotWork:
		return ContentKind(s), nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// Content is a deduplicated (kind, label) pair referenced by entries.
// Rows are immutable once created and are never deleted.
type Content struct {
	ID    int64
	Kind  ContentKind
	Label string
}

// Entry is a tracked interval of user activity. EndedAt is nil while the
// entry is still in progress; such an interval is open-ended for overlap
// purposes. Kind and Label are denormalized from the entry's Content.
type Entry struct {
	ID        int64
	UserID    int64
	ContentID int64
	StartedAt time.Time
	EndedAt   *time.Time
	Kind      ContentKind
	Label     string
}

// EntryPayload carries the mutable fields of an entry for create and edit.
type EntryPayload struct {
	Kind      ContentKind
	Label     string
	StartedAt time.Time
	EndedAt   *time.Time
}
