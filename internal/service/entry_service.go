package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gongzuo-server/internal/domain"
	"gongzuo-server/internal/repository"
)

var (
	// ErrAlreadyEnded is returned when ending an entry that has an end already.
	ErrAlreadyEnded = errors.New("entry already ended")
	// ErrInvalidRange indicates an end timestamp at or before the start.
	ErrInvalidRange = errors.New("end must be after start")
	// ErrInvalidPayload wraps entry payload validation failures.
	ErrInvalidPayload = errors.New("invalid entry payload")
)

// EntryService owns time-entry operations. Overlap is checked on edit and
// end only; creating overlapping entries succeeds. Existing clients rely on
// that asymmetry, so Create must never grow an overlap check.
type EntryService interface {
	Start(ctx context.Context, userID int64, kind domain.ContentKind, label string) (int64, error)
	Create(ctx context.Context, userID int64, p domain.EntryPayload) (int64, error)
	End(ctx context.Context, entryID, userID int64) (time.Time, error)
	Edit(ctx context.Context, entryID, userID int64, p domain.EntryPayload) error
	Delete(ctx context.Context, entryID, userID int64) error
	Get(ctx context.Context, entryID int64) (*domain.Entry, error)
	ListAll(ctx context.Context) ([]domain.Entry, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Entry, error)
	GetActiveAt(ctx context.Context, userID int64, at time.Time) (*domain.Entry, error)
}

type entryService struct {
	entries repository.EntryRepository
}

func NewEntryService(entries repository.EntryRepository) EntryService {
	return &entryService{entries: entries}
}

func (s *entryService) Start(ctx context.Context, userID int64, kind domain.ContentKind, label string) (int64, error) {
	return s.Create(ctx, userID, domain.EntryPayload{
		Kind:      kind,
		Label:     label,
		StartedAt: time.Now(),
	})
}

func (s *entryService) Create(ctx context.Context, userID int64, p domain.EntryPayload) (int64, error) {
	if err := validatePayload(p); err != nil {
		return 0, err
	}
	return s.entries.Create(ctx, userID, p)
}

func (s *entryService) End(ctx context.Context, entryID, userID int64) (time.Time, error) {
	entry, err := s.entries.Get(ctx, entryID)
	if err != nil {
		return time.Time{}, err
	}
	if entry.EndedAt != nil {
		return time.Time{}, ErrAlreadyEnded
	}

	endedAt := time.Now().UTC().Truncate(time.Second)
	err = s.Edit(ctx, entryID, userID, domain.EntryPayload{
		Kind:      entry.Kind,
		Label:     entry.Label,
		StartedAt: entry.StartedAt,
		EndedAt:   &endedAt,
	})
	if err != nil {
		return time.Time{}, err
	}
	return endedAt, nil
}

func (s *entryService) Edit(ctx context.Context, entryID, userID int64, p domain.EntryPayload) error {
	if err := validatePayload(p); err != nil {
		return err
	}
	return s.entries.Update(ctx, entryID, userID, p)
}

func (s *entryService) Delete(ctx context.Context, entryID, userID int64) error {
	return s.entries.Delete(ctx, entryID, userID)
}

func (s *entryService) Get(ctx context.Context, entryID int64) (*domain.Entry, error) {
	return s.entries.Get(ctx, entryID)
}

func (s *entryService) ListAll(ctx context.Context) ([]domain.Entry, error) {
	return s.entries.List(ctx)
}

func (s *entryService) ListForUser(ctx context.Context, userID int64) ([]domain.Entry, error) {
	return s.entries.ListByUser(ctx, userID)
}

func (s *entryService) GetActiveAt(ctx context.Context, userID int64, at time.Time) (*domain.Entry, error) {
	return s.entries.GetActiveAt(ctx, userID, at)
}

func validatePayload(p domain.EntryPayload) error {
	if _, err := domain.ParseContentKind(string(p.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Label == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidPayload)
	}
	if p.StartedAt.IsZero() {
		return fmt.Errorf("%w: start timestamp is required", ErrInvalidPayload)
	}
	if p.EndedAt != nil && !p.EndedAt.After(p.StartedAt) {
		return ErrInvalidRange
	}
	return nil
}
