package suggestion

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a review action targets a
	// suggestion that is already approved or rejected.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TxFunc runs fn as one unit of work. Repositories backed by the same store
// join the unit through ctx; if fn fails nothing it wrote is kept.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type AnalysisRepository interface {
	Create(ctx context.Context, a *Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*Analysis, error)
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*Analysis, int, error)
}

type SuggestionRepository interface {
	// ReplaceForSession atomically swaps the session's suggestion list.
	ReplaceForSession(ctx context.Context, sessionID string, items []*Suggestion) error
	ListBySession(ctx context.Context, sessionID string) ([]*Suggestion, error)
	GetByID(ctx context.Context, id string) (*Suggestion, error)
	// Update writes content and status only while the stored row is still
	// pending or modified, and returns ErrInvalidTransition otherwise.
	Update(ctx context.Context, s *Suggestion) error
	DeleteBySession(ctx context.Context, sessionID string) error
	// Actions
	AddAction(ctx context.Context, a *SuggestionAction) error
	GetActions(ctx context.Context, suggestionID string) ([]*SuggestionAction, error)
}

func reviewable(st Status) bool {
	return st == StatusPending || st == StatusModified
}
