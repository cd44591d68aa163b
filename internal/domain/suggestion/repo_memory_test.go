package suggestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSuggestionRepoMemory_ReplaceForSession(t *testing.T) {
	ctx := context.Background()
	repo := NewSuggestionRepoMemory()

	first := []*Suggestion{{ID: "a", Position: 0}, {ID: "b", Position: 1}}
	if err := repo.ReplaceForSession(ctx, "s1", first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0].SessionID != "s1" || first[0].CreatedAt.IsZero() {
		t.Errorf("expected session and timestamps to be set, got %+v", first[0])
	}
	if err := repo.AddAction(ctx, &SuggestionAction{SuggestionID: "a", Action: ActionApprove}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := repo.ReplaceForSession(ctx, "s1", []*Suggestion{{ID: "c"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := repo.ListBySession(ctx, "s1")
	if len(items) != 1 || items[0].ID != "c" {
		t.Fatalf("expected only the replacement suggestion, got %+v", items)
	}
	if _, err := repo.GetByID(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected replaced suggestion to be gone, got %v", err)
	}
	actions, _ := repo.GetActions(ctx, "a")
	if len(actions) != 0 {
		t.Errorf("expected actions of replaced suggestion to be gone, got %d", len(actions))
	}
}

func TestSuggestionRepoMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewSuggestionRepoMemory()
	_ = repo.ReplaceForSession(ctx, "s1", []*Suggestion{{ID: "a", Content: "original"}})

	got, _ := repo.GetByID(ctx, "a")
	got.Content = "changed"

	again, _ := repo.GetByID(ctx, "a")
	if again.Content != "original" {
		t.Errorf("expected stored suggestion to be unaffected, got %q", again.Content)
	}
}

func TestSuggestionRepoMemory_UpdateAndActions(t *testing.T) {
	ctx := context.Background()
	repo := NewSuggestionRepoMemory()
	_ = repo.ReplaceForSession(ctx, "s1", []*Suggestion{{ID: "a", Status: StatusPending}})

	if err := repo.Update(ctx, &Suggestion{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.AddAction(ctx, &SuggestionAction{SuggestionID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	s, _ := repo.GetByID(ctx, "a")
	s.Status = StatusApproved
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := repo.GetByID(ctx, "a")
	if got.Status != StatusApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}
	got.Status = StatusRejected
	if err := repo.Update(ctx, got); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition updating an approved row, got %v", err)
	}

	a := &SuggestionAction{SuggestionID: "a", Action: ActionApprove}
	if err := repo.AddAction(ctx, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("expected action id to be assigned")
	}
	actions, _ := repo.GetActions(ctx, "a")
	if len(actions) != 1 || actions[0].Action != ActionApprove {
		t.Errorf("expected one approve action, got %+v", actions)
	}

	if err := repo.DeleteBySession(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, _ := repo.ListBySession(ctx, "s1")
	if len(items) != 0 {
		t.Errorf("expected empty session after delete, got %d", len(items))
	}
}

func TestAnalysisRepoMemory_ListBySession(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepoMemory()
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		a := &Analysis{SessionID: "s1", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	_ = repo.Create(ctx, &Analysis{SessionID: "other"})

	items, total, err := repo.ListBySession(ctx, "s1", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if !items[0].CreatedAt.After(items[1].CreatedAt) {
		t.Error("expected newest first")
	}

	items, _, _ = repo.ListBySession(ctx, "s1", 2, 5)
	if len(items) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(items))
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisRepoMemory_ListBySession_TiedTimestamps(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepoMemory()
	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &Analysis{SessionID: "s1", CreatedAt: at}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	seen := make(map[uuid.UUID]bool)
	for offset := 0; offset < 5; offset++ {
		page, _, err := repo.ListBySession(ctx, "s1", 1, offset)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page) != 1 {
			t.Fatalf("expected one item at offset %d, got %d", offset, len(page))
		}
		if seen[page[0].ID] {
			t.Errorf("analysis %s returned twice", page[0].ID)
		}
		seen[page[0].ID] = true
	}
}

func TestRunMemoryTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	analyses := NewAnalysisRepoMemory()
	suggestions := NewSuggestionRepoMemory()
	_ = suggestions.ReplaceForSession(ctx, "s1", []*Suggestion{{ID: "old", Status: StatusPending}})
	_ = suggestions.AddAction(ctx, &SuggestionAction{SuggestionID: "old", Action: ActionModify})

	boom := errors.New("boom")
	err := RunMemoryTx(ctx, func(ctx context.Context) error {
		if err := analyses.Create(ctx, &Analysis{SessionID: "s1"}); err != nil {
			return err
		}
		if err := suggestions.ReplaceForSession(ctx, "s1", []*Suggestion{{ID: "new", Status: StatusPending}}); err != nil {
			return err
		}
		if err := suggestions.Update(ctx, &Suggestion{ID: "new", Status: StatusApproved}); err != nil {
			return err
		}
		if err := suggestions.AddAction(ctx, &SuggestionAction{SuggestionID: "new", Action: ActionApprove}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, total, _ := analyses.ListBySession(ctx, "s1", 10, 0); total != 0 {
		t.Errorf("expected analysis to be rolled back, got %d", total)
	}
	items, _ := suggestions.ListBySession(ctx, "s1")
	if len(items) != 1 || items[0].ID != "old" {
		t.Fatalf("expected previous list restored, got %+v", items)
	}
	if _, err := suggestions.GetByID(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected new suggestion to be gone, got %v", err)
	}
	actions, _ := suggestions.GetActions(ctx, "old")
	if len(actions) != 1 {
		t.Errorf("expected previous actions restored, got %d", len(actions))
	}
}

func TestRunMemoryTx_CommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	analyses := NewAnalysisRepoMemory()
	err := RunMemoryTx(ctx, func(ctx context.Context) error {
		return RunMemoryTx(ctx, func(ctx context.Context) error {
			return analyses.Create(ctx, &Analysis{SessionID: "s1"})
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, total, _ := analyses.ListBySession(ctx, "s1", 10, 0); total != 1 {
		t.Errorf("expected committed analysis, got %d", total)
	}
}
