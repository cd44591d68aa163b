package suggestion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =========== In-memory unit of work ===========

type memoryTxKey struct{}

// memoryTx collects undo steps for the writes made inside RunMemoryTx.
type memoryTx struct {
	mu   sync.Mutex
	undo []func()
}

// RunMemoryTx is the TxFunc of the in-memory store. Writes made by the
// memory repositories inside fn are undone in reverse order when fn fails.
// A nested call joins the outer unit.
func RunMemoryTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		return fn(ctx)
	}
	tx := &memoryTx{}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		tx.mu.Lock()
		defer tx.mu.Unlock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func onRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		tx.mu.Lock()
		tx.undo = append(tx.undo, undo)
		tx.mu.Unlock()
	}
}

// =========== In-memory Analysis Repository ===========

type analysisRepoMemory struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*Analysis
}

func NewAnalysisRepoMemory() AnalysisRepository {
	return &analysisRepoMemory{data: make(map[uuid.UUID]*Analysis)}
}

func (r *analysisRepoMemory) Create(ctx context.Context, a *Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	r.data[a.ID] = &cp

	id := a.ID
	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.data, id)
		r.mu.Unlock()
	})
	return nil
}

func (r *analysisRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *analysisRepoMemory) ListBySession(_ context.Context, sessionID string, limit, offset int) ([]*Analysis, int, error) {
	r.mu.RLock()
	var all []*Analysis
	for _, a := range r.data {
		if a.SessionID == sessionID {
			cp := *a
			all = append(all, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	total := len(all)
	if offset >= total {
		return []*Analysis{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// =========== In-memory Suggestion Repository ===========

type suggestionRepoMemory struct {
	mu       sync.RWMutex
	sessions map[string][]string
	data     map[string]*Suggestion
	actions  map[string][]*SuggestionAction
}

func NewSuggestionRepoMemory() SuggestionRepository {
	return &suggestionRepoMemory{
		sessions: make(map[string][]string),
		data:     make(map[string]*Suggestion),
		actions:  make(map[string][]*SuggestionAction),
	}
}

func (r *suggestionRepoMemory) ReplaceForSession(ctx context.Context, sessionID string, items []*Suggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prevIDs := r.sessions[sessionID]
	prevData := make(map[string]*Suggestion, len(prevIDs))
	prevActions := make(map[string][]*SuggestionAction, len(prevIDs))
	for _, id := range prevIDs {
		prevData[id] = r.data[id]
		prevActions[id] = r.actions[id]
	}
	r.dropSession(sessionID)
	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.dropSession(sessionID)
		if len(prevIDs) == 0 {
			return
		}
		r.sessions[sessionID] = prevIDs
		for id, s := range prevData {
			r.data[id] = s
			if acts := prevActions[id]; len(acts) > 0 {
				r.actions[id] = acts
			}
		}
	})

	now := time.Now().UTC()
	ids := make([]string, 0, len(items))
	for _, s := range items {
		s.SessionID = sessionID
		s.CreatedAt = now
		s.UpdatedAt = now
		cp := *s
		r.data[s.ID] = &cp
		ids = append(ids, s.ID)
	}
	r.sessions[sessionID] = ids
	return nil
}

func (r *suggestionRepoMemory) ListBySession(_ context.Context, sessionID string) ([]*Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Suggestion, 0, len(r.sessions[sessionID]))
	for _, id := range r.sessions[sessionID] {
		cp := *r.data[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *suggestionRepoMemory) GetByID(_ context.Context, id string) (*Suggestion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *suggestionRepoMemory) Update(ctx context.Context, s *Suggestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[s.ID]
	if !ok {
		return ErrNotFound
	}
	if !reviewable(current.Status) {
		return ErrInvalidTransition
	}
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	r.data[s.ID] = &cp

	onRollback(ctx, func() {
		r.mu.Lock()
		if r.data[current.ID] == &cp {
			r.data[current.ID] = current
		}
		r.mu.Unlock()
	})
	return nil
}

func (r *suggestionRepoMemory) DeleteBySession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropSession(sessionID)
	return nil
}

// dropSession must be called with mu held.
func (r *suggestionRepoMemory) dropSession(sessionID string) {
	for _, id := range r.sessions[sessionID] {
		delete(r.data, id)
		delete(r.actions, id)
	}
	delete(r.sessions, sessionID)
}

func (r *suggestionRepoMemory) AddAction(ctx context.Context, a *SuggestionAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[a.SuggestionID]; !ok {
		return ErrNotFound
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.actions[a.SuggestionID] = append(r.actions[a.SuggestionID], &cp)

	onRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.actions[cp.SuggestionID]
		for i, x := range list {
			if x == &cp {
				r.actions[cp.SuggestionID] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *suggestionRepoMemory) GetActions(_ context.Context, suggestionID string) ([]*SuggestionAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SuggestionAction, 0, len(r.actions[suggestionID]))
	for _, a := range r.actions[suggestionID] {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}
