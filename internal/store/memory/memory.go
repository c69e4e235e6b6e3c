// Package memory provides an in-process ThreadStore backed by a map.
// It is used in tests and when the server runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-hq/inkwell/internal/domain"
	"github.com/inkwell-hq/inkwell/internal/store"
)

// Store is a mutex-guarded map of thread records.
type Store struct {
	mu      sync.Mutex
	threads map[uuid.UUID]domain.Thread
}

// New creates an empty in-memory thread store.
func New() *Store {
	return &Store{
		threads: make(map[uuid.UUID]domain.Thread),
	}
}

// Create inserts a new thread record.
func (s *Store) Create(ctx context.Context, thread *domain.Thread) error {
	const op = "store.create"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.threads[thread.ID]; exists {
		return domain.Conflict(op, "thread already exists: "+thread.ID.String())
	}

	s.threads[thread.ID] = cloneThread(thread)
	return nil
}

// Get returns the thread with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Thread, error) {
	const op = "store.get"

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, domain.NotFound(op, "thread", id.String())
	}

	out := cloneThread(&t)
	return &out, nil
}

// Update applies mutate under the store lock so that concurrent callers
// never observe a partially mutated record.
func (s *Store) Update(ctx context.Context, id uuid.UUID, mutate func(*domain.Thread) error) (*domain.Thread, error) {
	const op = "store.update"

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, domain.NotFound(op, "thread", id.String())
	}

	// Mutate a copy; only commit it back if the mutator succeeds.
	working := cloneThread(&t)
	if err := mutate(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()

	s.threads[id] = cloneThread(&working)
	return &working, nil
}

// List returns all threads, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Thread, 0, len(s.threads))
	for _, t := range s.threads {
		out = append(out, cloneThread(&t))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

// cloneThread deep-copies a thread so callers can't mutate stored state
// behind the lock.
func cloneThread(t *domain.Thread) domain.Thread {
	out := *t

	out.Brief.Recipients = append([]string(nil), t.Brief.Recipients...)

	if t.Context != nil {
		ctx := *t.Context
		ctx.ConstraintRules = append([]string(nil), t.Context.ConstraintRules...)
		out.Context = &ctx
	}
	if t.Draft != nil {
		draft := *t.Draft
		out.Draft = &draft
	}
	if t.FinalEmail != nil {
		final := *t.FinalEmail
		final.Recipients = append([]string(nil), t.FinalEmail.Recipients...)
		out.FinalEmail = &final
	}

	return out
}

// Compile-time interface check
var _ store.ThreadStore = (*Store)(nil)
