// Package store defines the durable persistence contract for drafting
// threads. A thread record is the source of truth for resuming or auditing a
// thread across process restarts.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/inkwell-hq/inkwell/internal/domain"
)

// ThreadStore persists one record per thread, keyed by ThreadId.
//
// Implementations:
// - postgres.Store: production persistence on PostgreSQL
// - memory.Store: in-process map for development and tests
//
// Get and Update return a domain error with code ENOTFOUND for unknown ids;
// callers must treat that as "thread lost / cannot resume".
type ThreadStore interface {
	// Create inserts a new thread record. Returns ECONFLICT if the id
	// already exists.
	Create(ctx context.Context, thread *domain.Thread) error

	// Get returns the thread with the given id.
	Get(ctx context.Context, id uuid.UUID) (*domain.Thread, error)

	// Update applies mutate to the stored thread under a read-modify-write
	// that is atomic at the single-record level: concurrent callers never
	// observe a torn write. If mutate returns an error the record is left
	// unchanged and the error is returned as-is.
	Update(ctx context.Context, id uuid.UUID, mutate func(*domain.Thread) error) (*domain.Thread, error)

	// List returns all threads ordered by creation time, newest first.
	List(ctx context.Context) ([]domain.Thread, error)
}
