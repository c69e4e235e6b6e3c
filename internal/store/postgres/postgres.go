// Package postgres implements the ThreadStore interface on PostgreSQL.
//
// Thread records are stored one row per thread. Recipients, the generated
// context, and the final email snapshot are serialized as JSONB so the row
// is always written and read as a whole; Update runs inside a transaction
// with a row lock so a crash mid-transition never leaves a record with
// inconsistent cross-field state.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-hq/inkwell/internal/domain"
	"github.com/inkwell-hq/inkwell/internal/store"
)

// Store persists threads in a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// New creates a thread store on top of an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// =============================================================================
// Row mapping
// =============================================================================

// contextRecord is the JSONB shape of a stored generation context.
type contextRecord struct {
	RephrasedPurpose  string   `json:"rephrased_purpose"`
	SubjectSuggestion string   `json:"subject_suggestion"`
	ConstraintRules   []string `json:"constraint_rules"`
	Raw               string   `json:"raw"`
}

// finalEmailRecord is the JSONB shape of a stored final email snapshot.
type finalEmailRecord struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

const threadColumns = `id, recipients, purpose, tone, constraints, context,
	subject, draft_body, revision, final_email, status, last_error,
	created_at, updated_at`

// scanThread reads one thread row.
func scanThread(row interface{ Scan(...any) error }) (*domain.Thread, error) {
	var (
		t             domain.Thread
		recipientsRaw []byte
		contextRaw    []byte
		finalRaw      []byte
		subject       sql.NullString
		draftBody     sql.NullString
		revision      sql.NullInt32
		lastError     sql.NullString
		tone          string
		status        string
	)

	err := row.Scan(
		&t.ID, &recipientsRaw, &t.Brief.Purpose, &tone, &t.Brief.Constraints,
		&contextRaw, &subject, &draftBody, &revision, &finalRaw,
		&status, &lastError, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Brief.Tone = domain.Tone(tone)
	t.Status = domain.ThreadStatus(status)
	t.LastError = lastError.String

	if err := json.Unmarshal(recipientsRaw, &t.Brief.Recipients); err != nil {
		return nil, err
	}

	if len(contextRaw) > 0 {
		var rec contextRecord
		if err := json.Unmarshal(contextRaw, &rec); err != nil {
			return nil, err
		}
		t.Context = &domain.GenerationContext{
			RephrasedPurpose:  rec.RephrasedPurpose,
			SubjectSuggestion: rec.SubjectSuggestion,
			ConstraintRules:   rec.ConstraintRules,
			Raw:               rec.Raw,
		}
	}

	if draftBody.Valid {
		t.Draft = &domain.Draft{
			Subject:  subject.String,
			Body:     draftBody.String,
			Revision: int(revision.Int32),
		}
	}

	if len(finalRaw) > 0 {
		var rec finalEmailRecord
		if err := json.Unmarshal(finalRaw, &rec); err != nil {
			return nil, err
		}
		t.FinalEmail = &domain.FinalEmail{
			Subject:    rec.Subject,
			Body:       rec.Body,
			Recipients: rec.Recipients,
		}
	}

	return &t, nil
}

// threadArgs serializes a thread into the column values used by INSERT/UPDATE.
func threadArgs(t *domain.Thread) ([]any, error) {
	recipientsRaw, err := json.Marshal(t.Brief.Recipients)
	if err != nil {
		return nil, err
	}

	var contextRaw []byte
	if t.Context != nil {
		contextRaw, err = json.Marshal(contextRecord{
			RephrasedPurpose:  t.Context.RephrasedPurpose,
			SubjectSuggestion: t.Context.SubjectSuggestion,
			ConstraintRules:   t.Context.ConstraintRules,
			Raw:               t.Context.Raw,
		})
		if err != nil {
			return nil, err
		}
	}

	var finalRaw []byte
	if t.FinalEmail != nil {
		finalRaw, err = json.Marshal(finalEmailRecord{
			Subject:    t.FinalEmail.Subject,
			Body:       t.FinalEmail.Body,
			Recipients: t.FinalEmail.Recipients,
		})
		if err != nil {
			return nil, err
		}
	}

	var (
		subject   sql.NullString
		draftBody sql.NullString
		revision  sql.NullInt32
	)
	if t.Draft != nil {
		subject = sql.NullString{String: t.Draft.Subject, Valid: true}
		draftBody = sql.NullString{String: t.Draft.Body, Valid: true}
		revision = sql.NullInt32{Int32: int32(t.Draft.Revision), Valid: true}
	}

	lastError := sql.NullString{String: t.LastError, Valid: t.LastError != ""}

	return []any{
		t.ID, recipientsRaw, t.Brief.Purpose, string(t.Brief.Tone),
		t.Brief.Constraints, nullableBytes(contextRaw), subject, draftBody,
		revision, nullableBytes(finalRaw), string(t.Status), lastError,
		t.CreatedAt, t.UpdatedAt,
	}, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// =============================================================================
// ThreadStore Implementation
// =============================================================================

// Create inserts a new thread record.
func (s *Store) Create(ctx context.Context, thread *domain.Thread) error {
	const op = "store.create"

	args, err := threadArgs(thread)
	if err != nil {
		return domain.Internal(err, op, "failed to serialize thread")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (`+threadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, args...)
	if err != nil {
		return domain.Internal(err, op, "failed to create thread")
	}

	return nil
}

// Get returns the thread with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Thread, error) {
	const op = "store.get"

	row := s.db.QueryRowContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE id = $1
	`, id)

	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "thread", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get thread")
	}

	return t, nil
}

// Update applies mutate under a row lock so the whole record is rewritten
// atomically.
func (s *Store) Update(ctx context.Context, id uuid.UUID, mutate func(*domain.Thread) error) (*domain.Thread, error) {
	const op = "store.update"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		WHERE id = $1
		FOR UPDATE
	`, id)

	t, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "thread", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get thread")
	}

	if err := mutate(t); err != nil {
		return nil, err
	}
	t.UpdatedAt = time.Now().UTC()

	args, err := threadArgs(t)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to serialize thread")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE threads
		SET recipients = $2, purpose = $3, tone = $4, constraints = $5,
			context = $6, subject = $7, draft_body = $8, revision = $9,
			final_email = $10, status = $11, last_error = $12,
			created_at = $13, updated_at = $14
		WHERE id = $1
	`, args...)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update thread")
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit update")
	}

	return t, nil
}

// List returns all threads, newest first.
func (s *Store) List(ctx context.Context) ([]domain.Thread, error) {
	const op = "store.list"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+`
		FROM threads
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list threads")
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to scan thread")
		}
		threads = append(threads, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read threads")
	}

	return threads, nil
}

// Compile-time interface check
var _ store.ThreadStore = (*Store)(nil)
