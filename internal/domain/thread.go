// Package domain contains core business types and interfaces.
//
// This file defines the Thread aggregate and its workflow status machine.
// A Thread is one end-to-end drafting/approval/delivery task, identified by
// an opaque ThreadId allocated at start.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Thread Status
// =============================================================================

// ThreadStatus represents the lifecycle state of a drafting thread.
type ThreadStatus string

const (
	// StatusCreated indicates the Brief has been captured but context
	// generation has not completed yet (or failed and may be retried).
	StatusCreated ThreadStatus = "created"

	// StatusContextReady indicates the AI context/subject step is done and
	// the thread is waiting for the user to approve drafting.
	StatusContextReady ThreadStatus = "context_ready"

	// StatusDraftReady indicates a draft exists and the user is reviewing it.
	StatusDraftReady ThreadStatus = "draft_ready"

	// StatusRevisionRequested is a transient state recorded while a revision
	// is being generated. Threads never rest here; it exists for
	// observability only.
	StatusRevisionRequested ThreadStatus = "revision_requested"

	// StatusApproved indicates the draft has been frozen into finalEmail and
	// is ready to be delivered.
	StatusApproved ThreadStatus = "approved"

	// StatusSent is terminal: the email has been delivered.
	StatusSent ThreadStatus = "sent"

	// StatusSendFailed records a delivery failure. Terminal but retryable:
	// the frozen finalEmail may be resent unchanged.
	StatusSendFailed ThreadStatus = "send_failed"

	// StatusRejected is terminal: the user abandoned the thread.
	StatusRejected ThreadStatus = "rejected"
)

// String returns the string representation of the status.
func (s ThreadStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s ThreadStatus) IsValid() bool {
	switch s {
	case StatusCreated, StatusContextReady, StatusDraftReady,
		StatusRevisionRequested, StatusApproved, StatusSent,
		StatusSendFailed, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are permitted,
// except retrying delivery from send_failed.
func (s ThreadStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusRejected
}

// CanTransitionTo checks if the thread can move to the target status.
//
// Valid transitions:
//   - created -> context_ready (context generation succeeded)
//   - context_ready -> draft_ready (draft generated)
//   - draft_ready -> revision_requested -> draft_ready (revision loop)
//   - draft_ready -> approved (user approved the draft)
//   - approved -> sent | send_failed (delivery attempt)
//   - send_failed -> sent | send_failed (retry delivery)
//   - context_ready | draft_ready -> rejected (user abandoned)
func (s ThreadStatus) CanTransitionTo(target ThreadStatus) bool {
	switch s {
	case StatusCreated:
		return target == StatusContextReady
	case StatusContextReady:
		return target == StatusDraftReady || target == StatusRejected
	case StatusDraftReady:
		return target == StatusRevisionRequested ||
			target == StatusApproved ||
			target == StatusRejected
	case StatusRevisionRequested:
		return target == StatusDraftReady
	case StatusApproved:
		return target == StatusSent || target == StatusSendFailed
	case StatusSendFailed:
		return target == StatusSent || target == StatusSendFailed
	}
	return false
}

// =============================================================================
// Generated Content
// =============================================================================

// GenerationContext is the semi-structured output of the context step.
// Its schema is advisory: the generator may return malformed structure, in
// which case the extraction layer substitutes deterministic fallbacks.
type GenerationContext struct {
	RephrasedPurpose  string   // Purpose restated in a few clear sentences
	SubjectSuggestion string   // Suggested subject line
	ConstraintRules   []string // Constraints as actionable rules
	Raw               string   // Raw serialized context as stored/sent to prompts
}

// Draft is the current candidate email before final approval.
// Drafts are replaced wholesale on revision or manual edit, never merged.
type Draft struct {
	Subject  string
	Body     string
	Revision int // Monotonically increasing, starts at 0
}

// FinalEmail is the frozen subject/body/recipients snapshot submitted for
// delivery. Set if and only if status is sent or send_failed (or approved,
// pending the first delivery attempt).
type FinalEmail struct {
	Subject    string
	Body       string
	Recipients []string
}

// =============================================================================
// Thread
// =============================================================================

// Thread is the aggregate root for one drafting task.
//
// Threads are owned by the store for persistence purposes; the workflow
// engine holds a transient copy during a single transition and always writes
// back before returning.
type Thread struct {
	ID         uuid.UUID          // ThreadId, stable for the thread's lifetime
	Brief      Brief              // Immutable input
	Context    *GenerationContext // Set from context_ready onwards
	Draft      *Draft             // Set from draft_ready onwards
	FinalEmail *FinalEmail        // Set from approved onwards
	Status     ThreadStatus
	LastError  string // Most recent transition failure, for audit/resume
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasDraft returns true once a draft has been generated.
func (t *Thread) HasDraft() bool {
	return t.Draft != nil
}

// IsReviewable returns true while the user can act on the current draft.
func (t *Thread) IsReviewable() bool {
	return t.Status == StatusDraftReady
}

// CanSend returns true if a delivery attempt is permitted.
func (t *Thread) CanSend() bool {
	return t.Status == StatusApproved
}

// TransitionTo moves the thread to target after checking legality.
// On an illegal transition it returns an invalid-state error and leaves the
// thread unchanged.
func (t *Thread) TransitionTo(target ThreadStatus) error {
	const op = "thread.transition"
	if !t.Status.CanTransitionTo(target) {
		return InvalidState(op, t.Status.String(), target.String())
	}
	t.Status = target
	return nil
}
