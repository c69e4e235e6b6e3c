// Package workflow implements the drafting/approval state machine.
//
// The Engine sequences brief intake, AI-assisted context and draft
// generation, the human review loop, and SMTP delivery, writing every
// transition through the thread store before returning so a thread can be
// resumed by id after a crash. Transition legality is enforced centrally via
// domain.ThreadStatus.CanTransitionTo; an illegal transition returns a
// *domain.StateError and leaves the persisted thread untouched.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inkwell-hq/inkwell/internal/ai"
	"github.com/inkwell-hq/inkwell/internal/domain"
	"github.com/inkwell-hq/inkwell/internal/email"
	"github.com/inkwell-hq/inkwell/internal/metrics"
	"github.com/inkwell-hq/inkwell/internal/prompt"
	"github.com/inkwell-hq/inkwell/internal/store"
)

// Generation stages, used for logging and metrics labels.
const (
	stageContext  = "context"
	stageDraft    = "draft"
	stageRevision = "revision"
)

// Engine drives the drafting workflow. All collaborators are injected; the
// engine holds no state of its own beyond them, so one instance serves any
// number of threads.
type Engine struct {
	store     store.ThreadStore
	generator ai.TextGenerator
	mailer    email.MailSender
	logger    *slog.Logger
}

// New creates a workflow engine with the given collaborators.
func New(threads store.ThreadStore, generator ai.TextGenerator, mailer email.MailSender, logger *slog.Logger) *Engine {
	return &Engine{
		store:     threads,
		generator: generator,
		mailer:    mailer,
		logger:    logger,
	}
}

// SendOutcome reports a delivery attempt: the updated thread plus the
// delivery layer's message.
type SendOutcome struct {
	Thread *domain.Thread
	Result email.DeliveryResult
}

// =============================================================================
// Start
// =============================================================================

// Start validates the brief, persists a new thread, and synchronously runs
// context generation. On generation failure the thread stays in `created`
// with the error recorded and is returned alongside the error, so the caller
// has the id; RetryContext can then re-run the generation without creating a
// duplicate brief.
func (e *Engine) Start(ctx context.Context, brief domain.Brief) (*domain.Thread, error) {
	const op = "workflow.start"

	brief = normalizeBrief(brief)
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	thread := &domain.Thread{
		ID:        uuid.New(),
		Brief:     brief,
		Status:    domain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.store.Create(ctx, thread); err != nil {
		return nil, err
	}

	e.logger.Info("thread started",
		"thread_id", thread.ID,
		"recipients", len(brief.Recipients),
		"tone", brief.Tone,
	)
	metrics.ThreadsStarted.Inc()

	return e.generateContext(ctx, thread.ID)
}

// RetryContext re-runs context generation for a thread still in `created`,
// typically after a provider failure during Start. It is idempotent with
// respect to the brief: nothing is re-created, only the generation step runs
// again.
func (e *Engine) RetryContext(ctx context.Context, threadID uuid.UUID) (*domain.Thread, error) {
	const op = "workflow.retry_context"

	thread, err := e.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Status != domain.StatusCreated {
		metrics.InvalidTransitions.WithLabelValues("retry_context").Inc()
		return nil, domain.InvalidState(op, thread.Status.String(), "retry context generation")
	}

	return e.generateContext(ctx, threadID)
}

// generateContext runs the context/subject step and moves the thread from
// created to context_ready. Extraction never fails: a malformed provider
// response falls back to a derived subject and the raw purpose.
func (e *Engine) generateContext(ctx context.Context, threadID uuid.UUID) (*domain.Thread, error) {
	const op = "workflow.generate_context"

	thread, err := e.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	response, err := e.generate(ctx, stageContext, prompt.ContextPrompt(thread.Brief))
	if err != nil {
		// The thread remains in `created`; record the failure for audit and
		// return the thread alongside the error so the caller keeps the id
		// and can retry generation.
		failed, uerr := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
			t.LastError = err.Error()
			return nil
		})
		if uerr != nil {
			e.logger.Error("failed to record generation error", "thread_id", threadID, "error", uerr)
			failed = thread
		}
		return failed, e.wrapProviderError(op, err)
	}

	payload := ai.ExtractContext(response, thread.Brief.Purpose)

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if err := t.TransitionTo(domain.StatusContextReady); err != nil {
			return err
		}
		t.Context = &domain.GenerationContext{
			RephrasedPurpose:  payload.Purpose,
			SubjectSuggestion: payload.SubjectSuggestion,
			ConstraintRules:   payload.Constraints,
			Raw:               response,
		}
		t.LastError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("context generated",
		"thread_id", threadID,
		"subject", updated.Context.SubjectSuggestion,
	)
	metrics.ThreadTransitions.WithLabelValues(domain.StatusContextReady.String()).Inc()

	return updated, nil
}

// =============================================================================
// Review loop
// =============================================================================

// ApproveContext accepts the generated context and produces the first draft
// at revision 0. Valid only from context_ready.
func (e *Engine) ApproveContext(ctx context.Context, threadID uuid.UUID) (*domain.Thread, error) {
	const op = "workflow.approve_context"

	thread, err := e.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Status != domain.StatusContextReady {
		metrics.InvalidTransitions.WithLabelValues("approve_context").Inc()
		return nil, domain.InvalidState(op, thread.Status.String(), "approve context")
	}

	subject := thread.Context.SubjectSuggestion
	body, err := e.generate(ctx, stageDraft, prompt.DraftPrompt(thread.Brief, thread.Context.Raw, subject))
	if err != nil {
		return nil, e.wrapProviderError(op, err)
	}

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if err := t.TransitionTo(domain.StatusDraftReady); err != nil {
			return err
		}
		t.Draft = &domain.Draft{
			Subject:  subject,
			Body:     strings.TrimSpace(body),
			Revision: 0,
		}
		t.LastError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("draft generated", "thread_id", threadID, "revision", 0)
	metrics.ThreadTransitions.WithLabelValues(domain.StatusDraftReady.String()).Inc()

	return updated, nil
}

// RequestChanges regenerates the draft body to address the user's feedback
// and bumps the revision. Valid only from draft_ready; feedback is required.
//
// The thread passes through revision_requested while generation runs. That
// state is transient and exists for observability; a generation failure puts
// the thread back in draft_ready with the previous draft intact.
func (e *Engine) RequestChanges(ctx context.Context, threadID uuid.UUID, feedback string) (*domain.Thread, error) {
	const op = "workflow.request_changes"

	if strings.TrimSpace(feedback) == "" {
		return nil, domain.Invalid(op, "feedback is required")
	}

	thread, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if t.Status != domain.StatusDraftReady {
			metrics.InvalidTransitions.WithLabelValues("request_changes").Inc()
			return domain.InvalidState(op, t.Status.String(), "request changes")
		}
		return t.TransitionTo(domain.StatusRevisionRequested)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("revision requested", "thread_id", threadID, "revision", thread.Draft.Revision)

	body, err := e.generate(ctx, stageRevision, prompt.RevisionPrompt(thread.Brief, thread.Draft.Body, feedback))
	if err != nil {
		// Put the thread back in draft_ready with the old draft; the
		// revision may be retried.
		if _, uerr := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
			t.LastError = err.Error()
			return t.TransitionTo(domain.StatusDraftReady)
		}); uerr != nil {
			e.logger.Error("failed to restore draft_ready after revision failure", "thread_id", threadID, "error", uerr)
		}
		return nil, e.wrapProviderError(op, err)
	}

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if err := t.TransitionTo(domain.StatusDraftReady); err != nil {
			return err
		}
		t.Draft = &domain.Draft{
			Subject:  t.Draft.Subject,
			Body:     strings.TrimSpace(body),
			Revision: t.Draft.Revision + 1,
		}
		t.LastError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("draft revised", "thread_id", threadID, "revision", updated.Draft.Revision)
	metrics.DraftRevisions.Inc()

	return updated, nil
}

// EditDraft overwrites the draft subject and body directly, bumping the
// revision. No AI call is made. Valid only from draft_ready.
func (e *Engine) EditDraft(ctx context.Context, threadID uuid.UUID, subject, body string) (*domain.Thread, error) {
	const op = "workflow.edit_draft"

	if strings.TrimSpace(subject) == "" {
		return nil, domain.Invalid(op, "subject is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, domain.Invalid(op, "body is required")
	}

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if t.Status != domain.StatusDraftReady {
			metrics.InvalidTransitions.WithLabelValues("edit_draft").Inc()
			return domain.InvalidState(op, t.Status.String(), "edit draft")
		}
		t.Draft = &domain.Draft{
			Subject:  subject,
			Body:     body,
			Revision: t.Draft.Revision + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("draft edited", "thread_id", threadID, "revision", updated.Draft.Revision)
	metrics.DraftRevisions.Inc()

	return updated, nil
}

// ApproveDraft freezes the current draft and the brief's recipients into the
// finalEmail snapshot and moves the thread to approved.
func (e *Engine) ApproveDraft(ctx context.Context, threadID uuid.UUID) (*domain.Thread, error) {
	const op = "workflow.approve_draft"

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if t.Status != domain.StatusDraftReady {
			metrics.InvalidTransitions.WithLabelValues("approve_draft").Inc()
			return domain.InvalidState(op, t.Status.String(), "approve draft")
		}
		if err := t.TransitionTo(domain.StatusApproved); err != nil {
			return err
		}
		t.FinalEmail = &domain.FinalEmail{
			Subject:    t.Draft.Subject,
			Body:       t.Draft.Body,
			Recipients: append([]string(nil), t.Brief.Recipients...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("draft approved",
		"thread_id", threadID,
		"revision", updated.Draft.Revision,
		"subject", updated.FinalEmail.Subject,
	)
	metrics.ThreadTransitions.WithLabelValues(domain.StatusApproved.String()).Inc()

	return updated, nil
}

// Reject abandons the thread. Valid from context_ready or draft_ready;
// rejected is terminal.
func (e *Engine) Reject(ctx context.Context, threadID uuid.UUID) (*domain.Thread, error) {
	const op = "workflow.reject"

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if t.Status != domain.StatusContextReady && t.Status != domain.StatusDraftReady {
			metrics.InvalidTransitions.WithLabelValues("reject").Inc()
			return domain.InvalidState(op, t.Status.String(), "reject")
		}
		return t.TransitionTo(domain.StatusRejected)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("thread rejected", "thread_id", threadID)
	metrics.ThreadTransitions.WithLabelValues(domain.StatusRejected.String()).Inc()

	return updated, nil
}

// =============================================================================
// Delivery
// =============================================================================

// Send delivers the frozen finalEmail. Valid only from approved. On failure
// the thread moves to send_failed with the delivery error recorded; that
// state is terminal but retryable via RetrySend.
func (e *Engine) Send(ctx context.Context, threadID uuid.UUID) (*SendOutcome, error) {
	return e.deliver(ctx, threadID, "workflow.send", domain.StatusApproved)
}

// RetrySend re-attempts delivery of the frozen finalEmail, byte-identical to
// the original attempt. Valid only from send_failed; a thread that already
// reached sent is never re-delivered.
func (e *Engine) RetrySend(ctx context.Context, threadID uuid.UUID) (*SendOutcome, error) {
	return e.deliver(ctx, threadID, "workflow.retry_send", domain.StatusSendFailed)
}

// deliver runs one delivery attempt from the given required state.
func (e *Engine) deliver(ctx context.Context, threadID uuid.UUID, op string, from domain.ThreadStatus) (*SendOutcome, error) {
	thread, err := e.store.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.Status != from {
		metrics.InvalidTransitions.WithLabelValues(strings.TrimPrefix(op, "workflow.")).Inc()
		return nil, domain.InvalidState(op, thread.Status.String(), "send")
	}

	final := thread.FinalEmail
	start := time.Now()
	result, sendErr := e.mailer.Send(ctx, final.Subject, final.Body, final.Recipients)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	target := domain.StatusSent
	if sendErr != nil {
		target = domain.StatusSendFailed
	}

	updated, err := e.store.Update(ctx, threadID, func(t *domain.Thread) error {
		if err := t.TransitionTo(target); err != nil {
			return err
		}
		if sendErr != nil {
			t.LastError = sendErr.Error()
		} else {
			t.LastError = ""
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sendErr != nil {
		e.logger.Error("email delivery failed",
			"thread_id", threadID,
			"kind", email.KindOf(sendErr),
			"error", sendErr,
		)
		metrics.EmailsSent.WithLabelValues(string(email.KindOf(sendErr))).Inc()
	} else {
		e.logger.Info("email sent",
			"thread_id", threadID,
			"recipients", len(final.Recipients),
		)
		metrics.EmailsSent.WithLabelValues("sent").Inc()
	}

	return &SendOutcome{Thread: updated, Result: result}, nil
}

// =============================================================================
// Queries
// =============================================================================

// GetThread loads a thread by id, for resuming or auditing.
func (e *Engine) GetThread(ctx context.Context, threadID uuid.UUID) (*domain.Thread, error) {
	return e.store.Get(ctx, threadID)
}

// ListHistory returns all threads, newest first.
func (e *Engine) ListHistory(ctx context.Context) ([]domain.Thread, error) {
	return e.store.List(ctx)
}

// =============================================================================
// Helpers
// =============================================================================

// generate calls the provider and records stage metrics.
func (e *Engine) generate(ctx context.Context, stage, p string) (string, error) {
	start := time.Now()
	response, err := e.generator.Generate(ctx, p)
	metrics.GenerationDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationCalls.WithLabelValues(stage, "error").Inc()
		return "", err
	}
	metrics.GenerationCalls.WithLabelValues(stage, "ok").Inc()
	return response, nil
}

// wrapProviderError maps provider failures onto the domain error taxonomy:
// transient failures come back as EUNAVAILABLE (safe to retry), hard
// failures as EINTERNAL.
func (e *Engine) wrapProviderError(op string, err error) error {
	if ai.IsRetryable(err) {
		return domain.Unavailable(err, op, "text generation is temporarily unavailable; try again")
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Internal(err, op, "text generation failed")
}

// normalizeBrief trims whitespace from user input before validation.
func normalizeBrief(b domain.Brief) domain.Brief {
	recipients := make([]string, 0, len(b.Recipients))
	for _, r := range b.Recipients {
		r = strings.TrimSpace(r)
		if r != "" {
			recipients = append(recipients, r)
		}
	}
	b.Recipients = recipients
	b.Purpose = strings.TrimSpace(b.Purpose)
	b.Constraints = strings.TrimSpace(b.Constraints)
	return b
}
