package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/inkwell-hq/inkwell/internal/domain"
	"github.com/inkwell-hq/inkwell/internal/email"
	"github.com/inkwell-hq/inkwell/internal/workflow"
)

// ThreadHandler exposes the workflow engine's transitions as HTTP endpoints.
type ThreadHandler struct {
	engine *workflow.Engine
	mailer email.MailSender
	logger *slog.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(engine *workflow.Engine, mailer email.MailSender, logger *slog.Logger) *ThreadHandler {
	return &ThreadHandler{
		engine: engine,
		mailer: mailer,
		logger: logger,
	}
}

// RegisterRoutes registers all thread routes on the mux.
func (h *ThreadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /threads", h.Start)
	mux.HandleFunc("GET /threads", h.List)
	mux.HandleFunc("GET /threads/{id}", h.Get)
	mux.HandleFunc("POST /threads/{id}/context/retry", h.RetryContext)
	mux.HandleFunc("POST /threads/{id}/context/approve", h.ApproveContext)
	mux.HandleFunc("POST /threads/{id}/changes", h.RequestChanges)
	mux.HandleFunc("PUT /threads/{id}/draft", h.EditDraft)
	mux.HandleFunc("POST /threads/{id}/draft/approve", h.ApproveDraft)
	mux.HandleFunc("POST /threads/{id}/send", h.Send)
	mux.HandleFunc("POST /threads/{id}/send/retry", h.RetrySend)
	mux.HandleFunc("POST /threads/{id}/reject", h.Reject)
	mux.HandleFunc("POST /delivery/test", h.TestDelivery)
}

// =============================================================================
// Request / response shapes
// =============================================================================

type startRequest struct {
	Recipients  []string `json:"recipients"`
	Purpose     string   `json:"purpose"`
	Tone        string   `json:"tone"`
	Constraints string   `json:"constraints,omitempty"`
}

type changesRequest struct {
	Feedback string `json:"feedback"`
}

type editDraftRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type contextView struct {
	RephrasedPurpose  string   `json:"rephrased_purpose"`
	SubjectSuggestion string   `json:"subject_suggestion"`
	ConstraintRules   []string `json:"constraint_rules,omitempty"`
}

type draftView struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Revision int    `json:"revision"`
}

type finalEmailView struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

type threadView struct {
	ID         string          `json:"id"`
	Recipients []string        `json:"recipients"`
	Purpose    string          `json:"purpose"`
	Tone       string          `json:"tone"`
	Status     string          `json:"status"`
	Context    *contextView    `json:"context,omitempty"`
	Draft      *draftView      `json:"draft,omitempty"`
	FinalEmail *finalEmailView `json:"final_email,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type sendView struct {
	Thread  threadView `json:"thread"`
	Status  string     `json:"status"`
	Message string     `json:"message"`
}

// toThreadView shapes a domain thread for JSON rendering.
func toThreadView(t *domain.Thread) threadView {
	v := threadView{
		ID:         t.ID.String(),
		Recipients: t.Brief.Recipients,
		Purpose:    t.Brief.Purpose,
		Tone:       t.Brief.Tone.String(),
		Status:     t.Status.String(),
		LastError:  t.LastError,
		CreatedAt:  t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  t.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.Context != nil {
		v.Context = &contextView{
			RephrasedPurpose:  t.Context.RephrasedPurpose,
			SubjectSuggestion: t.Context.SubjectSuggestion,
			ConstraintRules:   t.Context.ConstraintRules,
		}
	}
	if t.Draft != nil {
		v.Draft = &draftView{
			Subject:  t.Draft.Subject,
			Body:     t.Draft.Body,
			Revision: t.Draft.Revision,
		}
	}
	if t.FinalEmail != nil {
		v.FinalEmail = &finalEmailView{
			Subject:    t.FinalEmail.Subject,
			Body:       t.FinalEmail.Body,
			Recipients: t.FinalEmail.Recipients,
		}
	}
	return v
}

// =============================================================================
// Handlers
// =============================================================================

// Start creates a new thread from a brief and runs context generation.
func (h *ThreadHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.start", "invalid JSON body"))
		return
	}

	brief := domain.Brief{
		Recipients:  req.Recipients,
		Purpose:     req.Purpose,
		Tone:        domain.Tone(req.Tone),
		Constraints: req.Constraints,
	}

	thread, err := h.engine.Start(r.Context(), brief)
	if err != nil {
		// Generation may fail after the thread was persisted; hand the id
		// back so the client can retry by thread.
		if thread != nil {
			ThreadErrorResponse(w, r, h.logger, err, thread.ID.String())
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, toThreadView(thread))
}

// Get returns one thread by id.
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	thread, err := h.engine.GetThread(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toThreadView(thread))
}

// List returns all threads, newest first.
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	threads, err := h.engine.ListHistory(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	views := make([]threadView, 0, len(threads))
	for i := range threads {
		views = append(views, toThreadView(&threads[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"threads": views})
}

// RetryContext re-runs context generation for a thread stuck in created.
func (h *ThreadHandler) RetryContext(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.RetryContext)
}

// ApproveContext accepts the generated context and produces the first draft.
func (h *ThreadHandler) ApproveContext(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ApproveContext)
}

// RequestChanges revises the draft based on user feedback.
func (h *ThreadHandler) RequestChanges(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	var req changesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.request_changes", "invalid JSON body"))
		return
	}

	thread, err := h.engine.RequestChanges(r.Context(), id, req.Feedback)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toThreadView(thread))
}

// EditDraft overwrites the draft subject and body directly.
func (h *ThreadHandler) EditDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	var req editDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.edit_draft", "invalid JSON body"))
		return
	}

	thread, err := h.engine.EditDraft(r.Context(), id, req.Subject, req.Body)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toThreadView(thread))
}

// ApproveDraft freezes the draft into the final email.
func (h *ThreadHandler) ApproveDraft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.ApproveDraft)
}

// Reject abandons the thread.
func (h *ThreadHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.Reject)
}

// Send delivers the approved email.
func (h *ThreadHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.engine.Send)
}

// RetrySend re-attempts a failed delivery.
func (h *ThreadHandler) RetrySend(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, h.engine.RetrySend)
}

// TestDelivery verifies SMTP connectivity and credentials without sending.
func (h *ThreadHandler) TestDelivery(w http.ResponseWriter, r *http.Request) {
	if err := h.mailer.TestConnection(r.Context()); err != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Successfully connected to the mail server",
	})
}

// =============================================================================
// Helpers
// =============================================================================

// threadID parses the {id} path value, writing a 400 on failure.
func (h *ThreadHandler) threadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.thread_id", "invalid thread id"))
		return uuid.Nil, false
	}
	return id, true
}

// transition runs a body-less engine transition and renders the new state.
func (h *ThreadHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*domain.Thread, error)) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	thread, err := fn(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toThreadView(thread))
}

// send runs a delivery transition and renders the outcome.
func (h *ThreadHandler) send(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*workflow.SendOutcome, error)) {
	id, ok := h.threadID(w, r)
	if !ok {
		return
	}

	outcome, err := fn(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, sendView{
		Thread:  toThreadView(outcome.Thread),
		Status:  outcome.Thread.Status.String(),
		Message: outcome.Result.Message,
	})
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
