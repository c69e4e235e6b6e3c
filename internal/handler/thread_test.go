package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inkwell-hq/inkwell/internal/ai"
	aimock "github.com/inkwell-hq/inkwell/internal/ai/mock"
	"github.com/inkwell-hq/inkwell/internal/email"
	"github.com/inkwell-hq/inkwell/internal/store/memory"
	"github.com/inkwell-hq/inkwell/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	SendCalls int
	Err       error
}

func (m *stubMailer) Send(ctx context.Context, subject, body string, recipients []string) (email.DeliveryResult, error) {
	m.SendCalls++
	if m.Err != nil {
		return email.DeliveryResult{Success: false, Message: m.Err.Error()}, m.Err
	}
	return email.DeliveryResult{Success: true, Message: "Email sent successfully"}, nil
}

func (m *stubMailer) TestConnection(ctx context.Context) error {
	return m.Err
}

func newTestServer(t *testing.T, generator *aimock.Provider, mailer *stubMailer) *httptest.Server {
	t.Helper()
	logger := discardLogger()
	engine := workflow.New(memory.New(), generator, mailer, logger)
	h := NewThreadHandler(engine, mailer, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	} else {
		body.WriteString("{}")
	}
	resp, err := http.Post(url, "application/json", &body)
	require.NoError(t, err)
	return resp
}

func decodeThread(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var view map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

const contextResponse = "```json\n" + `{
  "purpose": "Request a short sync about the launch timeline.",
  "subject_suggestion": "Launch timeline sync",
  "constraints": ["keep it brief"]
}` + "\n```"

func startThread(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/threads", map[string]interface{}{
		"recipients": []string{"alice@example.com"},
		"purpose":    "Ask for a short sync about the launch timeline",
		"tone":       "professional",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeThread(t, resp)
	id, ok := view["id"].(string)
	require.True(t, ok)
	return id
}

func TestThreadAPI_FullWorkflow(t *testing.T) {
	generator := aimock.New(discardLogger())
	generator.Responses = []string{contextResponse, "Hi Alice,\n\nCould we grab 15 minutes this week?\n\nBest"}
	mailer := &stubMailer{}
	srv := newTestServer(t, generator, mailer)

	// Start: brief in, context out.
	resp := postJSON(t, srv.URL+"/threads", map[string]interface{}{
		"recipients": []string{"alice@example.com"},
		"purpose":    "Ask for a short sync about the launch timeline",
		"tone":       "professional",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	view := decodeThread(t, resp)
	id := view["id"].(string)
	assert.Equal(t, "context_ready", view["status"])

	ctxObj := view["context"].(map[string]interface{})
	assert.Equal(t, "Launch timeline sync", ctxObj["subject_suggestion"])

	// Approve context: first draft at revision 0.
	resp = postJSON(t, srv.URL+"/threads/"+id+"/context/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decodeThread(t, resp)
	assert.Equal(t, "draft_ready", view["status"])
	draft := view["draft"].(map[string]interface{})
	assert.Equal(t, float64(0), draft["revision"])
	assert.Contains(t, draft["body"], "15 minutes")

	// Approve draft: final email frozen.
	resp = postJSON(t, srv.URL+"/threads/"+id+"/draft/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decodeThread(t, resp)
	assert.Equal(t, "approved", view["status"])
	final := view["final_email"].(map[string]interface{})
	assert.Equal(t, draft["subject"], final["subject"])
	assert.Equal(t, []interface{}{"alice@example.com"}, final["recipients"])

	// Send.
	resp = postJSON(t, srv.URL+"/threads/"+id+"/send", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sent map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	resp.Body.Close()
	assert.Equal(t, "sent", sent["status"])
	assert.Equal(t, "Email sent successfully", sent["message"])
	assert.Equal(t, 1, mailer.SendCalls)
}

func TestThreadAPI_Start_ValidationError(t *testing.T) {
	srv := newTestServer(t, aimock.New(discardLogger()), &stubMailer{})

	resp := postJSON(t, srv.URL+"/threads", map[string]interface{}{
		"recipients": []string{"not-an-address"},
		"purpose":    "",
		"tone":       "professional",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "invalid", errObj["code"])
	fields := errObj["fields"].(map[string]interface{})
	assert.Contains(t, fields, "purpose")
	assert.Contains(t, fields, "recipients")
}

func TestThreadAPI_Start_GenerationFailureReturnsThreadID(t *testing.T) {
	generator := aimock.New(discardLogger())
	generator.Err = ai.EUnavailable
	srv := newTestServer(t, generator, &stubMailer{})

	resp := postJSON(t, srv.URL+"/threads", map[string]interface{}{
		"recipients": []string{"alice@example.com"},
		"purpose":    "Ask for a short sync about the launch timeline",
		"tone":       "professional",
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "unavailable", errObj["code"])
	id, ok := errObj["thread_id"].(string)
	require.True(t, ok, "error payload missing thread_id")

	// The id from the failure payload is enough to retry generation.
	generator.Err = nil
	generator.Responses = []string{contextResponse}

	resp = postJSON(t, srv.URL+"/threads/"+id+"/context/retry", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeThread(t, resp)
	assert.Equal(t, "context_ready", view["status"])
}

func TestThreadAPI_RequestChanges(t *testing.T) {
	generator := aimock.New(discardLogger())
	generator.Responses = []string{contextResponse, "draft v0", "draft v1"}
	srv := newTestServer(t, generator, &stubMailer{})

	id := startThread(t, srv)

	resp := postJSON(t, srv.URL+"/threads/"+id+"/context/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/threads/"+id+"/changes", map[string]string{
		"feedback": "make it shorter",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeThread(t, resp)
	draft := view["draft"].(map[string]interface{})
	assert.Equal(t, float64(1), draft["revision"])
	assert.Equal(t, "draft v1", draft["body"])
}

func TestThreadAPI_EditDraft(t *testing.T) {
	generator := aimock.New(discardLogger())
	generator.Responses = []string{contextResponse, "draft v0"}
	srv := newTestServer(t, generator, &stubMailer{})

	id := startThread(t, srv)

	resp := postJSON(t, srv.URL+"/threads/"+id+"/context/approve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(map[string]string{
		"subject": "My subject",
		"body":    "My body",
	}))
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/threads/"+id+"/draft", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeThread(t, resp)
	draft := view["draft"].(map[string]interface{})
	assert.Equal(t, "My subject", draft["subject"])
	assert.Equal(t, float64(1), draft["revision"])
}

func TestThreadAPI_InvalidTransitionConflict(t *testing.T) {
	generator := aimock.New(discardLogger())
	generator.Responses = []string{contextResponse}
	srv := newTestServer(t, generator, &stubMailer{})

	id := startThread(t, srv)

	// Sending from context_ready is a state conflict.
	resp := postJSON(t, srv.URL+"/threads/"+id+"/send", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "invalid_state", errObj["code"])
	assert.Equal(t, "context_ready", errObj["current_state"])
}

func TestThreadAPI_GetUnknownThread(t *testing.T) {
	srv := newTestServer(t, aimock.New(discardLogger()), &stubMailer{})

	resp, err := http.Get(srv.URL + "/threads/00000000-0000-0000-0000-000000000001")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestThreadAPI_InvalidThreadID(t *testing.T) {
	srv := newTestServer(t, aimock.New(discardLogger()), &stubMailer{})

	resp, err := http.Get(srv.URL + "/threads/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestThreadAPI_List(t *testing.T) {
	generator := aimock.New(discardLogger())
	generator.Responses = []string{contextResponse}
	srv := newTestServer(t, generator, &stubMailer{})

	startThread(t, srv)
	startThread(t, srv)

	resp, err := http.Get(srv.URL + "/threads")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	threads := body["threads"].([]interface{})
	assert.Len(t, threads, 2)
}

func TestThreadAPI_TestDelivery(t *testing.T) {
	mailer := &stubMailer{}
	srv := newTestServer(t, aimock.New(discardLogger()), mailer)

	resp := postJSON(t, srv.URL+"/delivery/test", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
}

func TestThreadAPI_TestDelivery_Failure(t *testing.T) {
	mailer := &stubMailer{Err: &email.DeliveryError{Kind: email.KindAuthFailed, Message: "authentication failed"}}
	srv := newTestServer(t, aimock.New(discardLogger()), mailer)

	resp := postJSON(t, srv.URL+"/delivery/test", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "auth_failed")
}
