package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from ThreadStatus
		to   ThreadStatus
		want bool
	}{
		// Valid forward transitions
		{"created to context_ready", StatusCreated, StatusContextReady, true},
		{"context_ready to draft_ready", StatusContextReady, StatusDraftReady, true},
		{"draft_ready to revision_requested", StatusDraftReady, StatusRevisionRequested, true},
		{"revision_requested to draft_ready", StatusRevisionRequested, StatusDraftReady, true},
		{"draft_ready to approved", StatusDraftReady, StatusApproved, true},
		{"approved to sent", StatusApproved, StatusSent, true},
		{"approved to send_failed", StatusApproved, StatusSendFailed, true},
		{"send_failed to sent", StatusSendFailed, StatusSent, true},
		{"send_failed to send_failed", StatusSendFailed, StatusSendFailed, true},

		// Reject paths
		{"context_ready to rejected", StatusContextReady, StatusRejected, true},
		{"draft_ready to rejected", StatusDraftReady, StatusRejected, true},

		// Invalid transitions
		{"created to draft_ready", StatusCreated, StatusDraftReady, false},
		{"created to rejected", StatusCreated, StatusRejected, false},
		{"context_ready to approved", StatusContextReady, StatusApproved, false},
		{"draft_ready to sent", StatusDraftReady, StatusSent, false},
		{"approved to draft_ready", StatusApproved, StatusDraftReady, false},
		{"approved to rejected", StatusApproved, StatusRejected, false},
		{"sent to anything", StatusSent, StatusSendFailed, false},
		{"sent to send_failed", StatusSent, StatusSendFailed, false},
		{"rejected to draft_ready", StatusRejected, StatusDraftReady, false},
		{"revision_requested to approved", StatusRevisionRequested, StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestThread_TransitionTo(t *testing.T) {
	thread := &Thread{Status: StatusDraftReady}

	require.NoError(t, thread.TransitionTo(StatusApproved))
	assert.Equal(t, StatusApproved, thread.Status)

	// Illegal transition leaves the status untouched and reports both sides.
	err := thread.TransitionTo(StatusDraftReady)
	require.Error(t, err)
	assert.Equal(t, StatusApproved, thread.Status)

	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "approved", se.CurrentState)
	assert.Equal(t, "draft_ready", se.Attempted)
}

func TestThreadStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusSendFailed.IsTerminal()) // retryable
	assert.False(t, StatusDraftReady.IsTerminal())
}

func TestThreadStatus_IsValid(t *testing.T) {
	for _, s := range []ThreadStatus{
		StatusCreated, StatusContextReady, StatusDraftReady,
		StatusRevisionRequested, StatusApproved, StatusSent,
		StatusSendFailed, StatusRejected,
	} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, ThreadStatus("draft").IsValid())
	assert.False(t, ThreadStatus("").IsValid())
}
