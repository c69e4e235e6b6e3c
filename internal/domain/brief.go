// Package domain contains core business types and interfaces.
//
// This file defines the Brief domain type: the immutable user input that
// seeds an email drafting thread.
package domain

import (
	"regexp"
	"strings"
)

// =============================================================================
// Tone
// =============================================================================

// Tone describes the voice the generated email should be written in.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneFormal       Tone = "formal"
	ToneCasual       Tone = "casual"
	ToneUrgent       Tone = "urgent"
)

// String returns the string representation of the tone.
func (t Tone) String() string {
	return string(t)
}

// IsValid returns true if the tone is a recognized value.
func (t Tone) IsValid() bool {
	switch t {
	case ToneProfessional, ToneFriendly, ToneFormal, ToneCasual, ToneUrgent:
		return true
	}
	return false
}

// =============================================================================
// Brief
// =============================================================================

// Brief is the user-supplied description of the email to draft.
//
// A Brief is created once at thread start and never mutated afterwards.
// Recipients are frozen for the lifetime of the thread; changing them
// requires starting a new thread.
type Brief struct {
	Recipients  []string // Ordered, each a syntactically valid address
	Purpose     string   // What the email should communicate
	Tone        Tone     // Voice of the email
	Constraints string   // Optional free-form constraints (length, deadlines, ...)
}

// addressPattern is a deliberately simple shape check, not full RFC 5322.
var addressPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidAddress reports whether addr looks like an email address.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// Validate checks the Brief against the intake rules.
// It returns a field-level *ValidationError describing every problem found.
func (b Brief) Validate() error {
	const op = "brief.validate"

	var err error

	if len(b.Recipients) == 0 {
		err = addField(err, op, "recipients", "at least one recipient is required")
	}
	for _, addr := range b.Recipients {
		if !ValidAddress(strings.TrimSpace(addr)) {
			err = addField(err, op, "recipients", "invalid email address: "+addr)
			break
		}
	}

	if strings.TrimSpace(b.Purpose) == "" {
		err = addField(err, op, "purpose", "purpose is required")
	}

	if !b.Tone.IsValid() {
		err = addField(err, op, "tone", "unknown tone: "+string(b.Tone))
	}

	return err
}

// addField accumulates field errors onto a single *ValidationError.
func addField(err error, op, field, message string) error {
	if err == nil {
		return NewValidationError(op, field, message)
	}
	return AddFieldError(err, field, message)
}
