// Package email provides outbound mail delivery for the drafting workflow.
//
// This package defines a MailSender interface with an SMTP implementation
// that classifies failures so the caller can decide whether a retry is worth
// attempting or configuration changes are needed first.
package email

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// Interface Definition
// =============================================================================

// MailSender defines the interface for delivering a finalized email.
//
// Implementations:
// - SMTPMailer: standard SMTP with STARTTLS (Gmail, Outlook, Yahoo, custom)
// - mocks in tests
type MailSender interface {
	// Send delivers the message to every recipient. The returned
	// DeliveryResult always carries a human-readable message; on failure
	// the error is a *DeliveryError carrying the failure kind.
	Send(ctx context.Context, subject, body string, recipients []string) (DeliveryResult, error)

	// TestConnection verifies that the SMTP server accepts our credentials
	// without sending anything.
	TestConnection(ctx context.Context) error
}

// DeliveryResult reports the outcome of a delivery attempt.
type DeliveryResult struct {
	Success bool
	Message string
}

// =============================================================================
// Delivery error taxonomy
// =============================================================================

// DeliveryKind classifies a delivery failure.
type DeliveryKind string

const (
	// KindAuthFailed: the server rejected our credentials. Retrying without
	// fixing credentials is pointless.
	KindAuthFailed DeliveryKind = "auth_failed"

	// KindRecipientsRejected: one or more recipient addresses were refused.
	KindRecipientsRejected DeliveryKind = "recipients_rejected"

	// KindTransientTransport: connection or protocol failure that a later
	// retry may clear.
	KindTransientTransport DeliveryKind = "transient_transport"

	// KindMisconfigured: no credentials or server configured at all.
	KindMisconfigured DeliveryKind = "misconfigured"
)

// Retryable reports whether a retry without configuration changes can
// plausibly succeed.
func (k DeliveryKind) Retryable() bool {
	return k == KindTransientTransport
}

// DeliveryError is a classified mail delivery failure.
type DeliveryError struct {
	Kind    DeliveryKind
	Message string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %s", e.Kind, e.Message)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// KindOf extracts the DeliveryKind from an error, defaulting to
// transient_transport for unclassified failures.
func KindOf(err error) DeliveryKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindTransientTransport
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname
	Port     int    // SMTP server port
	UseTLS   bool   // Upgrade the connection with STARTTLS before auth
	Username string // SMTP authentication username (sender address)
	Password string // SMTP authentication password / app password
	From     string // Sender email address (defaults to Username)
	FromName string // Sender display name
}

// ProviderPreset returns the SMTP host/port/TLS settings for a named
// provider. Unknown names fall back to the gmail preset.
func ProviderPreset(name string) SMTPConfig {
	switch name {
	case "outlook":
		return SMTPConfig{Host: "smtp-mail.outlook.com", Port: 587, UseTLS: true}
	case "yahoo":
		return SMTPConfig{Host: "smtp.mail.yahoo.com", Port: 587, UseTLS: true}
	case "gmail":
		return SMTPConfig{Host: "smtp.gmail.com", Port: 587, UseTLS: true}
	default:
		return SMTPConfig{Host: "smtp.gmail.com", Port: 587, UseTLS: true}
	}
}
