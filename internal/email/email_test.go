package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestProviderPreset(t *testing.T) {
	tests := []struct {
		name     string
		wantHost string
		wantPort int
	}{
		{"gmail", "smtp.gmail.com", 587},
		{"outlook", "smtp-mail.outlook.com", 587},
		{"yahoo", "smtp.mail.yahoo.com", 587},
		{"unknown-provider", "smtp.gmail.com", 587}, // falls back to gmail
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ProviderPreset(tt.name)
			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.True(t, cfg.UseTLS)
		})
	}
}

func TestDeliveryKind_Retryable(t *testing.T) {
	assert.True(t, KindTransientTransport.Retryable())
	assert.False(t, KindAuthFailed.Retryable())
	assert.False(t, KindRecipientsRejected.Retryable())
	assert.False(t, KindMisconfigured.Retryable())
}

func TestKindOf(t *testing.T) {
	authErr := &DeliveryError{Kind: KindAuthFailed, Message: "no"}
	assert.Equal(t, KindAuthFailed, KindOf(authErr))
	assert.Equal(t, KindAuthFailed, KindOf(fmt.Errorf("send: %w", authErr)))
	// Unclassified errors default to transient so a retry stays possible.
	assert.Equal(t, KindTransientTransport, KindOf(errors.New("boom")))
}

func TestSMTPMailer_Send_Misconfigured(t *testing.T) {
	// Credentials required with TLS but missing: classified before any
	// network activity.
	mailer := NewSMTPMailer(SMTPConfig{
		Host:   "smtp.gmail.com",
		Port:   587,
		UseTLS: true,
	}, testLogger())

	result, err := mailer.Send(context.Background(), "s", "b", []string{"a@x.com"})

	require.Error(t, err)
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindMisconfigured, de.Kind)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "credentials")
}

func TestSMTPMailer_Send_NoHost(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{}, testLogger())

	_, err := mailer.Send(context.Background(), "s", "b", []string{"a@x.com"})

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindMisconfigured, de.Kind)
}

func TestSMTPMailer_Send_NoRecipients(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 1025}, testLogger())

	_, err := mailer.Send(context.Background(), "s", "b", nil)

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindRecipientsRejected, de.Kind)
}

func TestSMTPMailer_TestConnection_Misconfigured(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{UseTLS: true}, testLogger())

	err := mailer.TestConnection(context.Background())

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindMisconfigured, de.Kind)
}

func TestSMTPMailer_BuildMessage(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{
		Host:     "localhost",
		Port:     1025,
		Username: "sender@example.com",
		FromName: "Inkwell",
	}, testLogger())

	msg := string(mailer.buildMessage("Hello", "Body text", []string{"a@x.com", "b@y.org"}))

	assert.Contains(t, msg, "From: Inkwell <sender@example.com>\r\n")
	assert.Contains(t, msg, "To: a@x.com, b@y.org\r\n")
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "Body text\r\n"))

	// Headers and body are separated by a blank line.
	assert.Contains(t, msg, "\r\n\r\nBody text")
}
