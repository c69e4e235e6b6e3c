package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// =============================================================================
// SMTP Mailer Implementation
// =============================================================================

// SMTPMailer delivers email via SMTP with STARTTLS.
//
// This implementation works with:
// - Mailhog (development): no authentication, no TLS
// - Gmail/Outlook/Yahoo (production): STARTTLS + username/app password
// - Any standard SMTP server
type SMTPMailer struct {
	config SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates a new SMTP-based mail sender.
//
// Example usage:
//
//	mailer := email.NewSMTPMailer(
//	    email.SMTPConfig{
//	        Host:     "smtp.gmail.com",
//	        Port:     587,
//	        UseTLS:   true,
//	        Username: "me@gmail.com",
//	        Password: "app-password",
//	    },
//	    logger,
//	)
func NewSMTPMailer(config SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if config.From == "" {
		config.From = config.Username
	}
	return &SMTPMailer{
		config: config,
		logger: logger,
	}
}

// Send delivers the message to every recipient.
func (s *SMTPMailer) Send(ctx context.Context, subject, body string, recipients []string) (DeliveryResult, error) {
	if err := s.checkConfig(); err != nil {
		return failure(err), err
	}
	if len(recipients) == 0 {
		err := &DeliveryError{
			Kind:    KindRecipientsRejected,
			Message: "no recipients provided",
		}
		return failure(err), err
	}

	client, err := s.connect(ctx)
	if err != nil {
		return failure(err), err
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return failure(err), err
	}

	if err := client.Mail(s.config.From); err != nil {
		derr := &DeliveryError{
			Kind:    KindTransientTransport,
			Message: "server rejected sender address",
			Err:     err,
		}
		return failure(derr), derr
	}

	var rejected []string
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			rejected = append(rejected, rcpt)
		}
	}
	if len(rejected) > 0 {
		derr := &DeliveryError{
			Kind:    KindRecipientsRejected,
			Message: "recipients refused: " + strings.Join(rejected, ", "),
		}
		return failure(derr), derr
	}

	wc, err := client.Data()
	if err != nil {
		derr := &DeliveryError{
			Kind:    KindTransientTransport,
			Message: "failed to open message body",
			Err:     err,
		}
		return failure(derr), derr
	}
	if _, err := wc.Write(s.buildMessage(subject, body, recipients)); err != nil {
		wc.Close()
		derr := &DeliveryError{
			Kind:    KindTransientTransport,
			Message: "failed to write message body",
			Err:     err,
		}
		return failure(derr), derr
	}
	if err := wc.Close(); err != nil {
		derr := &DeliveryError{
			Kind:    KindTransientTransport,
			Message: "server rejected message body",
			Err:     err,
		}
		return failure(derr), derr
	}

	_ = client.Quit()

	s.logger.Info("email sent",
		"recipients", len(recipients),
		"subject", subject,
	)

	return DeliveryResult{
		Success: true,
		Message: fmt.Sprintf("Email sent successfully to %d recipient(s)", len(recipients)),
	}, nil
}

// TestConnection verifies server reachability and credentials without sending.
func (s *SMTPMailer) TestConnection(ctx context.Context) error {
	if err := s.checkConfig(); err != nil {
		return err
	}

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return err
	}

	_ = client.Quit()
	return nil
}

// =============================================================================
// Internal Methods
// =============================================================================

// checkConfig verifies that the mailer has everything it needs before
// touching the network.
func (s *SMTPMailer) checkConfig() error {
	if s.config.Host == "" {
		return &DeliveryError{
			Kind:    KindMisconfigured,
			Message: "SMTP host is not configured",
		}
	}
	if s.config.UseTLS && (s.config.Username == "" || s.config.Password == "") {
		return &DeliveryError{
			Kind:    KindMisconfigured,
			Message: "email credentials not provided; set SMTP_USERNAME and SMTP_PASSWORD",
		}
	}
	return nil
}

// connect dials the server and upgrades to TLS when configured.
func (s *SMTPMailer) connect(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &DeliveryError{
			Kind:    KindTransientTransport,
			Message: "could not reach SMTP server " + addr,
			Err:     err,
		}
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, &DeliveryError{
			Kind:    KindTransientTransport,
			Message: "SMTP handshake failed",
			Err:     err,
		}
	}

	if s.config.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			client.Close()
			return nil, &DeliveryError{
				Kind:    KindTransientTransport,
				Message: "STARTTLS failed",
				Err:     err,
			}
		}
	}

	return client, nil
}

// authenticate performs PLAIN auth when credentials are configured.
func (s *SMTPMailer) authenticate(client *smtp.Client) error {
	if s.config.Username == "" || s.config.Password == "" {
		// Mailhog and other dev servers accept unauthenticated mail.
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err := client.Auth(auth); err != nil {
		s.logger.Error("SMTP authentication failed", "host", s.config.Host, "error", err)
		return &DeliveryError{
			Kind:    KindAuthFailed,
			Message: "email authentication failed; check your username and password/app password",
			Err:     err,
		}
	}
	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPMailer) buildMessage(subject, body string, recipients []string) []byte {
	var buf bytes.Buffer

	fromHeader := s.config.From
	if s.config.FromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

// failure wraps an error into a DeliveryResult for callers that only look at
// the result struct.
func failure(err error) DeliveryResult {
	return DeliveryResult{
		Success: false,
		Message: err.Error(),
	}
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ MailSender = (*SMTPMailer)(nil)
