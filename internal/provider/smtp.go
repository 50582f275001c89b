package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

const defaultSMTPTimeout = 30 * time.Second

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// RequireTLS refuses to send over a plain connection.
	RequireTLS bool
	Timeout    time.Duration
}

// SMTPTransport delivers messages through an SMTP relay.
type SMTPTransport struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	tlsPolicy := mail.TLSOpportunistic
	if cfg.RequireTLS {
		tlsPolicy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPTransport{
		client:   client,
		from:     cfg.From,
		fromName: cfg.FromName,
	}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if t == nil || t.client == nil {
		return fmt.Errorf("smtp transport is not initialized")
	}

	m, err := t.buildMessage(msg)
	if err != nil {
		return &ProviderError{Message: "invalid message", Cause: err}
	}

	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		transient := !errors.Is(err, context.Canceled)
		var sendErr *mail.SendError
		if errors.As(err, &sendErr) {
			transient = sendErr.IsTemp()
		}
		return &ProviderError{
			Message:   "smtp send failed",
			Transient: transient,
			Cause:     err,
		}
	}
	return nil
}

func (t *SMTPTransport) buildMessage(msg Message) (*mail.Msg, error) {
	if strings.TrimSpace(msg.ToAddress) == "" {
		return nil, fmt.Errorf("recipient address is required")
	}

	m := mail.NewMsg()
	if err := m.FromFormat(t.fromName, t.from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.ToAddress); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		if err := m.AttachReader(a.FileName, bytes.NewReader(a.Data),
			mail.WithFileContentType(mail.ContentType(contentType))); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.FileName, err)
		}
	}
	return m, nil
}
