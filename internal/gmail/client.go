package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/leadflow/internal/instrumentation"
)

const operationSend = "messages.send"

// Client wraps the Gmail Users service for sending mail as the
// authorized user.
type Client struct {
	svc     *gmail.UsersService
	from    string
	metrics *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithFrom sets the From header of outgoing mail. Gmail fills in the
// authorized address when it is empty.
func WithFrom(addr string) Option {
	return func(c *Client) { c.from = addr }
}

// WithMetrics records Google API metrics for every send.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Gmail client. clientOpts usually carries
// option.WithHTTPClient with an OAuth2 client from the google package.
func NewClient(ctx context.Context, clientOpts []option.ClientOption, opts ...Option) (*Client, error) {
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	c := &Client{svc: svc.Users}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EmailMessage represents an email to be sent
type EmailMessage struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
	IsHTML  bool
}

// SendError is returned by Send when a message could not be delivered to
// the Gmail API.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send email to %s: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Send delivers a plain-text message to a single recipient.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	_, err := c.SendEmail(ctx, &EmailMessage{
		To:      []string{to},
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return &SendError{To: to, Err: err}
	}
	return nil
}

// encodeRFC2047 encodes a string for use in email headers according to RFC 2047
// This is necessary for non-ASCII characters (like German umlauts) in subjects
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

func validateMessage(msg *EmailMessage) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if len(msg.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	for _, to := range msg.To {
		if strings.TrimSpace(to) == "" {
			return errors.New("recipient address is empty")
		}
		if strings.ContainsAny(to, "\r\n") {
			return fmt.Errorf("recipient address %q contains a line break", to)
		}
	}
	if msg.Subject == "" {
		return errors.New("subject is required")
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("subject contains a line break")
	}
	if msg.Body == "" {
		return errors.New("body is required")
	}
	return nil
}

// buildMessage renders msg in RFC 2822 format.
func buildMessage(from string, msg *EmailMessage) string {
	var b strings.Builder

	if from != "" {
		b.WriteString("From: ")
		b.WriteString(from)
		b.WriteString("\r\n")
	}

	b.WriteString("To: ")
	b.WriteString(strings.Join(msg.To, ", "))
	b.WriteString("\r\n")

	if len(msg.Cc) > 0 {
		b.WriteString("Cc: ")
		b.WriteString(strings.Join(msg.Cc, ", "))
		b.WriteString("\r\n")
	}

	if len(msg.Bcc) > 0 {
		b.WriteString("Bcc: ")
		b.WriteString(strings.Join(msg.Bcc, ", "))
		b.WriteString("\r\n")
	}

	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(msg.Subject))
	b.WriteString("\r\n")

	if msg.IsHTML {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	} else {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return b.String()
}

// SendEmail sends an email through Gmail API and returns the message ID.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (string, error) {
	if err := validateMessage(msg); err != nil {
		return "", err
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGmail, operationSend,
		attribute.Int("gmail.recipients", len(msg.To)+len(msg.Cc)+len(msg.Bcc)),
	)
	defer span.End()

	raw := base64.URLEncoding.EncodeToString([]byte(buildMessage(c.from, msg)))

	start := time.Now()
	sent, err := c.svc.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGmail, operationSend, status, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	instrumentation.SetSpanSuccess(span)
	return sent.Id, nil
}
