// Package email delivers transactional mail over SendGrid or SMTP.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/metrics"
)

// ErrNotConfigured is returned by the log-only sender so callers can tell a dropped
// message apart from a delivered one.
var ErrNotConfigured = errors.New("no mail transport configured")

// Message is one outbound email
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender sends through the SendGrid v3 HTTP API
type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

// NewSendGridSender returns a SendGrid backed sender
func NewSendGridSender(apiKey, from, fromName string) *SendGridSender {
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from, fromName: fromName}
}

// Send implements Sender
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		metrics.MailSent.WithLabelValues("sendgrid", "error").Inc()
		return err
	}
	if response.StatusCode >= 400 {
		metrics.MailSent.WithLabelValues("sendgrid", "error").Inc()
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid status %d", response.StatusCode)
	}
	metrics.MailSent.WithLabelValues("sendgrid", "ok").Inc()
	return nil
}

// Dialer is the part of gomail.Dialer used for delivery
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends over SMTP with STARTTLS
type SMTPSender struct {
	dialer   Dialer
	from     string
	fromName string
}

// NewSMTPSender returns an SMTP backed sender
func NewSMTPSender(host string, port int, user, password, from, fromName string) *SMTPSender {
	return &SMTPSender{dialer: gomail.NewDialer(host, port, user, password), from: from, fromName: fromName}
}

// NewSMTPSenderWithDialer is used by tests to capture outgoing messages
func NewSMTPSenderWithDialer(d Dialer, from, fromName string) *SMTPSender {
	return &SMTPSender{dialer: d, from: from, fromName: fromName}
}

// Send implements Sender. gomail has no context support, so ctx is only checked before
// dialing.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.ToEmail, msg.ToName)
	} else {
		m.SetHeader("To", msg.ToEmail)
	}
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		metrics.MailSent.WithLabelValues("smtp", "error").Inc()
		return err
	}
	metrics.MailSent.WithLabelValues("smtp", "ok").Inc()
	return nil
}

// LogSender drops mail after logging it. Used when no transport is configured.
type LogSender struct{}

// Send implements Sender
func (LogSender) Send(_ context.Context, msg Message) error {
	zap.S().Warnw("mail transport not configured, dropping message",
		"to", msg.ToEmail,
		"subject", msg.Subject)
	metrics.MailSent.WithLabelValues("none", "dropped").Inc()
	return ErrNotConfigured
}

// BreakerSender stops calling a failing transport for a cool-down period
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSender wraps next with a circuit breaker that opens after maxFailures
// consecutive failures and probes again after timeout.
func NewBreakerSender(next Sender, maxFailures uint32, timeout time.Duration) *BreakerSender {
	st := gobreaker.Settings{
		Name:        "mail",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			zap.S().Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerSender{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Send implements Sender
func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, msg)
	})
	return err
}

// State reports the breaker state, for health output
func (b *BreakerSender) State() gobreaker.State {
	return b.cb.State()
}

// NewFromConfig picks SendGrid when an API key is set, SMTP when credentials are set,
// and otherwise the log-only sender. Real transports are wrapped in a breaker.
func NewFromConfig(c config.MailConfig) Sender {
	switch {
	case c.SendGridAPIKey != "":
		zap.S().Infow("mail transport selected", "transport", "sendgrid")
		return NewBreakerSender(NewSendGridSender(c.SendGridAPIKey, c.From, c.FromName), 5, 30*time.Second)
	case c.SMTPUser != "" && c.SMTPPassword != "":
		zap.S().Infow("mail transport selected", "transport", "smtp", "host", c.SMTPHost)
		return NewBreakerSender(NewSMTPSender(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.From, c.FromName), 5, 30*time.Second)
	default:
		zap.S().Warnw("no mail transport configured, emails will be logged only")
		return LogSender{}
	}
}
