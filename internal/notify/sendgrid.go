package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// sendGridCategory tags every message for SendGrid's per-category stats.
const sendGridCategory = "spa-availability"

// SendGridAPI is the subset of the SendGrid client used here.
type SendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	client SendGridAPI
	from   Sender
	logger *logging.Logger
}

// NewSendGridMailer returns nil without an API key.
func NewSendGridMailer(apiKey string, from Sender, logger *logging.Logger) *SendGridMailer {
	if apiKey == "" {
		return nil
	}
	return newSendGridMailer(sendgrid.NewSendClient(apiKey), from, logger)
}

func newSendGridMailer(client SendGridAPI, from Sender, logger *logging.Logger) *SendGridMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridMailer{client: client, from: from.withDefaults(), logger: logger}
}

func (s *SendGridMailer) Deliver(ctx context.Context, env Envelope) error {
	if s.client == nil {
		return errors.New("notify: sendgrid client not configured")
	}
	if len(env.To) == 0 {
		return errors.New("notify: sendgrid: no recipients")
	}

	resp, err := s.client.SendWithContext(ctx, s.compose(env))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid rejected message", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info("email sent via sendgrid", "recipients", len(env.To), "status", resp.StatusCode)
	return nil
}

// compose puts every recipient in one personalization so they share a
// single message.
func (s *SendGridMailer) compose(env Envelope) *mail.SGMailV3 {
	p := mail.NewPersonalization()
	for _, addr := range env.To {
		p.AddTos(mail.NewEmail("", addr))
	}

	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.Name, s.from.Email))
	m.Subject = env.Subject
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", env.Text))
	if env.HTML != "" {
		m.AddContent(mail.NewContent("text/html", env.HTML))
	}
	m.AddCategories(sendGridCategory)
	return m
}
