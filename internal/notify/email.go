// Package notify announces newly opened appointment slots over email and
// Telegram.
package notify

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// DefaultFromName is the sender display name when none is configured.
const DefaultFromName = "Spa Availability"

// Envelope is one outgoing email.
type Envelope struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Mailer hands an envelope to an email provider.
type Mailer interface {
	Deliver(ctx context.Context, env Envelope) error
}

// Sender is the From identity of outgoing mail.
type Sender struct {
	Name  string
	Email string
}

func (s Sender) withDefaults() Sender {
	if s.Name == "" {
		s.Name = DefaultFromName
	}
	return s
}

func (s Sender) String() string {
	return (&netmail.Address{Name: s.Name, Address: s.Email}).String()
}

// ParseRecipients splits a comma-separated address list. Display names are
// dropped.
func ParseRecipients(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	addrs, err := netmail.ParseAddressList(list)
	if err != nil {
		return nil, fmt.Errorf("notify: parse recipients: %w", err)
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out, nil
}

// EmailNotifier mails each digest to a fixed recipient list.
type EmailNotifier struct {
	mailer Mailer
	to     []string
}

// NewEmailNotifier returns nil without a mailer or recipients.
func NewEmailNotifier(mailer Mailer, to []string) *EmailNotifier {
	if mailer == nil || len(to) == 0 {
		return nil
	}
	return &EmailNotifier{mailer: mailer, to: to}
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Notify(ctx context.Context, d Digest) error {
	html, err := d.HTML()
	if err != nil {
		return err
	}
	return e.mailer.Deliver(ctx, Envelope{
		To:      e.to,
		Subject: d.Subject,
		Text:    d.Text(),
		HTML:    html,
	})
}

// LogMailer writes envelopes to the log instead of sending them. It stands
// in when recipients are configured but no provider is.
type LogMailer struct {
	logger *logging.Logger
}

func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Deliver(_ context.Context, env Envelope) error {
	l.logger.Info("email not sent: no provider configured",
		"to", strings.Join(env.To, ","),
		"subject", env.Subject,
		"body", env.Text,
	)
	return nil
}
