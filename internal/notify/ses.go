package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer delivers through Amazon SES.
type SESMailer struct {
	client SESAPI
	from   Sender
	logger *logging.Logger
}

// NewSESMailer returns nil without a client.
func NewSESMailer(client SESAPI, from Sender, logger *logging.Logger) *SESMailer {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESMailer{client: client, from: from.withDefaults(), logger: logger}
}

func (s *SESMailer) Deliver(ctx context.Context, env Envelope) error {
	if len(env.To) == 0 {
		return errors.New("notify: ses: no recipients")
	}

	body := &types.Body{Text: utf8(env.Text)}
	if env.HTML != "" {
		body.Html = utf8(env.HTML)
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.String()),
		Destination:      &types.Destination{ToAddresses: env.To},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8(env.Subject), Body: body},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: ses send: %w", err)
	}
	s.logger.Info("email sent via ses", "recipients", len(env.To), "message_id", aws.ToString(out.MessageId))
	return nil
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}
