package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/spa-availability/internal/config"
	"github.com/wolfman30/spa-availability/internal/events"
	"github.com/wolfman30/spa-availability/internal/notify"
	"github.com/wolfman30/spa-availability/internal/output"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

// BuildPublisher assembles the output sinks. The file sink is always first;
// Redis, when present, also serves as the change-detection hash source.
func BuildPublisher(cfg *appconfig.Config, awsCfg *aws.Config, redisClient *redis.Client, opts Options, logger *logging.Logger) (*output.Publisher, *output.RedisSink) {
	var sinks []output.Sink
	var hashes output.HashSource

	if cfg.OutputDir != "" {
		file := output.NewFileSink(cfg.OutputDir)
		sinks = append(sinks, file)
		hashes = file
	}
	if opts.Stdout != nil {
		sinks = append(sinks, output.NewStdoutSink(opts.Stdout))
	}
	if awsCfg != nil && cfg.S3Bucket != "" {
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		sinks = append(sinks, output.NewS3Sink(client, cfg.S3Bucket, cfg.S3Prefix, logger))
	}

	var redisSink *output.RedisSink
	if redisClient != nil {
		redisSink = output.NewRedisSink(redisClient)
		sinks = append(sinks, redisSink)
		hashes = redisSink
	}

	var pubOpts []output.PublisherOption
	if hashes != nil {
		pubOpts = append(pubOpts, output.WithHashSource(hashes))
	}
	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	logger.Info("output sinks configured", "sinks", names)
	return output.NewPublisher(logger, sinks, pubOpts...), redisSink
}

// BuildNotifier wires the configured notification channels. The service is
// returned even when empty; callers check Enabled.
func BuildNotifier(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *notify.Service {
	var notifiers []notify.Notifier

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.Warn("telegram disabled: bot login failed", "error", err)
		} else if n := notify.NewTelegramNotifier(bot, cfg.TelegramChatID, logger); n != nil {
			notifiers = append(notifiers, n)
		}
	}

	to, err := notify.ParseRecipients(cfg.NotifyEmailTo)
	switch {
	case err != nil:
		logger.Warn("email disabled: bad NOTIFY_EMAIL_TO", "error", err)
	case len(to) > 0:
		notifiers = append(notifiers, notify.NewEmailNotifier(buildMailer(cfg, awsCfg, logger), to))
	}

	return notify.NewService(logger, notifiers...)
}

// buildMailer prefers SendGrid, then SES. Without either, digests go to
// the log.
func buildMailer(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.Mailer {
	if m := notify.NewSendGridMailer(cfg.SendGridAPIKey, notify.Sender{Email: cfg.NotifyEmailFrom}, logger); m != nil {
		return m
	}
	if awsCfg != nil && cfg.SESFromEmail != "" {
		return notify.NewSESMailer(sesv2.NewFromConfig(*awsCfg), notify.Sender{Email: cfg.SESFromEmail}, logger)
	}
	logger.Warn("NOTIFY_EMAIL_TO set but no email provider configured; digests will be logged")
	return notify.NewLogMailer(logger)
}

// BuildEvents returns the SQS publisher when a queue is configured.
func BuildEvents(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) events.Publisher {
	if awsCfg == nil || cfg.ScanEventsQueueURL == "" {
		return events.NopPublisher{}
	}
	return events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.ScanEventsQueueURL, logger)
}
