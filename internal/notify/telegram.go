package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// TelegramAPI is the subset of the bot client used here.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts messages to a single chat.
type TelegramNotifier struct {
	bot    TelegramAPI
	chatID int64
	logger *logging.Logger
}

// NewTelegramNotifier returns nil when the bot or chat is missing.
func NewTelegramNotifier(bot TelegramAPI, chatID int64, logger *logging.Logger) *TelegramNotifier {
	if bot == nil || chatID == 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Notify(_ context.Context, d Digest) error {
	msg := tgbotapi.NewMessage(t.chatID, d.Subject+"\n\n"+d.Text())
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	t.logger.Debug("telegram message sent", "chat_id", t.chatID, "slots", len(d.Slots))
	return nil
}
