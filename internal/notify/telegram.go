package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tablequeue/internal/config"
	"tablequeue/internal/events"
	"tablequeue/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts shop events to a staff chat. Customer channels are
// skipped since customers are not reachable through the bot.
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, errors.New("telegram token and chat_id are required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (n *TelegramNotifier) Publish(_ context.Context, channel, eventType string, payload any) error {
	if strings.HasPrefix(channel, events.CustomerChannel("")) {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, telegramText(channel, eventType, payload))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", n.chatID, err)
	}
	return nil
}

// telegramText escapes every inserted value; table type names such as
// "2_seater" would otherwise open an italic entity and fail the send.
func telegramText(channel, eventType string, payload any) string {
	shop := tgbotapi.EscapeText(tgbotapi.ModeMarkdown, channel)
	switch p := payload.(type) {
	case models.TableFreedEvent:
		name := p.TableTypeName
		if name == "" {
			name = p.TableTypeID
		}
		return fmt.Sprintf("🍽 *Table freed*\nShop: %s\nType: %s", shop, tgbotapi.EscapeText(tgbotapi.ModeMarkdown, name))
	case models.QueueNearbyEvent:
		return fmt.Sprintf("⏳ *Queue #%d is up soon*\nShop: %s", p.QueueNumber, shop)
	}
	return fmt.Sprintf("*%s*\nShop: %s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, eventType), shop)
}
