package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends alerts to a Telegram chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a Telegram bot client for the given chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// Send pushes one message to the configured chat.
func (n *TelegramNotifier) Send(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}
