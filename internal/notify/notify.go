// Package notify provides alert notifier implementations.
package notify

import (
	"context"
	"fmt"

	"github.com/pagewatch/shrike/internal/domain"
)

// New creates a notifier based on configuration.
func New(cfg domain.NotifierConfig) (domain.Notifier, error) {
	switch cfg.Type {
	case "line":
		return NewLineNotifier(cfg.LineToken), nil

	case "telegram":
		return NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)

	case "none", "":
		return NopNotifier{}, nil

	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.Type)
	}
}

// NopNotifier discards all messages. Used when alerting is disabled.
type NopNotifier struct{}

// Send discards the message.
func (NopNotifier) Send(ctx context.Context, message string) error {
	return nil
}
