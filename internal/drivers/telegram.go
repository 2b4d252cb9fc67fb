package drivers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"sensebridge/internal/logging"
	"sensebridge/internal/utils"
)

// CaregiverNotifier forwards high-priority deliveries to a caregiver's
// Telegram chat. It is a telemetry consumer, not a pattern channel: one
// message per delivered notification.
type CaregiverNotifier struct {
	bot     *bot.Bot
	chatID  int64
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewCaregiverNotifier builds the notifier from a bot token and chat ID.
func NewCaregiverNotifier(token string, chatID int64, logger *logging.Logger) (*CaregiverNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("missing Telegram bot token")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("missing Telegram chat ID")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("initialize Telegram bot: %w", err)
	}
	return &CaregiverNotifier{
		bot:     b,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:  logger,
	}, nil
}

// Notify sends an alert message for one delivered event.
func (n *CaregiverNotifier) Notify(ctx context.Context, label, eventType string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	text := fmt.Sprintf("*%s*\nSenseBridge detected: %s", label, eventType)

	return utils.Retry(n.logger, 3, time.Second, func() error {
		params := &bot.SendMessageParams{
			ChatID:    n.chatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := n.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("send Telegram message to chat_id %d: %w", n.chatID, err)
		}
		return nil
	})
}
