// Package notify pushes alerts to the developer's Telegram chat when money
// moves outside the chat channels, e.g. a bank debit SMS.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// MessageSender is the slice of the Telegram bot API the notifier uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramNotifier sends alert messages to a fixed chat.
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
}

// NewTelegramNotifier wires a notifier to the alert chat. A zero chat id
// disables it.
func NewTelegramNotifier(sender MessageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

// NotifyExpense tells the alert chat about an automatically captured
// expense. Telegram hiccups are retried; the expense is already stored, so
// a failed notification is logged and dropped.
func (n *TelegramNotifier) NotifyExpense(ctx context.Context, e *models.Expense) error {
	if n == nil || n.sender == nil || n.chatID == 0 {
		return nil
	}

	text := fmt.Sprintf(
		"<b>Bank debit captured</b>\n%s to %s\nCategory: %s\nSource: %s",
		models.FormatNaira(e.Amount), e.Vendor, e.Category, e.Source,
	)

	err := retry.Do(
		func() error {
			_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    n.chatID,
				Text:      text,
				ParseMode: tgmodels.ParseModeHTML,
			})
			return err
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		logger.Log.Error().Err(err).Int64("chat_id", n.chatID).Msg("failed to send bank capture alert")
		return fmt.Errorf("failed to notify alert chat: %w", err)
	}
	return nil
}
