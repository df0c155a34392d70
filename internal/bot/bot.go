// Package bot provides the Telegram bot initialization and handlers.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/config"
	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// Replier turns a chat message into a reply. Implemented by
// commands.Interpreter.
type Replier interface {
	Handle(ctx context.Context, in commands.Inbound) string
}

// ExpenseReader is the read-only expense access the chart and export
// handlers need.
type ExpenseReader interface {
	SummarySince(ctx context.Context, since time.Time) (*models.Summary, error)
	ListSince(ctx context.Context, since time.Time, limit int) ([]models.Expense, error)
}

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot         *bot.Bot
	cfg         *config.Config
	interp      Replier
	expenseRepo ExpenseReader
}

// New creates a new Bot instance.
func New(cfg *config.Config, interp Replier, expenseRepo ExpenseReader) (*Bot, error) {
	b := &Bot{
		cfg:         cfg,
		interp:      interp,
		expenseRepo: expenseRepo,
	}

	opts := []bot.Option{
		bot.WithMiddlewares(loggingMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.registerHandlers()

	return b, nil
}

// Start begins polling for updates.
func (b *Bot) Start(ctx context.Context) {
	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

// API exposes the underlying bot for components that only send messages,
// like the bank-SMS notifier.
func (b *Bot) API() *bot.Bot {
	return b.bot
}

// registerHandlers sets up command handlers. Everything else, including
// /start, falls through to the interpreter via the default handler.
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/chart", bot.MatchTypePrefix, b.handleChart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/export", bot.MatchTypePrefix, b.handleExport)
}

// loggingMiddleware records every inbound message.
func loggingMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		if update.Message != nil && update.Message.From != nil {
			logger.Log.Info().
				Int64("user_id", update.Message.From.ID).
				Str("username", update.Message.From.Username).
				Int64("chat_id", update.Message.Chat.ID).
				Str("text", update.Message.Text).
				Msg("Telegram message")
		}
		next(ctx, tgBot, update)
	}
}
