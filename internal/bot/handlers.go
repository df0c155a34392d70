package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// defaultHandler routes every plain message through the interpreter.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.handleDefaultCore(ctx, tgBot, update)
}

// handleDefaultCore is the testable implementation of defaultHandler.
func (b *Bot) handleDefaultCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message

	reply := b.interp.Handle(ctx, commands.Inbound{
		Key:         fmt.Sprintf("tg:%d", msg.Chat.ID),
		DisplayName: displayName(msg.From),
		Source:      models.SourceTelegram,
		Text:        msg.Text,
	})

	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   reply,
	})
	if err != nil {
		logger.Log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send reply")
	}
}

// handleChart handles the /chart command: a pie of spend by project.
func (b *Bot) handleChart(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.handleChartCore(ctx, tgBot, update)
}

// handleChartCore is the testable implementation of handleChart.
func (b *Bot) handleChartCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	period, cutoff, ok := commandPeriod(update.Message.Text, "/chart")
	if !ok {
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Usage: /chart [today|week|month|year]",
		})
		return
	}

	summary, err := b.expenseRepo.SummarySince(ctx, cutoff)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to fetch spend for chart")
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to generate chart. Please try again.",
		})
		return
	}
	if summary.Count == 0 {
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("No expenses found for %s.", period),
		})
		return
	}

	chartData, err := GenerateSpendChart(summary.ByProject,
		fmt.Sprintf("Spend by project - %s", period))
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to generate chart")
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to generate chart. Please try again.",
		})
		return
	}

	caption := fmt.Sprintf("Spend by project (%s)\nTotal: %s across %d expenses",
		period, models.FormatNaira(summary.Total), summary.Count)
	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &tgmodels.InputFileUpload{
			Filename: chartFilename(period),
			Data:     bytes.NewReader(chartData),
		},
		Caption: caption,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send chart")
	}
}

// handleExport handles the /export command: expenses as a CSV document.
func (b *Bot) handleExport(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.handleExportCore(ctx, tgBot, update)
}

// handleExportCore is the testable implementation of handleExport.
func (b *Bot) handleExportCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	period, cutoff, ok := commandPeriod(update.Message.Text, "/export")
	if !ok {
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Usage: /export [today|week|month|year]",
		})
		return
	}

	expenses, err := b.expenseRepo.ListSince(ctx, cutoff, exportLimit)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to fetch expenses for export")
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to generate export. Please try again.",
		})
		return
	}
	if len(expenses) == 0 {
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   fmt.Sprintf("No expenses found for %s.", period),
		})
		return
	}

	csvData, err := GenerateExpensesCSV(expenses)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to generate CSV")
		_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Failed to generate export. Please try again.",
		})
		return
	}

	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &tgmodels.InputFileUpload{
			Filename: exportFilename(period),
			Data:     bytes.NewReader(csvData),
		},
		Caption: fmt.Sprintf("%d expenses (%s)", len(expenses), period),
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send export")
	}
}

const exportLimit = 1000

// commandPeriod parses "/chart week" style arguments. A missing argument
// defaults to month.
func commandPeriod(text, command string) (string, time.Time, bool) {
	arg := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(text, command)))
	if arg == "" {
		arg = "month"
	}
	cutoff, ok := commands.PeriodCutoff(arg, time.Now())
	if !ok {
		return "", time.Time{}, false
	}
	return arg, cutoff, true
}

// displayName prefers the first name the way people address each other on
// site, falling back to username.
func displayName(user *tgmodels.User) string {
	if user == nil {
		return ""
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.Username
}
