// Package main is the entry point for the construction expense tracker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/kabirsadiq/buildtrack/internal/bot"
	"gitlab.com/kabirsadiq/buildtrack/internal/commands"
	"gitlab.com/kabirsadiq/buildtrack/internal/config"
	"gitlab.com/kabirsadiq/buildtrack/internal/database"
	"gitlab.com/kabirsadiq/buildtrack/internal/gemini"
	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/notify"
	"gitlab.com/kabirsadiq/buildtrack/internal/repository"
	"gitlab.com/kabirsadiq/buildtrack/internal/server"
	"gitlab.com/kabirsadiq/buildtrack/internal/session"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("buildtrack %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	if err := database.SeedProjects(ctx, pool); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to seed projects")
	}

	logger.Log.Info().Msg("Database initialized successfully")

	expenseRepo := repository.NewExpenseRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	vendorRepo := repository.NewVendorRepository(pool)
	saleRepo := repository.NewSaleRepository(pool)

	sessions := session.NewStore(session.DefaultTTL)
	interp := commands.NewInterpreter(expenseRepo, projectRepo, saleRepo, sessions)

	var aiClient *gemini.Client
	if cfg.GeminiAPIKey != "" {
		aiClient, err = gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Gemini disabled, AI parse will use rule fallback")
		}
	}

	telegramBot, err := bot.New(cfg, interp, expenseRepo)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create bot")
	}

	notifier := notify.NewTelegramNotifier(telegramBot.API(), cfg.AlertChatID)

	_, app := server.New(interp, expenseRepo, projectRepo, vendorRepo, saleRepo, aiClient, notifier)
	go func() {
		logger.Log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Log.Info().Msg("Shutting down...")
		_ = app.Shutdown()
		cancel()
	}()

	telegramBot.Start(ctx)
}
