package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"omni-agent/internal/agent/summarizer"
	"omni-agent/internal/config"
	"omni-agent/internal/llm"
	"omni-agent/internal/telegram"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot (long polling)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, explicit := configPath(cmd)
			cfg, err := loadConfig(path, explicit, true)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, path, cfg)
		},
	}
}

func serve(ctx context.Context, path string, cfg *config.Config) error {
	a, err := newApp(ctx, cfg, llm.WithRetryCallback(func(err error, attempt int) {
		slog.Warn("LLM call failed, retrying", slog.Int("attempt", attempt), slog.String("err", err.Error()))
	}))
	if err != nil {
		return err
	}
	defer a.Close()
	slog.Info("Configuration loaded", slog.String("path", path))

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	slog.Info("Authorized on Telegram", slog.String("username", api.Self.UserName))

	deps := telegram.Deps{
		Agent:          a.agent,
		Sessions:       a.agent.Sessions(),
		ProcessingText: cfg.Telegram.ProcessingText,
	}
	if news, ok := a.registry.News(); ok {
		deps.News = news
		deps.Summarizer = summarizer.NewNewsSummarizer(a.client,
			cfg.News.SummaryAttempts,
			cfg.News.RetryDelay.Std(),
			cfg.News.SummaryTimeout.Std(),
			cfg.LLM.MaxTokens,
		)
	}

	bot := telegram.New(api, deps)
	if err := bot.RegisterCommands(); err != nil {
		slog.Warn("Registering commands failed", slog.String("err", err.Error()))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.UpdateTimeout
	updates := api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()
	bot.Run(ctx, updates)
	return nil
}
