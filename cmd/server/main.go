package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ciphergenix/internal/analytics"
	"ciphergenix/internal/chat"
	"ciphergenix/internal/config"
	"ciphergenix/internal/llm"
	"ciphergenix/internal/logging"
	"ciphergenix/internal/persona"
	"ciphergenix/internal/scheduler"
	"ciphergenix/internal/server"
	"ciphergenix/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.Init(cfg)
	if err != nil {
		logger.Warn("failed to open log file, logging to stderr", "error", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("CipherGenix stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := persona.Load(cfg.PersonaPromptPath)
	if err != nil {
		logger.Warn("using built-in persona", "error", err)
	}

	rec, err := storage.NewFileRecorder(cfg.ChatLogPath, logger)
	if err != nil {
		return fmt.Errorf("init chat log %s: %w", cfg.ChatLogPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create %s client: %w", cfg.LLMProvider, err)
	}

	svc := chat.NewService(client, rec, p, logger)

	sched := scheduler.New(logger)
	if err := sched.AddJob("chat-log-rotate", cfg.ChatLogRotateSchedule, func(context.Context) error {
		dst, err := rec.Rotate()
		if err == nil && dst != "" {
			logger.Info("chat log rotated", "segment", dst)
		}
		return err
	}); err != nil {
		return fmt.Errorf("invalid rotation schedule: %w", err)
	}
	if err := sched.AddJob("daily-report", cfg.DailyReportSchedule, func(context.Context) error {
		return dailyReport(logger, svc)
	}); err != nil {
		return fmt.Errorf("invalid report schedule: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(svc, server.Options{
		Addr:       cfg.HTTPAddr,
		MCPEnabled: cfg.MCPEnabled,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("CipherGenix started",
		"provider", cfg.LLMProvider,
		"chat_log", rec.Path(),
		"addr", cfg.HTTPAddr,
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		return nil
	}
}

func dailyReport(logger *slog.Logger, svc *chat.Service) error {
	entries, err := svc.History()
	if err != nil {
		return err
	}
	stats := analytics.AnalyzeDay(entries, time.Now().UTC())
	logger.Info(stats.Summary(), "date", stats.Date, "exchanges", stats.TotalExchanges)
	return nil
}
