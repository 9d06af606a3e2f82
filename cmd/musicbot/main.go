package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"telegram-musicbot/internal/adapters/cli"
	"telegram-musicbot/internal/app"
	"telegram-musicbot/internal/infra/config"
	"telegram-musicbot/internal/infra/logger"
	"telegram-musicbot/internal/infra/pr"
)

func main() {
	// envPath определяет расположение .env с секретами и общими настройками.
	envPath := flag.String("env", "assets/.env", "path to .env file")
	flag.Parse()

	if err := config.Load(*envPath); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	env := config.Env()

	logger.Init(env.LogLevel)
	if env.LogFile != "" {
		logger.SetFile(logger.FileOptions{
			Path:       env.LogFile,
			MaxSizeMB:  env.LogFileMaxSize,
			MaxBackups: env.LogFileMaxBackups,
			MaxAgeDays: env.LogFileMaxAge,
			Compress:   env.LogFileCompress,
		})
	}
	// В режиме консоли логи идут через readline, чтобы не рвать строку ввода.
	if env.CLI && cli.Interactive() {
		if err := pr.Init("> "); err != nil {
			logger.Fatal("failed to init readline", zap.Error(err))
		}
		logger.SetWriters(pr.Stdout(), pr.Stderr())
	}
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewApp(ctx, stop, env).Run(); err != nil {
		stop()
		logger.Fatal("app run failed", zap.Error(err))
	}
	logger.Info("Graceful shutdown complete")
}
