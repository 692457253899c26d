// Command sppmon executes one monitoring run and exits. Intended for cron or
// manual invocation; the resident variant lives in cmd/sppmon-daemon.
package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wb-sppmon/internal/config"
	"wb-sppmon/internal/database"
	"wb-sppmon/internal/monitor"
	"wb-sppmon/internal/notify"
	"wb-sppmon/internal/store"
	"wb-sppmon/internal/wildberries"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("logger:", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("invalid configuration", "err", err)
	}
	targets, err := config.LoadTargets(cfg)
	if err != nil {
		sugar.Fatalw("failed to load monitored targets", "err", err)
	}

	db, err := database.Initialize(cfg.DatabaseDSN, sugar)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "err", err)
	}

	m := monitor.New(
		cfg, targets,
		store.New(db, sugar),
		wildberries.NewClient(wildberries.Config{
			Retries:        cfg.HTTPRetries,
			BaseRetryPause: cfg.HTTPBaseRetryPause,
		}, sugar),
		notify.NewTelegram(cfg.TelegramBotToken, sugar),
		sugar,
	)

	result, err := m.Run()
	if err != nil {
		sugar.Fatalw("run failed", "err", err)
	}
	sugar.Infow("run complete",
		"run_id", result.RunID,
		"reported", len(result.Reported),
		"failures", len(result.Failures))
}
