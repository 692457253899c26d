// Command sppmon-daemon runs the monitor on a fixed interval and serves the
// read-only API plus a websocket stream of run results.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wb-sppmon/internal/api"
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

	hub := api.NewHub(sugar)
	r := gin.Default()
	api.SetupRoutes(r, db, hub, sugar)

	go func() {
		sugar.Infow("api listening", "addr", cfg.APIAddr)
		if err := http.ListenAndServe(cfg.APIAddr, r); err != nil {
			sugar.Fatalw("api server failed", "err", err)
		}
	}()

	// Runs are strictly sequential; a run longer than the interval simply
	// delays the next one.
	sugar.Infow("daemon started", "interval", cfg.MonitorInterval)
	ticker := time.NewTicker(cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		result, err := m.Run()
		if err != nil {
			sugar.Errorw("run failed", "err", err)
		} else {
			hub.Broadcast(result)
		}
		<-ticker.C
	}
}
