package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"sportsbot/internal/adapters/bot"
	"sportsbot/internal/adapters/repo"
	"sportsbot/internal/infra/config"
	"sportsbot/internal/infra/db"
	applog "sportsbot/internal/infra/log"
	"sportsbot/internal/infra/metrics"
	"sportsbot/internal/usecase/dialog"
	"sportsbot/internal/usecase/events"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("gateway: миграции не применились")
	}

	repoAdapter := repo.NewPostgres(pool)
	eventService := events.NewService(repoAdapter, repoAdapter, repoAdapter)
	dialogService := dialog.NewService(dialog.NewMemoryStore(), eventService, logger.With().Str("component", "dialog").Logger())

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("gateway: не указан токен бота (BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway: не удалось создать бота")
	}
	if cfg.Telegram.WebhookURL != "" {
		webhook, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("gateway: некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(webhook); err != nil {
			logger.Fatal().Err(err).Msg("gateway: не удалось установить вебхук")
		}
	}

	h := bot.NewHandler(botAPI, logger, eventService, dialogService, cfg.IsAdmin, cfg.Location())

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("gateway: запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("gateway: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("gateway: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
