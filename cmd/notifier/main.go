package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sportsbot/internal/domain"
	"sportsbot/internal/infra/config"
	applog "sportsbot/internal/infra/log"
	"sportsbot/internal/infra/metrics"
	"sportsbot/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9092")

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("notifier: не указан токен бота (BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось создать бота")
	}

	worker := &notifyWorker{
		log:   logger,
		queue: newNotifyQueue(cfg, logger),
		bot:   botAPI,
	}

	logger.Info().Msg("notifier: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("notifier: остановлен")
}

// notifyWorker доставляет напоминания из очереди. Ошибка отправки одному
// пользователю (бот заблокирован, чат удалён) логируется и не сохраняет
// задачу: повтора для таких напоминаний нет.
type notifyWorker struct {
	log   zerolog.Logger
	queue domain.NotifyQueue
	bot   *tgbotapi.BotAPI
}

func (w *notifyWorker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("notifier: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Int64("chat", job.ChatID).
			Int64("event", job.EventID).
			Str("kind", string(job.Kind)).
			Logger()

		if job.ChatID == 0 || job.Text == "" {
			jobLog.Error().Msg("notifier: пустая задача, пропускаем")
			continue
		}

		msg := tgbotapi.NewMessage(job.ChatID, job.Text)
		start := time.Now()
		_, err = w.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_reminder", strconv.FormatInt(job.ChatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			jobLog.Error().Err(err).Msg("notifier: напоминание не доставлено")
			continue
		}
		jobLog.Info().Msg("notifier: напоминание доставлено")
	}
}

// newNotifyQueue выбирает реализацию очереди по конфигу.
func newNotifyQueue(cfg config.AppConfig, logger zerolog.Logger) domain.NotifyQueue {
	switch cfg.Queues.Backend {
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			logger.Fatal().Msg("notifier: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		q, err := queue.NewRabbitNotifyQueue(cfg.RabbitURL, cfg.Queues.Notify)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: не удалось инициализировать RabbitMQ")
		}
		return q
	default:
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("notifier: не указан адрес Redis (REDIS_ADDR)")
		}
		return queue.NewRedisNotifyQueue(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.Queues.Notify)
	}
}
