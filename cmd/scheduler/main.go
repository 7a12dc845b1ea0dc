package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sportsbot/internal/adapters/repo"
	"sportsbot/internal/domain"
	"sportsbot/internal/infra/cache"
	"sportsbot/internal/infra/config"
	"sportsbot/internal/infra/db"
	applog "sportsbot/internal/infra/log"
	"sportsbot/internal/infra/metrics"
	"sportsbot/internal/infra/queue"
	"sportsbot/internal/usecase/reminder"
)

// sweepLockKey не даёт двум репликам планировщика пройтись одновременно.
const sweepLockKey = "reminder:sweep"

const sweepLockTTL = time.Minute

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9091")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: миграции не применились")
	}

	repoAdapter := repo.NewPostgres(pool)
	notifyQueue := newNotifyQueue(cfg, logger)
	sweeper := reminder.NewService(repoAdapter, repoAdapter, repoAdapter, repoAdapter, notifyQueue, logger.With().Str("component", "sweep").Logger())

	var lock domain.Cache
	if cfg.RedisAddr != "" {
		lock = cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	loc := cfg.Location()
	runSweep := func() {
		sweep := func() error {
			return sweeper.Sweep(ctx, time.Now().In(loc))
		}
		var err error
		if lock != nil {
			err = lock.Once(sweepLockKey, sweepLockTTL, sweep)
		} else {
			err = sweep()
		}
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: проход не завершён")
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.Reminders.SweepInterval), runSweep); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось запланировать проход")
	}
	c.Start()
	logger.Info().Dur("interval", cfg.Reminders.SweepInterval).Msg("scheduler: запущен")

	runSweep()

	<-ctx.Done()
	logger.Info().Msg("scheduler: остановка")
	<-c.Stop().Done()
}

// newNotifyQueue выбирает реализацию очереди по конфигу.
func newNotifyQueue(cfg config.AppConfig, logger zerolog.Logger) domain.NotifyQueue {
	switch cfg.Queues.Backend {
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			logger.Fatal().Msg("scheduler: не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		q, err := queue.NewRabbitNotifyQueue(cfg.RabbitURL, cfg.Queues.Notify)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: не удалось инициализировать RabbitMQ")
		}
		return q
	default:
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("scheduler: не указан адрес Redis (REDIS_ADDR)")
		}
		return queue.NewRedisNotifyQueue(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.Queues.Notify)
	}
}
