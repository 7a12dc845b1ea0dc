package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Moscow"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	// AdminIDs — статический список администраторов; читается один раз на старте.
	AdminIDs []int64 `envconfig:"ADMIN_IDS"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		// Backend выбирает реализацию очереди напоминаний: redis | rabbitmq.
		Backend string `envconfig:"NOTIFY_QUEUE_BACKEND" default:"redis"`
		Notify  string `envconfig:"NOTIFY_QUEUE_KEY" default:"notify_jobs"`
	} `envconfig:""`

	Reminders struct {
		SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"30m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения (.env подхватывается, если есть).
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Location возвращает рабочий часовой пояс.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAdmin проверяет пользователя по списку администраторов.
func (c AppConfig) IsAdmin(tgUserID int64) bool {
	for _, id := range c.AdminIDs {
		if id == tgUserID {
			return true
		}
	}
	return false
}
