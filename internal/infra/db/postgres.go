package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect создаёт пул подключений к Postgres.
func Connect(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 5
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// Схема создаётся идемпотентно; отчётные колонки добавляются через
// ADD COLUMN IF NOT EXISTS, чтобы старые базы мигрировали без потерь.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		emoji TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		date_start DATE NOT NULL,
		date_end DATE NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		capacity INT,
		description TEXT NOT NULL DEFAULT '',
		rewards TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`ALTER TABLE events ADD COLUMN IF NOT EXISTS report_required BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE events ADD COLUMN IF NOT EXISTS report_schedule TEXT NOT NULL DEFAULT 'none'`,
	`ALTER TABLE events ADD COLUMN IF NOT EXISTS report_unit TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE events ADD COLUMN IF NOT EXISTS report_photo_required BOOLEAN NOT NULL DEFAULT FALSE`,
	`CREATE TABLE IF NOT EXISTS signups (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		tg_user_id BIGINT NOT NULL,
		tg_username TEXT NOT NULL DEFAULT '',
		tg_name TEXT NOT NULL DEFAULT '',
		signed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (event_id, tg_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id BIGSERIAL PRIMARY KEY,
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		tg_user_id BIGINT NOT NULL,
		date DATE NOT NULL,
		value DOUBLE PRECISION,
		comment TEXT NOT NULL DEFAULT '',
		photo_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (event_id, tg_user_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications_sent (
		event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		tg_user_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (event_id, tg_user_id, kind)
	)`,
}

// Migrate приводит схему к актуальному виду.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
