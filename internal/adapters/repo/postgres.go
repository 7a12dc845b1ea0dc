package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sportsbot/internal/domain"
	"sportsbot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.EventRepo   = (*Postgres)(nil)
	_ domain.SignupRepo  = (*Postgres)(nil)
	_ domain.ReportRepo  = (*Postgres)(nil)
	_ domain.ReceiptRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

const eventColumns = `id, emoji, title, date_start, date_end, location, capacity, description, rewards,
report_required, report_schedule, report_unit, report_photo_required, is_active`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		event    domain.Event
		capacity sql.NullInt64
		schedule string
	)
	err := row.Scan(&event.ID, &event.Emoji, &event.Title, &event.DateStart, &event.DateEnd,
		&event.Location, &capacity, &event.Description, &event.Rewards,
		&event.ReportRequired, &schedule, &event.ReportUnit, &event.ReportPhotoRequired, &event.IsActive)
	if err != nil {
		return domain.Event{}, err
	}
	if capacity.Valid {
		value := int(capacity.Int64)
		event.Capacity = &value
	}
	event.ReportSchedule = domain.ReportSchedule(schedule)
	return event, nil
}

func capacityValue(capacity *int) sql.NullInt64 {
	if capacity == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*capacity), Valid: true}
}

// CreateEvent сохраняет новое событие.
func (p *Postgres) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if event.ReportSchedule == "" {
		event.ReportSchedule = domain.ScheduleNone
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO events (emoji, title, date_start, date_end, location, capacity, description, rewards,
	report_required, report_schedule, report_unit, report_photo_required, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
RETURNING id
`, event.Emoji, event.Title, event.DateStart, event.DateEnd, event.Location, capacityValue(event.Capacity),
		event.Description, event.Rewards, event.ReportRequired, string(event.ReportSchedule),
		event.ReportUnit, event.ReportPhotoRequired).Scan(&event.ID)
	metrics.ObserveNetworkRequest("postgres", "events_insert", "events", start, err)
	if err != nil {
		return domain.Event{}, fmt.Errorf("сохранение события: %w", err)
	}
	event.IsActive = true
	return event, nil
}

// GetEvent возвращает событие по идентификатору.
func (p *Postgres) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	event, err := scanEvent(p.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
	metrics.ObserveNetworkRequest("postgres", "events_get", "events", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("чтение события: %w", err)
	}
	return event, nil
}

// UpdateEvent перезаписывает все редактируемые поля события.
func (p *Postgres) UpdateEvent(ctx context.Context, event domain.Event) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE events
SET emoji=$1, title=$2, date_start=$3, date_end=$4, location=$5, capacity=$6, description=$7, rewards=$8,
	report_required=$9, report_schedule=$10, report_unit=$11, report_photo_required=$12
WHERE id=$13
`, event.Emoji, event.Title, event.DateStart, event.DateEnd, event.Location, capacityValue(event.Capacity),
		event.Description, event.Rewards, event.ReportRequired, string(event.ReportSchedule),
		event.ReportUnit, event.ReportPhotoRequired, event.ID)
	metrics.ObserveNetworkRequest("postgres", "events_update", "events", start, err)
	if err != nil {
		return fmt.Errorf("обновление события: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// DeleteEvent удаляет событие вместе со связанными данными одной транзакцией.
func (p *Postgres) DeleteEvent(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "events", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range []struct {
		op  string
		sql string
	}{
		{"reports_delete", `DELETE FROM reports WHERE event_id=$1`},
		{"signups_delete", `DELETE FROM signups WHERE event_id=$1`},
		{"notifications_delete", `DELETE FROM notifications_sent WHERE event_id=$1`},
	} {
		start = time.Now()
		_, err = tx.Exec(ctx, stmt.sql, id)
		metrics.ObserveNetworkRequest("postgres", stmt.op, "events", start, err)
		if err != nil {
			return fmt.Errorf("удаление связанных данных: %w", err)
		}
	}

	start = time.Now()
	tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id=$1`, id)
	metrics.ObserveNetworkRequest("postgres", "events_delete", "events", start, err)
	if err != nil {
		return fmt.Errorf("удаление события: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return tx.Commit(ctx)
}

const currentEventsLimit = 50

// ListCurrentEvents возвращает активные события, не закончившиеся на указанную дату.
func (p *Postgres) ListCurrentEvents(ctx context.Context, today time.Time) ([]domain.Event, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+eventColumns+`
FROM events
WHERE is_active AND date_end >= $1
ORDER BY date_start ASC
LIMIT $2
`, domain.ToDate(today), currentEventsLimit)
	metrics.ObserveNetworkRequest("postgres", "events_list_current", "events", start, err)
	if err != nil {
		return nil, fmt.Errorf("список событий: %w", err)
	}
	return collectEvents(rows)
}

// ListActiveEvents возвращает все активные события.
func (p *Postgres) ListActiveEvents(ctx context.Context) ([]domain.Event, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE is_active ORDER BY date_start ASC`)
	metrics.ObserveNetworkRequest("postgres", "events_list_active", "events", start, err)
	if err != nil {
		return nil, fmt.Errorf("список активных событий: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Join записывает пользователя на событие. Лимит мест проверяется внутри
// транзакции под блокировкой строки события, поэтому два одновременных
// запроса не займут последнее место дважды.
func (p *Postgres) Join(ctx context.Context, signup domain.Signup) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "signups", start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var capacity sql.NullInt64
	start = time.Now()
	err = tx.QueryRow(ctx, `SELECT capacity FROM events WHERE id=$1 FOR UPDATE`, signup.EventID).Scan(&capacity)
	metrics.ObserveNetworkRequest("postgres", "events_lock", "events", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("блокировка события: %w", err)
	}

	if capacity.Valid {
		var taken int
		start = time.Now()
		err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM signups WHERE event_id=$1`, signup.EventID).Scan(&taken)
		metrics.ObserveNetworkRequest("postgres", "signups_count", "signups", start, err)
		if err != nil {
			return fmt.Errorf("подсчёт записей: %w", err)
		}
		if int64(taken) >= capacity.Int64 {
			return domain.ErrEventFull
		}
	}

	signedAt := signup.SignedAt
	if signedAt.IsZero() {
		signedAt = time.Now().UTC()
	}
	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO signups (event_id, tg_user_id, tg_username, tg_name, signed_at)
VALUES ($1, $2, $3, $4, $5)
`, signup.EventID, signup.TGUserID, signup.TGUsername, signup.TGName, signedAt)
	metrics.ObserveNetworkRequest("postgres", "signups_insert", "signups", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadySignedUp
		}
		return fmt.Errorf("запись на событие: %w", err)
	}
	return tx.Commit(ctx)
}

// Leave снимает запись пользователя.
func (p *Postgres) Leave(ctx context.Context, eventID, tgUserID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM signups WHERE event_id=$1 AND tg_user_id=$2`, eventID, tgUserID)
	metrics.ObserveNetworkRequest("postgres", "signups_delete", "signups", start, err)
	if err != nil {
		return fmt.Errorf("снятие записи: %w", err)
	}
	return nil
}

// IsSignedUp проверяет наличие записи.
func (p *Postgres) IsSignedUp(ctx context.Context, eventID, tgUserID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM signups WHERE event_id=$1 AND tg_user_id=$2)`,
		eventID, tgUserID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "signups_exists", "signups", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка записи: %w", err)
	}
	return exists, nil
}

// CountSignups возвращает количество записей на событие.
func (p *Postgres) CountSignups(ctx context.Context, eventID int64) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM signups WHERE event_id=$1`, eventID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "signups_count", "signups", start, err)
	if err != nil {
		return 0, fmt.Errorf("подсчёт записей: %w", err)
	}
	return count, nil
}

// ListParticipants возвращает записи по порядку времени записи.
func (p *Postgres) ListParticipants(ctx context.Context, eventID int64) ([]domain.Signup, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT event_id, tg_user_id, tg_username, tg_name, signed_at
FROM signups
WHERE event_id=$1
ORDER BY signed_at ASC
`, eventID)
	metrics.ObserveNetworkRequest("postgres", "signups_list", "signups", start, err)
	if err != nil {
		return nil, fmt.Errorf("список участников: %w", err)
	}
	defer rows.Close()
	var signups []domain.Signup
	for rows.Next() {
		var s domain.Signup
		if err := rows.Scan(&s.EventID, &s.TGUserID, &s.TGUsername, &s.TGName, &s.SignedAt); err != nil {
			return nil, err
		}
		signups = append(signups, s)
	}
	return signups, rows.Err()
}

// ListUserEvents возвращает события пользователя, не закончившиеся на указанную дату.
func (p *Postgres) ListUserEvents(ctx context.Context, tgUserID int64, today time.Time) ([]domain.Event, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT e.id, e.emoji, e.title, e.date_start, e.date_end, e.location, e.capacity, e.description, e.rewards,
	e.report_required, e.report_schedule, e.report_unit, e.report_photo_required, e.is_active
FROM signups s
JOIN events e ON e.id = s.event_id
WHERE s.tg_user_id=$1 AND e.date_end >= $2
ORDER BY e.date_start ASC
`, tgUserID, domain.ToDate(today))
	metrics.ObserveNetworkRequest("postgres", "signups_user_events", "signups", start, err)
	if err != nil {
		return nil, fmt.Errorf("события пользователя: %w", err)
	}
	return collectEvents(rows)
}

// UpsertReport заменяет отчёт по ключу (событие, пользователь, дата).
func (p *Postgres) UpsertReport(ctx context.Context, report domain.Report) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO reports (event_id, tg_user_id, date, value, comment, photo_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (event_id, tg_user_id, date)
DO UPDATE SET value=EXCLUDED.value, comment=EXCLUDED.comment, photo_id=EXCLUDED.photo_id, created_at=EXCLUDED.created_at
`, report.EventID, report.TGUserID, domain.ToDate(report.Date), report.Value, report.Comment, report.PhotoID, createdAt)
	metrics.ObserveNetworkRequest("postgres", "reports_upsert", "reports", start, err)
	if err != nil {
		return fmt.Errorf("сохранение отчёта: %w", err)
	}
	metrics.ReportsSaved.Inc()
	return nil
}

// HasReport проверяет наличие отчёта за дату.
func (p *Postgres) HasReport(ctx context.Context, eventID, tgUserID int64, date time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE event_id=$1 AND tg_user_id=$2 AND date=$3)`,
		eventID, tgUserID, domain.ToDate(date)).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "reports_exists", "reports", start, err)
	if err != nil {
		return false, fmt.Errorf("проверка отчёта: %w", err)
	}
	return exists, nil
}

// ListReportRows возвращает сырые строки отчётов для рейтинга.
func (p *Postgres) ListReportRows(ctx context.Context, eventID int64) ([]domain.ReportRow, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT r.tg_user_id, s.tg_name, s.tg_username, r.value, s.signed_at
FROM reports r
JOIN signups s ON s.event_id = r.event_id AND s.tg_user_id = r.tg_user_id
WHERE r.event_id=$1
`, eventID)
	metrics.ObserveNetworkRequest("postgres", "reports_rows", "reports", start, err)
	if err != nil {
		return nil, fmt.Errorf("строки отчётов: %w", err)
	}
	defer rows.Close()
	var result []domain.ReportRow
	for rows.Next() {
		var (
			row   domain.ReportRow
			value sql.NullFloat64
		)
		if err := rows.Scan(&row.TGUserID, &row.TGName, &row.TGUsername, &value, &row.SignedAt); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.Float64
			row.Value = &v
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// MarkNotified записывает квитанцию напоминания, если её ещё нет.
func (p *Postgres) MarkNotified(ctx context.Context, eventID, tgUserID int64, kind domain.NotifyKind) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO notifications_sent (event_id, tg_user_id, kind, sent_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (event_id, tg_user_id, kind) DO NOTHING
`, eventID, tgUserID, string(kind))
	metrics.ObserveNetworkRequest("postgres", "notifications_insert", "notifications_sent", start, err)
	if err != nil {
		return false, fmt.Errorf("запись квитанции: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkNotifiedDaily обновляет квитанцию не чаще раза в день: квитанция
// остаётся одной строкой на (событие, пользователь, вид), но sent_at
// сдвигается, когда наступил новый день.
func (p *Postgres) MarkNotifiedDaily(ctx context.Context, eventID, tgUserID int64, kind domain.NotifyKind, dayStart time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
INSERT INTO notifications_sent (event_id, tg_user_id, kind, sent_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (event_id, tg_user_id, kind)
DO UPDATE SET sent_at=now() WHERE notifications_sent.sent_at < $4
`, eventID, tgUserID, string(kind), dayStart)
	metrics.ObserveNetworkRequest("postgres", "notifications_upsert", "notifications_sent", start, err)
	if err != nil {
		return false, fmt.Errorf("запись квитанции: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
