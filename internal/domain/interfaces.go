package domain

import (
	"context"
	"time"
)

// EventRepo управляет событиями.
type EventRepo interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	// DeleteEvent удаляет событие вместе с записями, отчётами и
	// квитанциями напоминаний одной транзакцией.
	DeleteEvent(ctx context.Context, id int64) error
	// ListCurrentEvents возвращает активные события, которые ещё не
	// закончились на указанную дату, по возрастанию даты начала.
	ListCurrentEvents(ctx context.Context, today time.Time) ([]Event, error)
	// ListActiveEvents возвращает все активные события без фильтра по датам.
	ListActiveEvents(ctx context.Context) ([]Event, error)
}

// SignupRepo управляет записями на события.
type SignupRepo interface {
	// Join добавляет запись. Проверка лимита мест и вставка выполняются
	// одной транзакцией; возвращает ErrEventFull либо ErrAlreadySignedUp.
	Join(ctx context.Context, signup Signup) error
	Leave(ctx context.Context, eventID, tgUserID int64) error
	IsSignedUp(ctx context.Context, eventID, tgUserID int64) (bool, error)
	CountSignups(ctx context.Context, eventID int64) (int, error)
	// ListParticipants возвращает записи по порядку времени записи.
	ListParticipants(ctx context.Context, eventID int64) ([]Signup, error)
	// ListUserEvents возвращает события, на которые записан пользователь
	// и которые ещё не закончились на указанную дату.
	ListUserEvents(ctx context.Context, tgUserID int64, today time.Time) ([]Event, error)
}

// ReportRepo управляет отчётами участников.
type ReportRepo interface {
	// UpsertReport заменяет отчёт по ключу (событие, пользователь, дата).
	UpsertReport(ctx context.Context, report Report) error
	HasReport(ctx context.Context, eventID, tgUserID int64, date time.Time) (bool, error)
	// ListReportRows возвращает сырые строки отчётов для рейтинга.
	ListReportRows(ctx context.Context, eventID int64) ([]ReportRow, error)
}

// ReceiptRepo хранит квитанции отправленных напоминаний.
type ReceiptRepo interface {
	// MarkNotified записывает квитанцию, если её ещё нет.
	// Возвращает true, если квитанция была записана этим вызовом.
	MarkNotified(ctx context.Context, eventID, tgUserID int64, kind NotifyKind) (bool, error)
	// MarkNotifiedDaily обновляет квитанцию не чаще раза в день:
	// true, если квитанции не было либо она старше dayStart.
	MarkNotifiedDaily(ctx context.Context, eventID, tgUserID int64, kind NotifyKind, dayStart time.Time) (bool, error)
}

// NotifyQueue — очередь задач на доставку напоминаний.
type NotifyQueue interface {
	Enqueue(ctx context.Context, job NotifyJob) error
	// Pop блокирующе читает следующую задачу.
	Pop(ctx context.Context) (NotifyJob, error)
}

// Cache даёт распределённый «выполнить раз в TTL» поверх TTL-хранилища.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
}
