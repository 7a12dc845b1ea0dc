package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sportsbot/internal/domain"
	"sportsbot/internal/infra/metrics"
)

// Service обходит активные события и ставит напоминания в очередь доставки.
// Квитанция записывается до постановки задачи, поэтому доставка гарантируется
// не более чем с одним повтором на квитанцию: потерянная после записи
// квитанции задача не уйдёт повторно, а упавшая до записи уйдёт на следующем
// проходе.
type Service struct {
	events   domain.EventRepo
	signups  domain.SignupRepo
	reports  domain.ReportRepo
	receipts domain.ReceiptRepo
	queue    domain.NotifyQueue
	log      zerolog.Logger
}

// NewService создаёт планировщик напоминаний.
func NewService(events domain.EventRepo, signups domain.SignupRepo, reports domain.ReportRepo, receipts domain.ReceiptRepo, queue domain.NotifyQueue, log zerolog.Logger) *Service {
	return &Service{events: events, signups: signups, reports: reports, receipts: receipts, queue: queue, log: log}
}

// Sweep выполняет один проход по всем активным событиям на указанную дату.
// Ошибки по отдельным событиям и участникам логируются и не прерывают проход.
func (s *Service) Sweep(ctx context.Context, today time.Time) error {
	started := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(started).Seconds())
	}()

	dayStart := domain.StartOfDay(today)
	today = domain.ToDate(today)
	events, err := s.events.ListActiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("список активных событий: %w", err)
	}
	for _, event := range events {
		if err := s.sweepEvent(ctx, event, today, dayStart); err != nil {
			s.log.Error().Err(err).Int64("event", event.ID).Msg("проход по событию не завершён")
		}
	}
	return nil
}

func (s *Service) sweepEvent(ctx context.Context, event domain.Event, today, dayStart time.Time) error {
	start := domain.ToDate(event.DateStart)
	end := domain.ToDate(event.DateEnd)
	if today.After(end) {
		return nil
	}

	var kinds []domain.NotifyKind
	if today.Equal(start.AddDate(0, 0, -2)) {
		kinds = append(kinds, domain.NotifyStartInTwo)
	}
	if today.Equal(start) {
		kinds = append(kinds, domain.NotifyStart)
	}
	if event.ReportRequired {
		switch event.ReportSchedule {
		case domain.ScheduleDaily:
			if !today.Before(start) {
				kinds = append(kinds, domain.NotifyReportDaily)
			}
		case domain.ScheduleFinal:
			if today.Equal(end) {
				kinds = append(kinds, domain.NotifyReportFinal)
			}
		}
	}
	if len(kinds) == 0 {
		return nil
	}

	participants, err := s.signups.ListParticipants(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("участники: %w", err)
	}
	for _, kind := range kinds {
		for _, participant := range participants {
			if err := s.notify(ctx, event, participant, kind, today, dayStart); err != nil {
				s.log.Error().Err(err).
					Int64("event", event.ID).
					Int64("user", participant.TGUserID).
					Str("kind", string(kind)).
					Msg("напоминание не поставлено в очередь")
			}
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, event domain.Event, participant domain.Signup, kind domain.NotifyKind, today, dayStart time.Time) error {
	if kind == domain.NotifyReportDaily {
		has, err := s.reports.HasReport(ctx, event.ID, participant.TGUserID, today)
		if err != nil {
			return fmt.Errorf("проверка отчёта: %w", err)
		}
		if has {
			return nil
		}
	}

	var (
		fresh bool
		err   error
	)
	if kind == domain.NotifyReportDaily {
		// Сравнивается именно момент локальной полуночи: квитанции пишутся
		// с wall-clock sent_at, и UTC-полночь здесь дала бы повторы в поясах
		// с положительным смещением.
		fresh, err = s.receipts.MarkNotifiedDaily(ctx, event.ID, participant.TGUserID, kind, dayStart)
	} else {
		fresh, err = s.receipts.MarkNotified(ctx, event.ID, participant.TGUserID, kind)
	}
	if err != nil {
		return fmt.Errorf("квитанция: %w", err)
	}
	if !fresh {
		return nil
	}

	job := domain.NotifyJob{
		ID:          uuid.NewString(),
		ChatID:      participant.TGUserID,
		EventID:     event.ID,
		Kind:        kind,
		Text:        notifyText(event, kind),
		RequestedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("очередь: %w", err)
	}
	metrics.RemindersEnqueued.WithLabelValues(string(kind)).Inc()
	return nil
}

func notifyText(event domain.Event, kind domain.NotifyKind) string {
	title := event.Title
	if event.Emoji != "" {
		title = event.Emoji + " " + title
	}
	switch kind {
	case domain.NotifyStartInTwo:
		return fmt.Sprintf("⏳ Через 2 дня стартует «%s» (%s). Подготовься!", title, domain.RuRange(event.DateStart, event.DateEnd))
	case domain.NotifyStart:
		return fmt.Sprintf("🚀 Сегодня стартует «%s»! Удачи!", title)
	case domain.NotifyReportDaily:
		return fmt.Sprintf("📝 Не забудь отправить отчёт за сегодня по «%s».", title)
	case domain.NotifyReportFinal:
		return fmt.Sprintf("🏁 Сегодня финал «%s». Не забудь отправить финальный отчёт!", title)
	}
	return title
}
