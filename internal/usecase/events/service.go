package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sportsbot/internal/domain"
	"sportsbot/internal/infra/metrics"
)

// ErrDateOrder возвращается, когда дата окончания раньше даты начала.
var ErrDateOrder = errors.New("окончание раньше начала")

// Service реализует бизнес-логику событий и записей.
type Service struct {
	events  domain.EventRepo
	signups domain.SignupRepo
	reports domain.ReportRepo
}

// NewService создаёт сервис событий.
func NewService(events domain.EventRepo, signups domain.SignupRepo, reports domain.ReportRepo) *Service {
	return &Service{events: events, signups: signups, reports: reports}
}

// ListCurrent возвращает активные события, ещё не закончившиеся на указанную дату.
func (s *Service) ListCurrent(ctx context.Context, today time.Time) ([]domain.Event, error) {
	return s.events.ListCurrentEvents(ctx, today)
}

// MySignups возвращает события пользователя с действующей записью.
func (s *Service) MySignups(ctx context.Context, tgUserID int64, today time.Time) ([]domain.Event, error) {
	return s.signups.ListUserEvents(ctx, tgUserID, today)
}

// Get возвращает событие по идентификатору.
func (s *Service) Get(ctx context.Context, id int64) (domain.Event, error) {
	return s.events.GetEvent(ctx, id)
}

// Create сохраняет новое событие после проверки инвариантов.
func (s *Service) Create(ctx context.Context, event domain.Event) (domain.Event, error) {
	if err := validate(event); err != nil {
		return domain.Event{}, err
	}
	return s.events.CreateEvent(ctx, event)
}

// Update перезаписывает событие после проверки инвариантов.
func (s *Service) Update(ctx context.Context, event domain.Event) error {
	if err := validate(event); err != nil {
		return err
	}
	return s.events.UpdateEvent(ctx, event)
}

// Delete удаляет событие вместе с записями и отчётами.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.events.DeleteEvent(ctx, id)
}

func validate(event domain.Event) error {
	if event.Title == "" {
		return errors.New("у события должно быть название")
	}
	if domain.ToDate(event.DateEnd).Before(domain.ToDate(event.DateStart)) {
		return ErrDateOrder
	}
	return nil
}

// Join записывает пользователя на событие. Событие должно быть активным
// и не завершённым; лимит мест проверяет репозиторий атомарно.
func (s *Service) Join(ctx context.Context, eventID int64, user domain.Signup, today time.Time) error {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.IsActive {
		return domain.ErrEventInactive
	}
	if domain.ToDate(event.DateEnd).Before(domain.ToDate(today)) {
		return domain.ErrEventFinished
	}
	user.EventID = eventID
	if err := s.signups.Join(ctx, user); err != nil {
		return err
	}
	metrics.SignupsTotal.WithLabelValues("join").Inc()
	return nil
}

// Leave снимает запись пользователя, если она есть.
func (s *Service) Leave(ctx context.Context, eventID, tgUserID int64) error {
	if err := s.signups.Leave(ctx, eventID, tgUserID); err != nil {
		return err
	}
	metrics.SignupsTotal.WithLabelValues("leave").Inc()
	return nil
}

// IsSignedUp проверяет наличие записи.
func (s *Service) IsSignedUp(ctx context.Context, eventID, tgUserID int64) (bool, error) {
	return s.signups.IsSignedUp(ctx, eventID, tgUserID)
}

// CountSignups возвращает количество записей на событие.
func (s *Service) CountSignups(ctx context.Context, eventID int64) (int, error) {
	return s.signups.CountSignups(ctx, eventID)
}

// Participants возвращает участников по порядку записи.
func (s *Service) Participants(ctx context.Context, eventID int64) ([]domain.Signup, error) {
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.signups.ListParticipants(ctx, eventID)
}

// Leaderboard строит рейтинг события.
func (s *Service) Leaderboard(ctx context.Context, eventID int64) ([]domain.LeaderboardEntry, error) {
	rows, err := s.reports.ListReportRows(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("строки отчётов: %w", err)
	}
	return domain.Leaderboard(rows), nil
}

// SubmitReport сохраняет отчёт участника за указанную дату (upsert).
func (s *Service) SubmitReport(ctx context.Context, report domain.Report) error {
	signed, err := s.signups.IsSignedUp(ctx, report.EventID, report.TGUserID)
	if err != nil {
		return err
	}
	if !signed {
		return domain.ErrNotSignedUp
	}
	return s.reports.UpsertReport(ctx, report)
}
