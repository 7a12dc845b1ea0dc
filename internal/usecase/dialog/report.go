package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sportsbot/internal/domain"
)

// Ошибки предусловий отправки отчёта.
var (
	ErrReportsDisabled = errors.New("по этому событию отчёты не собираются")
	ErrFinalTooEarly   = errors.New("финальный отчёт принимается в день окончания события")
)

// StartReport открывает диалог отправки отчёта. Для финального расписания
// отчёт принимается только в день окончания события.
func (s *Service) StartReport(ctx context.Context, tgUserID, eventID int64, today time.Time) (string, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return "", err
	}
	if !event.ReportRequired || event.ReportSchedule == domain.ScheduleNone {
		return "", ErrReportsDisabled
	}
	signed, err := s.events.IsSignedUp(ctx, eventID, tgUserID)
	if err != nil {
		return "", err
	}
	if !signed {
		return "", domain.ErrNotSignedUp
	}
	if event.ReportSchedule == domain.ScheduleFinal && !domain.ToDate(today).Equal(domain.ToDate(event.DateEnd)) {
		return "", ErrFinalTooEarly
	}

	s.store.Set(tgUserID, &Session{
		Mode:       ModeReport,
		EventID:    eventID,
		ReportStep: ReportPhoto,
		Report:     ReportDraft{PhotoRequired: event.ReportPhotoRequired},
	})
	if event.ReportPhotoRequired {
		return fmt.Sprintf("Отчёт по «%s». Пришли фото-пруф:", event.Title), nil
	}
	return fmt.Sprintf("Отчёт по «%s». Пришли фото или сразу результат числом:", event.Title), nil
}

func valuePrompt(event domain.Event) string {
	if event.ReportUnit != "" {
		return fmt.Sprintf("Введи результат числом (%s):", event.ReportUnit)
	}
	return "Введи результат числом:"
}

func parseValue(text string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, errors.New("нужно число, например 5 или 7.5")
	}
	if value < 0 {
		return 0, errors.New("результат не может быть отрицательным")
	}
	return value, nil
}

func (s *Service) handleReport(ctx context.Context, session *Session, in Input) (string, error) {
	event, ok, err := s.reloadEvent(ctx, session, in.TGUserID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "Событие уже удалено.", nil
	}

	switch session.ReportStep {
	case ReportPhoto:
		if in.PhotoID != "" {
			session.Report.PhotoID = in.PhotoID
			session.ReportStep = ReportValue
			return valuePrompt(event), nil
		}
		if session.Report.PhotoRequired {
			return "Нужно именно фото. Пришли фото-пруф:", nil
		}
		if isDash(in.Text) {
			session.ReportStep = ReportValue
			return valuePrompt(event), nil
		}
		// Фото необязательно, числовой ответ принимаем сразу. Всё прочее —
		// переспрашиваем, не двигая шаг, чтобы фото ещё можно было приложить.
		value, err := parseValue(in.Text)
		if err != nil {
			return "⚠️ Пришли фото, «-» или сразу результат числом.", nil
		}
		session.Report.Value = value
		session.ReportStep = ReportComment
		return "Добавь комментарий (или «-»):", nil

	case ReportValue:
		value, err := parseValue(in.Text)
		if err != nil {
			return "⚠️ " + err.Error(), nil
		}
		session.Report.Value = value
		session.ReportStep = ReportComment
		return "Добавь комментарий (или «-»):", nil

	case ReportComment:
		comment := ""
		if !isDash(in.Text) {
			comment = strings.TrimSpace(in.Text)
		}
		report := domain.Report{
			EventID:  session.EventID,
			TGUserID: in.TGUserID,
			Date:     domain.ToDate(in.Today),
			Value:    session.Report.Value,
			Comment:  comment,
			PhotoID:  session.Report.PhotoID,
		}
		if err := s.events.SubmitReport(ctx, report); err != nil {
			return "", err
		}
		s.store.Delete(in.TGUserID)
		return strings.TrimSpace(fmt.Sprintf("Отчёт принят ✅ %s %s", domain.FormatTotal(report.Value), event.ReportUnit)), nil
	}
	return "", ErrNoSession
}
