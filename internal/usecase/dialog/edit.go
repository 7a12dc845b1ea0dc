package dialog

import (
	"context"
	"fmt"
	"strings"

	"sportsbot/internal/domain"
)

func isClear(text string) bool {
	return strings.ToLower(strings.TrimSpace(text)) == "пусто"
}

func orEmpty(v string) string {
	if v == "" {
		return "(пусто)"
	}
	return v
}

func capacityLabel(capacity *int) string {
	if capacity == nil {
		return "без лимита"
	}
	return fmt.Sprintf("%d", *capacity)
}

// StartEdit открывает мастер редактирования события. Черновик заполняется
// текущими значениями, «-» на любом шаге оставляет поле как есть.
func (s *Service) StartEdit(ctx context.Context, tgUserID, eventID int64) (string, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return "", err
	}
	s.store.Set(tgUserID, &Session{
		Mode:    ModeEdit,
		EventID: eventID,
		Draft: EventDraft{
			Emoji:               event.Emoji,
			Title:               event.Title,
			DateStart:           event.DateStart,
			DateEnd:             event.DateEnd,
			Capacity:            event.Capacity,
			Location:            event.Location,
			Description:         event.Description,
			Rewards:             event.Rewards,
			ReportRequired:      event.ReportRequired,
			ReportSchedule:      event.ReportSchedule,
			ReportUnit:          event.ReportUnit,
			ReportPhotoRequired: event.ReportPhotoRequired,
		},
	})
	return fmt.Sprintf("Редактируем «%s». На любом шаге «-» оставляет поле без изменений, «пусто» очищает.\nНазвание сейчас: «%s». Введи новое:", event.Title, event.Title), nil
}

func (s *Service) handleEdit(ctx context.Context, session *Session, in Input) (string, error) {
	text := strings.TrimSpace(in.Text)
	draft := &session.Draft

	switch session.EditStep {
	case EditTitle:
		if !isDash(text) {
			if text == "" || isClear(text) {
				return "Название не может быть пустым. Введи новое или «-»:", nil
			}
			draft.Title = text
		}
		session.EditStep = EditDateStart
		return fmt.Sprintf("Дата начала сейчас: %s. Введи новую (YYYY-MM-DD или DD.MM.YYYY):", domain.RuDate(draft.DateStart)), nil

	case EditDateStart:
		if !isDash(text) {
			date, err := domain.ParseDate(text)
			if err != nil {
				return "⚠️ " + err.Error(), nil
			}
			draft.DateStart = date
		}
		session.EditStep = EditDateEnd
		return fmt.Sprintf("Дата окончания сейчас: %s. Введи новую:", domain.RuDate(draft.DateEnd)), nil

	case EditDateEnd:
		if !isDash(text) {
			date, err := domain.ParseDate(text)
			if err != nil {
				return "⚠️ " + err.Error(), nil
			}
			if date.Before(draft.DateStart) {
				return "Окончание раньше начала. Попробуй ещё раз.", nil
			}
			draft.DateEnd = date
		}
		session.EditStep = EditLocation
		return fmt.Sprintf("Локация сейчас: %s. Введи новую (или «пусто»):", orEmpty(draft.Location)), nil

	case EditLocation:
		switch {
		case isClear(text):
			draft.Location = ""
		case !isDash(text):
			draft.Location = text
		}
		session.EditStep = EditCapacity
		return fmt.Sprintf("Лимит мест сейчас: %s. Введи число или «без лимита»:", capacityLabel(draft.Capacity)), nil

	case EditCapacity:
		if !isDash(text) {
			capacity, err := domain.ParseCapacity(text)
			if err != nil {
				return "⚠️ " + err.Error(), nil
			}
			draft.Capacity = capacity
		}
		session.EditStep = EditDescription
		return fmt.Sprintf("Описание сейчас: %s. Введи новое (или «пусто»):", orEmpty(draft.Description)), nil

	case EditDescription:
		switch {
		case isClear(text):
			draft.Description = ""
		case !isDash(text):
			draft.Description = text
		}
		session.EditStep = EditRewards
		return fmt.Sprintf("Награды сейчас: %s. Введи новые (или «пусто»):", orEmpty(draft.Rewards)), nil

	case EditRewards:
		switch {
		case isClear(text):
			draft.Rewards = ""
		case !isDash(text):
			draft.Rewards = text
		}
		session.EditStep = EditReportRequired
		current := "нет"
		if draft.ReportRequired {
			current = "да"
		}
		return fmt.Sprintf("Отчёты сейчас: %s. Нужны отчёты? «да» или «нет»:", current), nil

	case EditReportRequired:
		if !isDash(text) {
			draft.ReportRequired = isYes(text)
		}
		if !draft.ReportRequired {
			draft.ReportSchedule = domain.ScheduleNone
			session.EditStep = EditConfirm
			return "Напиши «сохранить», чтобы применить изменения.", nil
		}
		session.EditStep = EditReportSchedule
		return fmt.Sprintf("Тип отчётов сейчас: %s. «ежедневный» или «финальный»:", draft.ReportSchedule), nil

	case EditReportSchedule:
		if !isDash(text) {
			schedule, ok := parseSchedule(text)
			if !ok {
				return "Напиши «ежедневный» или «финальный».", nil
			}
			draft.ReportSchedule = schedule
		}
		if draft.ReportSchedule == domain.ScheduleNone {
			draft.ReportSchedule = domain.ScheduleDaily
		}
		session.EditStep = EditReportUnit
		return fmt.Sprintf("Единица измерения сейчас: %s. Введи новую (или «пусто»):", orEmpty(draft.ReportUnit)), nil

	case EditReportUnit:
		switch {
		case isClear(text):
			draft.ReportUnit = ""
		case !isDash(text):
			draft.ReportUnit = text
		}
		session.EditStep = EditReportPhoto
		current := "нет"
		if draft.ReportPhotoRequired {
			current = "да"
		}
		return fmt.Sprintf("Фото-пруф сейчас: %s. Обязателен? «да» или «нет»:", current), nil

	case EditReportPhoto:
		if !isDash(text) {
			draft.ReportPhotoRequired = isYes(text)
		}
		session.EditStep = EditConfirm
		return "Напиши «сохранить», чтобы применить изменения.", nil

	case EditConfirm:
		if !isSave(text) {
			return "Если всё верно — напиши «сохранить».", nil
		}
		if _, ok, err := s.reloadEvent(ctx, session, in.TGUserID); err != nil {
			return "", err
		} else if !ok {
			return "Событие уже удалено.", nil
		}
		if err := s.events.Update(ctx, draft.Event(session.EventID)); err != nil {
			return "", err
		}
		s.store.Delete(in.TGUserID)
		return "Событие обновлено ✅", nil
	}
	return "", ErrNoSession
}
