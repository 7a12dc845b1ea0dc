package dialog

import (
	"context"
	"strings"

	"sportsbot/internal/domain"
)

// StartCreate открывает мастер создания события и возвращает первый вопрос.
func (s *Service) StartCreate(tgUserID int64) string {
	s.store.Set(tgUserID, &Session{Mode: ModeCreate, CreateStep: CreateEmoji})
	return "Шаг 1/11 — введи эмодзи (или «-»):"
}

var saveWords = map[string]struct{}{
	"готово": {}, "ok": {}, "да": {}, "save": {}, "сохранить": {},
}

func isSave(text string) bool {
	_, ok := saveWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func parseSchedule(text string) (domain.ReportSchedule, bool) {
	low := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(low, "ежед"), low == "daily":
		return domain.ScheduleDaily, true
	case strings.HasPrefix(low, "фин"), low == "final":
		return domain.ScheduleFinal, true
	}
	return "", false
}

func (s *Service) handleCreate(ctx context.Context, session *Session, in Input) (string, error) {
	text := strings.TrimSpace(in.Text)
	draft := &session.Draft

	switch session.CreateStep {
	case CreateEmoji:
		if !isDash(text) {
			draft.Emoji = text
		}
		session.CreateStep = CreateTitle
		return "Шаг 2/11 — введи <b>название</b>:", nil

	case CreateTitle:
		if text == "" {
			return "Название не может быть пустым. Введи название:", nil
		}
		draft.Title = text
		session.CreateStep = CreateDateStart
		return "Шаг 3/11 — введи <b>дату начала</b> (YYYY-MM-DD или DD.MM.YYYY):", nil

	case CreateDateStart:
		date, err := domain.ParseDate(text)
		if err != nil {
			return "⚠️ " + err.Error(), nil
		}
		draft.DateStart = date
		session.CreateStep = CreateDateEnd
		return "Шаг 4/11 — введи <b>дату окончания</b>:", nil

	case CreateDateEnd:
		date, err := domain.ParseDate(text)
		if err != nil {
			return "⚠️ " + err.Error(), nil
		}
		if date.Before(draft.DateStart) {
			return "Окончание раньше начала. Попробуй ещё раз.", nil
		}
		draft.DateEnd = date
		session.CreateStep = CreateCapacity
		return "Шаг 5/11 — введи <b>лимит мест</b> или «без лимита»:", nil

	case CreateCapacity:
		capacity, err := domain.ParseCapacity(text)
		if err != nil {
			return "⚠️ " + err.Error(), nil
		}
		draft.Capacity = capacity
		session.CreateStep = CreateLocation
		return "Шаг 6/11 — введи <b>локацию</b> (или «-»):", nil

	case CreateLocation:
		if !isDash(text) {
			draft.Location = text
		}
		session.CreateStep = CreateDescription
		return "Шаг 7/11 — введи <b>описание</b> (или «-»):", nil

	case CreateDescription:
		if !isDash(text) {
			draft.Description = text
		}
		session.CreateStep = CreateRewards
		return "Шаг 8/11 — введи <b>награды</b> (или «-»):", nil

	case CreateRewards:
		if !isDash(text) {
			draft.Rewards = text
		}
		session.CreateStep = CreateReportRequired
		return "Шаг 9/11 — нужны отчёты? Напиши «да» или «нет».", nil

	case CreateReportRequired:
		low := strings.ToLower(text)
		draft.ReportRequired = isYes(text) || low == "нужны" || low == "нужен"
		if !draft.ReportRequired {
			draft.ReportSchedule = domain.ScheduleNone
			session.CreateStep = CreateConfirm
			return "Шаг 11/11 — напиши «готово», чтобы сохранить.", nil
		}
		session.CreateStep = CreateReportSchedule
		return "Шаг 10/11 — тип отчётов: «ежедневный» или «финальный». Затем укажу единицу и фото-пруф.", nil

	case CreateReportSchedule:
		schedule, ok := parseSchedule(text)
		if !ok {
			return "Напиши «ежедневный» или «финальный».", nil
		}
		draft.ReportSchedule = schedule
		session.CreateStep = CreateReportUnit
		return "Укажи единицу измерения (например: шагов, км) или «-».", nil

	case CreateReportUnit:
		if !isDash(text) {
			draft.ReportUnit = text
		}
		session.CreateStep = CreateReportPhoto
		return "Фото-пруф обязателен? Напиши «да» или «нет».", nil

	case CreateReportPhoto:
		draft.ReportPhotoRequired = isYes(text)
		session.CreateStep = CreateConfirm
		return "Шаг 11/11 — напиши «готово», чтобы сохранить.", nil

	case CreateConfirm:
		if !isSave(text) {
			return "Если всё верно — напиши «готово».", nil
		}
		if _, err := s.events.Create(ctx, draft.Event(0)); err != nil {
			return "", err
		}
		s.store.Delete(in.TGUserID)
		return "Событие добавлено ✅ Нажми «🏅 События», чтобы посмотреть.", nil
	}
	return "", ErrNoSession
}
