package dialog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sportsbot/internal/domain"
	"sportsbot/internal/usecase/events"
)

type stubRepo struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]domain.Event
	signups map[int64][]domain.Signup
	reports map[string]domain.Report
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		events:  make(map[int64]domain.Event),
		signups: make(map[int64][]domain.Signup),
		reports: make(map[string]domain.Report),
	}
}

func (r *stubRepo) CreateEvent(_ context.Context, event domain.Event) (domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	r.events[event.ID] = event
	return event, nil
}

func (r *stubRepo) GetEvent(_ context.Context, id int64) (domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return event, nil
}

func (r *stubRepo) UpdateEvent(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[event.ID]; !ok {
		return domain.ErrEventNotFound
	}
	r.events[event.ID] = event
	return nil
}

func (r *stubRepo) DeleteEvent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, id)
	delete(r.signups, id)
	return nil
}

func (r *stubRepo) ListCurrentEvents(_ context.Context, today time.Time) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, event := range r.events {
		if event.IsActive && !domain.ToDate(event.DateEnd).Before(domain.ToDate(today)) {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateStart.Before(out[j].DateStart) })
	return out, nil
}

func (r *stubRepo) ListActiveEvents(_ context.Context) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, event := range r.events {
		if event.IsActive {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *stubRepo) Join(_ context.Context, signup domain.Signup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.signups[signup.EventID] {
		if existing.TGUserID == signup.TGUserID {
			return domain.ErrAlreadySignedUp
		}
	}
	event := r.events[signup.EventID]
	if event.Capacity != nil && len(r.signups[signup.EventID]) >= *event.Capacity {
		return domain.ErrEventFull
	}
	signup.SignedAt = time.Now()
	r.signups[signup.EventID] = append(r.signups[signup.EventID], signup)
	return nil
}

func (r *stubRepo) Leave(_ context.Context, eventID, tgUserID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.signups[eventID][:0]
	for _, existing := range r.signups[eventID] {
		if existing.TGUserID != tgUserID {
			kept = append(kept, existing)
		}
	}
	r.signups[eventID] = kept
	return nil
}

func (r *stubRepo) IsSignedUp(_ context.Context, eventID, tgUserID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.signups[eventID] {
		if existing.TGUserID == tgUserID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) CountSignups(_ context.Context, eventID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signups[eventID]), nil
}

func (r *stubRepo) ListParticipants(_ context.Context, eventID int64) ([]domain.Signup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Signup(nil), r.signups[eventID]...), nil
}

func (r *stubRepo) ListUserEvents(_ context.Context, tgUserID int64, today time.Time) ([]domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for id, signups := range r.signups {
		for _, signup := range signups {
			if signup.TGUserID == tgUserID {
				event := r.events[id]
				if !domain.ToDate(event.DateEnd).Before(domain.ToDate(today)) {
					out = append(out, event)
				}
			}
		}
	}
	return out, nil
}

func reportKey(eventID, tgUserID int64, date time.Time) string {
	return fmt.Sprintf("%d:%d:%s", eventID, tgUserID, domain.ToDate(date).Format("2006-01-02"))
}

func (r *stubRepo) UpsertReport(_ context.Context, report domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[reportKey(report.EventID, report.TGUserID, report.Date)] = report
	return nil
}

func (r *stubRepo) HasReport(_ context.Context, eventID, tgUserID int64, date time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.reports[reportKey(eventID, tgUserID, date)]
	return ok, nil
}

func (r *stubRepo) ListReportRows(_ context.Context, eventID int64) ([]domain.ReportRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ReportRow
	for _, signup := range r.signups[eventID] {
		for _, report := range r.reports {
			if report.EventID == eventID && report.TGUserID == signup.TGUserID {
				value := report.Value
				out = append(out, domain.ReportRow{TGUserID: signup.TGUserID, TGName: signup.TGName, Value: &value, SignedAt: signup.SignedAt})
			}
		}
	}
	return out, nil
}

func newTestDialog() (*Service, *stubRepo) {
	repo := newStubRepo()
	eventsUC := events.NewService(repo, repo, repo)
	return NewService(NewMemoryStore(), eventsUC, zerolog.Nop()), repo
}

func say(t *testing.T, s *Service, userID int64, text string) string {
	t.Helper()
	reply, err := s.Handle(context.Background(), Input{
		TGUserID: userID,
		Text:     text,
		Today:    time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("шаг «%s»: %v", text, err)
	}
	return reply
}

func TestCreateWizardFullFlow(t *testing.T) {
	s, repo := newTestDialog()

	first := s.StartCreate(7)
	if !strings.Contains(first, "Шаг 1/11") {
		t.Fatalf("неожиданный первый вопрос: %s", first)
	}

	say(t, s, 7, "🏃")
	say(t, s, 7, "Забег 5К")
	say(t, s, 7, "2025-06-10")
	say(t, s, 7, "15.06.2025")
	say(t, s, 7, "25")
	say(t, s, 7, "Парк Горького")
	say(t, s, 7, "-")
	say(t, s, 7, "Медали")
	say(t, s, 7, "да")
	say(t, s, 7, "ежедневный")
	say(t, s, 7, "км")
	say(t, s, 7, "нет")
	done := say(t, s, 7, "готово")
	if !strings.Contains(done, "добавлено") {
		t.Fatalf("ожидали подтверждение, получили: %s", done)
	}
	if s.Active(7) {
		t.Fatalf("после сохранения сессия должна закрыться")
	}

	event, err := repo.GetEvent(context.Background(), 1)
	if err != nil {
		t.Fatalf("событие не сохранилось: %v", err)
	}
	if event.Title != "Забег 5К" || event.Emoji != "🏃" {
		t.Fatalf("неверные поля события: %+v", event)
	}
	if event.Capacity == nil || *event.Capacity != 25 {
		t.Fatalf("неверный лимит: %+v", event.Capacity)
	}
	if event.Description != "" {
		t.Fatalf("описание должно быть пустым после «-»")
	}
	if event.ReportSchedule != domain.ScheduleDaily || event.ReportUnit != "км" || event.ReportPhotoRequired {
		t.Fatalf("неверные поля отчётов: %+v", event)
	}
	if !event.IsActive {
		t.Fatalf("новое событие должно быть активным")
	}
	if !event.DateEnd.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("неверная дата окончания: %v", event.DateEnd)
	}
}

func TestCreateWizardValidationRepeatsStep(t *testing.T) {
	s, _ := newTestDialog()
	s.StartCreate(7)
	say(t, s, 7, "-")
	say(t, s, 7, "Челлендж")

	reply := say(t, s, 7, "не дата")
	if !strings.Contains(reply, "⚠️") {
		t.Fatalf("ожидали повтор шага с предупреждением: %s", reply)
	}
	say(t, s, 7, "2025-06-10")
	reply = say(t, s, 7, "2025-06-01")
	if !strings.Contains(reply, "раньше начала") {
		t.Fatalf("ожидали отказ из-за порядка дат: %s", reply)
	}
	reply = say(t, s, 7, "2025-06-12")
	if !strings.Contains(reply, "лимит") {
		t.Fatalf("после валидной даты ждали шаг лимита: %s", reply)
	}
}

func TestCreateWizardCancel(t *testing.T) {
	s, _ := newTestDialog()
	s.StartCreate(7)
	say(t, s, 7, "🏆")

	reply := say(t, s, 7, "Отмена")
	if reply != "Ок, отменяю." {
		t.Fatalf("неожиданный ответ на отмену: %s", reply)
	}
	if s.Active(7) {
		t.Fatalf("после отмены сессии быть не должно")
	}
}

func TestEditWizardKeepsUntouchedFields(t *testing.T) {
	s, repo := newTestDialog()
	limit := 10
	created, err := repo.CreateEvent(context.Background(), domain.Event{
		Emoji:          "🚴",
		Title:          "Велозаезд",
		DateStart:      time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		DateEnd:        time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		Location:       "Сокольники",
		Rewards:        "Футболки",
		Capacity:       &limit,
		ReportRequired: true,
		ReportSchedule: domain.ScheduleDaily,
		ReportUnit:     "км",
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("не создали событие: %v", err)
	}

	if _, err := s.StartEdit(context.Background(), 7, created.ID); err != nil {
		t.Fatalf("не открыли редактирование: %v", err)
	}
	say(t, s, 7, "Ночной велозаезд") // название
	say(t, s, 7, "-")               // дата начала
	say(t, s, 7, "-")               // дата окончания
	say(t, s, 7, "-")               // локация
	say(t, s, 7, "-")               // лимит
	say(t, s, 7, "-")               // описание
	say(t, s, 7, "-")               // награды
	say(t, s, 7, "-")               // отчёты
	say(t, s, 7, "-")               // расписание
	say(t, s, 7, "-")               // единица
	say(t, s, 7, "-")               // фото-пруф
	done := say(t, s, 7, "сохранить")
	if !strings.Contains(done, "обновлено") {
		t.Fatalf("ожидали подтверждение, получили: %s", done)
	}

	event, _ := repo.GetEvent(context.Background(), created.ID)
	if event.Title != "Ночной велозаезд" {
		t.Fatalf("название не обновилось: %s", event.Title)
	}
	if event.Location != "Сокольники" || event.Rewards != "Футболки" {
		t.Fatalf("нетронутые поля изменились: %+v", event)
	}
	if event.Capacity == nil || *event.Capacity != 10 {
		t.Fatalf("лимит изменился: %+v", event.Capacity)
	}
	if event.ReportSchedule != domain.ScheduleDaily || event.ReportUnit != "км" {
		t.Fatalf("поля отчётов изменились: %+v", event)
	}
}

func TestEditWizardClearsWithEmptyWord(t *testing.T) {
	s, repo := newTestDialog()
	created, err := repo.CreateEvent(context.Background(), domain.Event{
		Title:     "Плавание",
		DateStart: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
		Location:  "Бассейн",
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("не создали событие: %v", err)
	}

	if _, err := s.StartEdit(context.Background(), 7, created.ID); err != nil {
		t.Fatalf("не открыли редактирование: %v", err)
	}
	say(t, s, 7, "-")
	say(t, s, 7, "-")
	say(t, s, 7, "-")
	say(t, s, 7, "пусто") // локация
	say(t, s, 7, "-")
	say(t, s, 7, "-")
	say(t, s, 7, "-")
	say(t, s, 7, "-")
	say(t, s, 7, "сохранить")

	event, _ := repo.GetEvent(context.Background(), created.ID)
	if event.Location != "" {
		t.Fatalf("локация не очистилась: %s", event.Location)
	}
	if event.Title != "Плавание" {
		t.Fatalf("название изменилось: %s", event.Title)
	}
}

func TestReportFlowWithPhoto(t *testing.T) {
	s, repo := newTestDialog()
	created, err := repo.CreateEvent(context.Background(), domain.Event{
		Title:               "Шаги",
		DateStart:           time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:             time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ReportRequired:      true,
		ReportSchedule:      domain.ScheduleDaily,
		ReportUnit:          "шагов",
		ReportPhotoRequired: true,
		IsActive:            true,
	})
	if err != nil {
		t.Fatalf("не создали событие: %v", err)
	}
	if err := repo.Join(context.Background(), domain.Signup{EventID: created.ID, TGUserID: 7}); err != nil {
		t.Fatalf("не записались: %v", err)
	}

	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	first, err := s.StartReport(context.Background(), 7, created.ID, today)
	if err != nil {
		t.Fatalf("не открыли отчёт: %v", err)
	}
	if !strings.Contains(first, "фото") {
		t.Fatalf("ждали запрос фото: %s", first)
	}

	reply := say(t, s, 7, "вот текст вместо фото")
	if !strings.Contains(reply, "фото") {
		t.Fatalf("текст вместо фото должен повторить шаг: %s", reply)
	}

	reply, err = s.Handle(context.Background(), Input{TGUserID: 7, PhotoID: "photo-1", Today: today})
	if err != nil {
		t.Fatalf("фото не принялось: %v", err)
	}
	if !strings.Contains(reply, "число") {
		t.Fatalf("после фото ждали запрос результата: %s", reply)
	}

	reply = say(t, s, 7, "abc")
	if !strings.Contains(reply, "⚠️") {
		t.Fatalf("нечисло должно повторить шаг: %s", reply)
	}
	say(t, s, 7, "12,5")
	done := say(t, s, 7, "устал, но дошёл")
	if !strings.Contains(done, "принят") {
		t.Fatalf("ожидали подтверждение: %s", done)
	}

	saved, ok := repo.reports[reportKey(created.ID, 7, today)]
	if !ok {
		t.Fatalf("отчёт не сохранился")
	}
	if saved.Value != 12.5 || saved.PhotoID != "photo-1" || saved.Comment != "устал, но дошёл" {
		t.Fatalf("неверные поля отчёта: %+v", saved)
	}
}

func TestReportOptionalPhotoRepromptKeepsStep(t *testing.T) {
	s, repo := newTestDialog()
	created, _ := repo.CreateEvent(context.Background(), domain.Event{
		Title:          "Шаги",
		DateStart:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:        time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ReportRequired: true,
		ReportSchedule: domain.ScheduleDaily,
		IsActive:       true,
	})
	if err := repo.Join(context.Background(), domain.Signup{EventID: created.ID, TGUserID: 7}); err != nil {
		t.Fatalf("не записались: %v", err)
	}

	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	if _, err := s.StartReport(context.Background(), 7, created.ID, today); err != nil {
		t.Fatalf("не открыли отчёт: %v", err)
	}

	// Текст, который не число и не «-», не должен сдвигать шаг фото.
	reply := say(t, s, 7, "вот мой отчёт текстом")
	if !strings.Contains(reply, "фото") {
		t.Fatalf("ждали переспрос с упоминанием фото: %s", reply)
	}
	session, ok := s.store.Get(7)
	if !ok || session.ReportStep != ReportPhoto {
		t.Fatalf("шаг не должен сдвигаться, сейчас %v", session.ReportStep)
	}

	// Фото после переспроса всё ещё принимается и попадает в отчёт.
	if _, err := s.Handle(context.Background(), Input{TGUserID: 7, PhotoID: "photo-2", Today: today}); err != nil {
		t.Fatalf("фото не принялось: %v", err)
	}
	say(t, s, 7, "8")
	say(t, s, 7, "-")

	saved := repo.reports[reportKey(created.ID, 7, today)]
	if saved.Value != 8 || saved.PhotoID != "photo-2" {
		t.Fatalf("неверные поля отчёта: %+v", saved)
	}
}

func TestReportSameDayReplacesPrevious(t *testing.T) {
	s, repo := newTestDialog()
	created, _ := repo.CreateEvent(context.Background(), domain.Event{
		Title:          "Шаги",
		DateStart:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:        time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ReportRequired: true,
		ReportSchedule: domain.ScheduleDaily,
		IsActive:       true,
	})
	if err := repo.Join(context.Background(), domain.Signup{EventID: created.ID, TGUserID: 7}); err != nil {
		t.Fatalf("не записались: %v", err)
	}

	today := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	for _, value := range []string{"10", "5"} {
		if _, err := s.StartReport(context.Background(), 7, created.ID, today); err != nil {
			t.Fatalf("не открыли отчёт: %v", err)
		}
		say(t, s, 7, value)
		say(t, s, 7, "-")
	}

	saved := repo.reports[reportKey(created.ID, 7, today)]
	if saved.Value != 5 {
		t.Fatalf("повторный отчёт должен заменить первый, получили %v", saved.Value)
	}
	if len(repo.reports) != 1 {
		t.Fatalf("за день должен остаться один отчёт, есть %d", len(repo.reports))
	}
}

func TestReportPreconditions(t *testing.T) {
	s, repo := newTestDialog()
	created, _ := repo.CreateEvent(context.Background(), domain.Event{
		Title:          "Финальный зачёт",
		DateStart:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:        time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ReportRequired: true,
		ReportSchedule: domain.ScheduleFinal,
		IsActive:       true,
	})

	if _, err := s.StartReport(context.Background(), 7, created.ID, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)); !errors.Is(err, domain.ErrNotSignedUp) {
		t.Fatalf("без записи ждали ErrNotSignedUp, получили %v", err)
	}
	if err := repo.Join(context.Background(), domain.Signup{EventID: created.ID, TGUserID: 7}); err != nil {
		t.Fatalf("не записались: %v", err)
	}
	if _, err := s.StartReport(context.Background(), 7, created.ID, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrFinalTooEarly) {
		t.Fatalf("до дня окончания ждали ErrFinalTooEarly, получили %v", err)
	}
	if _, err := s.StartReport(context.Background(), 7, created.ID, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("в день окончания отчёт должен открыться: %v", err)
	}

	plain, _ := repo.CreateEvent(context.Background(), domain.Event{
		Title:     "Без отчётов",
		DateStart: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	})
	if _, err := s.StartReport(context.Background(), 7, plain.ID, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)); !errors.Is(err, ErrReportsDisabled) {
		t.Fatalf("без отчётов ждали ErrReportsDisabled, получили %v", err)
	}
}

func TestHandleWithoutSession(t *testing.T) {
	s, _ := newTestDialog()
	if _, err := s.Handle(context.Background(), Input{TGUserID: 7, Text: "привет"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("без сессии ждали ErrNoSession, получили %v", err)
	}
}
