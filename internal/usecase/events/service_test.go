package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sportsbot/internal/domain"
)

// memStore — потокобезопасное хранилище в памяти для тестов сервиса.
// Join повторяет контракт Postgres-репозитория: проверка лимита и вставка
// выполняются атомарно под одним замком.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]domain.Event
	signups []domain.Signup
	reports map[reportKey]domain.Report
}

type reportKey struct {
	eventID  int64
	tgUserID int64
	date     time.Time
}

func newMemStore() *memStore {
	return &memStore{events: map[int64]domain.Event{}, reports: map[reportKey]domain.Report{}}
}

func (m *memStore) CreateEvent(_ context.Context, event domain.Event) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	event.ID = m.nextID
	event.IsActive = true
	m.events[event.ID] = event
	return event, nil
}

func (m *memStore) GetEvent(_ context.Context, id int64) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return event, nil
}

func (m *memStore) UpdateEvent(_ context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return domain.ErrEventNotFound
	}
	m.events[event.ID] = event
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return domain.ErrEventNotFound
	}
	delete(m.events, id)
	kept := m.signups[:0]
	for _, s := range m.signups {
		if s.EventID != id {
			kept = append(kept, s)
		}
	}
	m.signups = kept
	for key := range m.reports {
		if key.eventID == id {
			delete(m.reports, key)
		}
	}
	return nil
}

func (m *memStore) ListCurrentEvents(_ context.Context, today time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Event
	for _, event := range m.events {
		if event.IsActive && !event.DateEnd.Before(domain.ToDate(today)) {
			result = append(result, event)
		}
	}
	return result, nil
}

func (m *memStore) ListActiveEvents(_ context.Context) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Event
	for _, event := range m.events {
		if event.IsActive {
			result = append(result, event)
		}
	}
	return result, nil
}

func (m *memStore) Join(_ context.Context, signup domain.Signup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[signup.EventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	taken := 0
	for _, s := range m.signups {
		if s.EventID == signup.EventID {
			if s.TGUserID == signup.TGUserID {
				return domain.ErrAlreadySignedUp
			}
			taken++
		}
	}
	if !domain.CapacityAvailable(event.Capacity, taken) {
		return domain.ErrEventFull
	}
	if signup.SignedAt.IsZero() {
		signup.SignedAt = time.Now().UTC()
	}
	m.signups = append(m.signups, signup)
	return nil
}

func (m *memStore) Leave(_ context.Context, eventID, tgUserID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.signups[:0]
	for _, s := range m.signups {
		if s.EventID != eventID || s.TGUserID != tgUserID {
			kept = append(kept, s)
		}
	}
	m.signups = kept
	return nil
}

func (m *memStore) IsSignedUp(_ context.Context, eventID, tgUserID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.signups {
		if s.EventID == eventID && s.TGUserID == tgUserID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CountSignups(_ context.Context, eventID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.signups {
		if s.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListParticipants(_ context.Context, eventID int64) ([]domain.Signup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Signup
	for _, s := range m.signups {
		if s.EventID == eventID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *memStore) ListUserEvents(_ context.Context, tgUserID int64, today time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Event
	for _, s := range m.signups {
		if s.TGUserID != tgUserID {
			continue
		}
		event := m.events[s.EventID]
		if !event.DateEnd.Before(domain.ToDate(today)) {
			result = append(result, event)
		}
	}
	return result, nil
}

func (m *memStore) UpsertReport(_ context.Context, report domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reportKey{report.EventID, report.TGUserID, domain.ToDate(report.Date)}
	m.reports[key] = report
	return nil
}

func (m *memStore) HasReport(_ context.Context, eventID, tgUserID int64, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reports[reportKey{eventID, tgUserID, domain.ToDate(date)}]
	return ok, nil
}

func (m *memStore) ListReportRows(_ context.Context, eventID int64) ([]domain.ReportRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []domain.ReportRow
	for key, report := range m.reports {
		if key.eventID != eventID {
			continue
		}
		for _, s := range m.signups {
			if s.EventID == eventID && s.TGUserID == key.tgUserID {
				value := report.Value
				rows = append(rows, domain.ReportRow{
					TGUserID:   s.TGUserID,
					TGName:     s.TGName,
					TGUsername: s.TGUsername,
					Value:      &value,
					SignedAt:   s.SignedAt,
				})
			}
		}
	}
	return rows, nil
}

func newTestService(t *testing.T) (*Service, *memStore, domain.Event) {
	t.Helper()
	store := newMemStore()
	service := NewService(store, store, store)
	limit := 1
	event, err := service.Create(context.Background(), domain.Event{
		Title:     "Забег",
		DateStart: mustDate(t, "2024-05-01"),
		DateEnd:   mustDate(t, "2024-05-03"),
		Capacity:  &limit,
	})
	if err != nil {
		t.Fatalf("не удалось создать событие: %v", err)
	}
	return service, store, event
}

func TestJoinCapacityScenario(t *testing.T) {
	service, _, event := newTestService(t)
	ctx := context.Background()
	today := mustDate(t, "2024-05-01")

	if err := service.Join(ctx, event.ID, domain.Signup{TGUserID: 1, TGName: "Аня"}, today); err != nil {
		t.Fatalf("первая запись должна пройти: %v", err)
	}
	if err := service.Join(ctx, event.ID, domain.Signup{TGUserID: 2, TGName: "Борис"}, today); !errors.Is(err, domain.ErrEventFull) {
		t.Fatalf("ожидали ErrEventFull, получили %v", err)
	}
	if err := service.Leave(ctx, event.ID, 1); err != nil {
		t.Fatalf("отписка должна пройти: %v", err)
	}
	if err := service.Join(ctx, event.ID, domain.Signup{TGUserID: 2, TGName: "Борис"}, today); err != nil {
		t.Fatalf("после освобождения места запись должна пройти: %v", err)
	}
}

func TestJoinDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	service := NewService(store, store, store)
	event, _ := service.Create(ctx, domain.Event{Title: "Поход", DateStart: mustDate(t, "2024-05-01"), DateEnd: mustDate(t, "2024-05-03")})
	today := mustDate(t, "2024-05-01")

	if err := service.Join(ctx, event.ID, domain.Signup{TGUserID: 7}, today); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := service.Join(ctx, event.ID, domain.Signup{TGUserID: 7}, today); !errors.Is(err, domain.ErrAlreadySignedUp) {
		t.Fatalf("ожидали ErrAlreadySignedUp, получили %v", err)
	}
	count, _ := service.CountSignups(ctx, event.ID)
	if count != 1 {
		t.Fatalf("повторная запись не должна создавать строк, получили %d", count)
	}
}

func TestJoinFinishedEvent(t *testing.T) {
	service, _, event := newTestService(t)
	if err := service.Join(context.Background(), event.ID, domain.Signup{TGUserID: 1}, mustDate(t, "2024-05-10")); !errors.Is(err, domain.ErrEventFinished) {
		t.Fatalf("ожидали ErrEventFinished, получили %v", err)
	}
}

func TestJoinConcurrentSingleSlot(t *testing.T) {
	service, _, event := newTestService(t)
	today := mustDate(t, "2024-05-01")

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = service.Join(context.Background(), event.ID, domain.Signup{TGUserID: int64(i + 1)}, today)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrEventFull) {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("при одном свободном месте должна пройти ровно одна запись, прошло %d", succeeded)
	}
}

func TestReportReplacementInLeaderboard(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	service := NewService(store, store, store)
	event, _ := service.Create(ctx, domain.Event{
		Title:          "Шаги",
		DateStart:      mustDate(t, "2024-05-01"),
		DateEnd:        mustDate(t, "2024-05-07"),
		ReportRequired: true,
		ReportSchedule: domain.ScheduleDaily,
	})
	today := mustDate(t, "2024-05-01")
	if err := service.Join(ctx, event.ID, domain.Signup{TGUserID: 1, TGName: "Аня"}, today); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if err := service.SubmitReport(ctx, domain.Report{EventID: event.ID, TGUserID: 1, Date: today, Value: 10}); err != nil {
		t.Fatalf("первый отчёт должен сохраниться: %v", err)
	}
	entries, _ := service.Leaderboard(ctx, event.ID)
	if len(entries) != 1 || entries[0].Total != 10 {
		t.Fatalf("ожидали сумму 10, получили %+v", entries)
	}

	if err := service.SubmitReport(ctx, domain.Report{EventID: event.ID, TGUserID: 1, Date: today, Value: 5}); err != nil {
		t.Fatalf("повторный отчёт должен заменить прежний: %v", err)
	}
	entries, _ = service.Leaderboard(ctx, event.ID)
	if len(entries) != 1 || entries[0].Total != 5 {
		t.Fatalf("повтор должен заменять, а не суммировать: %+v", entries)
	}
}

func TestSubmitReportRequiresSignup(t *testing.T) {
	service, _, event := newTestService(t)
	err := service.SubmitReport(context.Background(), domain.Report{EventID: event.ID, TGUserID: 99, Date: mustDate(t, "2024-05-01"), Value: 1})
	if !errors.Is(err, domain.ErrNotSignedUp) {
		t.Fatalf("ожидали ErrNotSignedUp, получили %v", err)
	}
}
