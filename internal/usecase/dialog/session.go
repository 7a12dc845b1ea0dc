package dialog

import (
	"sync"
	"time"

	"sportsbot/internal/domain"
)

// Mode — режим открытого диалога.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
	ModeReport Mode = "report"
)

// CreateStep — шаги мастера создания события.
type CreateStep int

const (
	CreateEmoji CreateStep = iota
	CreateTitle
	CreateDateStart
	CreateDateEnd
	CreateCapacity
	CreateLocation
	CreateDescription
	CreateRewards
	CreateReportRequired
	CreateReportSchedule
	CreateReportUnit
	CreateReportPhoto
	CreateConfirm
)

// EditStep — шаги мастера редактирования.
type EditStep int

const (
	EditTitle EditStep = iota
	EditDateStart
	EditDateEnd
	EditLocation
	EditCapacity
	EditDescription
	EditRewards
	EditReportRequired
	EditReportSchedule
	EditReportUnit
	EditReportPhoto
	EditConfirm
)

// ReportStep — шаги отправки отчёта.
type ReportStep int

const (
	ReportPhoto ReportStep = iota
	ReportValue
	ReportComment
)

// EventDraft накапливает поля события по ходу диалога.
type EventDraft struct {
	Emoji               string
	Title               string
	DateStart           time.Time
	DateEnd             time.Time
	Capacity            *int
	Location            string
	Description         string
	Rewards             string
	ReportRequired      bool
	ReportSchedule      domain.ReportSchedule
	ReportUnit          string
	ReportPhotoRequired bool
}

// Event собирает доменное событие из черновика.
func (d EventDraft) Event(id int64) domain.Event {
	schedule := d.ReportSchedule
	if schedule == "" {
		schedule = domain.ScheduleNone
	}
	return domain.Event{
		ID:                  id,
		Emoji:               d.Emoji,
		Title:               d.Title,
		DateStart:           d.DateStart,
		DateEnd:             d.DateEnd,
		Location:            d.Location,
		Description:         d.Description,
		Rewards:             d.Rewards,
		Capacity:            d.Capacity,
		ReportRequired:      d.ReportRequired,
		ReportSchedule:      schedule,
		ReportUnit:          d.ReportUnit,
		ReportPhotoRequired: d.ReportPhotoRequired,
		IsActive:            true,
	}
}

// ReportDraft накапливает поля отчёта.
type ReportDraft struct {
	PhotoID       string
	Value         float64
	PhotoRequired bool
}

// Session — состояние открытого диалога одного пользователя.
type Session struct {
	Mode       Mode
	EventID    int64
	CreateStep CreateStep
	EditStep   EditStep
	ReportStep ReportStep
	Draft      EventDraft
	Report     ReportDraft
}

// Store хранит открытые диалоги по пользователям.
type Store interface {
	Get(tgUserID int64) (*Session, bool)
	Set(tgUserID int64, session *Session)
	Delete(tgUserID int64)
}

// MemoryStore — процесс-локальное хранилище сессий. Сессии живут только
// до завершения диалога и теряются при рестарте.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

// Get возвращает открытую сессию пользователя.
func (s *MemoryStore) Get(tgUserID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[tgUserID]
	return session, ok
}

// Set сохраняет сессию пользователя.
func (s *MemoryStore) Set(tgUserID int64, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tgUserID] = session
}

// Delete закрывает сессию пользователя.
func (s *MemoryStore) Delete(tgUserID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tgUserID)
}
