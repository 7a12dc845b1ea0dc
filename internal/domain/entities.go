package domain

import "time"

// ReportSchedule определяет расписание отчётов по событию.
type ReportSchedule string

const (
	ScheduleNone  ReportSchedule = "none"
	ScheduleDaily ReportSchedule = "daily"
	ScheduleFinal ReportSchedule = "final"
)

// NotifyKind определяет тип отправленного напоминания.
type NotifyKind string

const (
	NotifyStart       NotifyKind = "start"
	NotifyStartInTwo  NotifyKind = "start-2"
	NotifyReportDaily NotifyKind = "report-daily"
	NotifyReportFinal NotifyKind = "report-final"
)

// Event описывает спортивное событие.
type Event struct {
	ID                  int64
	Emoji               string
	Title               string
	DateStart           time.Time
	DateEnd             time.Time
	Location            string
	Description         string
	Rewards             string
	Capacity            *int
	ReportRequired      bool
	ReportSchedule      ReportSchedule
	ReportUnit          string
	ReportPhotoRequired bool
	IsActive            bool
}

// Signup описывает запись пользователя на событие.
type Signup struct {
	EventID    int64
	TGUserID   int64
	TGUsername string
	TGName     string
	SignedAt   time.Time
}

// Report представляет отчёт пользователя за конкретный день.
type Report struct {
	EventID   int64
	TGUserID  int64
	Date      time.Time
	Value     float64
	Comment   string
	PhotoID   string
	CreatedAt time.Time
}

// ReportRow — один отчёт одного участника вместе с данными его записи.
// Из таких строк собирается рейтинг.
type ReportRow struct {
	TGUserID   int64
	TGName     string
	TGUsername string
	Value      *float64
	SignedAt   time.Time
}

// LeaderboardEntry — итоговая позиция участника в рейтинге.
type LeaderboardEntry struct {
	TGUserID   int64
	TGName     string
	TGUsername string
	Total      float64
}

// NotifyJob — задача на доставку одного напоминания.
type NotifyJob struct {
	ID          string     `json:"id"`
	ChatID      int64      `json:"chat_id"`
	EventID     int64      `json:"event_id"`
	Kind        NotifyKind `json:"kind"`
	Text        string     `json:"text"`
	RequestedAt time.Time  `json:"requested_at"`
}
