package events

import (
	"errors"
	"strings"
	"time"

	"sportsbot/internal/domain"
)

// ErrLineFormat возвращается при неразборчивой строке /addevent.
var ErrLineFormat = errors.New("неверный формат строки")

const minLineFields = 5

// ParseEventLine разбирает однострочное описание события вида
// «эмодзи | название | дата начала | дата окончания | лимит | локация | описание | награды».
// Эмодзи и вторая дата необязательны; что из первых полей является датой,
// определяется перебором шаблонов в фиксированном порядке.
func ParseEventLine(payload string) (domain.Event, error) {
	parts := strings.Split(payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < minLineFields {
		return domain.Event{}, ErrLineFormat
	}

	var (
		event      domain.Event
		start, end time.Time
		tail       []string
		err        error
	)
	switch {
	case domain.IsDateLike(parts[1]) && domain.IsDateLike(parts[2]):
		// название | начало | конец | …
		event.Title = parts[0]
		start, _ = domain.ParseDate(parts[1])
		end, _ = domain.ParseDate(parts[2])
		tail = parts[3:]
	case !domain.IsDateLike(parts[1]) && domain.IsDateLike(parts[2]) && domain.IsDateLike(parts[3]):
		// эмодзи | название | начало | конец | …
		event.Emoji, event.Title = parts[0], parts[1]
		start, _ = domain.ParseDate(parts[2])
		end, _ = domain.ParseDate(parts[3])
		tail = parts[4:]
	case domain.IsDateLike(parts[1]):
		// название | дата | … — однодневное событие
		event.Title = parts[0]
		start, _ = domain.ParseDate(parts[1])
		end = start
		tail = parts[2:]
	case domain.IsDateLike(parts[2]):
		// эмодзи | название | дата | …
		event.Emoji, event.Title = parts[0], parts[1]
		start, _ = domain.ParseDate(parts[2])
		end = start
		tail = parts[3:]
	default:
		return domain.Event{}, ErrLineFormat
	}
	if end.Before(start) {
		return domain.Event{}, ErrDateOrder
	}
	event.DateStart, event.DateEnd = start, end

	if len(tail) >= 1 && tail[0] != "" {
		event.Capacity, err = domain.ParseCapacity(tail[0])
		if err != nil {
			return domain.Event{}, ErrLineFormat
		}
	}
	if len(tail) >= 2 {
		event.Location = tail[1]
	}
	if len(tail) >= 3 {
		event.Description = tail[2]
	}
	if len(tail) >= 4 {
		event.Rewards = tail[3]
	}
	event.ReportSchedule = domain.ScheduleNone
	return event, nil
}
