package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EventStatus — статус события относительно текущего дня.
type EventStatus string

const (
	StatusNotStarted EventStatus = "ещё не началось"
	StatusInProgress EventStatus = "идёт сейчас"
	StatusFinished   EventStatus = "завершено"
)

// leaderboardLimit ограничивает количество строк рейтинга.
const leaderboardLimit = 20

// StatusFor вычисляет статус события на указанный день.
func StatusFor(today, start, end time.Time) EventStatus {
	today, start, end = ToDate(today), ToDate(start), ToDate(end)
	if today.Before(start) {
		return StatusNotStarted
	}
	if today.After(end) {
		return StatusFinished
	}
	return StatusInProgress
}

// CapacityAvailable сообщает, остались ли свободные места.
func CapacityAvailable(capacity *int, taken int) bool {
	return capacity == nil || taken < *capacity
}

// ToDate отбрасывает время, оставляя календарную дату в UTC.
func ToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfDay возвращает полночь того же дня в исходном часовом поясе.
// В отличие от ToDate это момент времени, а не календарная дата: именно с
// ним сравнивается wall-clock sent_at квитанций.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate разбирает дату в формате YYYY-MM-DD либо DD.MM.YYYY.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := "02.01.2006"
	if strings.Contains(s, "-") {
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return ToDate(t), nil
}

// IsDateLike сообщает, похожа ли строка на дату.
func IsDateLike(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// noLimitWords — варианты ответа «лимита нет».
var noLimitWords = map[string]struct{}{
	"без лимита": {}, "безлимита": {}, "нет": {}, "-": {}, "—": {}, "": {},
}

// ParseCapacity разбирает лимит мест: число либо «без лимита».
func ParseCapacity(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if _, ok := noLimitWords[strings.ToLower(s)]; ok {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil, ErrInvalidCapacity
	}
	return &n, nil
}

var ruMonthsGen = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// RuDate форматирует дату по-русски: «3 мая 2024».
func RuDate(d time.Time) string {
	return fmt.Sprintf("%d %s %d", d.Day(), ruMonthsGen[d.Month()-1], d.Year())
}

// RuRange форматирует диапазон дат, сжимая совпадающие месяц и год.
func RuRange(d1, d2 time.Time) string {
	d1, d2 = ToDate(d1), ToDate(d2)
	switch {
	case d1.Equal(d2):
		return RuDate(d1)
	case d1.Year() == d2.Year() && d1.Month() == d2.Month():
		return fmt.Sprintf("%d–%d %s %d", d1.Day(), d2.Day(), ruMonthsGen[d1.Month()-1], d1.Year())
	case d1.Year() == d2.Year():
		return fmt.Sprintf("%d %s — %d %s %d", d1.Day(), ruMonthsGen[d1.Month()-1], d2.Day(), ruMonthsGen[d2.Month()-1], d1.Year())
	default:
		return RuDate(d1) + " — " + RuDate(d2)
	}
}

// Leaderboard собирает рейтинг: суммирует значения отчётов по участникам,
// сортирует по убыванию суммы, при равенстве — по порядку записи на событие.
// Возвращает не более двадцати позиций.
func Leaderboard(rows []ReportRow) []LeaderboardEntry {
	type acc struct {
		entry    LeaderboardEntry
		signedAt time.Time
	}
	totals := make(map[int64]*acc)
	order := make([]int64, 0, len(rows))
	for _, row := range rows {
		a, ok := totals[row.TGUserID]
		if !ok {
			a = &acc{
				entry: LeaderboardEntry{
					TGUserID:   row.TGUserID,
					TGName:     row.TGName,
					TGUsername: row.TGUsername,
				},
				signedAt: row.SignedAt,
			}
			totals[row.TGUserID] = a
			order = append(order, row.TGUserID)
		}
		if row.Value != nil {
			a.entry.Total += *row.Value
		}
	}
	entries := make([]*acc, 0, len(order))
	for _, id := range order {
		entries = append(entries, totals[id])
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].entry.Total != entries[j].entry.Total {
			return entries[i].entry.Total > entries[j].entry.Total
		}
		return entries[i].signedAt.Before(entries[j].signedAt)
	})
	if len(entries) > leaderboardLimit {
		entries = entries[:leaderboardLimit]
	}
	result := make([]LeaderboardEntry, 0, len(entries))
	for _, a := range entries {
		result = append(result, a.entry)
	}
	return result
}

// FormatTotal печатает сумму без хвоста: целые — без дробной части,
// остальные — с округлением до двух знаков.
func FormatTotal(total float64) string {
	if total == float64(int64(total)) {
		return strconv.FormatInt(int64(total), 10)
	}
	return strconv.FormatFloat(total, 'f', 2, 64)
}
