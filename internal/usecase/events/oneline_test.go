package events

import (
	"errors"
	"testing"
	"time"

	"sportsbot/internal/domain"
)

func TestParseEventLineTwoDates(t *testing.T) {
	event, err := ParseEventLine("Весенний марафон | 2024-05-01 | 03.05.2024 | 30 | парк | бег | медали")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if event.Emoji != "" || event.Title != "Весенний марафон" {
		t.Fatalf("неверный заголовок: %+v", event)
	}
	if !event.DateStart.Equal(mustDate(t, "2024-05-01")) || !event.DateEnd.Equal(mustDate(t, "2024-05-03")) {
		t.Fatalf("неверные даты: %+v", event)
	}
	if event.Capacity == nil || *event.Capacity != 30 {
		t.Fatalf("ожидали лимит 30, получили %+v", event.Capacity)
	}
	if event.Location != "парк" || event.Description != "бег" || event.Rewards != "медали" {
		t.Fatalf("неверный хвост: %+v", event)
	}
}

func TestParseEventLineEmojiAndTwoDates(t *testing.T) {
	event, err := ParseEventLine("🚴 | Велозаезд | 2024-06-01 | 2024-06-02 | без лимита | трасса")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if event.Emoji != "🚴" || event.Title != "Велозаезд" {
		t.Fatalf("эмодзи должно уйти в отдельное поле: %+v", event)
	}
	if event.Capacity != nil {
		t.Fatalf("«без лимита» должен давать nil, получили %v", *event.Capacity)
	}
}

func TestParseEventLineSingleDate(t *testing.T) {
	event, err := ParseEventLine("Забег | 2024-07-10 | 10 | стадион | утро")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !event.DateStart.Equal(event.DateEnd) {
		t.Fatalf("одна дата — однодневное событие: %+v", event)
	}
}

func TestParseEventLineEmojiSingleDate(t *testing.T) {
	event, err := ParseEventLine("🏊 | Заплыв | 10.07.2024 | - | бассейн")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if event.Emoji != "🏊" || !event.DateStart.Equal(event.DateEnd) {
		t.Fatalf("неверный разбор: %+v", event)
	}
	if event.Capacity != nil {
		t.Fatalf("«-» в лимите означает «без лимита»")
	}
}

func TestParseEventLineErrors(t *testing.T) {
	if _, err := ParseEventLine("слишком | мало | полей"); !errors.Is(err, ErrLineFormat) {
		t.Fatalf("ожидали ErrLineFormat, получили %v", err)
	}
	if _, err := ParseEventLine("без дат | вообще | нигде | тут | и тут"); !errors.Is(err, ErrLineFormat) {
		t.Fatalf("ожидали ErrLineFormat при отсутствии дат, получили %v", err)
	}
	if _, err := ParseEventLine("Событие | 2024-05-03 | 2024-05-01 | 10 | парк"); !errors.Is(err, ErrDateOrder) {
		t.Fatalf("ожидали ErrDateOrder, получили %v", err)
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := domain.ParseDate(s)
	if err != nil {
		t.Fatalf("не удалось разобрать дату %s: %v", s, err)
	}
	return parsed
}
