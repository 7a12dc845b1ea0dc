package bot

import (
	"fmt"
	"strings"
	"time"

	"sportsbot/internal/domain"
)

// defaultEmoji подставляется в карточку, когда у события нет своего эмодзи.
const defaultEmoji = "🏅"

func eventEmoji(event domain.Event) string {
	if event.Emoji != "" {
		return event.Emoji
	}
	return defaultEmoji
}

// eventRow — строка события в списке: эмодзи, название, даты, места.
func eventRow(event domain.Event, taken int, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b>\n", eventEmoji(event), event.Title)
	fmt.Fprintf(&b, "📅 %s", domain.RuRange(event.DateStart, event.DateEnd))
	if status := domain.StatusFor(today, event.DateStart, event.DateEnd); status != domain.StatusInProgress {
		fmt.Fprintf(&b, " (%s)", status)
	}
	b.WriteString("\n")
	b.WriteString(seatsLine(event, taken))
	return b.String()
}

func seatsLine(event domain.Event, taken int) string {
	if event.Capacity == nil {
		return fmt.Sprintf("👥 Участников: %d", taken)
	}
	if !domain.CapacityAvailable(event.Capacity, taken) {
		return fmt.Sprintf("👥 Мест нет (%d/%d)", taken, *event.Capacity)
	}
	return fmt.Sprintf("👥 Мест: %d/%d", taken, *event.Capacity)
}

// eventCard — развёрнутая карточка события под inline-кнопками.
func eventCard(event domain.Event, taken int, signed bool, today time.Time) string {
	var b strings.Builder
	b.WriteString(eventRow(event, taken, today))
	if event.Location != "" {
		fmt.Fprintf(&b, "\n📍 %s", event.Location)
	}
	if event.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", event.Description)
	}
	if event.Rewards != "" {
		fmt.Fprintf(&b, "\n🎁 %s", event.Rewards)
	}
	if event.ReportRequired {
		b.WriteString("\n" + reportLine(event))
	}
	if signed {
		b.WriteString("\n\n✅ Ты записан(а)")
	}
	return b.String()
}

func reportLine(event domain.Event) string {
	var b strings.Builder
	switch event.ReportSchedule {
	case domain.ScheduleDaily:
		b.WriteString("📝 Отчёты: каждый день")
	case domain.ScheduleFinal:
		b.WriteString("📝 Отчёт: в день финала")
	default:
		b.WriteString("📝 Отчёты обязательны")
	}
	if event.ReportUnit != "" {
		fmt.Fprintf(&b, ", в «%s»", event.ReportUnit)
	}
	if event.ReportPhotoRequired {
		b.WriteString(", с фото-пруфом")
	}
	return b.String()
}

func participantName(name, username string) string {
	label := strings.TrimSpace(name)
	if label == "" {
		label = "Без имени"
	}
	if username != "" {
		label += " (@" + username + ")"
	}
	return label
}

// participantsText — нумерованный список участников по порядку записи.
func participantsText(event domain.Event, participants []domain.Signup) string {
	if len(participants) == 0 {
		return fmt.Sprintf("На «%s» пока никто не записался.", event.Title)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Участники «%s» (%d):\n", event.Title, len(participants))
	for i, p := range participants {
		fmt.Fprintf(&b, "%d. %s\n", i+1, participantName(p.TGName, p.TGUsername))
	}
	return b.String()
}

var medals = [...]string{"🥇", "🥈", "🥉"}

// leaderboardText — рейтинг события по сумме отчётов.
func leaderboardText(event domain.Event, entries []domain.LeaderboardEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("По «%s» ещё нет отчётов.", event.Title)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Рейтинг «%s»:\n", event.Title)
	for i, entry := range entries {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		fmt.Fprintf(&b, "%s %s — %s", place, participantName(entry.TGName, entry.TGUsername), domain.FormatTotal(entry.Total))
		if event.ReportUnit != "" {
			b.WriteString(" " + event.ReportUnit)
		}
		b.WriteString("\n")
	}
	return b.String()
}
