package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sportsbot/internal/domain"
)

// Кнопки основной reply-клавиатуры.
const (
	btnEvents    = "🏅 События"
	btnMySignups = "📝 Мои регистрации"
	btnAddEvent  = "➕ Добавить событие"
)

// mainKeyboard — постоянная клавиатура под полем ввода. Кнопка добавления
// показывается только администраторам.
func mainKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnEvents),
			tgbotapi.NewKeyboardButton(btnMySignups),
		),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnAddEvent)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// eventKeyboard — inline-кнопки под карточкой события. Состав зависит от
// записи пользователя, наличия мест и прав администратора.
func eventKeyboard(event domain.Event, signed, hasSeats, isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	switch {
	case signed:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отписаться", fmt.Sprintf("leave:%d", event.ID)),
		))
	case hasSeats:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Записаться", fmt.Sprintf("join:%d", event.ID)),
		))
	default:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Мест нет", "noop"),
		))
	}

	if event.ReportRequired {
		var second []tgbotapi.InlineKeyboardButton
		if signed {
			second = append(second, tgbotapi.NewInlineKeyboardButtonData("📝 Отчёт", fmt.Sprintf("report:%d", event.ID)))
		}
		second = append(second, tgbotapi.NewInlineKeyboardButtonData("🏆 Рейтинг", fmt.Sprintf("lb:%d", event.ID)))
		rows = append(rows, second)
	}

	// Список участников — персональные данные, кнопка только для админов.
	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Участники", fmt.Sprintf("plist:%d", event.ID)),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Изменить", fmt.Sprintf("edit:%d", event.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", fmt.Sprintf("del:%d", event.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// confirmDeleteKeyboard запрашивает подтверждение удаления.
func confirmDeleteKeyboard(eventID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Да, удалить", fmt.Sprintf("delok:%d", eventID)),
			tgbotapi.NewInlineKeyboardButtonData("Отмена", "noop"),
		),
	)
}
