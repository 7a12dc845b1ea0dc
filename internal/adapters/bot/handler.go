package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sportsbot/internal/adapters/telegram"
	"sportsbot/internal/domain"
	"sportsbot/internal/infra/metrics"
	"sportsbot/internal/usecase/dialog"
	"sportsbot/internal/usecase/events"
)

// msgAdminOnly — отказ для действий, доступных только администраторам.
const msgAdminOnly = "Только админ."

// Handler обслуживает вебхук бота.
type Handler struct {
	bot     *tgbotapi.BotAPI
	log     zerolog.Logger
	eventUC *events.Service
	dialogs *dialog.Service
	isAdmin func(int64) bool
	loc     *time.Location
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, eventUC *events.Service, dialogs *dialog.Service, isAdmin func(int64) bool, loc *time.Location) *Handler {
	return &Handler{
		bot:     bot,
		log:     log,
		eventUC: eventUC,
		dialogs: dialogs,
		isAdmin: isAdmin,
		loc:     loc,
	}
}

// today возвращает текущую календарную дату в рабочем часовом поясе.
func (h *Handler) today() time.Time {
	return domain.ToDate(time.Now().In(h.loc))
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}

	if dialogOwnsMessage(h.dialogs.Active(msg.From.ID), text) {
		h.continueDialog(ctx, msg, text)
		return
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, h.buildStartMessage(), mainKeyboard(h.isAdmin(msg.From.ID)))
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(msg.From.ID), mainKeyboard(h.isAdmin(msg.From.ID)))
	case text == btnEvents, strings.HasPrefix(text, "/events"):
		h.sendEvents(ctx, msg.Chat.ID, msg.From.ID)
	case text == btnMySignups, strings.HasPrefix(text, "/my"):
		h.sendMySignups(ctx, msg.Chat.ID, msg.From.ID)
	case text == btnAddEvent:
		h.startAddEvent(msg.Chat.ID, msg.From.ID)
	case strings.HasPrefix(text, "/addevent"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/addevent"))
		h.handleAddEvent(ctx, msg.Chat.ID, msg.From.ID, payload)
	case strings.HasPrefix(text, "/participants"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/participants"))
		h.handleParticipants(ctx, msg.Chat.ID, msg.From.ID, payload)
	case strings.HasPrefix(text, "/cancel"):
		if h.dialogs.Cancel(msg.From.ID) {
			h.reply(msg.Chat.ID, "Ок, отменяю.", nil)
		} else {
			h.reply(msg.Chat.ID, "Нечего отменять.", nil)
		}
	default:
		h.reply(msg.Chat.ID, "Не понимаю. Нажми кнопку внизу или отправь /help", nil)
	}
}

func (h *Handler) continueDialog(ctx context.Context, msg *tgbotapi.Message, text string) {
	in := dialog.Input{
		TGUserID: msg.From.ID,
		Name:     strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		Username: msg.From.UserName,
		Text:     text,
		PhotoID:  photoProofID(msg),
		Today:    h.today(),
	}
	answer, err := h.dialogs.Handle(ctx, in)
	if err != nil {
		if errors.Is(err, dialog.ErrNoSession) {
			return
		}
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("диалог не обработан")
		return
	}
	h.reply(msg.Chat.ID, answer, nil)
}

// dialogOwnsMessage решает, перехватывает ли открытая сессия сообщение.
// Сессия получает всё, кроме команды отмены; слова отмены («отмена», cancel)
// обрабатывает сам диалог.
func dialogOwnsMessage(active bool, text string) bool {
	return active && !strings.HasPrefix(text, "/cancel")
}

// photoProofID достаёт file_id фото-пруфа: сжатое фото либо документ-картинка.
func photoProofID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		// Telegram присылает варианты фото по возрастанию размера.
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

func (h *Handler) buildStartMessage() string {
	return strings.Join([]string{
		"👋 Привет! Я помогаю со спортивными событиями:",
		"",
		"🏅 смотри список событий и записывайся в один клик,",
		"📝 отправляй отчёты и следи за рейтингом,",
		"⏰ напомню о старте и про отчёты.",
		"",
		"Начни с кнопки «" + btnEvents + "».",
	}, "\n")
}

func (h *Handler) buildHelpMessage(tgUserID int64) string {
	lines := []string{
		"Команды:",
		"/events — текущие события",
		"/my — мои регистрации",
		"/cancel — прервать диалог",
	}
	if h.isAdmin(tgUserID) {
		lines = append(lines,
			"",
			"Для администраторов:",
			"/participants id — участники события",
			"/addevent — мастер создания события",
			"/addevent эмодзи | название | дата начала | дата окончания | лимит | локация | описание | награды — создание одной строкой",
		)
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) sendEvents(ctx context.Context, chatID, tgUserID int64) {
	list, err := h.eventUC.ListCurrent(ctx, h.today())
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить список событий")
		h.reply(chatID, "Не удалось получить события. Попробуй позже.", nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "Сейчас нет открытых событий. Загляни позже!", nil)
		return
	}
	for _, event := range list {
		h.sendEventCard(ctx, chatID, tgUserID, event)
	}
}

func (h *Handler) sendMySignups(ctx context.Context, chatID, tgUserID int64) {
	list, err := h.eventUC.MySignups(ctx, tgUserID, h.today())
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить регистрации")
		h.reply(chatID, "Не удалось получить твои регистрации. Попробуй позже.", nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "Ты пока никуда не записан(а). Жми «"+btnEvents+"».", nil)
		return
	}
	for _, event := range list {
		h.sendEventCard(ctx, chatID, tgUserID, event)
	}
}

func (h *Handler) sendEventCard(ctx context.Context, chatID, tgUserID int64, event domain.Event) {
	taken, err := h.eventUC.CountSignups(ctx, event.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("event", event.ID).Msg("не удалось посчитать записи")
		return
	}
	signed, err := h.eventUC.IsSignedUp(ctx, event.ID, tgUserID)
	if err != nil {
		h.log.Error().Err(err).Int64("event", event.ID).Msg("не удалось проверить запись")
		return
	}
	keyboard := eventKeyboard(event, signed, domain.CapacityAvailable(event.Capacity, taken), h.isAdmin(tgUserID))
	h.reply(chatID, eventCard(event, taken, signed, h.today()), keyboard)
}

func (h *Handler) startAddEvent(chatID, tgUserID int64) {
	if !h.isAdmin(tgUserID) {
		h.reply(chatID, "Добавлять события могут только администраторы.", nil)
		return
	}
	h.reply(chatID, h.dialogs.StartCreate(tgUserID), nil)
}

func (h *Handler) handleAddEvent(ctx context.Context, chatID, tgUserID int64, payload string) {
	if !h.isAdmin(tgUserID) {
		h.reply(chatID, "Добавлять события могут только администраторы.", nil)
		return
	}
	if payload == "" {
		h.reply(chatID, h.dialogs.StartCreate(tgUserID), nil)
		return
	}
	event, err := events.ParseEventLine(payload)
	if err != nil {
		h.reply(chatID, "Не разобрал строку. Формат: эмодзи | название | дата начала | дата окончания | лимит | локация | описание | награды", nil)
		return
	}
	created, err := h.eventUC.Create(ctx, event)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Не удалось создать событие: %v", err), nil)
		return
	}
	h.reply(chatID, fmt.Sprintf("Событие «%s» добавлено ✅ (id %d)", created.Title, created.ID), nil)
}

func (h *Handler) handleParticipants(ctx context.Context, chatID, tgUserID int64, payload string) {
	if !h.isAdmin(tgUserID) {
		h.reply(chatID, msgAdminOnly, nil)
		return
	}
	eventID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || eventID <= 0 {
		h.reply(chatID, "Укажи идентификатор события: /participants 3", nil)
		return
	}
	h.sendParticipants(ctx, chatID, eventID)
}

func (h *Handler) sendParticipants(ctx context.Context, chatID, eventID int64) {
	event, err := h.eventUC.Get(ctx, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		h.reply(chatID, "Событие не найдено.", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось получить событие")
		h.reply(chatID, "Не удалось получить событие. Попробуй позже.", nil)
		return
	}
	participants, err := h.eventUC.Participants(ctx, eventID)
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось получить участников")
		h.reply(chatID, "Не удалось получить участников. Попробуй позже.", nil)
		return
	}
	h.reply(chatID, participantsText(event, participants), nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	action, eventID := parseCallback(cb.Data)

	ackText := ""
	if adminOnlyCallback(action) && !h.isAdmin(cb.From.ID) {
		ackText = msgAdminOnly
	} else {
		switch action {
		case "join":
			h.handleJoin(ctx, cb, eventID)
		case "leave":
			h.handleLeave(ctx, cb, eventID)
		case "report":
			h.handleReportStart(ctx, chatID, cb.From.ID, eventID)
		case "lb":
			h.sendLeaderboard(ctx, chatID, eventID)
		case "plist":
			h.sendParticipants(ctx, chatID, eventID)
		case "edit":
			h.handleEditStart(ctx, chatID, cb.From.ID, eventID)
		case "del":
			h.reply(chatID, "Точно удалить событие вместе с записями и отчётами?", confirmDeleteKeyboard(eventID))
		case "delok":
			h.handleDelete(ctx, chatID, eventID)
		case "noop":
		}
	}

	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ackText))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleJoin(ctx context.Context, cb *tgbotapi.CallbackQuery, eventID int64) {
	chatID := cb.Message.Chat.ID
	signup := domain.Signup{
		TGUserID:   cb.From.ID,
		TGUsername: cb.From.UserName,
		TGName:     strings.TrimSpace(cb.From.FirstName + " " + cb.From.LastName),
	}
	err := h.eventUC.Join(ctx, eventID, signup, h.today())
	switch {
	case errors.Is(err, domain.ErrAlreadySignedUp):
		h.reply(chatID, "Ты уже записан(а) на это событие.", nil)
	case errors.Is(err, domain.ErrEventFull):
		h.reply(chatID, "Увы, мест больше нет.", nil)
	case errors.Is(err, domain.ErrEventFinished):
		h.reply(chatID, "Событие уже завершилось.", nil)
	case errors.Is(err, domain.ErrEventInactive):
		h.reply(chatID, "Запись на это событие закрыта.", nil)
	case errors.Is(err, domain.ErrEventNotFound):
		h.reply(chatID, "Событие не найдено.", nil)
	case err != nil:
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось записать пользователя")
		h.reply(chatID, "Не удалось записаться. Попробуй позже.", nil)
	default:
		h.reply(chatID, "Записал(а) ✅", nil)
		h.refreshCard(ctx, cb, eventID)
	}
}

func (h *Handler) handleLeave(ctx context.Context, cb *tgbotapi.CallbackQuery, eventID int64) {
	chatID := cb.Message.Chat.ID
	if err := h.eventUC.Leave(ctx, eventID, cb.From.ID); err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось снять запись")
		h.reply(chatID, "Не удалось отписаться. Попробуй позже.", nil)
		return
	}
	h.reply(chatID, "Запись снята.", nil)
	h.refreshCard(ctx, cb, eventID)
}

// refreshCard перерисовывает карточку события под сообщением callback'а,
// чтобы кнопки и счётчик мест соответствовали новому состоянию.
func (h *Handler) refreshCard(ctx context.Context, cb *tgbotapi.CallbackQuery, eventID int64) {
	event, err := h.eventUC.Get(ctx, eventID)
	if err != nil {
		return
	}
	taken, err := h.eventUC.CountSignups(ctx, eventID)
	if err != nil {
		return
	}
	signed, err := h.eventUC.IsSignedUp(ctx, eventID, cb.From.ID)
	if err != nil {
		return
	}
	keyboard := eventKeyboard(event, signed, domain.CapacityAvailable(event.Capacity, taken), h.isAdmin(cb.From.ID))
	edit := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, eventCard(event, taken, signed, h.today()), keyboard)
	edit.ParseMode = tgbotapi.ModeHTML
	start := time.Now()
	_, err = h.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", strconv.FormatInt(cb.Message.Chat.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось обновить карточку")
	}
}

func (h *Handler) handleReportStart(ctx context.Context, chatID, tgUserID, eventID int64) {
	answer, err := h.dialogs.StartReport(ctx, tgUserID, eventID, h.today())
	switch {
	case errors.Is(err, domain.ErrNotSignedUp):
		h.reply(chatID, "Сначала запишись на событие, потом присылай отчёты.", nil)
	case errors.Is(err, dialog.ErrReportsDisabled):
		h.reply(chatID, "По этому событию отчёты не собираются.", nil)
	case errors.Is(err, dialog.ErrFinalTooEarly):
		h.reply(chatID, "Финальный отчёт принимается в день окончания события.", nil)
	case errors.Is(err, domain.ErrEventNotFound):
		h.reply(chatID, "Событие не найдено.", nil)
	case err != nil:
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось открыть отчёт")
		h.reply(chatID, "Не удалось открыть отчёт. Попробуй позже.", nil)
	default:
		h.reply(chatID, answer, nil)
	}
}

func (h *Handler) sendLeaderboard(ctx context.Context, chatID, eventID int64) {
	event, err := h.eventUC.Get(ctx, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		h.reply(chatID, "Событие не найдено.", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось получить событие")
		h.reply(chatID, "Не удалось получить рейтинг. Попробуй позже.", nil)
		return
	}
	entries, err := h.eventUC.Leaderboard(ctx, eventID)
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось собрать рейтинг")
		h.reply(chatID, "Не удалось получить рейтинг. Попробуй позже.", nil)
		return
	}
	h.reply(chatID, leaderboardText(event, entries), nil)
}

func (h *Handler) handleEditStart(ctx context.Context, chatID, tgUserID, eventID int64) {
	answer, err := h.dialogs.StartEdit(ctx, tgUserID, eventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		h.reply(chatID, "Событие не найдено.", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось открыть редактирование")
		h.reply(chatID, "Не удалось открыть редактирование. Попробуй позже.", nil)
		return
	}
	h.reply(chatID, answer, nil)
}

func (h *Handler) handleDelete(ctx context.Context, chatID, eventID int64) {
	if err := h.eventUC.Delete(ctx, eventID); err != nil {
		h.log.Error().Err(err).Int64("event", eventID).Msg("не удалось удалить событие")
		h.reply(chatID, "Не удалось удалить событие. Попробуй позже.", nil)
		return
	}
	h.reply(chatID, "Событие удалено 🗑", nil)
}

// adminOnlyCallback отмечает callback-действия, закрытые для обычных
// пользователей. Им в ответ уходит только всплывающий отказ.
func adminOnlyCallback(action string) bool {
	switch action {
	case "plist", "edit", "del", "delok":
		return true
	}
	return false
}

func parseCallback(data string) (string, int64) {
	parts := strings.Split(data, ":")
	if len(parts) == 1 {
		return parts[0], 0
	}
	id, _ := strconv.ParseInt(parts[1], 10, 64)
	return parts[0], id
}

// reply отправляет текст, при необходимости разрезая его на части.
// Клавиатура прикрепляется только к первой части.
func (h *Handler) reply(chatID int64, text string, keyboard interface{}) {
	for i, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}
