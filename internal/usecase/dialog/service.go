package dialog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sportsbot/internal/domain"
	"sportsbot/internal/usecase/events"
)

// ErrNoSession возвращается, когда у пользователя нет открытого диалога.
var ErrNoSession = errors.New("открытый диалог не найден")

// msgFailed отправляется при неожиданной ошибке; сессия при этом сбрасывается.
const msgFailed = "Что-то пошло не так. Напиши «Отмена» и начни заново."

// Input — одно входящее сообщение пользователя внутри диалога.
type Input struct {
	TGUserID int64
	Name     string
	Username string
	Text     string
	PhotoID  string
	// Today — текущая календарная дата в рабочем часовом поясе.
	Today time.Time
}

// Service ведёт пошаговые диалоги: создание и редактирование события,
// отправка отчёта.
type Service struct {
	store  Store
	events *events.Service
	log    zerolog.Logger
}

// NewService создаёт движок диалогов.
func NewService(store Store, eventsUC *events.Service, log zerolog.Logger) *Service {
	return &Service{store: store, events: eventsUC, log: log}
}

// Active сообщает, открыт ли у пользователя диалог.
func (s *Service) Active(tgUserID int64) bool {
	_, ok := s.store.Get(tgUserID)
	return ok
}

var cancelWords = map[string]struct{}{
	"отмена": {}, "/cancel": {}, "cancel": {},
}

func isCancel(text string) bool {
	_, ok := cancelWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func isDash(text string) bool {
	switch strings.TrimSpace(text) {
	case "-", "—", "":
		return true
	}
	return false
}

func isYes(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "да", "+", "yes":
		return true
	}
	return false
}

// Handle обрабатывает сообщение пользователя с открытым диалогом.
// Любой шаг принимает слова отмены; ошибка валидации повторяет шаг,
// неожиданная ошибка сбрасывает сессию.
func (s *Service) Handle(ctx context.Context, in Input) (string, error) {
	session, ok := s.store.Get(in.TGUserID)
	if !ok {
		return "", ErrNoSession
	}
	if isCancel(in.Text) {
		s.store.Delete(in.TGUserID)
		return "Ок, отменяю.", nil
	}

	var (
		reply string
		err   error
	)
	switch session.Mode {
	case ModeCreate:
		reply, err = s.handleCreate(ctx, session, in)
	case ModeEdit:
		reply, err = s.handleEdit(ctx, session, in)
	case ModeReport:
		reply, err = s.handleReport(ctx, session, in)
	default:
		s.store.Delete(in.TGUserID)
		return "", ErrNoSession
	}
	if err != nil {
		s.log.Error().Err(err).Int64("user", in.TGUserID).Str("mode", string(session.Mode)).Msg("диалог прерван ошибкой")
		s.store.Delete(in.TGUserID)
		return msgFailed, nil
	}
	return reply, nil
}

// Cancel закрывает диалог пользователя, если он открыт.
func (s *Service) Cancel(tgUserID int64) bool {
	if _, ok := s.store.Get(tgUserID); !ok {
		return false
	}
	s.store.Delete(tgUserID)
	return true
}

// reloadEvent перечитывает событие диалога; если оно удалено, сессия
// закрывается.
func (s *Service) reloadEvent(ctx context.Context, session *Session, tgUserID int64) (domain.Event, bool, error) {
	event, err := s.events.Get(ctx, session.EventID)
	if errors.Is(err, domain.ErrEventNotFound) {
		s.store.Delete(tgUserID)
		return domain.Event{}, false, nil
	}
	if err != nil {
		return domain.Event{}, false, err
	}
	return event, true, nil
}
