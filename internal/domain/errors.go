package domain

import "errors"

var (
	// ErrEventNotFound возвращается при обращении к несуществующему событию.
	ErrEventNotFound = errors.New("событие не найдено")
	// ErrAlreadySignedUp возвращается при повторной записи на событие.
	ErrAlreadySignedUp = errors.New("пользователь уже записан")
	// ErrEventFull возвращается, когда лимит мест исчерпан.
	ErrEventFull = errors.New("свободных мест нет")
	// ErrEventFinished возвращается при записи на завершённое событие.
	ErrEventFinished = errors.New("событие уже завершено")
	// ErrEventInactive возвращается для выключенных событий.
	ErrEventInactive = errors.New("событие выключено")
	// ErrNotSignedUp возвращается, когда требуется действующая запись.
	ErrNotSignedUp = errors.New("нет записи на событие")
	// ErrInvalidDate возвращается при неразборчивой дате.
	ErrInvalidDate = errors.New("неверный формат даты: используйте YYYY-MM-DD или DD.MM.YYYY")
	// ErrInvalidCapacity возвращается при неразборчивом лимите мест.
	ErrInvalidCapacity = errors.New("лимит должен быть числом или «без лимита»")
)
