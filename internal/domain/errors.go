package domain

import "errors"

var (
	// ErrThrottled возвращается, когда отправитель превысил лимит частоты.
	ErrThrottled = errors.New("слишком частые сообщения")
	// ErrUnverified возвращается для пользователя без пройденной проверки.
	ErrUnverified = errors.New("пользователь не прошёл проверку")
	// ErrTopicCreation возвращается, если тему в группе создать не удалось.
	ErrTopicCreation = errors.New("не удалось создать тему")
	// ErrRelayDelivery возвращается при сбое доставки отдельного сообщения.
	ErrRelayDelivery = errors.New("не удалось доставить сообщение")
	// ErrNoReplyTarget возвращается, когда адресата ответа определить нельзя.
	ErrNoReplyTarget = errors.New("не удалось определить адресата ответа")
	// ErrStoreUnavailable оборачивает сбои хранилища: без достоверной записи
	// ни одно решение о маршрутизации принять нельзя.
	ErrStoreUnavailable = errors.New("хранилище недоступно")
)
