package domain

import (
	"context"
	"time"
)

// UserRepo управляет записями пользователей.
type UserRepo interface {
	EnsureOwner(ctx context.Context, ownerID int64) error
	IsVerified(ctx context.Context, userID int64) (bool, error)
	Verify(ctx context.Context, userID int64) error
	RecordActivity(ctx context.Context, userID int64) error
	// MostRecentActive возвращает недавно активных проверенных пользователей
	// без владельца, по убыванию времени активности.
	MostRecentActive(ctx context.Context, limit int) ([]int64, error)
	ListVerified(ctx context.Context) ([]int64, error)
}

// TopicRepo управляет связками пользователь—тема.
type TopicRepo interface {
	GetByUser(ctx context.Context, userID int64) (Topic, bool, error)
	GetByTopic(ctx context.Context, topicID int64) (int64, bool, error)
	Save(ctx context.Context, topic Topic) error
}

// Courier — транспортная граница: доставка и служебные операции платформы.
type Courier interface {
	SendText(ctx context.Context, chatID int64, text string) (MessageRef, error)
	// SendContent доставляет содержимое по виду; для KindUnknown и при
	// несовпадении таблицы видов деградирует до дословного копирования.
	SendContent(ctx context.Context, chatID int64, src Message) error
	// SendVerifyPrompt отправляет проверочный запрос с кнопкой подтверждения.
	SendVerifyPrompt(ctx context.Context, chatID int64) error
	// SendBroadcastConfirm отправляет запрос подтверждения рассылки и
	// возвращает ссылку на него для последующей очистки.
	SendBroadcastConfirm(ctx context.Context, chatID int64) (MessageRef, error)
	Forward(ctx context.Context, src MessageRef, toChat int64) error
	ForwardToTopic(ctx context.Context, src MessageRef, groupID, topicID int64) error
	CreateTopic(ctx context.Context, groupID int64, title string) (int64, error)
	Delete(ctx context.Context, ref MessageRef) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
