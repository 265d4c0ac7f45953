package domain

import "time"

// User описывает пользователя Telegram в системе.
type User struct {
	TGUserID   int64
	Verified   bool
	LastActive time.Time
}

// Topic хранит связь пользователя с темой форума в группе владельца.
// Связь неизменна после создания: пользователь никогда не переезжает в другую тему.
type Topic struct {
	UserID    int64
	TopicID   int64
	Title     string
	CreatedAt time.Time
}
