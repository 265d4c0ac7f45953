package telegram

import (
	"reflect"
	"testing"

	"github.com/mymmrac/telego"

	"tg-relay-bot/internal/domain"
)

func TestFromTelegoBasicFields(t *testing.T) {
	msg := &telego.Message{
		MessageID:       10,
		Chat:            telego.Chat{ID: -100},
		From:            &telego.User{ID: 42, FirstName: "Иван"},
		IsTopicMessage:  true,
		MessageThreadID: 7,
		Text:            "привет",
	}
	got := FromTelego(msg)
	if got.Ref.ChatID != -100 || got.Ref.MessageID != 10 {
		t.Fatalf("неожиданная ссылка: %+v", got.Ref)
	}
	if got.From != 42 || got.FirstName != "Иван" {
		t.Fatalf("неожиданный отправитель: %+v", got)
	}
	if !got.IsTopic || got.TopicID != 7 {
		t.Fatalf("неожиданный контекст темы: %+v", got)
	}
	if got.Content.Kind != domain.KindText || got.Content.Text != "привет" {
		t.Fatalf("неожиданное содержимое: %+v", got.Content)
	}
}

func TestFromTelegoForwardOrigin(t *testing.T) {
	msg := &telego.Message{
		MessageID: 10,
		Chat:      telego.Chat{ID: 1},
		ReplyToMessage: &telego.Message{
			MessageID:     9,
			Chat:          telego.Chat{ID: 1},
			ForwardOrigin: &telego.MessageOriginUser{SenderUser: telego.User{ID: 42}},
		},
	}
	got := FromTelego(msg)
	if got.ReplyTo == nil || got.ReplyTo.ForwardFrom != 42 {
		t.Fatalf("ожидали автора пересылки 42, получили %+v", got.ReplyTo)
	}
}

func TestFromTelegoHiddenForwardOrigin(t *testing.T) {
	// Пользователь скрыл аккаунт: источник пересылки не даёт идентификатора.
	msg := &telego.Message{
		MessageID:     10,
		Chat:          telego.Chat{ID: 1},
		ForwardOrigin: &telego.MessageOriginHiddenUser{SenderUserName: "Иван"},
	}
	if got := FromTelego(msg); got.ForwardFrom != 0 {
		t.Fatalf("скрытый источник не должен давать адресата: %+v", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		msg  *telego.Message
		want domain.Content
	}{
		{
			name: "photo picks max resolution",
			msg: &telego.Message{
				Photo:   []telego.PhotoSize{{FileID: "small"}, {FileID: "big"}},
				Caption: "подпись",
			},
			want: domain.Content{Kind: domain.KindPhoto, FileID: "big", Caption: "подпись"},
		},
		{
			name: "voice",
			msg:  &telego.Message{Voice: &telego.Voice{FileID: "v1"}},
			want: domain.Content{Kind: domain.KindVoice, FileID: "v1"},
		},
		{
			name: "contact",
			msg:  &telego.Message{Contact: &telego.Contact{PhoneNumber: "+7900", FirstName: "Иван"}},
			want: domain.Content{Kind: domain.KindContact, PhoneNumber: "+7900", FirstName: "Иван"},
		},
		{
			name: "location",
			msg:  &telego.Message{Location: &telego.Location{Latitude: 55.7, Longitude: 37.6}},
			want: domain.Content{Kind: domain.KindLocation, Latitude: 55.7, Longitude: 37.6},
		},
		{
			name: "dice",
			msg:  &telego.Message{Dice: &telego.Dice{Emoji: "🎲"}},
			want: domain.Content{Kind: domain.KindDice, Emoji: "🎲"},
		},
		{
			name: "unsupported falls back to unknown",
			msg:  &telego.Message{},
			want: domain.Content{Kind: domain.KindUnknown},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.msg)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ожидали %+v, получили %+v", tc.want, got)
			}
		})
	}
}
