package telegram

import (
	"github.com/mymmrac/telego"

	"tg-relay-bot/internal/domain"
)

// FromTelego переводит сообщение Bot API в доменное представление.
func FromTelego(msg *telego.Message) domain.Message {
	out := domain.Message{
		Ref:     domain.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID},
		IsTopic: msg.IsTopicMessage,
		TopicID: int64(msg.MessageThreadID),
		Content: classify(msg),
	}
	if msg.From != nil {
		out.From = msg.From.ID
		out.FirstName = msg.From.FirstName
	}
	if origin, ok := msg.ForwardOrigin.(*telego.MessageOriginUser); ok {
		out.ForwardFrom = origin.SenderUser.ID
	}
	if msg.ReplyToMessage != nil {
		reply := FromTelego(msg.ReplyToMessage)
		out.ReplyTo = &reply
	}
	return out
}

// classify сводит сообщение к закрытому перечню видов содержимого.
// Порядок проверок повторяет приоритет полей Bot API: у сообщения
// заполнено ровно одно из них.
func classify(msg *telego.Message) domain.Content {
	switch {
	case msg.Text != "":
		return domain.Content{Kind: domain.KindText, Text: msg.Text}
	case len(msg.Photo) > 0:
		// Последний элемент — максимальное разрешение.
		return domain.Content{Kind: domain.KindPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID, Caption: msg.Caption}
	case msg.Video != nil:
		return domain.Content{Kind: domain.KindVideo, FileID: msg.Video.FileID, Caption: msg.Caption}
	case msg.Document != nil:
		return domain.Content{Kind: domain.KindDocument, FileID: msg.Document.FileID, Caption: msg.Caption}
	case msg.Voice != nil:
		return domain.Content{Kind: domain.KindVoice, FileID: msg.Voice.FileID, Caption: msg.Caption}
	case msg.Audio != nil:
		return domain.Content{Kind: domain.KindAudio, FileID: msg.Audio.FileID, Caption: msg.Caption}
	case msg.Sticker != nil:
		return domain.Content{Kind: domain.KindSticker, FileID: msg.Sticker.FileID}
	case msg.VideoNote != nil:
		return domain.Content{Kind: domain.KindVideoNote, FileID: msg.VideoNote.FileID, Length: msg.VideoNote.Length, Duration: msg.VideoNote.Duration}
	case msg.Animation != nil:
		return domain.Content{Kind: domain.KindAnimation, FileID: msg.Animation.FileID, Caption: msg.Caption}
	case msg.Contact != nil:
		return domain.Content{
			Kind:        domain.KindContact,
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
		}
	case msg.Location != nil:
		return domain.Content{Kind: domain.KindLocation, Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	case msg.Venue != nil:
		return domain.Content{
			Kind:      domain.KindVenue,
			Latitude:  msg.Venue.Location.Latitude,
			Longitude: msg.Venue.Location.Longitude,
			Title:     msg.Venue.Title,
			Address:   msg.Venue.Address,
		}
	case msg.Poll != nil:
		options := make([]string, 0, len(msg.Poll.Options))
		for _, o := range msg.Poll.Options {
			options = append(options, o.Text)
		}
		return domain.Content{
			Kind:        domain.KindPoll,
			Question:    msg.Poll.Question,
			Options:     options,
			IsAnonymous: msg.Poll.IsAnonymous,
			PollType:    msg.Poll.Type,
		}
	case msg.Dice != nil:
		return domain.Content{Kind: domain.KindDice, Emoji: msg.Dice.Emoji}
	default:
		return domain.Content{Kind: domain.KindUnknown}
	}
}
