package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// VerifyCallback — callback data кнопки проверки.
const VerifyCallback = "verify"

// Callback data кнопок подтверждения рассылки.
const (
	ConfirmBroadcastCallback = "confirm_broadcast"
	CancelBroadcastCallback  = "cancel_broadcast"
)

// Courier реализует domain.Courier поверх Bot API.
type Courier struct {
	bot *telego.Bot
	log zerolog.Logger
}

// NewCourier создаёт транспортный адаптер.
func NewCourier(bot *telego.Bot, log zerolog.Logger) *Courier {
	return &Courier{bot: bot, log: log}
}

func observe(operation string, chatID int64, start time.Time, err error) {
	metrics.ObserveNetworkRequest("telegram_bot", operation, strconv.FormatInt(chatID, 10), start, err)
}

// SendText отправляет текст, разбивая его по лимиту платформы.
// Возвращает ссылку на последнее отправленное сообщение.
func (c *Courier) SendText(ctx context.Context, chatID int64, text string) (domain.MessageRef, error) {
	var ref domain.MessageRef
	for _, part := range SplitMessage(text) {
		start := time.Now()
		sent, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), part))
		observe("send_message", chatID, start, err)
		if err != nil {
			return domain.MessageRef{}, err
		}
		ref = domain.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}
	}
	return ref, nil
}

// SendVerifyPrompt отправляет проверочный запрос с кнопкой подтверждения.
func (c *Courier) SendVerifyPrompt(ctx context.Context, chatID int64) error {
	markup := tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("Я не робот").WithCallbackData(VerifyCallback),
	))
	start := time.Now()
	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), "Нажмите кнопку ниже, чтобы подтвердить, что вы не робот:").WithReplyMarkup(markup))
	observe("send_verify_prompt", chatID, start, err)
	return err
}

// SendBroadcastConfirm отправляет запрос подтверждения рассылки.
func (c *Courier) SendBroadcastConfirm(ctx context.Context, chatID int64) (domain.MessageRef, error) {
	markup := tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("Отправить").WithCallbackData(ConfirmBroadcastCallback),
		tu.InlineKeyboardButton("Отмена").WithCallbackData(CancelBroadcastCallback),
	))
	start := time.Now()
	sent, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), "Отправить рассылку?").WithReplyMarkup(markup))
	observe("send_broadcast_confirm", chatID, start, err)
	if err != nil {
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// Forward пересылает сообщение дословно.
func (c *Courier) Forward(ctx context.Context, src domain.MessageRef, toChat int64) error {
	start := time.Now()
	_, err := c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:     tu.ID(toChat),
		FromChatID: tu.ID(src.ChatID),
		MessageID:  src.MessageID,
	})
	observe("forward_message", toChat, start, err)
	return err
}

// ForwardToTopic пересылает сообщение в тему форум-группы.
func (c *Courier) ForwardToTopic(ctx context.Context, src domain.MessageRef, groupID, topicID int64) error {
	start := time.Now()
	_, err := c.bot.ForwardMessage(ctx, &telego.ForwardMessageParams{
		ChatID:          tu.ID(groupID),
		MessageThreadID: int(topicID),
		FromChatID:      tu.ID(src.ChatID),
		MessageID:       src.MessageID,
	})
	observe("forward_to_topic", groupID, start, err)
	return err
}

// CreateTopic создаёт тему форума и возвращает её идентификатор.
func (c *Courier) CreateTopic(ctx context.Context, groupID int64, title string) (int64, error) {
	start := time.Now()
	topic, err := c.bot.CreateForumTopic(ctx, &telego.CreateForumTopicParams{
		ChatID: tu.ID(groupID),
		Name:   title,
	})
	observe("create_forum_topic", groupID, start, err)
	if err != nil {
		return 0, err
	}
	return int64(topic.MessageThreadID), nil
}

// Delete удаляет сообщение.
func (c *Courier) Delete(ctx context.Context, ref domain.MessageRef) error {
	start := time.Now()
	err := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(ref.ChatID),
		MessageID: ref.MessageID,
	})
	observe("delete_message", ref.ChatID, start, err)
	return err
}

// SendContent доставляет содержимое по виду. Вид вне таблицы доставляется
// дословным копированием; при сбое копирования адресат получает текстовое
// уведомление об ошибке.
func (c *Courier) SendContent(ctx context.Context, chatID int64, src domain.Message) error {
	start := time.Now()
	err := c.sendByKind(ctx, chatID, src)
	observe("send_"+string(src.Content.Kind), chatID, start, err)
	return err
}

func (c *Courier) sendByKind(ctx context.Context, chatID int64, src domain.Message) error {
	to := tu.ID(chatID)
	content := src.Content
	var err error
	switch content.Kind {
	case domain.KindText:
		_, err = c.bot.SendMessage(ctx, tu.Message(to, content.Text))
	case domain.KindPhoto:
		_, err = c.bot.SendPhoto(ctx, &telego.SendPhotoParams{ChatID: to, Photo: tu.FileFromID(content.FileID), Caption: content.Caption})
	case domain.KindVideo:
		_, err = c.bot.SendVideo(ctx, &telego.SendVideoParams{ChatID: to, Video: tu.FileFromID(content.FileID), Caption: content.Caption})
	case domain.KindDocument:
		_, err = c.bot.SendDocument(ctx, &telego.SendDocumentParams{ChatID: to, Document: tu.FileFromID(content.FileID), Caption: content.Caption})
	case domain.KindVoice:
		_, err = c.bot.SendVoice(ctx, &telego.SendVoiceParams{ChatID: to, Voice: tu.FileFromID(content.FileID), Caption: content.Caption})
	case domain.KindAudio:
		_, err = c.bot.SendAudio(ctx, &telego.SendAudioParams{ChatID: to, Audio: tu.FileFromID(content.FileID), Caption: content.Caption})
	case domain.KindSticker:
		_, err = c.bot.SendSticker(ctx, &telego.SendStickerParams{ChatID: to, Sticker: tu.FileFromID(content.FileID)})
	case domain.KindVideoNote:
		_, err = c.bot.SendVideoNote(ctx, &telego.SendVideoNoteParams{ChatID: to, VideoNote: tu.FileFromID(content.FileID), Duration: content.Duration, Length: content.Length})
	case domain.KindAnimation:
		_, err = c.bot.SendAnimation(ctx, &telego.SendAnimationParams{ChatID: to, Animation: tu.FileFromID(content.FileID), Caption: content.Caption})
	case domain.KindContact:
		_, err = c.bot.SendContact(ctx, &telego.SendContactParams{ChatID: to, PhoneNumber: content.PhoneNumber, FirstName: content.FirstName, LastName: content.LastName})
	case domain.KindLocation:
		_, err = c.bot.SendLocation(ctx, &telego.SendLocationParams{ChatID: to, Latitude: content.Latitude, Longitude: content.Longitude})
	case domain.KindVenue:
		_, err = c.bot.SendVenue(ctx, &telego.SendVenueParams{ChatID: to, Latitude: content.Latitude, Longitude: content.Longitude, Title: content.Title, Address: content.Address})
	case domain.KindPoll:
		options := make([]telego.InputPollOption, 0, len(content.Options))
		for _, o := range content.Options {
			options = append(options, telego.InputPollOption{Text: o})
		}
		anonymous := content.IsAnonymous
		_, err = c.bot.SendPoll(ctx, &telego.SendPollParams{ChatID: to, Question: content.Question, Options: options, IsAnonymous: &anonymous, Type: content.PollType})
	case domain.KindDice:
		_, err = c.bot.SendDice(ctx, &telego.SendDiceParams{ChatID: to, Emoji: content.Emoji})
	default:
		return c.copyVerbatim(ctx, chatID, src)
	}
	return err
}

// copyVerbatim — деградация для видов вне таблицы.
func (c *Courier) copyVerbatim(ctx context.Context, chatID int64, src domain.Message) error {
	_, err := c.bot.CopyMessage(ctx, &telego.CopyMessageParams{
		ChatID:     tu.ID(chatID),
		FromChatID: tu.ID(src.Ref.ChatID),
		MessageID:  src.Ref.MessageID,
	})
	if err == nil {
		return nil
	}
	c.log.Error().Err(err).Int64("chat", chatID).Msg("копирование сообщения не удалось")
	notice := fmt.Sprintf("[Сообщение не удалось доставить: %s]", err)
	_, sendErr := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), notice))
	return sendErr
}

// EditText меняет текст существующего сообщения.
func (c *Courier) EditText(ctx context.Context, ref domain.MessageRef, text string) error {
	start := time.Now()
	_, err := c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(ref.ChatID),
		MessageID: ref.MessageID,
		Text:      text,
	})
	observe("edit_message", ref.ChatID, start, err)
	return err
}

// AnswerCallback подтверждает получение callback-запроса.
func (c *Courier) AnswerCallback(ctx context.Context, callbackID string) error {
	return c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{CallbackQueryID: callbackID})
}

// SendOwnerMenu отправляет владельцу reply-клавиатуру с кнопкой рассылки.
func (c *Courier) SendOwnerMenu(ctx context.Context, chatID int64, text, broadcastButton string) error {
	markup := tu.Keyboard(tu.KeyboardRow(
		tu.KeyboardButton(broadcastButton),
	)).WithResizeKeyboard()
	start := time.Now()
	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text).WithReplyMarkup(markup))
	observe("send_owner_menu", chatID, start, err)
	return err
}
