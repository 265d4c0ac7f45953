package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/adapters/telegram"
	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/usecase/broadcast"
	"tg-relay-bot/internal/usecase/relay"
)

// BroadcastButton — подпись кнопки рассылки в меню владельца.
const BroadcastButton = "Рассылка"

// Handler разбирает входящие апдейты и направляет их в сценарии.
type Handler struct {
	courier     *telegram.Courier
	relayUC     *relay.Service
	broadcastUC *broadcast.Service
	log         zerolog.Logger
	ownerID     int64
	groupID     int64
}

// NewHandler создаёт обработчик.
func NewHandler(courier *telegram.Courier, relayUC *relay.Service, broadcastUC *broadcast.Service, log zerolog.Logger, ownerID, groupID int64) *Handler {
	return &Handler{
		courier:     courier,
		relayUC:     relayUC,
		broadcastUC: broadcastUC,
		log:         log,
		ownerID:     ownerID,
		groupID:     groupID,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd telego.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *telego.Message) {
	m := telegram.FromTelego(msg)

	if m.Ref.ChatID == h.groupID {
		if err := h.relayUC.RouteTopicMessage(ctx, m); err != nil {
			h.log.Error().Err(err).Int64("topic", m.TopicID).Msg("ошибка маршрутизации из темы")
		}
		return
	}
	if msg.Chat.Type != telego.ChatTypePrivate || m.From == 0 {
		return
	}

	if strings.HasPrefix(msg.Text, "/start") {
		h.handleStart(ctx, m)
		return
	}

	if m.From == h.ownerID {
		h.handleOwnerMessage(ctx, m, msg.Text)
		return
	}

	if err := h.relayUC.RouteUserMessage(ctx, m); err != nil {
		switch {
		case errors.Is(err, domain.ErrThrottled), errors.Is(err, domain.ErrUnverified):
			// Пользователь уже уведомлён движком.
		default:
			h.log.Error().Err(err).Int64("user", m.From).Msg("ошибка маршрутизации сообщения пользователя")
		}
	}
}

func (h *Handler) handleOwnerMessage(ctx context.Context, m domain.Message, text string) {
	switch {
	case text == BroadcastButton:
		if err := h.broadcastUC.Start(ctx, m); err != nil && !errors.Is(err, broadcast.ErrInProgress) {
			h.log.Error().Err(err).Msg("не удалось начать рассылку")
		}
	case m.ReplyTo != nil:
		if err := h.relayUC.RouteOwnerReply(ctx, m); err != nil && !errors.Is(err, domain.ErrNoReplyTarget) {
			h.log.Error().Err(err).Msg("ошибка доставки ответа владельца")
		}
	case strings.HasPrefix(text, "/"):
		// Прочие команды владельца не поддерживаются.
	default:
		if _, err := h.broadcastUC.Capture(ctx, m); err != nil {
			h.log.Error().Err(err).Msg("не удалось принять содержимое рассылки")
		}
	}
}

func (h *Handler) handleStart(ctx context.Context, m domain.Message) {
	if m.From == h.ownerID {
		if err := h.courier.SendOwnerMenu(ctx, m.Ref.ChatID, "Здравствуйте! Используйте меню ниже.", BroadcastButton); err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить меню владельца")
		}
		return
	}
	verified, err := h.relayUC.IsVerified(ctx, m.From)
	if err != nil {
		h.log.Error().Err(err).Int64("user", m.From).Msg("не удалось проверить пользователя")
		return
	}
	if verified {
		if _, err := h.courier.SendText(ctx, m.Ref.ChatID, "Вы уже прошли проверку и можете писать владельцу."); err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить приветствие")
		}
		return
	}
	if err := h.courier.SendVerifyPrompt(ctx, m.Ref.ChatID); err != nil {
		h.log.Error().Err(err).Msg("не удалось отправить проверочный запрос")
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *telego.CallbackQuery) {
	defer func() {
		if err := h.courier.AnswerCallback(ctx, cb.ID); err != nil {
			h.log.Error().Err(err).Msg("не удалось ответить на callback")
		}
	}()

	var ref domain.MessageRef
	if msg, ok := cb.Message.(*telego.Message); ok {
		ref = domain.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}
	}

	switch cb.Data {
	case telegram.VerifyCallback:
		h.handleVerify(ctx, cb.From.ID, ref)
	case telegram.ConfirmBroadcastCallback, telegram.CancelBroadcastCallback:
		if cb.From.ID != h.ownerID {
			return
		}
		confirm := cb.Data == telegram.ConfirmBroadcastCallback
		if _, err := h.broadcastUC.Resolve(ctx, confirm); err != nil {
			h.log.Error().Err(err).Msg("рассылка завершилась с ошибкой")
		}
	}
}

func (h *Handler) handleVerify(ctx context.Context, userID int64, ref domain.MessageRef) {
	if userID == h.ownerID {
		if ref.MessageID != 0 {
			if err := h.courier.EditText(ctx, ref, "Вы владелец, проверка не требуется."); err != nil {
				h.log.Error().Err(err).Msg("не удалось обновить сообщение проверки")
			}
		}
		return
	}
	if err := h.relayUC.VerifyUser(ctx, userID); err != nil {
		h.log.Error().Err(err).Int64("user", userID).Msg("не удалось отметить проверку")
		return
	}
	if ref.MessageID != 0 {
		if err := h.courier.EditText(ctx, ref, "Проверка пройдена! Теперь вы можете писать владельцу."); err != nil {
			h.log.Error().Err(err).Msg("не удалось обновить сообщение проверки")
		}
	}
}
