package relay

import (
	"context"
	"errors"
	"fmt"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// ResolveReplyTarget определяет адресата ответа владельца вне контекста
// темы. Сначала метаданные пересылки, затем самый недавно активный
// проверенный пользователь.
func (s *Service) ResolveReplyTarget(ctx context.Context, msg domain.Message) (int64, error) {
	if msg.ReplyTo != nil && msg.ReplyTo.ForwardFrom != 0 {
		return msg.ReplyTo.ForwardFrom, nil
	}
	recent, err := s.users.MostRecentActive(ctx, 1)
	if err != nil {
		return 0, storeErr("поиск недавних пользователей", err)
	}
	if len(recent) == 0 {
		return 0, domain.ErrNoReplyTarget
	}
	return recent[0], nil
}

// RouteOwnerReply доставляет ответ владельца из личного чата адресату.
// Если адресата определить нельзя, владельцу отправляется уведомление и
// пересылка не выполняется.
func (s *Service) RouteOwnerReply(ctx context.Context, msg domain.Message) error {
	if msg.From != s.ownerID || msg.ReplyTo == nil {
		return nil
	}
	target, err := s.ResolveReplyTarget(ctx, msg)
	if errors.Is(err, domain.ErrNoReplyTarget) {
		if _, sendErr := s.courier.SendText(ctx, msg.Ref.ChatID, "Не удалось определить адресата. Дождитесь нового сообщения пользователя и ответьте на него."); sendErr != nil {
			s.log.Error().Err(sendErr).Msg("не удалось уведомить владельца")
		}
		return err
	}
	if err != nil {
		return err
	}
	if err := s.courier.SendContent(ctx, target, msg); err != nil {
		s.log.Error().Err(err).Int64("user", target).Msg("не удалось доставить ответ владельца")
		notice := fmt.Sprintf("Ответ не доставлен: %s", err)
		if _, sendErr := s.courier.SendText(ctx, msg.Ref.ChatID, notice); sendErr != nil {
			s.log.Error().Err(sendErr).Msg("не удалось уведомить владельца")
		}
		return fmt.Errorf("%w: %s", domain.ErrRelayDelivery, err)
	}
	metrics.IncRelayed("owner_to_user")
	return nil
}
