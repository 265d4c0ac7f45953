package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// ErrInProgress возвращается при попытке начать рассылку, пока предыдущая
// не завершена: слот диалога один, и молчаливая перезапись запрещена.
var ErrInProgress = errors.New("рассылка уже готовится")

type step int

const (
	stepIdle step = iota
	stepAwaitingContent
	stepAwaitingConfirm
)

// session хранит шаг диалога и ссылки на временные сообщения для очистки.
type session struct {
	step       step
	commandMsg domain.MessageRef
	promptMsg  domain.MessageRef
	contentMsg domain.Message
	confirmMsg domain.MessageRef
}

// Summary — итог рассылки.
type Summary struct {
	Succeeded int
	Failed    int
}

// Service ведёт трёхшаговый диалог рассылки владельца: запрос содержимого,
// подтверждение, последовательная доставка всем проверенным пользователям.
type Service struct {
	users   domain.UserRepo
	courier domain.Courier
	log     zerolog.Logger
	ownerID int64

	mu  sync.Mutex
	cur session
}

// NewService создаёт координатор рассылки.
func NewService(users domain.UserRepo, courier domain.Courier, log zerolog.Logger, ownerID int64) *Service {
	return &Service{users: users, courier: courier, log: log, ownerID: ownerID}
}

// Pending сообщает, ждёт ли диалог содержимого рассылки.
func (s *Service) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.step == stepAwaitingContent
}

// Start начинает диалог рассылки. Повторный запуск при незавершённом
// диалоге отклоняется с уведомлением владельца.
func (s *Service) Start(ctx context.Context, command domain.Message) error {
	if command.From != s.ownerID {
		return nil
	}
	s.mu.Lock()
	if s.cur.step != stepIdle {
		s.mu.Unlock()
		if _, err := s.courier.SendText(ctx, command.Ref.ChatID, "Предыдущая рассылка ещё не завершена. Подтвердите или отмените её."); err != nil {
			s.log.Error().Err(err).Msg("не удалось уведомить владельца")
		}
		return ErrInProgress
	}
	s.cur = session{step: stepAwaitingContent, commandMsg: command.Ref}
	s.mu.Unlock()

	prompt, err := s.courier.SendText(ctx, command.Ref.ChatID, "Отправьте содержимое рассылки:")
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось запросить содержимое рассылки")
		s.resetLocked()
		return err
	}
	s.mu.Lock()
	s.cur.promptMsg = prompt
	s.mu.Unlock()
	return nil
}

// Capture принимает следующее сообщение владельца как содержимое рассылки
// и запрашивает подтверждение. Возвращает false, если диалог не ждал
// содержимого и сообщение нужно обработать иначе.
func (s *Service) Capture(ctx context.Context, msg domain.Message) (bool, error) {
	if msg.From != s.ownerID {
		return false, nil
	}
	s.mu.Lock()
	if s.cur.step != stepAwaitingContent {
		s.mu.Unlock()
		return false, nil
	}
	s.cur.contentMsg = msg
	s.cur.step = stepAwaitingConfirm
	s.mu.Unlock()

	confirm, err := s.courier.SendBroadcastConfirm(ctx, msg.Ref.ChatID)
	if err != nil {
		s.log.Error().Err(err).Msg("не удалось запросить подтверждение рассылки")
		return true, err
	}
	s.mu.Lock()
	s.cur.confirmMsg = confirm
	s.mu.Unlock()
	return true, nil
}

// Resolve завершает диалог. При отмене остаётся только очистка; при
// подтверждении содержимое доставляется каждому проверенному пользователю,
// сбои считаются по адресатам, и владельцу отправляется единый итог.
func (s *Service) Resolve(ctx context.Context, confirm bool) (Summary, error) {
	s.mu.Lock()
	if s.cur.step != stepAwaitingConfirm {
		s.mu.Unlock()
		return Summary{}, nil
	}
	sess := s.cur
	s.cur = session{}
	s.mu.Unlock()

	s.cleanup(ctx, sess)
	if !confirm {
		s.log.Info().Msg("рассылка отменена")
		return Summary{}, nil
	}

	users, err := s.users.ListVerified(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: список адресатов: %s", domain.ErrStoreUnavailable, err)
	}

	batch := uuid.NewString()
	var sum Summary
	for _, userID := range users {
		if err := s.courier.SendContent(ctx, userID, sess.contentMsg); err != nil {
			s.log.Error().Err(err).Str("batch", batch).Int64("user", userID).Msg("доставка рассылки не удалась")
			metrics.IncBroadcastDelivery(false)
			sum.Failed++
			continue
		}
		metrics.IncBroadcastDelivery(true)
		sum.Succeeded++
	}
	s.log.Info().Str("batch", batch).Int("success", sum.Succeeded).Int("failed", sum.Failed).Msg("рассылка завершена")

	report := fmt.Sprintf("Рассылка завершена\nУспешно: %d | Сбоев: %d", sum.Succeeded, sum.Failed)
	if _, err := s.courier.SendText(ctx, s.ownerID, report); err != nil {
		s.log.Error().Err(err).Msg("не удалось отправить итог рассылки")
	}
	return sum, nil
}

// cleanup удаляет временные сообщения диалога. Каждое удаление — best
// effort, отдельные сбои проглатываются.
func (s *Service) cleanup(ctx context.Context, sess session) {
	refs := []domain.MessageRef{sess.commandMsg, sess.promptMsg, sess.contentMsg.Ref, sess.confirmMsg}
	for _, ref := range refs {
		if ref.MessageID == 0 {
			continue
		}
		if err := s.courier.Delete(ctx, ref); err != nil {
			s.log.Debug().Err(err).Int("message", ref.MessageID).Msg("не удалось удалить временное сообщение")
		}
	}
}

func (s *Service) resetLocked() {
	s.mu.Lock()
	s.cur = session{}
	s.mu.Unlock()
}
