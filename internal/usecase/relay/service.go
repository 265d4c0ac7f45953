package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
	"tg-relay-bot/internal/usecase/flood"
)

// Service — движок маршрутизации: переносит сообщения пользователей в их
// темы в группе владельца и ответы владельца обратно пользователям.
type Service struct {
	users   domain.UserRepo
	topics  domain.TopicRepo
	courier domain.Courier
	guard   *flood.Guard
	log     zerolog.Logger

	ownerID int64
	groupID int64
	limit   time.Duration

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService создаёт движок маршрутизации.
func NewService(users domain.UserRepo, topics domain.TopicRepo, courier domain.Courier, guard *flood.Guard, log zerolog.Logger, ownerID, groupID int64, limit time.Duration) *Service {
	return &Service{
		users:   users,
		topics:  topics,
		courier: courier,
		guard:   guard,
		log:     log,
		ownerID: ownerID,
		groupID: groupID,
		limit:   limit,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// lockUser сериализует операции каталога тем по ключу пользователя:
// два почти одновременных сообщения не должны создать две темы.
func (s *Service) lockUser(userID int64) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrStoreUnavailable, op, err)
}

// RouteUserMessage проводит входящее личное сообщение пользователя через
// защиту от флуда и проверку, затем доставляет его в тему пользователя.
// При сбое создания темы или доставки в тему деградирует до прямой
// пересылки владельцу.
func (s *Service) RouteUserMessage(ctx context.Context, msg domain.Message) error {
	userID := msg.From
	if userID == s.ownerID {
		return nil
	}
	if s.guard.Check(userID) {
		notice := fmt.Sprintf("Вы отправляете сообщения слишком часто, подождите %d секунд", int(s.limit.Seconds()))
		if _, err := s.courier.SendText(ctx, msg.Ref.ChatID, notice); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Msg("не удалось отправить уведомление о флуде")
		}
		return domain.ErrThrottled
	}
	verified, err := s.users.IsVerified(ctx, userID)
	if err != nil {
		return storeErr("проверка пользователя", err)
	}
	if !verified {
		if err := s.courier.SendVerifyPrompt(ctx, msg.Ref.ChatID); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Msg("не удалось отправить проверочный запрос")
		}
		return domain.ErrUnverified
	}
	if err := s.users.RecordActivity(ctx, userID); err != nil {
		return storeErr("обновление активности", err)
	}

	unlock := s.lockUser(userID)
	defer unlock()

	topic, ok, err := s.topics.GetByUser(ctx, userID)
	if err != nil {
		return storeErr("поиск темы", err)
	}
	if !ok {
		topic, err = s.createTopic(ctx, userID, msg.FirstName)
		if err != nil {
			s.log.Error().Err(err).Int64("user", userID).Str("hint", topicCreationHint(err)).Msg("создание темы не удалось, пересылаем владельцу напрямую")
			return s.fallbackForward(ctx, msg)
		}
	}
	if err := s.courier.ForwardToTopic(ctx, msg.Ref, s.groupID, topic.TopicID); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Int64("topic", topic.TopicID).Msg("пересылка в тему не удалась")
		return s.fallbackForward(ctx, msg)
	}
	metrics.IncRelayed("user_to_owner")
	return nil
}

// createTopic создаёт тему в группе и записывает связку в каталог. Запись
// делается только после успешного создания на стороне транспорта.
func (s *Service) createTopic(ctx context.Context, userID int64, firstName string) (domain.Topic, error) {
	title := TopicTitle(firstName, userID)
	topicID, err := s.courier.CreateTopic(ctx, s.groupID, title)
	if err != nil {
		return domain.Topic{}, fmt.Errorf("%w: %s", domain.ErrTopicCreation, err)
	}
	topic := domain.Topic{UserID: userID, TopicID: topicID, Title: title, CreatedAt: time.Now().UTC()}
	if err := s.topics.Save(ctx, topic); err != nil {
		return domain.Topic{}, storeErr("сохранение темы", err)
	}
	metrics.TopicsCreated.Inc()
	s.log.Info().Int64("user", userID).Int64("topic", topicID).Str("title", title).Msg("создана тема пользователя")
	return topic, nil
}

// topicCreationHint сводит типовые ответы Bot API к диагнозу для оператора.
func topicCreationHint(err error) string {
	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "chat not found"):
		return "группа не найдена: проверьте GROUP_ID и членство бота"
	case strings.Contains(text, "not a forum") || strings.Contains(text, "forum"):
		return "в группе не включён режим тем"
	case strings.Contains(text, "not enough rights") || strings.Contains(text, "rights"):
		return "боту не хватает права управления темами"
	default:
		return "неизвестная ошибка создания темы"
	}
}

func (s *Service) fallbackForward(ctx context.Context, msg domain.Message) error {
	metrics.RelayFallbacks.Inc()
	if err := s.courier.Forward(ctx, msg.Ref, s.ownerID); err != nil {
		s.log.Error().Err(err).Int64("user", msg.From).Msg("прямая пересылка владельцу тоже не удалась")
		return fmt.Errorf("%w: %s", domain.ErrRelayDelivery, err)
	}
	metrics.IncRelayed("user_to_owner")
	return nil
}

// RouteTopicMessage доставляет сообщение владельца из темы группы
// соответствующему пользователю. Сообщения вне тем, чужие сообщения и
// чужие группы игнорируются. Сбой доставки логируется без уведомления.
func (s *Service) RouteTopicMessage(ctx context.Context, msg domain.Message) error {
	if msg.Ref.ChatID != s.groupID || !msg.IsTopic || msg.From != s.ownerID {
		return nil
	}
	userID, ok, err := s.topics.GetByTopic(ctx, msg.TopicID)
	if err != nil {
		return storeErr("поиск пользователя темы", err)
	}
	if !ok {
		s.log.Warn().Int64("topic", msg.TopicID).Msg("для темы не найден пользователь")
		return nil
	}
	if err := s.courier.SendContent(ctx, userID, msg); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("не удалось доставить ответ пользователю")
		return nil
	}
	metrics.IncRelayed("owner_to_user")
	return nil
}

// VerifyUser отмечает пользователя прошедшим проверку и открывает ему
// свежее окно защиты от флуда. Повторная проверка — no-op.
func (s *Service) VerifyUser(ctx context.Context, userID int64) error {
	if err := s.users.Verify(ctx, userID); err != nil {
		return storeErr("отметка проверки", err)
	}
	s.guard.Reset(userID)
	s.log.Info().Int64("user", userID).Msg("пользователь прошёл проверку")
	return nil
}

// IsVerified сообщает, прошёл ли пользователь проверку.
func (s *Service) IsVerified(ctx context.Context, userID int64) (bool, error) {
	verified, err := s.users.IsVerified(ctx, userID)
	if err != nil {
		return false, storeErr("проверка пользователя", err)
	}
	return verified, nil
}

// TopicTitle строит заголовок темы пользователя.
func TopicTitle(firstName string, userID int64) string {
	return fmt.Sprintf("%s (%d)", firstName, userID)
}
