package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/usecase/flood"
)

const (
	ownerID = int64(1)
	groupID = int64(-100)
)

type fakeUsers struct {
	mu       sync.Mutex
	verified map[int64]bool
	recent   []int64
	activity []int64
	err      error
}

func (f *fakeUsers) EnsureOwner(ctx context.Context, ownerID int64) error { return f.err }

func (f *fakeUsers) IsVerified(ctx context.Context, userID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.verified[userID], nil
}

func (f *fakeUsers) Verify(ctx context.Context, userID int64) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.verified[userID] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeUsers) RecordActivity(ctx context.Context, userID int64) error {
	f.mu.Lock()
	f.activity = append(f.activity, userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeUsers) MostRecentActive(ctx context.Context, limit int) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.recent) > limit {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeUsers) ListVerified(ctx context.Context) ([]int64, error) { return f.recent, f.err }

type fakeTopics struct {
	mu      sync.Mutex
	byUser  map[int64]domain.Topic
	byTopic map[int64]int64
	err     error
}

func newFakeTopics() *fakeTopics {
	return &fakeTopics{byUser: map[int64]domain.Topic{}, byTopic: map[int64]int64{}}
}

func (f *fakeTopics) GetByUser(ctx context.Context, userID int64) (domain.Topic, bool, error) {
	if f.err != nil {
		return domain.Topic{}, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	topic, ok := f.byUser[userID]
	return topic, ok, nil
}

func (f *fakeTopics) GetByTopic(ctx context.Context, topicID int64) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.byTopic[topicID]
	return userID, ok, nil
}

func (f *fakeTopics) Save(ctx context.Context, topic domain.Topic) error {
	f.mu.Lock()
	f.byUser[topic.UserID] = topic
	f.byTopic[topic.TopicID] = topic.UserID
	f.mu.Unlock()
	return nil
}

type topicForward struct {
	groupID int64
	topicID int64
}

type fakeCourier struct {
	mu            sync.Mutex
	texts         []string
	verifyPrompts int
	forwards      []int64
	topicForwards []topicForward
	created       []string
	nextTopicID   int64
	createErr     error
	forwardErr    error
	contentErr    map[int64]error
	contentSent   []int64
	deleted       []domain.MessageRef
}

func (f *fakeCourier) SendText(ctx context.Context, chatID int64, text string) (domain.MessageRef, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return domain.MessageRef{ChatID: chatID, MessageID: len(f.texts)}, nil
}

func (f *fakeCourier) SendVerifyPrompt(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	f.verifyPrompts++
	f.mu.Unlock()
	return nil
}

func (f *fakeCourier) SendBroadcastConfirm(ctx context.Context, chatID int64) (domain.MessageRef, error) {
	return domain.MessageRef{ChatID: chatID, MessageID: 999}, nil
}

func (f *fakeCourier) SendContent(ctx context.Context, chatID int64, src domain.Message) error {
	if err := f.contentErr[chatID]; err != nil {
		return err
	}
	f.mu.Lock()
	f.contentSent = append(f.contentSent, chatID)
	f.mu.Unlock()
	return nil
}

func (f *fakeCourier) Forward(ctx context.Context, src domain.MessageRef, toChat int64) error {
	f.mu.Lock()
	f.forwards = append(f.forwards, toChat)
	f.mu.Unlock()
	return nil
}

func (f *fakeCourier) ForwardToTopic(ctx context.Context, src domain.MessageRef, groupID, topicID int64) error {
	if f.forwardErr != nil {
		return f.forwardErr
	}
	f.mu.Lock()
	f.topicForwards = append(f.topicForwards, topicForward{groupID: groupID, topicID: topicID})
	f.mu.Unlock()
	return nil
}

func (f *fakeCourier) CreateTopic(ctx context.Context, groupID int64, title string) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, title)
	f.nextTopicID++
	id := f.nextTopicID
	f.mu.Unlock()
	return id, nil
}

func (f *fakeCourier) Delete(ctx context.Context, ref domain.MessageRef) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, ref)
	f.mu.Unlock()
	return nil
}

func newTestService(users *fakeUsers, topics *fakeTopics, courier *fakeCourier, limit time.Duration) *Service {
	guard := flood.NewGuard(ownerID, limit)
	return NewService(users, topics, courier, guard, zerolog.Nop(), ownerID, groupID, limit)
}

func userMessage(userID int64, messageID int) domain.Message {
	return domain.Message{
		Ref:       domain.MessageRef{ChatID: userID, MessageID: messageID},
		From:      userID,
		FirstName: "Тест",
		Content:   domain.Content{Kind: domain.KindText, Text: "привет"},
	}
}

func TestRouteUserMessageUnverified(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{}}
	courier := &fakeCourier{}
	svc := newTestService(users, newFakeTopics(), courier, 0)

	err := svc.RouteUserMessage(context.Background(), userMessage(42, 1))
	if !errors.Is(err, domain.ErrUnverified) {
		t.Fatalf("ожидали ErrUnverified, получили %v", err)
	}
	if courier.verifyPrompts != 1 {
		t.Fatalf("ожидали один проверочный запрос, получили %d", courier.verifyPrompts)
	}
	if len(courier.topicForwards) != 0 {
		t.Fatal("непроверенный пользователь не должен ретранслироваться")
	}
}

func TestRouteUserMessageThrottled(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{42: true}}
	courier := &fakeCourier{}
	svc := newTestService(users, newFakeTopics(), courier, time.Minute)

	if err := svc.RouteUserMessage(context.Background(), userMessage(42, 1)); err != nil {
		t.Fatalf("первое сообщение должно пройти: %v", err)
	}
	err := svc.RouteUserMessage(context.Background(), userMessage(42, 2))
	if !errors.Is(err, domain.ErrThrottled) {
		t.Fatalf("ожидали ErrThrottled, получили %v", err)
	}
	if len(courier.texts) != 1 || !strings.Contains(courier.texts[0], "слишком часто") {
		t.Fatalf("ожидали уведомление о флуде, получили %v", courier.texts)
	}
}

func TestRouteUserMessageCreatesTopicOnce(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{42: true}}
	topics := newFakeTopics()
	courier := &fakeCourier{}
	svc := newTestService(users, topics, courier, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(messageID int) {
			defer wg.Done()
			_ = svc.RouteUserMessage(context.Background(), userMessage(42, messageID))
		}(i + 1)
	}
	wg.Wait()

	if len(courier.created) != 1 {
		t.Fatalf("ожидали ровно одну созданную тему, получили %d", len(courier.created))
	}
	if courier.created[0] != "Тест (42)" {
		t.Fatalf("неожиданный заголовок темы: %q", courier.created[0])
	}
	if len(courier.topicForwards) != 8 {
		t.Fatalf("ожидали 8 пересылок в тему, получили %d", len(courier.topicForwards))
	}
	for _, fw := range courier.topicForwards {
		if fw.groupID != groupID || fw.topicID != 1 {
			t.Fatalf("пересылка в неожиданную тему: %+v", fw)
		}
	}
}

func TestRouteUserMessageFallbackOnCreateFailure(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{42: true}}
	courier := &fakeCourier{createErr: errors.New("chat not found")}
	svc := newTestService(users, newFakeTopics(), courier, 0)

	if err := svc.RouteUserMessage(context.Background(), userMessage(42, 1)); err != nil {
		t.Fatalf("деградация до пересылки не должна быть ошибкой: %v", err)
	}
	if len(courier.forwards) != 1 || courier.forwards[0] != ownerID {
		t.Fatalf("ожидали прямую пересылку владельцу, получили %v", courier.forwards)
	}
}

func TestRouteUserMessageFallbackOnForwardFailure(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{42: true}}
	topics := newFakeTopics()
	_ = topics.Save(context.Background(), domain.Topic{UserID: 42, TopicID: 7})
	courier := &fakeCourier{forwardErr: errors.New("thread deleted")}
	svc := newTestService(users, topics, courier, 0)

	if err := svc.RouteUserMessage(context.Background(), userMessage(42, 1)); err != nil {
		t.Fatalf("деградация до пересылки не должна быть ошибкой: %v", err)
	}
	if len(courier.forwards) != 1 || courier.forwards[0] != ownerID {
		t.Fatalf("ожидали прямую пересылку владельцу, получили %v", courier.forwards)
	}
}

func TestRouteUserMessageStoreUnavailable(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{}, err: errors.New("connection refused")}
	svc := newTestService(users, newFakeTopics(), &fakeCourier{}, 0)

	err := svc.RouteUserMessage(context.Background(), userMessage(42, 1))
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("ожидали ErrStoreUnavailable, получили %v", err)
	}
}

func TestRouteTopicMessageDelivers(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{42: true}}
	topics := newFakeTopics()
	_ = topics.Save(context.Background(), domain.Topic{UserID: 42, TopicID: 7})
	courier := &fakeCourier{}
	svc := newTestService(users, topics, courier, 0)

	msg := domain.Message{
		Ref:     domain.MessageRef{ChatID: groupID, MessageID: 10},
		From:    ownerID,
		IsTopic: true,
		TopicID: 7,
		Content: domain.Content{Kind: domain.KindText, Text: "ответ"},
	}
	if err := svc.RouteTopicMessage(context.Background(), msg); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(courier.contentSent) != 1 || courier.contentSent[0] != 42 {
		t.Fatalf("ожидали доставку пользователю 42, получили %v", courier.contentSent)
	}
}

func TestRouteTopicMessageIgnoresIneligible(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{}}
	topics := newFakeTopics()
	_ = topics.Save(context.Background(), domain.Topic{UserID: 42, TopicID: 7})
	courier := &fakeCourier{}
	svc := newTestService(users, topics, courier, 0)

	cases := []domain.Message{
		// Не владелец.
		{Ref: domain.MessageRef{ChatID: groupID}, From: 555, IsTopic: true, TopicID: 7},
		// Вне темы.
		{Ref: domain.MessageRef{ChatID: groupID}, From: ownerID},
		// Чужая группа.
		{Ref: domain.MessageRef{ChatID: -200}, From: ownerID, IsTopic: true, TopicID: 7},
	}
	for _, msg := range cases {
		if err := svc.RouteTopicMessage(context.Background(), msg); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}
	if len(courier.contentSent) != 0 {
		t.Fatalf("недопустимые сообщения не должны доставляться: %v", courier.contentSent)
	}
}

func TestRouteTopicMessageSilentDropOnFailure(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{42: true}}
	topics := newFakeTopics()
	_ = topics.Save(context.Background(), domain.Topic{UserID: 42, TopicID: 7})
	courier := &fakeCourier{contentErr: map[int64]error{42: errors.New("blocked")}}
	svc := newTestService(users, topics, courier, 0)

	msg := domain.Message{
		Ref:     domain.MessageRef{ChatID: groupID, MessageID: 10},
		From:    ownerID,
		IsTopic: true,
		TopicID: 7,
	}
	if err := svc.RouteTopicMessage(context.Background(), msg); err != nil {
		t.Fatalf("сбой доставки должен глотаться: %v", err)
	}
	if len(courier.texts) != 0 {
		t.Fatalf("пользователя нельзя уведомлять о сбое: %v", courier.texts)
	}
}

func TestVerifyUserResetsFloodWindow(t *testing.T) {
	users := &fakeUsers{verified: map[int64]bool{}}
	courier := &fakeCourier{}
	svc := newTestService(users, newFakeTopics(), courier, time.Minute)

	// Непроверенное сообщение занимает окно флуда.
	_ = svc.RouteUserMessage(context.Background(), userMessage(42, 1))
	if err := svc.VerifyUser(context.Background(), 42); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := svc.RouteUserMessage(context.Background(), userMessage(42, 2)); err != nil {
		t.Fatalf("после проверки окно должно быть свежим: %v", err)
	}
}
