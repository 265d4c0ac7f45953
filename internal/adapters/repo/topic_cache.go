package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"tg-relay-bot/internal/domain"
)

// topicCacheTTL ограничивает память кэша; связки неизменны, поэтому
// протухание безопасно и ведёт лишь к повторному чтению из БД.
const topicCacheTTL = 24 * time.Hour

// CachedTopics — сквозной кэш каталога тем поверх domain.TopicRepo.
// Связка пользователь—тема неизменна после создания, устаревания нет.
// Любой сбой кэша деградирует до чтения из БД.
type CachedTopics struct {
	repo  domain.TopicRepo
	cache domain.Cache
	log   zerolog.Logger
}

var _ domain.TopicRepo = (*CachedTopics)(nil)

// NewCachedTopics создаёт кэширующую обёртку.
func NewCachedTopics(repo domain.TopicRepo, cache domain.Cache, log zerolog.Logger) *CachedTopics {
	return &CachedTopics{repo: repo, cache: cache, log: log}
}

func userKey(userID int64) string   { return "topic:user:" + strconv.FormatInt(userID, 10) }
func topicKey(topicID int64) string { return "topic:id:" + strconv.FormatInt(topicID, 10) }

// GetByUser реализует domain.TopicRepo.
func (c *CachedTopics) GetByUser(ctx context.Context, userID int64) (domain.Topic, bool, error) {
	if data, err := c.cache.Get(userKey(userID)); err == nil {
		var topic domain.Topic
		if err := json.Unmarshal(data, &topic); err == nil {
			return topic, true, nil
		}
	}
	topic, ok, err := c.repo.GetByUser(ctx, userID)
	if err != nil || !ok {
		return topic, ok, err
	}
	c.store(topic)
	return topic, true, nil
}

// GetByTopic реализует domain.TopicRepo.
func (c *CachedTopics) GetByTopic(ctx context.Context, topicID int64) (int64, bool, error) {
	if data, err := c.cache.Get(topicKey(topicID)); err == nil {
		if userID, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			return userID, true, nil
		}
	}
	userID, ok, err := c.repo.GetByTopic(ctx, topicID)
	if err != nil || !ok {
		return 0, ok, err
	}
	if err := c.cache.Set(topicKey(topicID), []byte(strconv.FormatInt(userID, 10)), topicCacheTTL); err != nil {
		c.log.Debug().Err(err).Msg("не удалось сохранить тему в кэш")
	}
	return userID, true, nil
}

// Save пишет в БД и заполняет кэш.
func (c *CachedTopics) Save(ctx context.Context, topic domain.Topic) error {
	if err := c.repo.Save(ctx, topic); err != nil {
		return fmt.Errorf("сохранение темы: %w", err)
	}
	c.store(topic)
	return nil
}

func (c *CachedTopics) store(topic domain.Topic) {
	data, err := json.Marshal(topic)
	if err != nil {
		return
	}
	if err := c.cache.Set(userKey(topic.UserID), data, topicCacheTTL); err != nil {
		c.log.Debug().Err(err).Msg("не удалось сохранить тему в кэш")
		return
	}
	if err := c.cache.Set(topicKey(topic.TopicID), []byte(strconv.FormatInt(topic.UserID, 10)), topicCacheTTL); err != nil {
		c.log.Debug().Err(err).Msg("не удалось сохранить тему в кэш")
	}
}
