package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-relay-bot/internal/domain"
	"tg-relay-bot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool    *pgxpool.Pool
	ownerID int64
}

var (
	_ domain.UserRepo  = (*Postgres)(nil)
	_ domain.TopicRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД. Владелец исключается из выборок
// адресатов и рейтинга активности.
func NewPostgres(pool *pgxpool.Pool, ownerID int64) *Postgres {
	return &Postgres{pool: pool, ownerID: ownerID}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureOwner заводит запись владельца как проверенную. Вызывается на старте.
func (p *Postgres) EnsureOwner(ctx context.Context, ownerID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO users (user_id, verified, last_active) VALUES ($1, TRUE, now())
ON CONFLICT (user_id) DO UPDATE SET verified = TRUE
`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "users_ensure_owner", "users", start, err)
	return err
}

// IsVerified реализует domain.UserRepo.
func (p *Postgres) IsVerified(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	var verified bool
	err := p.pool.QueryRow(ctx, `SELECT verified FROM users WHERE user_id = $1`, userID).Scan(&verified)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "users_is_verified", "users", start, nil)
		return false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "users_is_verified", "users", start, err)
	if err != nil {
		return false, err
	}
	return verified, nil
}

// Verify отмечает пользователя проверенным. Повторный вызов обновляет
// только время активности.
func (p *Postgres) Verify(ctx context.Context, userID int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO users (user_id, verified, last_active) VALUES ($1, TRUE, now())
ON CONFLICT (user_id) DO UPDATE SET verified = TRUE, last_active = now()
`, userID)
	metrics.ObserveNetworkRequest("postgres", "users_verify", "users", start, err)
	return err
}

// RecordActivity обновляет время активности пользователя.
func (p *Postgres) RecordActivity(ctx context.Context, userID int64) error {
	if userID == p.ownerID {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET last_active = now() WHERE user_id = $1`, userID)
	metrics.ObserveNetworkRequest("postgres", "users_record_activity", "users", start, err)
	return err
}

// MostRecentActive возвращает недавно активных проверенных пользователей
// без владельца, по убыванию времени активности.
func (p *Postgres) MostRecentActive(ctx context.Context, limit int) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id FROM users
WHERE verified AND user_id != $1
ORDER BY last_active DESC
LIMIT $2
`, p.ownerID, limit)
	metrics.ObserveNetworkRequest("postgres", "users_most_recent", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListVerified возвращает всех проверенных пользователей без владельца.
func (p *Postgres) ListVerified(ctx context.Context) ([]int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id FROM users WHERE verified AND user_id != $1`, p.ownerID)
	metrics.ObserveNetworkRequest("postgres", "users_list_verified", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByUser реализует domain.TopicRepo.
func (p *Postgres) GetByUser(ctx context.Context, userID int64) (domain.Topic, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	var topic domain.Topic
	err := p.pool.QueryRow(ctx, `
SELECT user_id, topic_id, topic_name, created_at FROM user_topics WHERE user_id = $1
`, userID).Scan(&topic.UserID, &topic.TopicID, &topic.Title, &topic.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "topics_get_by_user", "user_topics", start, nil)
		return domain.Topic{}, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "topics_get_by_user", "user_topics", start, err)
	if err != nil {
		return domain.Topic{}, false, err
	}
	return topic, true, nil
}

// GetByTopic возвращает пользователя темы (обратный индекс).
func (p *Postgres) GetByTopic(ctx context.Context, topicID int64) (int64, bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	var userID int64
	err := p.pool.QueryRow(ctx, `SELECT user_id FROM user_topics WHERE topic_id = $1`, topicID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "topics_get_by_topic", "user_topics", start, nil)
		return 0, false, nil
	}
	metrics.ObserveNetworkRequest("postgres", "topics_get_by_topic", "user_topics", start, err)
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

// Save записывает связку пользователь—тема. Конфликт по пользователю
// разрешается заменой: последний писатель побеждает, писатели
// сериализованы замком движка по ключу пользователя.
func (p *Postgres) Save(ctx context.Context, topic domain.Topic) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO user_topics (user_id, topic_id, topic_name, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET topic_id = EXCLUDED.topic_id, topic_name = EXCLUDED.topic_name, created_at = EXCLUDED.created_at
`, topic.UserID, topic.TopicID, topic.Title, topic.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "topics_save", "user_topics", start, err)
	return err
}
