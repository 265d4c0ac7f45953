package config

import (
	"fmt"
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию релей-бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	// OwnerID — аккаунт владельца, единственный оператор бота.
	OwnerID int64 `envconfig:"OWNER_ID"`
	// GroupID — форум-группа владельца, в которой создаются темы пользователей.
	GroupID int64 `envconfig:"GROUP_ID"`

	FloodLimitSeconds int `envconfig:"FLOOD_LIMIT_SECONDS" default:"5"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Validate проверяет обязательные поля до запуска бота.
func (c AppConfig) Validate() error {
	if len(c.Telegram.Token) < 30 {
		return fmt.Errorf("TG_BOT_TOKEN не задан или некорректен")
	}
	if c.OwnerID <= 0 {
		return fmt.Errorf("OWNER_ID должен быть положительным числом")
	}
	if c.GroupID == 0 {
		return fmt.Errorf("GROUP_ID должен быть ненулевым числом")
	}
	if c.FloodLimitSeconds < 1 || c.FloodLimitSeconds > 3600 {
		return fmt.Errorf("FLOOD_LIMIT_SECONDS должен быть в пределах 1-3600, получено %d", c.FloodLimitSeconds)
	}
	if c.PGDSN == "" {
		return fmt.Errorf("PG_DSN не задан")
	}
	return nil
}
