package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-relay-bot/internal/adapters/bot"
	"tg-relay-bot/internal/adapters/repo"
	"tg-relay-bot/internal/adapters/telegram"
	"tg-relay-bot/internal/infra/cache"
	"tg-relay-bot/internal/infra/config"
	"tg-relay-bot/internal/infra/db"
	"tg-relay-bot/internal/infra/log"
	"tg-relay-bot/internal/infra/metrics"
	"tg-relay-bot/internal/usecase/broadcast"
	"tg-relay-bot/internal/usecase/flood"
	"tg-relay-bot/internal/usecase/relay"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("некорректная конфигурация")
	}

	if err := db.RunMigrations(cfg.PGDSN); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить миграции")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	repoAdapter := repo.NewPostgres(pool, cfg.OwnerID)
	if err := repoAdapter.EnsureOwner(ctx, cfg.OwnerID); err != nil {
		logger.Fatal().Err(err).Msg("не удалось завести запись владельца")
	}

	redisCache := cache.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	topics := repo.NewCachedTopics(repoAdapter, redisCache, logger)

	botAPI, err := telego.NewBot(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	courier := telegram.NewCourier(botAPI, logger)

	limit := time.Duration(cfg.FloodLimitSeconds) * time.Second
	guard := flood.NewGuard(cfg.OwnerID, limit)
	relayUC := relay.NewService(repoAdapter, topics, courier, guard, logger, cfg.OwnerID, cfg.GroupID, limit)
	broadcastUC := broadcast.NewService(repoAdapter, courier, logger, cfg.OwnerID)
	h := bot.NewHandler(courier, relayUC, broadcastUC, logger, cfg.OwnerID, cfg.GroupID)

	setupOwner(ctx, botAPI, courier, redisCache, cfg.OwnerID, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	if cfg.Telegram.WebhookURL != "" {
		runWebhook(ctx, stop, cfg, h, logger)
		return
	}
	runPolling(ctx, stop, botAPI, h, logger)
}

// setupOwner настраивает меню команд владельца и отправляет уведомление о
// старте. Оба действия best effort: владелец мог ещё не открыть чат с
// ботом. Уведомление дедуплицируется через Redis, чтобы перезапуски в
// цикле не заваливали владельца сообщениями.
func setupOwner(ctx context.Context, botAPI *telego.Bot, courier *telegram.Courier, redisCache *cache.RedisCache, ownerID int64, logger zerolog.Logger) {
	err := botAPI.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{{Command: "start", Description: "Открыть меню"}},
		Scope:    &telego.BotCommandScopeChat{Type: "chat", ChatID: tu.ID(ownerID)},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("не удалось настроить меню команд владельца")
	}

	err = redisCache.Once("relay:startup_notice", time.Minute, func() error {
		_, sendErr := courier.SendText(ctx, ownerID, "🤖 Бот запущен!")
		return sendErr
	})
	if err != nil {
		logger.Warn().Err(err).Msg("не удалось отправить уведомление о запуске")
	}
}

func runWebhook(ctx context.Context, stop <-chan os.Signal, cfg config.AppConfig, h *bot.Handler, logger zerolog.Logger) {
	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, req *http.Request) {
		var update telego.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(req.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Msg("релей-бот запущен (вебхук)")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	<-stop
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func runPolling(ctx context.Context, stop <-chan os.Signal, botAPI *telego.Bot, h *bot.Handler, logger zerolog.Logger) {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, err := botAPI.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось начать опрос обновлений")
	}

	logger.Info().Msg("релей-бот запущен (опрос)")
	go func() {
		for update := range updates {
			h.HandleUpdate(pollCtx, update)
		}
	}()

	<-stop
	logger.Info().Msg("остановка бота")
	cancel()
}
