package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callbridge/internal/auth"
	"callbridge/internal/call"
	"callbridge/internal/config"
	"callbridge/internal/dedup"
	"callbridge/internal/directory"
	"callbridge/internal/httpapi"
	"callbridge/internal/telegram"
	"callbridge/pkg/logger"
	"callbridge/pkg/utils"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; containers inject real env directly.
	_ = godotenv.Load()

	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Memory-only is the default; the DB_* group upgrades both stores to
	// Postgres and enables restart recovery.
	var callStore call.Store = call.NewMemoryStore()
	var dirRepo directory.Repository = directory.NewMemoryRepo()
	var db *sql.DB
	if cfg.DurableStoreEnabled() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		pgStore := call.NewPostgresStore(db)
		if err := pgStore.Migrate(rootCtx); err != nil {
			log.Error("call store migration failed", "err", err)
			os.Exit(1)
		}
		pgDir := directory.NewPostgresRepo(db)
		if err := pgDir.Migrate(rootCtx); err != nil {
			log.Error("directory migration failed", "err", err)
			os.Exit(1)
		}
		callStore = pgStore
		dirRepo = pgDir
	} else {
		log.Warn("DB_HOST not set, running memory-only; active calls will not survive a restart")
	}

	var dedupRepo dedup.Repo = dedup.NewMemoryRepo()
	if cfg.DedupEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		dedupRepo = dedup.NewRedisRepo(rdb)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Error("bot authorization failed", "err", err)
		os.Exit(1)
	}
	log.Info("bot authorized", "username", bot.Self.UserName)

	dir := directory.NewService(dirRepo)
	notify := call.NewNotificationSync(telegram.NewNotifier(bot), log)
	ctl := call.NewController(call.NewRegistry(), callStore, dir, notify, cfg.Call.RingTimeout, log)
	defer ctl.Close()

	if cfg.DurableStoreEnabled() {
		n, err := call.NewRecovery(callStore, ctl, cfg.Call.RingTimeout, log).Run(rootCtx)
		if err != nil {
			log.Error("call recovery failed", "err", err)
		} else {
			log.Info("call recovery done", "recovered", n)
		}
	}

	handler := telegram.NewHandler(bot, bot.Self.UserName, ctl, dir, log)
	webhook := telegram.NewWebhook(cfg.Telegram.BotToken, cfg.Telegram.WebhookSecret, dedupRepo, handler, log)

	var ops *httpapi.Handler
	if cfg.OpsAPIEnabled() {
		tokens, err := auth.NewManager(cfg.Ops)
		if err != nil {
			log.Error("ops auth init failed", "err", err)
			os.Exit(1)
		}
		ops = httpapi.NewHandler(ctl, tokens, cfg.Ops, log)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, webhook, ops)

	if err := registerTelegramWebhook(bot, cfg); err != nil {
		log.Error("webhook registration failed", "err", err)
		os.Exit(1)
	}
	log.Info("webhook registered", "url_path", cfg.Telegram.BaseURL+"/webhook/<token>")

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("bot listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// registerTelegramWebhook points Telegram at this instance. Done through a
// raw setWebhook request so the optional secret_token can be set too.
func registerTelegramWebhook(bot *tgbotapi.BotAPI, cfg config.Config) error {
	params := tgbotapi.Params{"url": cfg.WebhookURL()}
	if cfg.Telegram.WebhookSecret != "" {
		params["secret_token"] = cfg.Telegram.WebhookSecret
	}
	if _, err := bot.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}
