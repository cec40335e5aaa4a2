package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"incidenbot/backend/internal/api/handler"
	"incidenbot/backend/internal/classifier"
	"incidenbot/backend/internal/config"
	"incidenbot/backend/internal/digest"
	"incidenbot/backend/internal/incident"
	"incidenbot/backend/internal/livefeed"
	"incidenbot/backend/internal/localization"
	"incidenbot/backend/internal/notifier"
	"incidenbot/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.AppConfig) (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Database and Redis connections established.")
	return db, rdb
}

func setupNotifiers(cfg *config.AppConfig) (notifier.Notifier, *notifier.TelegramNotifier) {
	notifiers := notifier.Multi{notifier.NewWebhookNotifier(cfg.WebhookURL)}

	if !cfg.TelegramEnabled() {
		log.Println("INFO: Telegram staff alerts disabled (TELEGRAM_BOT_TOKEN / TELEGRAM_STAFF_CHAT_ID not set)")
		return notifiers, nil
	}
	tg, err := notifier.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramStaffChatID, cfg.TelegramMinUrgency)
	if err != nil {
		log.Printf("WARNING: Telegram staff alerts disabled: %v", err)
		return notifiers, nil
	}
	return append(notifiers, tg), tg
}

func main() {
	log.Println("Starting IncidenBot Backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if cfg.GeminiAPIKey == "" {
		log.Println("WARNING: API_KEY not set, every submission will fail classification")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies(ctx, cfg)
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	loc, err := localization.NewDefaultLocalizer()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	// 2. Live feed
	hub := livefeed.NewHub(s)
	hub.StartChangeListener(ctx)
	go hub.Run(ctx)

	// 3. Lifecycle controller
	notify, tg := setupNotifiers(cfg)
	dispatcher := notifier.NewDispatcher(notify)
	svc := incident.NewService(classifier.NewClient(cfg), s, dispatcher)

	sessions := incident.NewSessionRegistry()
	go sessions.Run(ctx, config.SessionSweepEvery)

	// 4. Daily digest
	job := &digest.Job{Source: hub, Labels: loc, Lang: cfg.DefaultLanguage, Timeout: config.NotifyTimeout}
	if tg != nil {
		job.Sender = tg
	}
	scheduler, err := digest.Schedule(cfg.DigestSchedule, job)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	scheduler.Start()

	// 5. HTTP
	auth, err := handler.NewAuthenticator(cfg.JWTSecret, cfg.StaffPassword)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	h := handler.NewHandler(svc, sessions, hub, auth, loc)
	h.DefaultLang = cfg.DefaultLanguage
	h.TestMode = cfg.TestMode

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        handler.NewRouter(h, cfg.AllowedOrigins),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		// no WriteTimeout: classification may take longer and /ws is long-lived
	}

	go func() {
		log.Printf("INFO: Listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("INFO: Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: HTTP shutdown: %v", err)
	}
	<-scheduler.Stop().Done()
	dispatcher.Wait()
	if err := rdb.Close(); err != nil {
		log.Printf("WARNING: Redis close: %v", err)
	}
	log.Println("INFO: Bye")
}
