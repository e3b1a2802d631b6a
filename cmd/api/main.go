package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-chat/internal/api/http"
	"github.com/spec-kit/support-chat/internal/api/http/handlers"
	"github.com/spec-kit/support-chat/internal/auth"
	"github.com/spec-kit/support-chat/internal/classify"
	"github.com/spec-kit/support-chat/internal/config"
	"github.com/spec-kit/support-chat/internal/events"
	"github.com/spec-kit/support-chat/internal/ingest"
	"github.com/spec-kit/support-chat/internal/observability"
	"github.com/spec-kit/support-chat/internal/persistence"
	"github.com/spec-kit/support-chat/internal/realtime"
	"github.com/spec-kit/support-chat/internal/repository"
	"github.com/spec-kit/support-chat/internal/service"
	"github.com/spec-kit/support-chat/internal/storage"
	"github.com/spec-kit/support-chat/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		userRepo repository.UserRepository
		convRepo repository.ConversationRepository
		msgRepo  repository.MessageRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pool)
		convRepo = repository.NewConversationRepository(pool)
		msgRepo = repository.NewMessageRepository(pool)
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory store")
		store := repository.NewMemoryStore()
		userRepo = store.Users()
		convRepo = store.Conversations()
		msgRepo = store.Messages()
	}

	var (
		redisWrap   *persistence.Redis
		cacheClient *redislib.Client
	)
	if cfg.Redis.Addr != "" {
		redisWrap = persistence.NewRedis(cfg.Redis, logger)
		defer redisWrap.Close()
		cacheClient = redisWrap.Client
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	bus := realtime.NewBus()
	classifier := classify.NewAdapter(classify.Heuristic, cfg.Classifier.Timeout())

	attachments, err := storage.NewLocalStore(cfg.Attachments.Dir, cfg.Attachments.BaseURL, cfg.Attachments.MaxSizeBytes)
	if err != nil {
		logger.Fatal("failed to init attachment store", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	pipeline := ingest.NewPipeline(msgRepo, classifier, bus, dispatcher, metrics, logger)

	authService := service.NewAuthService(userRepo, tokens, cfg.Auth.BcryptCost, logger)
	chatService := service.NewChatService(convRepo, msgRepo, pipeline, dispatcher, logger)
	analyticsService := service.NewAnalyticsService(convRepo, msgRepo, userRepo, cacheClient,
		cfg.Analytics.SummaryCacheTTL(), cfg.Analytics.RecentMessageWindow, logger)
	searchService := service.NewSearchService(convRepo, msgRepo, userRepo, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartNotificationWorker(notificationService)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Attachments.MaxSizeBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisWrap),
		Users:          handlers.NewUsersHandler(authService),
		Chats:          handlers.NewChatsHandler(chatService, attachments),
		Search:         handlers.NewSearchHandler(searchService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		ML:             handlers.NewMLHandler(classifier),
		Socket:         handlers.NewSocketHandler(chatService, bus, authMiddleware, logger),
		AuthMiddleware: authMiddleware,
		UploadsDir:     attachments.Dir(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
