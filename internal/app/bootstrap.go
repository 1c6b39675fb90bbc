package app

import (
	"context"
	"errors"
	"net/http"

	"echoflow/internal/app/chat"
	"echoflow/internal/app/health"
	"echoflow/internal/app/message"
	"echoflow/internal/app/session"
	"echoflow/internal/app/share"
	"echoflow/internal/app/thread"
	"echoflow/internal/app/upload"
	"echoflow/internal/app/user"
	"echoflow/internal/config"
	"echoflow/internal/db"
	"echoflow/internal/db/seeder"
	"echoflow/internal/gateways/websocket"
	"echoflow/internal/middleware"
	"echoflow/internal/providers/llm"
	"echoflow/internal/providers/minio"
	"echoflow/internal/providers/redis"
	"echoflow/internal/router"
	"echoflow/internal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Application struct {
	Router *router.Router
	DB     *gorm.DB
	Redis  *redis.RedisProvider
	Chat   chat.Service
	Hub    *websocket.Hub

	stop   context.CancelFunc
	logger *zap.Logger
}

func Bootstrap(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(dbConn, logger); err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(context.Background())

	seed := seeder.NewSeeder(dbConn, logger)
	if err := seed.Seed(ctx); err != nil {
		logger.Warn("Failed to run seeders", zap.Error(err))
	}

	redisProvider := redis.NewRedisProvider(cfg.RedisURL, logger, cfg.RedisTTL)
	eventBus := utils.NewEventBus(logger)
	if err := redisProvider.RelayEvents(ctx, eventBus); err != nil {
		logger.Warn("Redis event relay unavailable, events stay on this instance", zap.Error(err))
	} else {
		eventBus.SetRelay(redisProvider)
	}

	checker := &utils.HealthChecker{
		DB:       dbConn,
		Redis:    redisProvider.Client,
		Optional: map[string]utils.CheckFunc{},
	}

	var storage upload.Storage
	minioProvider, err := minio.NewMinioProvider(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize MinIO provider, avatar uploads disabled", zap.Error(err))
	} else {
		storage = minioProvider
		checker.Optional["MinIO"] = minioProvider.Ping
	}

	llmProvider := llm.NewOpenAIProvider(llm.Options{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		ChatModel:   cfg.LLMChatModel,
		TitleModel:  cfg.LLMTitleModel,
		Temperature: cfg.LLMTemperature,
	}, &http.Client{}, logger)

	tokens := session.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	sessionRepo := session.NewRepository(dbConn)
	userRepo := user.NewRepository(dbConn)
	threadRepo := thread.NewRepository(dbConn)
	messageRepo := message.NewRepository(dbConn)

	uploadService := upload.NewService(storage, logger)
	userService := user.NewService(userRepo, uploadService, redisProvider, logger)
	sessionService := session.NewService(sessionRepo, userService, tokens, redisProvider, logger)
	threadService := thread.NewService(threadRepo, redisProvider, eventBus, logger)
	messageService := message.NewService(messageRepo, threadService, eventBus, logger)
	chatService := chat.NewService(threadService, messageService, llmProvider, eventBus, chat.Options{
		ContextWindow: cfg.ChatContextWindow,
		LLMTimeout:    cfg.LLMTimeout,
		TitleTimeout:  cfg.TitleTimeout,
	}, logger)
	shareService := share.NewService(threadService, messageService, userService, redisProvider, logger)

	hub := websocket.NewHub(sessionService, threadService, messageService, eventBus, logger)
	go hub.Run(ctx)

	r := router.NewRouter(logger, cfg.FrontendURL, sessionService)

	r.RegisterHealthRoutes(health.NewHandler(health.NewService(checker)))
	r.RegisterWebSocketRoutes(hub)
	r.RegisterSessionRoutes(session.NewHandler(sessionService, logger))
	r.RegisterUserRoutes(user.NewHandler(userService, logger))
	r.RegisterThreadRoutes(thread.NewHandler(threadService, logger))
	r.RegisterMessageRoutes(message.NewHandler(messageService, threadService, logger))
	r.RegisterChatRoutes(
		chat.NewHandler(chatService, logger),
		middleware.RateLimit(redisProvider.Client, cfg.RateLimitQPS, logger),
	)
	r.RegisterShareRoutes(share.NewHandler(shareService, logger))
	r.RegisterMetricsRoutes()
	r.RegisterSwaggerRoutes()

	return &Application{
		Router: r,
		DB:     dbConn,
		Redis:  redisProvider,
		Chat:   chatService,
		Hub:    hub,
		stop:   stop,
		logger: logger,
	}, nil
}

// Shutdown waits for background title generation, then stops the hub and
// the redis relay and closes connections.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Chat.Drain(ctx); err != nil {
		errs = append(errs, err)
	}
	a.stop()

	if err := a.Redis.Close(); err != nil {
		errs = append(errs, err)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.logger.Info("Application stopped", zap.Int("websocket_clients", a.Hub.ClientCount()))
	return errors.Join(errs...)
}
