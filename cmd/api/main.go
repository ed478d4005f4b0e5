package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/complaint-service/internal/api/http"
	"github.com/spec-kit/complaint-service/internal/assistant"
	"github.com/spec-kit/complaint-service/internal/api/http/handlers"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	"github.com/spec-kit/complaint-service/internal/storage"
)

func main() {
	addr := pflag.String("addr", "", "listen address, overrides APP_HOST/APP_PORT")
	migrate := pflag.Bool("migrate", false, "apply SQL migrations on startup even if POSTGRES_RUN_MIGRATIONS is false")
	pflag.Parse()

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

	if cfg.Postgres.RunMigrations || *migrate {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	store, err := storage.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		logger.Fatal("failed to prepare upload storage", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	remarkRepo := repository.NewRemarkRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	revocations := auth.NewRedisRevocationStore(redis.Client)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		Revocations: revocations,
		Logger:      logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		NotificationRepo: notificationRepo,
		Logger:           logger,
		ListLimit:        cfg.Notification.ListLimit,
	})
	notificationService.RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		RemarkRepo:     remarkRepo,
		AttachmentRepo: attachmentRepo,
		CategoryRepo:   categoryRepo,
		UserRepo:       userRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		IDPrefix:       cfg.Ticket.IDPrefix,
		IDRetries:      cfg.Ticket.AllocationRetries,
	})
	attachmentService := service.NewAttachmentService(service.AttachmentDependencies{
		TicketRepo:       ticketRepo,
		AttachmentRepo:   attachmentRepo,
		Store:            store,
		Logger:           logger,
		MaxBytes:         cfg.Upload.MaxBytes,
		AllowedMIMETypes: cfg.Upload.AllowedMIMETypes,
	})
	categoryService := service.NewCategoryService(categoryRepo)
	userService := service.NewUserService(userRepo)
	dashboardService := service.NewDashboardService(statsRepo, nil)

	chatbotDeps := service.ChatbotDependencies{CategoryRepo: categoryRepo, Logger: logger}
	if gemini := assistant.NewGeminiClient(assistant.GeminiOptions{
		Endpoint: cfg.Chatbot.Endpoint,
		Model:    cfg.Chatbot.Model,
		APIKey:   cfg.Chatbot.APIKey,
		Timeout:  cfg.Chatbot.Timeout(),
	}); gemini != nil {
		chatbotDeps.Assistant = gemini
	} else {
		logger.Info("chatbot api key not set, using built-in replies")
	}
	chatbotService := service.NewChatbotService(chatbotDeps)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, revocations, logger)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Upload.MaxBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
			"storage":  store,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Uploads:        handlers.NewUploadsHandler(attachmentService),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Admin:          handlers.NewAdminHandler(dashboardService, userService),
		Chatbot:        handlers.NewChatbotHandler(chatbotService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics.Handler(),
	})

	listenAddr := cfg.App.Addr()
	if *addr != "" {
		listenAddr = *addr
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", listenAddr))
		if err := app.Listen(listenAddr); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
