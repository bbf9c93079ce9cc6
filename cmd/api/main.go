package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/zapret-labs/tracker/internal/api/http"
	"github.com/zapret-labs/tracker/internal/api/http/handlers"
	"github.com/zapret-labs/tracker/internal/auth"
	"github.com/zapret-labs/tracker/internal/config"
	"github.com/zapret-labs/tracker/internal/events"
	"github.com/zapret-labs/tracker/internal/observability"
	"github.com/zapret-labs/tracker/internal/persistence"
	"github.com/zapret-labs/tracker/internal/repository"
	"github.com/zapret-labs/tracker/internal/service"
	"github.com/zapret-labs/tracker/internal/telegram"
	"github.com/zapret-labs/tracker/internal/worker"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	loginTokenRepo := repository.NewLoginTokenRepository(redis.Client)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	tagRepo := repository.NewTagRepository(pool)
	voteRepo := repository.NewVoteRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	reactionRepo := repository.NewReactionRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(
		userRepo, sessionRepo, loginTokenRepo, logger,
		cfg.Telegram.BotToken, cfg.Telegram.BotUsername,
		cfg.Telegram.AdminTelegramID, cfg.Session.LoginTokenTTL(),
	)
	presenceService := service.NewPresenceService(
		cfg.Presence.OnlineTimeout(), cfg.Presence.PurgeTimeout(),
		cfg.Presence.BroadcastInterval(), logger, metrics,
	)
	typingService := service.NewTypingService(cfg.Presence.TypingTimeout())
	ticketService := service.NewTicketService(
		ticketRepo, messageRepo, attachmentRepo, tagRepo, voteRepo, subscriptionRepo,
		userRepo, dispatcher, logger,
	)
	messageService := service.NewMessageService(
		messageRepo, attachmentRepo, reactionRepo, ticketRepo, subscriptionRepo,
		dispatcher, logger,
	)
	userService := service.NewUserService(userRepo, presenceService, logger)

	var botClient *telegram.Client
	var poller *telegram.Poller
	var profileService *service.ProfileService
	if cfg.Telegram.Enabled() {
		botClient = telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, logger)

		notificationService := service.NewNotificationService(
			botClient, ticketRepo, subscriptionRepo, logger, metrics,
			cfg.Telegram.SiteURL, cfg.Telegram.SiteIsHTTPS(),
			cfg.Telegram.AdminTelegramID,
		)
		notificationService.RegisterHandlers(dispatcher)

		profileService = service.NewProfileService(
			userRepo, botClient, logger, cfg.Uploads.Dir,
			cfg.Profile.RefreshCooldown(), cfg.Profile.AvatarSweepInterval(),
			cfg.Profile.RequestsPerSecond,
		)
		profileService.Start()
		defer profileService.Stop()

		poller = telegram.NewPoller(
			botClient, authService, logger,
			cfg.Telegram.SiteURL, cfg.Telegram.SiteIsHTTPS(),
			cfg.Telegram.PollTimeoutSec,
		)
		poller.Start()
		defer poller.Stop()
	} else {
		logger.Warn("telegram bot token not set, bot features disabled")
		profileService = service.NewProfileService(
			userRepo, noopAvatarSource{}, logger, cfg.Uploads.Dir,
			cfg.Profile.RefreshCooldown(), cfg.Profile.AvatarSweepInterval(),
			cfg.Profile.RequestsPerSecond,
		)
	}

	presenceService.Start()
	defer presenceService.Stop()

	maintenance := worker.NewMaintenanceWorker(
		sessionRepo, logger, cfg.Session.CleanupInterval(), cfg.Session.SessionTTL())
	maintenance.Start()
	defer maintenance.Stop()

	authMiddleware := auth.NewAuthMiddleware(sessionRepo, userRepo, cfg.Session.SessionTTL())

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(pg, redis),
		Auth:           handlers.NewAuthHandler(authService, presenceService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Messages:       handlers.NewMessagesHandler(messageService, typingService),
		Presence:       handlers.NewPresenceHandler(presenceService, profileService),
		Users:          handlers.NewUsersHandler(userService, profileService),
		Tags:           handlers.NewTagsHandler(tagRepo),
		AuthMiddleware: authMiddleware,
		UploadDir:      cfg.Uploads.Dir,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// noopAvatarSource keeps the profile service constructible when the
// bot is disabled; refreshes simply find no photo.
type noopAvatarSource struct{}

func (noopAvatarSource) GetLatestProfilePhotoFileID(context.Context, int64) (string, error) {
	return "", nil
}

func (noopAvatarSource) DownloadFile(context.Context, string) ([]byte, error) {
	return nil, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
