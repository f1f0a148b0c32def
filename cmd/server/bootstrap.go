package main

import (
	"github.com/teamsync/backend/internal/authz"
	"github.com/teamsync/backend/internal/config"
	"github.com/teamsync/backend/internal/handlers"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/internal/models"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/internal/utils"
	"github.com/teamsync/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg         *config.Config
	db          *gorm.DB
	hub         *services.NotificationHub
	notifier    *services.NotificationService
	taskQueue   services.TaskQueue
	worker      *services.Worker
	cleanup     *services.CleanupScheduler
	audit       *services.AuditService
	authLimiter *middleware.RateLimiter

	authHandler         *handlers.AuthHandler
	profileHandler      *handlers.ProfileHandler
	catalogHandler      *handlers.CatalogHandler
	projectHandler      *handlers.ProjectHandler
	membershipHandler   *handlers.MembershipHandler
	notificationHandler *handlers.NotificationHandler
	sseHandler          *handlers.SSEHandler
	healthHandler       *handlers.HealthHandler
	auditHandler        *handlers.AuditHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	svc := newAppServices(cfg, models.GetDB(), services.InitTaskQueue(cfg))

	if err := svc.cleanup.Start(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start cleanup scheduler")
	}

	if svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis)
		if svc.worker != nil {
			svc.worker.SetProcessor(svc.notifier.ProcessBroadcast)
			if err := svc.worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start broadcast worker")
				svc.worker = nil
			}
		}
	}

	return svc
}

// newAppServices wires services and handlers on top of an open database.
func newAppServices(cfg *config.Config, db *gorm.DB, taskQueue services.TaskQueue) *appServices {
	handlers.RegisterValidators()

	enforcer := authz.MustNewEnforcer()
	hub := services.NewNotificationHub()
	catalog := services.NewCatalogService(db)
	notifications := services.NewNotificationService(db, enforcer, hub)
	authService := services.NewAuthService(db, &cfg.JWT, services.NewMailer(cfg))
	audit := services.NewAuditService(db)

	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notifications.ProcessBroadcast)
	}

	return &appServices{
		cfg:         cfg,
		db:          db,
		hub:         hub,
		notifier:    notifications,
		taskQueue:   taskQueue,
		cleanup:     services.NewCleanupScheduler(db, &cfg.Notification).WithAuditRetention(cfg.Audit.RetentionDays),
		audit:       audit,
		authLimiter: middleware.NewRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),

		authHandler:         handlers.NewAuthHandler(authService),
		profileHandler:      handlers.NewProfileHandler(services.NewProfileService(db, catalog)),
		catalogHandler:      handlers.NewCatalogHandler(catalog),
		projectHandler:      handlers.NewProjectHandler(services.NewProjectService(db, catalog, enforcer, notifications)),
		membershipHandler:   handlers.NewMembershipHandler(services.NewMembershipService(db, enforcer, notifications)),
		notificationHandler: handlers.NewNotificationHandler(notifications, taskQueue),
		sseHandler:          handlers.NewSSEHandler(hub),
		healthHandler:       handlers.NewHealthHandler(db, hub, taskQueue),
		auditHandler:        handlers.NewAuditHandler(audit),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.cleanup.Stop()
	s.authLimiter.Close()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
