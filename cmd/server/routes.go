package main

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/handlers"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.AllowedOrigins()...))
	r.Use(middleware.Metrics())

	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api")
	{
		api.GET("/health", svc.healthHandler.CheckHealth)

		// Auth routes (public, rate limited)
		auth := api.Group("/auth", svc.authLimiter.Middleware())
		{
			auth.POST("/register", svc.authHandler.Register)
			auth.GET("/verify-email/:token", svc.authHandler.VerifyEmail)
			auth.POST("/resend-verification", svc.authHandler.ResendVerification)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.POST("/password-reset", svc.authHandler.RequestPasswordReset)
			auth.POST("/password-reset/confirm", svc.authHandler.ConfirmPasswordReset)
		}

		// SSE (public route with internal token validation)
		api.GET("/notifications/stream", svc.sseHandler.StreamNotifications)

		authed := []gin.HandlerFunc{middleware.AuthRequired()}
		if svc.cfg.Audit.Enabled {
			authed = append(authed, middleware.Audit(svc.audit))
		}

		protected := api.Group("")
		protected.Use(authed...)
		{
			protected.GET("/auth/me", svc.authHandler.Me)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			protected.GET("/profile", svc.profileHandler.Get)
			protected.PATCH("/profile", svc.profileHandler.Update)
			protected.GET("/profile/skills", svc.profileHandler.ListSkills)
			protected.POST("/profile/skills", svc.profileHandler.AddSkill)
			protected.DELETE("/profile/skills/:id", svc.profileHandler.RemoveSkill)

			protected.GET("/roles", svc.catalogHandler.ListRoles)
			protected.GET("/skills", svc.catalogHandler.ListSkills)

			protected.GET("/projects", svc.projectHandler.List)
			protected.POST("/projects", svc.projectHandler.Create)
			protected.GET("/projects/mine", svc.projectHandler.Mine)
			protected.GET("/projects/:id", svc.projectHandler.GetByID)
			protected.PATCH("/projects/:id", svc.projectHandler.Update)
			protected.DELETE("/projects/:id", svc.projectHandler.Delete)
			protected.POST("/projects/:id/roles", svc.projectHandler.AddRole)
			protected.DELETE("/projects/:id/roles/:roleID", svc.projectHandler.RemoveRole)

			protected.GET("/memberships", svc.membershipHandler.List)
			protected.POST("/memberships", svc.membershipHandler.Create)
			protected.GET("/memberships/:id", svc.membershipHandler.GetByID)
			protected.DELETE("/memberships/:id", svc.membershipHandler.Withdraw)
			protected.PATCH("/memberships/:id/status", svc.membershipHandler.Decide)

			protected.GET("/notifications", svc.notificationHandler.List)
			protected.GET("/notifications/unread-count", svc.notificationHandler.UnreadCount)
			protected.POST("/notifications/mark-all-read", svc.notificationHandler.MarkAllRead)
			protected.GET("/notifications/:id", svc.notificationHandler.GetByID)
			protected.PATCH("/notifications/:id/read", svc.notificationHandler.MarkRead)
		}

		staff := api.Group("")
		staff.Use(authed...)
		staff.Use(middleware.StaffRequired())
		{
			staff.POST("/notifications/broadcast", svc.notificationHandler.Broadcast)
			staff.GET("/audit-logs", svc.auditHandler.List)
			staff.GET("/audit-logs/modules", svc.auditHandler.Modules)
		}
	}
}
