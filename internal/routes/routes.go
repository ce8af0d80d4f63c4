package routes

import (
	"log/slog"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/handlers"
	"github.com/BradenHooton/mobistudy/internal/middleware"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/go-chi/chi/v5"
)

// Handlers groups every resource handler mounted under /api
type Handlers struct {
	Auth         *handlers.AuthHandler
	Users        *handlers.UserHandler
	Participants *handlers.ParticipantHandler
	Teams        *handlers.TeamHandler
	Studies      *handlers.StudyHandler
	Audit        *handlers.AuditHandler
	Tester       *handlers.TesterHandler
}

// RegisterRoutes registers all application routes under /api
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	users auth.UserFetcher,
	authRequestsPerMinute int,
	logger *slog.Logger,
) {
	router.Route("/api", func(r chi.Router) {
		// Public routes, rate limited per client IP
		limited := r.With(middleware.RateLimitByIP(authRequestsPerMinute))
		limited.Post("/login", h.Auth.Login)
		limited.Post("/sendResetPasswordEmail", h.Auth.SendResetPasswordEmail)
		limited.Post("/resetPassword", h.Auth.ResetPassword)
		limited.Post("/users", h.Users.CreateUser)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(tokenManager, users, logger))

			r.Get("/users", h.Users.ListUsers)
			r.Get("/users/{userKey}", h.Users.GetUser)

			h.Participants.RegisterRoutes(r)
			h.Teams.RegisterRoutes(r)
			h.Studies.RegisterRoutes(r)

			r.Get("/auditlog", h.Audit.List)

			r.With(auth.RequireRole(models.RoleAdmin)).Post("/tester/sendemail", h.Tester.SendEmail)
		})
	})
}
