package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/mobistudy/internal/auth"
	"github.com/BradenHooton/mobistudy/internal/config"
	"github.com/BradenHooton/mobistudy/internal/database"
	"github.com/BradenHooton/mobistudy/internal/handlers"
	middlewareCustom "github.com/BradenHooton/mobistudy/internal/middleware"
	"github.com/BradenHooton/mobistudy/internal/models"
	"github.com/BradenHooton/mobistudy/internal/repositories"
	"github.com/BradenHooton/mobistudy/internal/routes"
	"github.com/BradenHooton/mobistudy/internal/services"
	pkgauth "github.com/BradenHooton/mobistudy/pkg/auth"
	pkglogger "github.com/BradenHooton/mobistudy/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	teamRepo := repositories.NewTeamRepository(db)
	studyRepo := repositories.NewStudyRepository(db)
	participantRepo := repositories.NewParticipantRepository(db)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	dataRepos := make([]services.DataRepository, 0, len(models.DataCategories))
	for _, category := range models.DataCategories {
		repo, err := repositories.NewDataRepository(db, category)
		if err != nil {
			logger.Error("failed to initialize data repository", slog.String("category", string(category)), slog.Any("error", err))
			os.Exit(1)
		}
		dataRepos = append(dataRepos, repo)
	}

	// Auth primitives
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.ResetTokenExpiry,
		cfg.Auth.InvitationExpiry,
	)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		MinDuration: cfg.Auth.MinResponseTime,
		Jitter:      cfg.Auth.ResponseTimeJitter,
	})
	policy := auth.NewPolicy(studyRepo, participantRepo, teamRepo)

	// Email sender: SES when a region is configured, log-only otherwise
	var mailer services.EmailSender
	if cfg.Email.AWSRegion != "" {
		sesCtx, sesCancel := context.WithTimeout(context.Background(), 10*time.Second)
		mailer, err = services.NewAWSSESEmailService(sesCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		sesCancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("AWS_REGION not set, emails will only be logged")
		mailer = services.NewLogEmailService(logger, cfg.Server.Env)
	}

	// Initialize services
	auditService := services.NewAuditService(auditLogRepo, logger)
	composer := services.NewEmailComposer(studyRepo)
	userService := services.NewUserService(userRepo, auditService, logger)
	authenticator := services.NewLocalAuthenticator(userRepo, timingDelay, logger)
	authService := services.NewAuthService(authenticator, userRepo, tokenManager, mailer, composer, auditService, timingDelay, logger)
	participantService := services.NewParticipantService(
		participantRepo,
		userRepo,
		dataRepos,
		auditLogRepo,
		db,
		mailer,
		composer,
		auditService,
		logger,
	)
	teamService := services.NewTeamService(teamRepo, tokenManager, db, auditService, logger)
	studyService := services.NewStudyService(studyRepo, teamRepo, auditService, logger)

	// Initialize handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService, cfg.Server.PublicURL),
		Users:        handlers.NewUserHandler(userService, policy),
		Participants: handlers.NewParticipantHandler(participantService, policy),
		Teams:        handlers.NewTeamHandler(teamService, policy),
		Studies:      handlers.NewStudyHandler(studyService, policy),
		Audit:        handlers.NewAuditHandler(auditService, policy),
		Tester:       handlers.NewTesterHandler(mailer, policy, logger),
	}

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.RequestSize(cfg.Server.BodyLimit))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(cfg.Server.AllowedOrigins))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middlewareCustom.Recoverer(logger))
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, tokenManager, userRepo, cfg.RateLimit.AuthRequestsPerMinute, logger)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Web client
	router.Handle("/*", http.FileServer(http.Dir(cfg.Server.StaticDir)))

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set.
// Admins cannot register through the API.
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:          adminEmail,
		HashedPassword: hashedPassword,
		Role:           models.RoleAdmin,
	}
	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("email", pkglogger.SanitizedEmail(adminEmail)))
	return nil
}
