package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/api/handlers"
	"github.com/Togather-Foundation/eventplanner/internal/api/middleware"
	"github.com/Togather-Foundation/eventplanner/internal/audit"
	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
	"github.com/Togather-Foundation/eventplanner/internal/domain/analytics"
	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/notifications"
	"github.com/Togather-Foundation/eventplanner/internal/domain/settings"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
	"github.com/Togather-Foundation/eventplanner/internal/email"
	"github.com/Togather-Foundation/eventplanner/internal/jobs"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
	"github.com/Togather-Foundation/eventplanner/internal/storage/postgres"
)

const (
	siteName  = "Event Planning App"
	jwtIssuer = "eventplanner"
)

// Server is the assembled application: the HTTP handler plus the River
// client that serve starts and stops around it.
type Server struct {
	Handler     http.Handler
	RiverClient *river.Client[pgx.Tx]
	Admins      *admins.Service

	closers []io.Closer
}

// Close releases the rate-limit store.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewServer wires repositories, services, workers and handlers on pool.
func NewServer(ctx context.Context, cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool, build BuildInfo) (*Server, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, err
	}

	settingsService := settings.NewService(repo.Settings(), logger)
	eventService := events.NewService(repo.Events(), logger).WithCapacityLimit(settingsService.CapacityLimit)
	userService := users.NewService(repo.Users(), repo.Events(), logger).WithSignupGate(settingsService.SignupsOpen)
	adminService := admins.NewService(repo.Admins(), logger)
	reports := analytics.NewService(repo.Events(), repo.Users())
	auditLogger := audit.NewLogger(logger, repo.Audit())

	enqueuer := &jobs.Enqueuer{}
	backupService := backups.NewService(repo.Backups(), enqueuer, repo, cfg.Backup.Dir, logger)

	mailer, err := email.NewService(cfg.Email, siteName, logger)
	if err != nil {
		return nil, fmt.Errorf("email service: %w", err)
	}
	dispatcher := notifications.NewDispatcher(repo.Outbox(), mailer, settingsService.EmailEnabled, logger)

	workers := jobs.NewWorkers(jobs.Deps{
		Dispatcher:      dispatcher,
		Events:          eventService,
		Backups:         backupService,
		OutboxRetention: cfg.Jobs.OutboxRetention,
		Logger:          logger,
	})
	riverConfig := jobs.NewClientConfig(
		workers,
		config.SlogLogger(logger.With().Str("component", "river").Logger()),
		[]rivertype.Hook{metrics.NewJobHook()},
		jobs.NewPeriodicJobs(cfg.Jobs),
		cfg.Jobs.MaxWorkers,
	)
	riverClient, err := jobs.NewClient(pool, riverConfig)
	if err != nil {
		return nil, fmt.Errorf("river client: %w", err)
	}
	enqueuer.Bind(riverClient)

	srv := &Server{RiverClient: riverClient, Admins: adminService}

	var store middleware.LimitStore
	if cfg.RateLimit.RedisURL != "" {
		redisStore, err := middleware.NewRedisStore(ctx, cfg.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		store = redisStore
		srv.closers = append(srv.closers, redisStore)
		logger.Info().Msg("rate limiting through redis")
	} else {
		memoryStore := middleware.NewMemoryStore(cfg.RateLimit)
		store = memoryStore
		srv.closers = append(srv.closers, memoryStore)
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, jwtIssuer)
	env := cfg.Environment
	cookie := handlers.CookieConfig{Secure: cfg.Auth.CookieSecure, MaxAge: cfg.Auth.JWTExpiry}

	srv.Handler = NewRouter(Deps{
		Config:      cfg,
		Logger:      logger,
		Build:       build,
		Auth:        middleware.NewAuthenticator(tokens, AccountResolver(userService, adminService), cfg.IsDevelopment()),
		RateLimiter: middleware.NewRateLimiter(store, cfg.RateLimit.TrustedProxyCIDRs),
		Maintenance: settingsService.MaintenanceMode,
		Health:      handlers.NewHealthChecker(pool, riverClient, build.Version, build.GitCommit, env),

		Accounts:      handlers.NewAuthHandler(userService, adminService, tokens, cookie, auditLogger, env),
		Users:         handlers.NewUsersHandler(userService, env),
		Events:        handlers.NewEventsHandler(eventService, env),
		Analytics:     handlers.NewAnalyticsHandler(reports, env),
		AdminAccounts: handlers.NewAdminAccountsHandler(adminService, auditLogger, env),
		AdminUsers:    handlers.NewAdminUsersHandler(userService, auditLogger, env),
		AdminEvents:   handlers.NewAdminEventsHandler(eventService, auditLogger, env),
		AdminSystem:   handlers.NewAdminSystemHandler(settingsService, backupService, pool, auditLogger, env),
	})
	return srv, nil
}

// UserLookup and AdminLookup are the account reads behind AccountResolver.
type UserLookup interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

type AdminLookup interface {
	Get(ctx context.Context, id string) (*admins.AdminUser, error)
}

// AccountResolver loads the account named by a token's subject. Missing or
// deactivated accounts resolve to middleware.ErrAccountUnavailable; role and
// permissions come from storage, not from the token.
func AccountResolver(userAccounts UserLookup, adminAccounts AdminLookup) middleware.AccountsFunc {
	return func(ctx context.Context, claims *auth.Claims) (*middleware.Principal, error) {
		if claims.IsAdmin() {
			a, err := adminAccounts.Get(ctx, claims.Subject)
			if errors.Is(err, admins.ErrAdminNotFound) {
				return nil, middleware.ErrAccountUnavailable
			}
			if err != nil {
				return nil, err
			}
			if !a.IsActive {
				return nil, middleware.ErrAccountUnavailable
			}
			return &middleware.Principal{
				ID:          a.ID,
				Type:        auth.TypeAdmin,
				Email:       a.Email,
				Name:        a.Name,
				Role:        a.Role,
				Permissions: a.Permissions,
			}, nil
		}

		u, err := userAccounts.Get(ctx, claims.Subject)
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, middleware.ErrAccountUnavailable
		}
		if err != nil {
			return nil, err
		}
		if !u.IsActive {
			return nil, middleware.ErrAccountUnavailable
		}
		return &middleware.Principal{ID: u.ID, Type: auth.TypeUser, Email: u.Email, Name: u.Name}, nil
	}
}
