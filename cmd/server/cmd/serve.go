package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/eventplanner/internal/api"
	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
	"github.com/Togather-Foundation/eventplanner/internal/jobs"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
	"github.com/Togather-Foundation/eventplanner/internal/storage/postgres"
	"github.com/Togather-Foundation/eventplanner/internal/telemetry"
)

var (
	// Server flags (override config/env)
	serverHost    string
	serverPort    int
	serverMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event planning HTTP server",
	Long: `Start the HTTP server and the background job workers.

The server will:
- Load configuration from environment variables (and --config if provided)
- Apply pending database and job queue migrations (disable with --migrate=false)
- Create the owner admin account if ADMIN_* env vars are set and no admin exists
- Serve the JSON API and run outbox delivery, event completion and backups
- Shut down gracefully on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging and a config file
  server serve --log-level debug --config ./config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 5000)")
	serveCmd.Flags().BoolVar(&serverMigrate, "migrate", true, "apply pending migrations before serving")
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting event planning server")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	metrics.Init(Version, GitCommit, BuildDate)

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if serverMigrate {
		if err := migrateAll(ctx, cfg, pool, logger); err != nil {
			return err
		}
	}

	unregisterPool, err := metrics.RegisterPool(pool)
	if err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	defer unregisterPool()

	srv, err := api.NewServer(ctx, cfg, logger, pool, api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate})
	if err != nil {
		return fmt.Errorf("assemble server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("close server resources")
		}
	}()

	bootCtx, bootCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := bootstrapOwner(bootCtx, cfg, srv.Admins, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	bootCancel()

	// River gets its own context so that workers keep running until the
	// HTTP server has drained.
	riverCtx, riverCancel := context.WithCancel(context.Background())
	defer riverCancel()
	if err := srv.RiverClient.Start(riverCtx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Msg("background job workers started")

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	gracefulShutdown(server, srv, cfg.Server.ShutdownTimeout, logger)
	return runErr
}

// gracefulShutdown drains HTTP first and then stops the job workers, so
// jobs enqueued by in-flight requests are not orphaned mid-shutdown.
func gracefulShutdown(server *http.Server, srv *api.Server, timeout time.Duration, logger zerolog.Logger) {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := srv.RiverClient.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("river workers shutdown error")
	} else {
		logger.Info().Msg("river workers stopped")
	}
	logger.Info().Msg("server stopped")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL, postgres.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConnections),
		MinConns:        int32(cfg.Database.MinConnections),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return pool, nil
}

// migrateAll applies the application schema and River's tables.
func migrateAll(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, logger zerolog.Logger) error {
	if err := postgres.MigrateUp(cfg.Database.URL, migrationsDir); err != nil {
		return err
	}
	if err := jobs.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info().Msg("migrations applied")
	return nil
}

// OwnerCreator is the admin bootstrap dependency.
type OwnerCreator interface {
	CreateOwner(ctx context.Context, in admins.OwnerInput) (*admins.AdminUser, error)
}

// bootstrapOwner creates the owner account from ADMIN_* settings. It is a
// no-op once any admin exists.
func bootstrapOwner(ctx context.Context, cfg config.Config, creator OwnerCreator, logger zerolog.Logger) error {
	b := cfg.AdminBootstrap
	if b.Username == "" || b.Password == "" || b.Email == "" {
		logger.Debug().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}
	a, err := creator.CreateOwner(ctx, admins.OwnerInput{
		Username: b.Username,
		Email:    b.Email,
		Password: b.Password,
		Name:     b.Name,
	})
	if errors.Is(err, admins.ErrAlreadyInitialized) {
		logger.Debug().Msg("admin accounts already exist; skipping bootstrap")
		return nil
	}
	if err != nil {
		return fmt.Errorf("create owner: %w", err)
	}

	// Redact email in production to avoid PII in logs
	event := logger.Info().Str("username", a.Username)
	if cfg.Environment != "production" {
		event = event.Str("email", a.Email)
	}
	event.Msg("bootstrapped owner admin")
	return nil
}
