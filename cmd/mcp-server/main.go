// Command mcp-server serves read-only event tools to AI agents over stdio or
// streamable HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/mcp"
	"github.com/Togather-Foundation/eventplanner/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// stdout carries the protocol on stdio, so logs always go to stderr.
	logger := config.NewLoggerTo(cfg.Base.Logging, os.Stderr).With().Str("component", "mcp").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Base.Database.URL, postgres.PoolConfig{
		MaxConns:        int32(cfg.Base.Database.MaxConnections),
		MinConns:        int32(cfg.Base.Database.MinConnections),
		MaxConnLifetime: cfg.Base.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	srv := mcp.NewServer(mcp.Config{
		Name:    cfg.Name,
		Version: cfg.Version,
		BaseURL: cfg.Base.Server.BaseURL,
	}, events.NewService(repo.Events(), logger), logger)

	logger.Info().
		Str("transport", string(cfg.Transport.Type)).
		Str("environment", cfg.Base.Environment).
		Msg("starting MCP server")

	tokens := auth.NewJWTManager(cfg.Base.Auth.JWTSecret, cfg.Base.Auth.JWTExpiry, "eventplanner")
	if err := mcp.Serve(ctx, srv, cfg.Transport, tokens, logger); err != nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
