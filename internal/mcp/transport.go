package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/auth"
)

type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
)

const (
	DefaultPort             = 5100
	GracefulShutdownTimeout = 30 * time.Second
)

type TransportConfig struct {
	Type TransportType
	Host string
	Port int
}

// LoadTransportConfig reads MCP_TRANSPORT, MCP_HOST and MCP_PORT.
func LoadTransportConfig() (TransportConfig, error) {
	cfg := TransportConfig{Type: TransportStdio, Host: "0.0.0.0", Port: DefaultPort}

	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		switch t := TransportType(v); t {
		case TransportStdio, TransportHTTP:
			cfg.Type = t
		default:
			return cfg, fmt.Errorf("invalid MCP_TRANSPORT value: %s (must be stdio or http)", v)
		}
	}
	if v := os.Getenv("MCP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return cfg, fmt.Errorf("invalid MCP_PORT value: %s", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Host = v
	}
	return cfg, nil
}

// TokenValidator checks a bearer token.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequireAdminToken only lets requests with a valid admin bearer token through.
func RequireAdminToken(tokens TokenValidator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := tokens.Validate(raw)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if !claims.IsAdmin() {
			http.Error(w, "admin token required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve runs the configured transport until ctx is done. Over stdio, logs
// must go to stderr: stdout carries the protocol.
func Serve(ctx context.Context, srv *Server, cfg TransportConfig, tokens TokenValidator, logger zerolog.Logger) error {
	switch cfg.Type {
	case TransportStdio:
		return serveStdio(ctx, srv.MCPServer(), logger)
	case TransportHTTP:
		return serveHTTP(ctx, srv.MCPServer(), cfg, tokens, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s", cfg.Type)
	}
}

func serveStdio(ctx context.Context, s *mcpserver.MCPServer, logger zerolog.Logger) error {
	logger.Info().Msg("starting MCP server on stdio")

	errCh := make(chan error, 1)
	go func() {
		if err := mcpserver.ServeStdio(s); err != nil {
			errCh <- fmt.Errorf("stdio server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func serveHTTP(ctx context.Context, s *mcpserver.MCPServer, cfg TransportConfig, tokens TokenValidator, logger zerolog.Logger) error {
	if tokens == nil {
		return errors.New("http transport requires a token validator")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           RequireAdminToken(tokens, mcpserver.NewStreamableHTTPServer(s)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("MCP HTTP server error: %w", err)
		}
		close(errCh)
	}()
	logger.Info().Str("addr", addr).Msg("MCP streamable HTTP server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("MCP HTTP server shutdown: %w", err)
		}
		logger.Info().Msg("MCP HTTP server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
