package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	GitCommit     string                 `json:"git_commit"`
	Environment   string                 `json:"environment"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]CheckResult `json:"checks"`
	Timestamp     string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker runs the checks behind GET /health.
type HealthChecker struct {
	pool        *pgxpool.Pool
	riverClient *river.Client[pgx.Tx]
	version     string
	gitCommit   string
	env         string
	started     time.Time
}

func NewHealthChecker(pool *pgxpool.Pool, riverClient *river.Client[pgx.Tx], version, gitCommit, env string) *HealthChecker {
	return &HealthChecker{
		pool:        pool,
		riverClient: riverClient,
		version:     version,
		gitCommit:   gitCommit,
		env:         env,
		started:     time.Now(),
	}
}

// Health returns the health check handler. Any failing check answers 503.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "shutting_down"})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
			"job_queue":  h.checkJobQueue(ctx),
		}
		status, code := overallStatus(checks)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(HealthCheck{
			Status:        status,
			Version:       h.version,
			GitCommit:     h.gitCommit,
			Environment:   h.env,
			UptimeSeconds: int64(time.Since(h.started).Seconds()),
			Checks:        checks,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// overallStatus folds check results: any fail is unhealthy, any warn degraded.
func overallStatus(checks map[string]CheckResult) (string, int) {
	status := "healthy"
	for _, check := range checks {
		switch check.Status {
		case "fail":
			return "unhealthy", http.StatusServiceUnavailable
		case "warn":
			status = "degraded"
		}
	}
	return status, http.StatusOK
}

// failure builds a failed check. Raw driver errors are only exposed in
// development and test.
func (h *HealthChecker) failure(message string, latency int64, err error, remediation string) CheckResult {
	details := map[string]any{"remediation": remediation}
	if err != nil && showDetail(h.env) {
		details["error"] = err.Error()
	}
	return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: details}
}

// checkDatabase verifies PostgreSQL connection and query execution
func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()
	if h.pool == nil {
		return h.failure("Database pool not initialized", 0, nil, "Check that DATABASE_URL is set correctly and PostgreSQL is running")
	}

	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&result)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		switch {
		case dbCtx.Err() == context.DeadlineExceeded:
			return h.failure("Database query timed out after 2 seconds", latency, err, "Check PostgreSQL performance or network latency")
		case strings.Contains(err.Error(), "connection refused"):
			return h.failure("Database connection refused", latency, err, "Verify PostgreSQL is running and DATABASE_URL host/port are correct")
		case strings.Contains(err.Error(), "authentication failed"):
			return h.failure("Database authentication failed", latency, err, "Verify DATABASE_URL username and password are correct")
		default:
			return h.failure("Database query failed", latency, err, "Check DATABASE_URL and PostgreSQL service status")
		}
	}

	stats := h.pool.Stat()
	return CheckResult{
		Status:    "pass",
		Message:   "PostgreSQL connection successful",
		LatencyMs: latency,
		Details: map[string]any{
			"max_connections":      stats.MaxConns(),
			"total_connections":    stats.TotalConns(),
			"idle_connections":     stats.IdleConns(),
			"acquired_connections": stats.AcquiredConns(),
		},
	}
}

// checkMigrations reads the golang-migrate bookkeeping table.
func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	start := time.Now()
	if h.pool == nil {
		return h.failure("Database pool not initialized", 0, nil, "Check that DATABASE_URL is set correctly and PostgreSQL is running")
	}

	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var version int64
	var dirty bool
	err := h.pool.QueryRow(migCtx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return h.failure("Migrations table not found", latency, err, "Run database migrations first: eventplanner migrate up")
		}
		return h.failure("Failed to query migration version", latency, err, "Verify migrations have been applied")
	}
	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details: map[string]any{
				"version":     version,
				"dirty":       true,
				"remediation": "Fix the failed migration, then force the version with golang-migrate",
			},
		}
	}
	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version, "dirty": false},
	}
}

// checkJobQueue verifies the River tables are reachable. A server started
// without workers reports a warning rather than a failure.
func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	start := time.Now()
	if h.riverClient == nil || h.pool == nil {
		return CheckResult{Status: "warn", Message: "Job queue not initialized"}
	}

	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var activeJobs int64
	err := h.pool.QueryRow(jobCtx, `SELECT COUNT(*) FROM river_job WHERE state = ANY($1)`, []string{"available", "running"}).Scan(&activeJobs)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return CheckResult{
				Status:    "warn",
				Message:   "River job queue table not found",
				LatencyMs: latency,
				Details:   map[string]any{"remediation": "Run eventplanner migrate up to create the river tables"},
			}
		}
		return h.failure("Failed to query job queue", latency, err, "Check database connectivity and river_job table permissions")
	}
	return CheckResult{
		Status:    "pass",
		Message:   "River job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"active_jobs": activeJobs},
	}
}
