package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

Used by container health checks. A degraded server (for example with the job
queue still starting) counts as healthy.

Exit codes:
  0 - Server is healthy or degraded
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		Args: cobra.NoArgs,
		RunE: runHealthcheck,
	}

	healthcheckTimeout    int
	healthcheckURL        string
	healthcheckRetries    int
	healthcheckRetryDelay time.Duration
	healthcheckFormat     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout per attempt in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{PORT}/health)")
	healthcheckCmd.Flags().IntVar(&healthcheckRetries, "retries", 0, "extra attempts before giving up")
	healthcheckCmd.Flags().DurationVar(&healthcheckRetryDelay, "retry-delay", 2*time.Second, "delay between attempts")
	healthcheckCmd.Flags().StringVar(&healthcheckFormat, "format", "simple", "output format (simple, table, json)")
}

// CheckResult mirrors one entry of the server's checks map.
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthResponse is the subset of the /health body the command reads.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version,omitempty"`
	Checks  map[string]CheckResult `json:"checks,omitempty"`
}

type HealthCheckResult struct {
	URL        string                 `json:"url"`
	Status     string                 `json:"status"`
	StatusCode int                    `json:"status_code,omitempty"`
	IsHealthy  bool                   `json:"healthy"`
	LatencyMs  int64                  `json:"latency_ms"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	Error      string                 `json:"error,omitempty"`
	RetryCount int                    `json:"retry_count"`

	invalid bool
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	switch healthcheckFormat {
	case "simple", "table", "json":
	default:
		return fmt.Errorf("unknown format %q (want simple, table or json)", healthcheckFormat)
	}

	url := healthcheckURL
	if url == "" {
		url = defaultHealthURL()
	}
	result := performHealthCheckWithRetries(commandContext(cmd), url, healthcheckRetries, healthcheckRetryDelay)
	if err := outputResults(cmd.OutOrStdout(), result, healthcheckFormat); err != nil {
		return err
	}

	switch {
	case result.IsHealthy:
		return nil
	case result.invalid:
		return &exitError{code: 2, err: errors.New(result.Error)}
	default:
		return &exitError{code: 1, err: fmt.Errorf("server %s", result.Status)}
	}
}

func defaultHealthURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = os.Getenv("SERVER_PORT")
	}
	if port == "" {
		port = "5000"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheck(ctx context.Context, url string) HealthCheckResult {
	result := HealthCheckResult{URL: url, Status: "unreachable"}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Status = "invalid"
		result.Error = fmt.Sprintf("invalid health response: %v", err)
		result.invalid = true
		return result
	}

	result.Status = body.Status
	result.Checks = body.Checks
	result.IsHealthy = resp.StatusCode == http.StatusOK && (body.Status == "healthy" || body.Status == "degraded")
	return result
}

// performHealthCheckWithRetries stops at the first healthy answer or when
// ctx is done.
func performHealthCheckWithRetries(ctx context.Context, url string, retries int, delay time.Duration) HealthCheckResult {
	result := performHealthCheck(ctx, url)
	for attempt := 1; attempt <= retries && !result.IsHealthy; attempt++ {
		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
		result = performHealthCheck(ctx, url)
		result.RetryCount = attempt
	}
	return result
}

func outputResults(w io.Writer, r HealthCheckResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "URL\t%s\n", r.URL)
		fmt.Fprintf(tw, "STATUS\t%s (%dms)\n", r.Status, r.LatencyMs)
		if r.Error != "" {
			fmt.Fprintf(tw, "ERROR\t%s\n", r.Error)
		}
		names := make([]string, 0, len(r.Checks))
		for name := range r.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := r.Checks[name]
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", name, strings.ToUpper(c.Status), c.Message)
		}
		return tw.Flush()
	default:
		line := fmt.Sprintf("%s: %s", r.URL, r.Status)
		if r.Error != "" {
			line += " (" + r.Error + ")"
		}
		_, err := fmt.Fprintln(w, line)
		return err
	}
}
