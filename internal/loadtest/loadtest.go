// Package loadtest generates API traffic against a running server: public
// reads plus sign-ups and event registrations that contend for capacity.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// LoadProfile names a predefined scenario.
type LoadProfile string

const (
	ProfileLight  LoadProfile = "light"  // 5 req/s, 1 minute
	ProfileMedium LoadProfile = "medium" // 20 req/s, 2 minutes
	ProfileHeavy  LoadProfile = "heavy"  // 50 req/s, 5 minutes
	ProfileRush   LoadProfile = "rush"   // registration rush: mostly writes, no ramp
)

// ProfileConfig defines the parameters for a load test.
type ProfileConfig struct {
	RequestsPerSecond int
	Duration          time.Duration
	RampUpTime        time.Duration
	RampDownTime      time.Duration
	ReadWriteRatio    float64 // 0.8 = 80% reads
}

var LoadProfiles = map[LoadProfile]ProfileConfig{
	ProfileLight: {
		RequestsPerSecond: 5,
		Duration:          1 * time.Minute,
		RampUpTime:        10 * time.Second,
		RampDownTime:      10 * time.Second,
		ReadWriteRatio:    0.8,
	},
	ProfileMedium: {
		RequestsPerSecond: 20,
		Duration:          2 * time.Minute,
		RampUpTime:        20 * time.Second,
		RampDownTime:      20 * time.Second,
		ReadWriteRatio:    0.8,
	},
	ProfileHeavy: {
		RequestsPerSecond: 50,
		Duration:          5 * time.Minute,
		RampUpTime:        30 * time.Second,
		RampDownTime:      30 * time.Second,
		ReadWriteRatio:    0.7,
	},
	ProfileRush: {
		RequestsPerSecond: 40,
		Duration:          1 * time.Minute,
		ReadWriteRatio:    0.3,
	},
}

// LoadTester drives traffic at one server.
type LoadTester struct {
	baseURL    string
	httpClient *http.Client
	rng        *rand.Rand
	rngMu      sync.Mutex
	stats      *Statistics

	eventsMu sync.RWMutex
	eventIDs []string

	seq atomic.Int64
	out io.Writer
}

func NewLoadTester(baseURL string, out io.Writer) *LoadTester {
	return &LoadTester{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		out:        out,
	}
}

// WithClient replaces the HTTP client.
func (lt *LoadTester) WithClient(c *http.Client) *LoadTester {
	lt.httpClient = c
	return lt
}

// Statistics tracks load test metrics.
type Statistics struct {
	mu sync.Mutex

	totalRequests   int64
	successRequests int64
	failedRequests  int64
	waitlisted      int64

	responseTimes []int64
	errors        map[int]int64 // status code -> count; 0 is transport failure
	endpointStats map[string]*EndpointStats

	startTime time.Time
	endTime   time.Time
}

type EndpointStats struct {
	count   int64
	total   int64
	times   []int64
	errors  int64
	minTime int64
	maxTime int64
}

// Totals returns the request counters.
func (s *Statistics) Totals() (total, success, failed, waitlisted int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRequests, s.successRequests, s.failedRequests, s.waitlisted
}

func (lt *LoadTester) Run(ctx context.Context, profile LoadProfile) (*Statistics, error) {
	config, exists := LoadProfiles[profile]
	if !exists {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}
	return lt.RunCustom(ctx, config)
}

// RunCustom executes a load test with a custom configuration. The event list
// is fetched once up front so writes have registration targets.
func (lt *LoadTester) RunCustom(ctx context.Context, config ProfileConfig) (*Statistics, error) {
	if config.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive")
	}
	lt.stats = &Statistics{
		errors:        make(map[int]int64),
		endpointStats: make(map[string]*EndpointStats),
		startTime:     time.Now(),
	}
	if err := lt.refreshEvents(ctx); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	fmt.Fprintf(lt.out, "Starting load test...\n")
	fmt.Fprintf(lt.out, "  Target: %s\n", lt.baseURL)
	fmt.Fprintf(lt.out, "  RPS: %d\n", config.RequestsPerSecond)
	fmt.Fprintf(lt.out, "  Duration: %s\n", config.Duration)
	fmt.Fprintf(lt.out, "  Ramp-up: %s, Ramp-down: %s\n", config.RampUpTime, config.RampDownTime)
	fmt.Fprintf(lt.out, "  Read/Write ratio: %.0f%%/%.0f%%\n", config.ReadWriteRatio*100, (1-config.ReadWriteRatio)*100)
	fmt.Fprintf(lt.out, "  Events available for registration: %d\n\n", len(lt.eventIDs))

	workers := max(config.RequestsPerSecond*2, 10)
	work := make(chan workItem, workers*2)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			lt.worker(gctx, work)
			return nil
		})
	}
	g.Go(func() error {
		defer close(work)
		lt.generateWork(gctx, config, work)
		return nil
	})
	_ = g.Wait()

	lt.stats.endTime = time.Now()
	return lt.stats, nil
}

// workItem is one scripted interaction. Writes are multi-step: sign up, then
// register for an event with the new account's token.
type workItem struct {
	endpoint string
	run      func(ctx context.Context) (status int, err error)
}

func (lt *LoadTester) generateWork(ctx context.Context, config ProfileConfig, work chan<- workItem) {
	start := time.Now()
	total := config.RampUpTime + config.Duration + config.RampDownTime
	limiter := rate.NewLimiter(rate.Limit(lt.calculateCurrentRPS(0, config)), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed > total {
			return
		}
		limiter.SetLimit(rate.Limit(lt.calculateCurrentRPS(elapsed, config)))

		var item workItem
		if lt.float() < config.ReadWriteRatio {
			item = lt.generateReadRequest()
		} else {
			item = lt.generateWriteRequest()
		}
		select {
		case work <- item:
		case <-ctx.Done():
			return
		}
	}
}

// calculateCurrentRPS determines the current RPS based on ramp-up/down timing.
func (lt *LoadTester) calculateCurrentRPS(elapsed time.Duration, config ProfileConfig) int {
	target := config.RequestsPerSecond

	if elapsed < config.RampUpTime {
		progress := float64(elapsed) / float64(config.RampUpTime)
		return max(int(float64(target)*progress), 1)
	}

	steadyEnd := config.RampUpTime + config.Duration
	if elapsed < steadyEnd {
		return target
	}

	down := elapsed - steadyEnd
	if down < config.RampDownTime {
		progress := float64(down) / float64(config.RampDownTime)
		return max(int(float64(target)*(1.0-progress)), 1)
	}
	return 1
}

func (lt *LoadTester) generateReadRequest() workItem {
	get := func(endpoint, path string) workItem {
		return workItem{endpoint: endpoint, run: func(ctx context.Context) (int, error) {
			return lt.do(ctx, http.MethodGet, path, nil, "", nil)
		}}
	}
	options := []workItem{
		get("health", "/health"),
		get("list_events", "/api/events?page=1&limit=10"),
		get("search_events", "/api/events/search?q=meetup"),
		get("events_by_category", "/api/events/category/networking"),
	}
	if id := lt.randomEvent(); id != "" {
		options = append(options, get("event_detail", "/api/events/"+id))
	}
	return options[lt.intn(len(options))]
}

func (lt *LoadTester) generateWriteRequest() workItem {
	eventID := lt.randomEvent()
	if eventID == "" {
		return workItem{endpoint: "sign_up", run: func(ctx context.Context) (int, error) {
			status, _, err := lt.signUp(ctx)
			return status, err
		}}
	}
	return workItem{endpoint: "register_event", run: func(ctx context.Context) (int, error) {
		status, token, err := lt.signUp(ctx)
		if err != nil || token == "" {
			return status, err
		}
		var reply struct {
			Message string `json:"message"`
		}
		status, err = lt.do(ctx, http.MethodPost, "/api/events/"+eventID+"/register", nil, token, &reply)
		if err == nil && status == http.StatusOK && strings.Contains(reply.Message, "waitlist") {
			lt.stats.mu.Lock()
			lt.stats.waitlisted++
			lt.stats.mu.Unlock()
		}
		return status, err
	}}
}

// signUp creates a throwaway account and returns its token.
func (lt *LoadTester) signUp(ctx context.Context) (int, string, error) {
	n := lt.seq.Add(1)
	body := map[string]string{
		"email":    fmt.Sprintf("load-%d-%d@loadtest.invalid", time.Now().UnixNano(), n),
		"password": "loadtest-password",
		"name":     fmt.Sprintf("Load User %d", n),
	}
	var reply struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	status, err := lt.do(ctx, http.MethodPost, "/api/auth/register", body, "", &reply)
	if status != http.StatusCreated {
		return status, "", err
	}
	return status, reply.Data.Token, err
}

func (lt *LoadTester) refreshEvents(ctx context.Context) error {
	var reply struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	status, err := lt.do(ctx, http.MethodGet, "/api/events?page=1&limit=100", nil, "", &reply)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("list events returned %d", status)
	}
	ids := make([]string, 0, len(reply.Data))
	for _, e := range reply.Data {
		ids = append(ids, e.ID)
	}
	lt.eventsMu.Lock()
	lt.eventIDs = ids
	lt.eventsMu.Unlock()
	return nil
}

func (lt *LoadTester) randomEvent() string {
	lt.eventsMu.RLock()
	defer lt.eventsMu.RUnlock()
	if len(lt.eventIDs) == 0 {
		return ""
	}
	return lt.eventIDs[lt.intn(len(lt.eventIDs))]
}

func (lt *LoadTester) intn(n int) int {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Intn(n)
}

func (lt *LoadTester) float() float64 {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()
	return lt.rng.Float64()
}

func (lt *LoadTester) worker(ctx context.Context, work <-chan workItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-work:
			if !ok {
				return
			}
			start := time.Now()
			status, err := item.run(ctx)
			if err != nil {
				lt.recordError(status, item.endpoint)
				continue
			}
			lt.recordResponse(status, time.Since(start).Milliseconds(), item.endpoint)
		}
	}
}

// do sends one request and decodes the reply into out when out is non-nil.
func (lt *LoadTester) do(ctx context.Context, method, path string, body any, token string, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, lt.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := lt.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

func (lt *LoadTester) recordResponse(statusCode int, durationMs int64, endpoint string) {
	s := lt.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.responseTimes = append(s.responseTimes, durationMs)
	ok := statusCode >= 200 && statusCode < 300
	if ok {
		s.successRequests++
	} else {
		s.failedRequests++
		s.errors[statusCode]++
	}

	ep := s.endpointStats[endpoint]
	if ep == nil {
		ep = &EndpointStats{minTime: durationMs, maxTime: durationMs}
		s.endpointStats[endpoint] = ep
	}
	ep.count++
	ep.total += durationMs
	ep.times = append(ep.times, durationMs)
	ep.minTime = min(ep.minTime, durationMs)
	ep.maxTime = max(ep.maxTime, durationMs)
	if !ok {
		ep.errors++
	}
}

func (lt *LoadTester) recordError(statusCode int, endpoint string) {
	s := lt.stats
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.failedRequests++
	s.errors[statusCode]++
	if s.endpointStats[endpoint] == nil {
		s.endpointStats[endpoint] = &EndpointStats{}
	}
	s.endpointStats[endpoint].errors++
}

// Report renders a summary of the run.
func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := s.endTime.Sub(s.startTime)
	total := max(s.totalRequests, 1)

	var b strings.Builder
	b.WriteString("\nLOAD TEST RESULTS\n=================\n\n")
	fmt.Fprintf(&b, "Duration:        %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "Total Requests:  %d\n", s.totalRequests)
	fmt.Fprintf(&b, "Successful:      %d (%.1f%%)\n", s.successRequests, float64(s.successRequests)/float64(total)*100)
	fmt.Fprintf(&b, "Failed:          %d (%.1f%%)\n", s.failedRequests, float64(s.failedRequests)/float64(total)*100)
	fmt.Fprintf(&b, "Waitlisted:      %d\n", s.waitlisted)
	if secs := duration.Seconds(); secs > 0 {
		fmt.Fprintf(&b, "Requests/sec:    %.2f\n", float64(s.totalRequests)/secs)
	}
	b.WriteString("\n")

	if len(s.responseTimes) > 0 {
		fmt.Fprintf(&b, "Response Times (ms):\n")
		fmt.Fprintf(&b, "  Average:  %d\n", average(s.responseTimes))
		fmt.Fprintf(&b, "  p50:      %d\n", calculatePercentile(s.responseTimes, 0.50))
		fmt.Fprintf(&b, "  p95:      %d\n", calculatePercentile(s.responseTimes, 0.95))
		fmt.Fprintf(&b, "  p99:      %d\n\n", calculatePercentile(s.responseTimes, 0.99))
	}

	if len(s.errors) > 0 {
		codes := make([]int, 0, len(s.errors))
		for code := range s.errors {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		b.WriteString("Errors by Status Code:\n")
		for _, code := range codes {
			label := fmt.Sprint(code)
			if code == 0 {
				label = "network"
			}
			fmt.Fprintf(&b, "  %s: %d\n", label, s.errors[code])
		}
		b.WriteString("\n")
	}

	if len(s.endpointStats) > 0 {
		names := make([]string, 0, len(s.endpointStats))
		for name := range s.endpointStats {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "%-20s %8s %8s %8s %8s %8s %8s\n", "Endpoint", "Count", "Errors", "Avg(ms)", "p95(ms)", "Min", "Max")
		for _, name := range names {
			ep := s.endpointStats[name]
			var avg int64
			if ep.count > 0 {
				avg = ep.total / ep.count
			}
			fmt.Fprintf(&b, "%-20s %8d %8d %8d %8d %8d %8d\n",
				name, ep.count, ep.errors, avg, calculatePercentile(ep.times, 0.95), ep.minTime, ep.maxTime)
		}
	}
	return b.String()
}

func average(times []int64) int64 {
	if len(times) == 0 {
		return 0
	}
	var sum int64
	for _, t := range times {
		sum += t
	}
	return sum / int64(len(times))
}

func calculatePercentile(times []int64, percentile float64) int64 {
	if len(times) == 0 {
		return 0
	}
	sorted := append([]int64(nil), times...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	index := int(float64(len(sorted)) * percentile)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
