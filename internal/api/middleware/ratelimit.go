package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/config"
	"github.com/Togather-Foundation/eventplanner/internal/metrics"
)

type RateLimitTier string

const (
	TierPublic RateLimitTier = "public"
	TierAuth   RateLimitTier = "auth" // login and registration
	TierAdmin  RateLimitTier = "admin"
)

// LimitStore decides whether one more request fits in the client's budget
// for a tier. retryAfter is meaningful only when allowed is false.
type LimitStore interface {
	Allow(ctx context.Context, tier RateLimitTier, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimiter enforces per-client budgets per tier.
type RateLimiter struct {
	store          LimitStore
	trustedProxies []*net.IPNet
}

func NewRateLimiter(store LimitStore, trustedProxyCIDRs []string) *RateLimiter {
	return &RateLimiter{store: store, trustedProxies: parseCIDRs(trustedProxyCIDRs)}
}

// Limit applies the tier's budget to next. A store failure lets the request
// through rather than turning an outage of the limiter into an outage of the API.
func (l *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := l.store.Allow(r.Context(), tier, l.clientKey(r))
			if err != nil {
				LoggerFromContext(r.Context()).Warn().Err(err).Str("tier", string(tier)).Msg("rate limit store unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimited.WithLabelValues(string(tier)).Inc()
				seconds := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
				response.Write(w, http.StatusTooManyRequests, response.Envelope{
					Success: false,
					Message: "Too many requests from this IP, please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// budgets maps the configuration onto tiers.
func budgets(cfg config.RateLimitConfig) map[RateLimitTier]int {
	return map[RateLimitTier]int{
		TierPublic: cfg.PublicPerWindow,
		TierAuth:   cfg.AuthPerWindow,
		TierAdmin:  cfg.AdminPerWindow,
	}
}

// MemoryStore keeps a token bucket per client and tier. Each bucket holds the
// whole window's budget and refills evenly across the window.
type MemoryStore struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	budgets  map[RateLimitTier]int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryStore(cfg config.RateLimitConfig) *MemoryStore {
	window := cfg.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	s := &MemoryStore{
		limiters: make(map[string]*limiterEntry),
		budgets:  budgets(cfg),
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) Allow(_ context.Context, tier RateLimitTier, key string) (bool, time.Duration, error) {
	limit := s.budgets[tier]
	if limit <= 0 {
		return true, 0, nil
	}
	now := s.now()
	lim := s.limiter(tier, key, limit, now)

	reservation := lim.ReserveN(now, 1)
	if !reservation.OK() {
		return false, s.window, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay, nil
	}
	return true, 0, nil
}

func (s *MemoryStore) limiter(tier RateLimitTier, key string, limit int, now time.Time) *rate.Limiter {
	lookup := string(tier) + ":" + key

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	lim := rate.NewLimiter(rate.Every(s.window/time.Duration(limit)), limit)
	s.limiters[lookup] = &limiterEntry{limiter: lim, lastSeen: now}
	return lim
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup drops buckets idle for a full window; they would be full again anyway.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > s.window {
			delete(s.limiters, key)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// clientKey identifies the client. Forwarding headers are honoured only when
// the connection comes from a trusted proxy.
func (l *RateLimiter) clientKey(r *http.Request) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if l.isTrustedProxy(remoteIP) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return strings.TrimSpace(realIP)
		}
	}
	return remoteIP
}

func (l *RateLimiter) isTrustedProxy(ip string) bool {
	if len(l.trustedProxies) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range l.trustedProxies {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, v := range values {
		if _, cidr, err := net.ParseCIDR(strings.TrimSpace(v)); err == nil {
			out = append(out, cidr)
		}
	}
	return out
}
