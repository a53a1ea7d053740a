package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration // how often idle clients are forgotten
	TTL               time.Duration // idle time before a client is forgotten
}

// GeneralRateLimiterConfig builds the limiter config for the page and API.
func GeneralRateLimiterConfig(rps float64, burst int) RateLimiterConfig {
	return RateLimiterConfig{RequestsPerSecond: rps, BurstSize: burst, CleanupInterval: time.Minute, TTL: 3 * time.Minute}
}

// AuthRateLimiterConfig builds the stricter config for password checks. Idle
// clients are remembered longer so a slow guesser keeps an empty bucket.
func AuthRateLimiterConfig(rps float64, burst int) RateLimiterConfig {
	return RateLimiterConfig{RequestsPerSecond: rps, BurstSize: burst, CleanupInterval: time.Minute, TTL: 10 * time.Minute}
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	cfg     RateLimiterConfig
	mu      sync.Mutex
	clients map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

// NewRateLimiter starts a limiter and its cleanup loop. Call Stop when done.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go rl.forgetIdle()
	return rl
}

// Allow spends one token from ip's bucket.
func (rl *RateLimiter) Allow(ip string) bool {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.clients[ip]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)}
		rl.clients[ip] = b
	}
	b.seen = now
	rl.mu.Unlock()

	return b.AllowN(now, 1)
}

// Middleware answers 429 once a client's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) forgetIdle() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.clients {
				if now.Sub(b.seen) > rl.cfg.TTL {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// clientIP is the peer address without its port. Forwarding headers are
// ignored here; behind a trusted proxy the router mounts chi's RealIP first,
// which rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// writeError writes the same JSON error shape the handlers use.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
