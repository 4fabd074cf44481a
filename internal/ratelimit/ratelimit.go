// File: internal/ratelimit/ratelimit.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	RPS           float64       // Sustained requests per second per key
	Burst         int           // Bucket size
	TTL           time.Duration // Idle time after which a key is forgotten
	CleanupPeriod time.Duration // How often to sweep idle keys
}

// DefaultAPIConfig returns the limits used for the REST boundary
func DefaultAPIConfig() Config {
	return Config{
		RPS:           20,
		Burst:         40,
		TTL:           10 * time.Minute,
		CleanupPeriod: time.Minute,
	}
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// Pool keeps one token bucket per key (user id or client IP).
type Pool struct {
	cfg     Config
	mu      sync.Mutex
	m       map[string]*limiterEntry
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

// NewPool creates a limiter pool and starts its cleanup goroutine
func NewPool(cfg Config) *Pool {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.CleanupPeriod <= 0 {
		cfg.CleanupPeriod = time.Minute
	}
	p := &Pool{
		cfg:    cfg,
		m:      make(map[string]*limiterEntry),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go p.cleanupLoop()
	return p
}

// RateLimitInfo contains information about rate limit status
type RateLimitInfo struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Allow consumes one token for key.
func (p *Pool) Allow(key string) (bool, RateLimitInfo) {
	now := p.now()
	l := p.get(key, now)

	info := RateLimitInfo{Limit: p.cfg.Burst}
	r := l.ReserveN(now, 1)
	if !r.OK() {
		return false, info
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		info.RetryAfter = delay
		return false, info
	}
	info.Allowed = true
	if remaining := int(l.TokensAt(now)); remaining > 0 {
		info.Remaining = remaining
	}
	return true, info
}

func (p *Pool) get(key string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = now
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: now}
	return l
}

// Len reports how many keys are tracked.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(p.cfg.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanup()
		case <-p.stopCh:
			return
		}
	}
}

// cleanup removes limiters idle longer than the TTL
func (p *Pool) cleanup() {
	cutoff := p.now().Add(-p.cfg.TTL)
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

// Close stops the cleanup goroutine
func (p *Pool) Close() {
	p.stopped.Do(func() { close(p.stopCh) })
}

// GetClientIP extracts the real client IP from request
func GetClientIP(r *http.Request) string {
	// Check for forwarded IP (behind proxy/load balancer)
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if ip := parseFirstIP(forwarded); ip != "" {
			return ip
		}
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// parseFirstIP extracts the first valid IP from a comma-separated list
func parseFirstIP(forwarded string) string {
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}
