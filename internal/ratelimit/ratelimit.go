package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
)

// bucket is one client's token bucket
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// warned is set on the first denial and cleared when the bucket is evicted
	warned bool
}

// IPLimiter keeps one token bucket per client address
type IPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	perSecond   rate.Limit
	burst       int
	ttl         time.Duration
	maxVisitors int

	// skip reports requests that are never limited, health endpoints by default
	skip func(*http.Request) bool

	onFirstDenied func(ip string)
	onDenied      func(ip string)
	onCapacity    func()
}

type Option func(*IPLimiter)

// WithRate sets the refill rate and bucket size. WithRate(20, 60) allows 60
// lookups at once, then 20 per second.
func WithRate(perSecond float64, burst int) Option {
	return func(l *IPLimiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL sets how long an idle client's bucket is kept
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) { l.ttl = d }
}

// WithMaxVisitors caps the number of tracked clients. New clients are
// rejected while the cap is reached; known clients keep their buckets.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) { l.maxVisitors = n }
}

// WithSkip replaces the default health endpoint filter
func WithSkip(fn func(*http.Request) bool) Option {
	return func(l *IPLimiter) { l.skip = fn }
}

// WithOnFirstDenied is called once per bucket lifetime, for logging
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onFirstDenied = fn }
}

// WithOnDenied is called on every denial, for counters
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) { l.onDenied = fn }
}

// WithOnCapacity is called each time a new client is turned away because
// the visitor cap is reached
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) { l.onCapacity = fn }
}

func isHealthPath(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/-/")
}

// New creates an IPLimiter. Idle buckets are evicted in the background
// until ctx is done.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		buckets:     make(map[string]*bucket),
		perSecond:   20,
		burst:       60,
		ttl:         5 * time.Minute,
		maxVisitors: 100000,
		skip:        isHealthPath,
	}
	for _, o := range opts {
		o(l)
	}
	go l.evictLoop(ctx)
	return l
}

// allow reports whether ip may proceed. Hooks run without the lock held.
func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		if l.maxVisitors > 0 && len(l.buckets) >= l.maxVisitors {
			l.mu.Unlock()
			if l.onCapacity != nil {
				l.onCapacity()
			}
			if l.onDenied != nil {
				l.onDenied(ip)
			}
			return false
		}
		b = &bucket{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = time.Now()
	allowed := b.limiter.Allow()
	first := !allowed && !b.warned
	if first {
		b.warned = true
	}
	l.mu.Unlock()

	if allowed {
		return true
	}
	if first && l.onFirstDenied != nil {
		l.onFirstDenied(ip)
	}
	if l.onDenied != nil {
		l.onDenied(ip)
	}
	return false
}

// Len returns the number of tracked clients
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *IPLimiter) evictLoop(ctx context.Context) {
	interval := l.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, ip)
		}
	}
}

// Middleware answers 429 once a client's bucket is empty. The client
// address comes from httpmw.ClientIP, so it must run inside that middleware.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.skip != nil && l.skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.allow(httpmw.ClientIPFromContext(r.Context())) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			// no detail about limits or refill timing
			_, _ = w.Write([]byte(`{"error":"too many requests","code":"rate_limited"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
