package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
)

func newTestLimiter(t *testing.T, opts ...Option) *IPLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, append([]Option{WithRate(10, 5), WithTTL(time.Minute)}, opts...)...)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// serve runs one request through the limiter as ip.
func serve(l *IPLimiter, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(httpmw.WithClientIP(req.Context(), ip))
	rec := httptest.NewRecorder()
	l.Middleware(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestNew_Defaults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(ctx)
	if l.perSecond != 20 || l.burst != 60 {
		t.Fatalf("rate = %v/%d, want 20/60", l.perSecond, l.burst)
	}
	if l.ttl != 5*time.Minute || l.maxVisitors != 100000 {
		t.Fatalf("ttl = %v, maxVisitors = %d", l.ttl, l.maxVisitors)
	}
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l := newTestLimiter(t, WithRate(1, 3))
	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("request past burst allowed")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("a second client must have its own bucket")
	}
}

func TestAllow_Refills(t *testing.T) {
	l := newTestLimiter(t, WithRate(100, 1))
	if !l.allow("10.0.0.1") {
		t.Fatal("first request denied")
	}
	if l.allow("10.0.0.1") {
		t.Fatal("empty bucket should deny")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.allow("10.0.0.1") {
		t.Fatal("bucket should refill")
	}
}

func TestAllow_Hooks(t *testing.T) {
	var first, denied []string
	l := newTestLimiter(t,
		WithRate(0.001, 1),
		WithOnFirstDenied(func(ip string) { first = append(first, ip) }),
		WithOnDenied(func(ip string) { denied = append(denied, ip) }),
	)
	l.allow("10.0.0.1")
	for i := 0; i < 3; i++ {
		l.allow("10.0.0.1")
	}
	if len(first) != 1 {
		t.Fatalf("first-denied hook ran %d times, want 1", len(first))
	}
	if len(denied) != 3 {
		t.Fatalf("denied hook ran %d times, want 3", len(denied))
	}
}

func TestAllow_WarnResetsAfterEviction(t *testing.T) {
	var first int
	l := newTestLimiter(t, WithRate(0.001, 1), WithOnFirstDenied(func(string) { first++ }))
	l.allow("10.0.0.1")
	l.allow("10.0.0.1")

	l.evict(time.Now().Add(2 * time.Minute))
	if l.Len() != 0 {
		t.Fatalf("Len = %d after eviction", l.Len())
	}

	l.allow("10.0.0.1")
	l.allow("10.0.0.1")
	if first != 2 {
		t.Fatalf("first-denied ran %d times, want 2", first)
	}
}

func TestEvict_KeepsActive(t *testing.T) {
	l := newTestLimiter(t)
	l.allow("10.0.0.1")
	l.evict(time.Now())
	if l.Len() != 1 {
		t.Fatal("active bucket evicted")
	}
}

func TestMaxVisitors(t *testing.T) {
	var capacity atomic.Int32
	l := newTestLimiter(t,
		WithRate(100, 100),
		WithMaxVisitors(3),
		WithOnCapacity(func() { capacity.Add(1) }),
	)
	for i := 1; i <= 3; i++ {
		if !l.allow(fmt.Sprintf("10.0.0.%d", i)) {
			t.Fatalf("client %d denied below capacity", i)
		}
	}
	if l.allow("10.0.0.99") {
		t.Fatal("new client admitted at capacity")
	}
	if capacity.Load() != 1 {
		t.Fatalf("capacity hook = %d, want 1", capacity.Load())
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("known client rejected at capacity")
	}
}

func TestMiddleware_429(t *testing.T) {
	l := newTestLimiter(t, WithRate(0.001, 2))

	for i := 0; i < 2; i++ {
		if rec := serve(l, "/api/content/en/text/nav.home", "203.0.113.5"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec := serve(l, "/api/content/en/text/nav.home", "203.0.113.5")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "30" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if got := rec.Body.String(); got != "{\"error\":\"too many requests\",\"code\":\"rate_limited\"}\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestMiddleware_HealthNotLimited(t *testing.T) {
	l := newTestLimiter(t, WithRate(0.001, 1))
	for i := 0; i < 5; i++ {
		if rec := serve(l, "/-/ready", "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("health request %d limited: %d", i+1, rec.Code)
		}
	}
	if l.Len() != 0 {
		t.Fatal("health requests should not create buckets")
	}
}

func TestMiddleware_CustomSkip(t *testing.T) {
	l := newTestLimiter(t, WithRate(0.001, 1), WithSkip(func(*http.Request) bool { return false }))
	serve(l, "/-/ready", "10.0.0.1")
	if rec := serve(l, "/-/ready", "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 with skip disabled", rec.Code)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := newTestLimiter(t, WithRate(1000, 1000))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.allow(fmt.Sprintf("10.0.%d.1", i%5))
		}(i)
	}
	wg.Wait()
	if l.Len() != 5 {
		t.Fatalf("Len = %d, want 5", l.Len())
	}
}
