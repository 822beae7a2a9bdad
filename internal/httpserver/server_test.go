package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
)

type staticInfo struct{}

func (staticInfo) ContentVersion() string { return "v7" }
func (staticInfo) ContentHash() string    { return "0123456789abcdef" }

func defaultOpts() *Options {
	return &Options{
		Logger: log.Nop(),
		APIRoutes: func(r chi.Router) {
			r.Get("/api/content/{locale}/text/{key}", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"key":%q}`, chi.URLParam(r, "key"))
			})
		},
	}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestNewHandler_APIRoutes(t *testing.T) {
	rec := serve(NewHandler(defaultOpts()), "GET", "/api/content/en/text/nav.home")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "nav.home") {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestNewHandler_NotFoundIsJSON(t *testing.T) {
	rec := serve(NewHandler(defaultOpts()), "GET", "/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), `"code":"not_found"`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestNewHandler_WriteMethodsRejected(t *testing.T) {
	rec := serve(NewHandler(defaultOpts()), "POST", "/api/content/en/text/nav.home")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestNewHandler_SecurityHeadersOnEveryResponse(t *testing.T) {
	h := NewHandler(defaultOpts())
	for _, p := range []string{"/api/content/en/text/a", "/missing"} {
		rec := serve(h, "GET", p)
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", p)
		}
	}
}

func TestNewHandler_RequestID(t *testing.T) {
	h := NewHandler(defaultOpts())
	a := serve(h, "GET", "/api/content/en/text/a").Header().Get("X-Request-Id")
	b := serve(h, "GET", "/api/content/en/text/a").Header().Get("X-Request-Id")
	if a == "" || a == b {
		t.Fatalf("request ids = %q, %q; want distinct", a, b)
	}

	req := httptest.NewRequest("GET", "/api/content/en/text/a", nil)
	req.Header.Set("X-Request-Id", "upstream-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "upstream-42" {
		t.Fatalf("propagated id = %q", got)
	}
}

func TestNewHandler_HealthEndpoints(t *testing.T) {
	opts := defaultOpts()
	opts.Health = health.Fixed(true, "")
	opts.Readiness = health.Fixed(false, "content: no active store")
	h := NewHandler(opts)

	if rec := serve(h, "GET", "/-/healthy"); rec.Code != http.StatusOK {
		t.Fatalf("healthy = %d", rec.Code)
	}
	if rec := serve(h, "GET", "/-/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d", rec.Code)
	}
}

func TestNewHandler_HealthAbsentWithoutOptions(t *testing.T) {
	if rec := serve(NewHandler(defaultOpts()), "GET", "/-/ready"); rec.Code != http.StatusNotFound {
		t.Fatalf("ready = %d, want 404", rec.Code)
	}
}

func TestNewHandler_ContentHeaders(t *testing.T) {
	opts := defaultOpts()
	opts.ContentInfo = staticInfo{}
	rec := serve(NewHandler(opts), "GET", "/api/content/en/text/a")

	if rec.Header().Get("X-Content-Version") != "v7" || rec.Header().Get("X-Content-Hash") != "0123456789ab" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if rec := serve(NewHandler(defaultOpts()), "GET", "/api/content/en/text/a"); rec.Header().Get("X-Content-Version") != "" {
		t.Fatal("no content headers expected without ContentInfo")
	}
}

func TestNewHandler_MetricsMW(t *testing.T) {
	var hits int
	opts := defaultOpts()
	opts.MetricsMW = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
			next.ServeHTTP(w, r)
		})
	}
	serve(NewHandler(opts), "GET", "/api/content/en/text/a")
	if hits != 1 {
		t.Fatalf("metrics middleware hits = %d", hits)
	}
}

func TestNewHandler_RateLimitMWSeesClientIP(t *testing.T) {
	var ip string
	opts := defaultOpts()
	opts.RateLimitMW = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip = httpmw.ClientIPFromContext(r.Context())
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	rec := serve(NewHandler(opts), "GET", "/api/content/en/text/a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ip == "" {
		t.Fatal("rate limiter should run after client ip resolution")
	}
}

func TestNewHandler_Recover(t *testing.T) {
	var panics int
	opts := defaultOpts()
	opts.UseRecoverMW = true
	opts.OnPanic = func() { panics++ }
	opts.APIRoutes = func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	}
	rec := serve(NewHandler(opts), "GET", "/boom")
	if rec.Code != http.StatusInternalServerError || panics != 1 {
		t.Fatalf("status = %d, panics = %d", rec.Code, panics)
	}
}

func TestNewHandler_NilLogger(t *testing.T) {
	opts := defaultOpts()
	opts.Logger = nil
	if rec := serve(NewHandler(opts), "GET", "/api/content/en/text/a"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNewHandler_CompressesJSON(t *testing.T) {
	opts := defaultOpts()
	opts.APIRoutes = func(r chi.Router) {
		r.Get("/big", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"text":"` + strings.Repeat("a", 4096) + `"}`))
		})
	}
	req := httptest.NewRequest("GET", "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	NewHandler(opts).ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
	}
}

func TestStart_ServesAndStops(t *testing.T) {
	ln, err := net.Listen("tcp4", ":0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	opts := defaultOpts()
	opts.Port = port
	ctx := context.Background()
	stop, err := Start(ctx, opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/content/en/text/a", port))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if err := stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestNewServer_Timeouts(t *testing.T) {
	srv := NewServer(":0", http.NotFoundHandler())
	if srv.ReadHeaderTimeout != DefaultReadHeaderTimeout || srv.MaxHeaderBytes != DefaultMaxHeaderBytes {
		t.Fatalf("server = %+v", srv)
	}
}
