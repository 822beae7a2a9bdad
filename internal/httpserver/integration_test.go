package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/content"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/contenthttp"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/metrics"
)

// TestIntegration_FullStack loads locale files from an in-memory FS, serves
// them through the full middleware stack and checks fallback, error mapping
// and headers end to end.
func TestIntegration_FullStack(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"en.yaml": {Data: []byte(`
nav:
  home: Home
  about: About
services:
  investment:
    title: Investment
    description: Long-term growth
`)},
		"ko.yaml": {Data: []byte(`
nav.home: 홈
services:
  investment:
    title: 투자
    description: 장기 성장
`)},
	}

	loader, err := content.NewLoader(content.LoaderOptions{FS: fsys, DefaultLocale: "en", Source: content.SourceInline})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	mgr := content.NewManager()
	if err := loader.LoadIntoManager(t.Context(), mgr); err != nil {
		t.Fatalf("LoadIntoManager: %v", err)
	}

	m := metrics.New()
	api := contenthttp.NewAPI(mgr, m, log.Nop())

	var gate health.ShutdownGate
	handler := httpserver.NewHandler(&httpserver.Options{
		Logger:       log.Nop(),
		UseRecoverMW: true,
		MetricsMW:    m.Middleware,
		Readiness:    health.All(&gate, health.CheckFunc(func(ctx context.Context) error { return mgr.ReadyErr() })),
		ContentInfo:  mgr,
		APIRoutes:    api.RegisterRoutes,
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		return rec
	}

	t.Run("text in requested locale", func(t *testing.T) {
		rec := get("/api/content/ko/text/nav.home")
		var resp contenthttp.TextResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK || resp.Text != "홈" || resp.Fallback {
			t.Fatalf("status = %d, resp = %+v", rec.Code, resp)
		}
		if rec.Header().Get("X-Content-Hash") == "" || rec.Header().Get("X-Content-Version") == "" {
			t.Fatalf("content headers missing: %v", rec.Header())
		}
	})

	t.Run("falls back to default locale", func(t *testing.T) {
		rec := get("/api/content/ko/text/nav.about")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Language") != "en" {
			t.Fatalf("status = %d, Content-Language = %q", rec.Code, rec.Header().Get("Content-Language"))
		}
	})

	t.Run("regional tag uses base language", func(t *testing.T) {
		rec := get("/api/content/ko-KR/text/nav.home")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Language") != "ko" {
			t.Fatalf("status = %d, Content-Language = %q", rec.Code, rec.Header().Get("Content-Language"))
		}
	})

	t.Run("fragment is not renderable as text", func(t *testing.T) {
		if rec := get("/api/content/en/text/services.investment"); rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		if rec := get("/api/content/en/text/pricing.title"); rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("readiness follows gate", func(t *testing.T) {
		if rec := get("/-/ready"); rec.Code != http.StatusOK {
			t.Fatalf("ready = %d", rec.Code)
		}
	})
}
