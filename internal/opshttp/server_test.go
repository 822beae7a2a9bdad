package opshttp

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
)

func getFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", ":0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startOps(t *testing.T, opts *Options) int {
	t.Helper()
	if opts.Port == 0 {
		opts.Port = getFreePort(t)
	}
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { stop(ctx) })
	return opts.Port
}

func opsGet(t *testing.T, port int, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, path))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestStart_HealthEndpoints(t *testing.T) {
	port := startOps(t, &Options{
		Health:    health.Fixed(true, ""),
		Readiness: health.Fixed(false, "content: no active store"),
	})

	if code, body := opsGet(t, port, "/-/healthy"); code != http.StatusOK || !strings.Contains(body, "ok") {
		t.Fatalf("healthy: %d %q", code, body)
	}
	if code, body := opsGet(t, port, "/-/ready"); code != http.StatusServiceUnavailable || !strings.Contains(body, "no active store") {
		t.Fatalf("ready: %d %q", code, body)
	}
}

func TestStart_MetricsAndContentInfo(t *testing.T) {
	port := startOps(t, &Options{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("content_lookups_total 1\n"))
		}),
		ContentInfo: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"default_locale":"en"}`))
		}),
	})

	if code, body := opsGet(t, port, "/metrics"); code != http.StatusOK || !strings.Contains(body, "content_lookups_total") {
		t.Fatalf("metrics: %d %q", code, body)
	}
	if code, body := opsGet(t, port, "/-/content"); code != http.StatusOK || !strings.Contains(body, "default_locale") {
		t.Fatalf("content: %d %q", code, body)
	}
}

func TestStart_OptionalEndpointsAbsent(t *testing.T) {
	port := startOps(t, &Options{})
	for _, p := range []string{"/metrics", "/-/content", "/debug/pprof/"} {
		if code, _ := opsGet(t, port, p); code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, code)
		}
	}
}

func TestStart_PprofEnabled(t *testing.T) {
	port := startOps(t, &Options{EnablePprof: true})
	if code, _ := opsGet(t, port, "/debug/pprof/"); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
}

func TestStart_NilOptions(t *testing.T) {
	// default port may be taken on a dev box; only check it does not panic
	stop, err := Start(context.Background(), log.Nop(), nil)
	if err == nil {
		stop(context.Background())
	}
}

func TestStart_PortConflict(t *testing.T) {
	port := startOps(t, &Options{})
	if _, err := Start(context.Background(), log.Nop(), &Options{Port: port}); err == nil {
		t.Fatal("expected error binding an in-use port")
	}
}

func TestStart_StopIdempotent(t *testing.T) {
	ctx := context.Background()
	stop, err := Start(ctx, log.Nop(), &Options{Port: getFreePort(t)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStart_RecoversPanics(t *testing.T) {
	var panics int
	port := startOps(t, &Options{
		OnPanic: func() { panics++ },
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("scrape") }),
	})
	if code, _ := opsGet(t, port, "/metrics"); code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", code)
	}
	if panics != 1 {
		t.Fatalf("OnPanic calls = %d, want 1", panics)
	}
}

func TestRequireNonPublicNetwork(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := requireNonPublicNetwork(log.Nop(), inner)

	tests := []struct {
		addr string
		want int
	}{
		{"127.0.0.1:12345", http.StatusOK},
		{"[::1]:12345", http.StatusOK},
		{"10.0.0.1:8080", http.StatusOK},
		{"172.16.0.1:8080", http.StatusOK},
		{"192.168.1.1:8080", http.StatusOK},
		{"169.254.1.1:8080", http.StatusOK},
		{"8.8.8.8:12345", http.StatusForbidden},
		{"203.0.113.1:80", http.StatusForbidden},
		{"not-an-address", http.StatusForbidden},
		{"", http.StatusForbidden},
		{"999.1.1.1:80", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/-/ready", http.NoBody)
			req.RemoteAddr = tt.addr
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
