package httpmw

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
)

// responseWriter records the status and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// WithLogger stores a request-scoped logger in the context. Only
// server-derived fields are attached; headers, query strings and user agents
// stay out of the logs.
func WithLogger(base log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := RequestIDFromContext(ctx)

			// peer is whatever connected to us, client is what ClientIP resolved
			peer := r.RemoteAddr
			if host, _, err := net.SplitHostPort(peer); err == nil {
				peer = host
			}
			client := ClientIPFromContext(ctx)
			if client == "" {
				client = peer
			}
			scheme := schemeFromRequest(r)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", reqID),
					attribute.String("client.address", client),
					attribute.String("network.peer.address", peer),
					attribute.String("url.scheme", scheme),
				)
			}

			ctx = log.WithContext(ctx, base.With(
				"request_id", reqID,
				"client.address", client,
				"network.peer.address", peer,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
				"url.scheme", scheme,
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLog writes one line per request once the handler returns: 5xx at
// warn, everything else at info. Health endpoints are not logged.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			if r.URL.Path == "/-/ready" || r.URL.Path == "/-/healthy" {
				return
			}
			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}

			fields := []any{
				"http.route", route,
				"http.response.status_code", status,
				"http.response.body.size", rw.bytes,
				"http.server.request.duration", time.Since(start).Seconds(),
			}
			// locale actually served, set by the content handlers
			if lang := rw.Header().Get("Content-Language"); lang != "" {
				fields = append(fields, "content.locale", lang)
			}

			ctx := r.Context()
			L := log.FromContext(ctx)
			if status >= 500 {
				L.Warn(ctx, "http request", fields...)
				return
			}
			L.Info(ctx, "http request", fields...)
		})
	}
}

// schemeFromRequest trusts X-Forwarded-Proto only after ClientIP has had a
// chance to strip it from untrusted peers. Anything other than http or https
// is ignored.
func schemeFromRequest(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if s := validScheme(first); s != "" {
			return s
		}
	}
	if r.URL != nil {
		if s := validScheme(r.URL.Scheme); s != "" {
			return s
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func validScheme(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "http", "https":
		return s
	}
	return ""
}

// Scope names the handler in the request logger and the server span.
func Scope(handler string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := log.With(r.Context(), "handler", handler)
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
