package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnnotateHTTPRoute renames the server span after the chi route pattern once
// routing has run, so /api/content/ko/text/nav.home and
// /api/content/en/text/hero.title share one span name. The requested locale
// and key become span attributes instead. Requests no route matched are
// named "unmatched".
func AnnotateHTTPRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		ctx := r.Context()
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		route := "unmatched"
		rc := chi.RouteContext(ctx)
		if rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		span.SetName(r.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		if rc == nil {
			return
		}
		if loc := rc.URLParam("locale"); loc != "" {
			span.SetAttributes(attribute.String("content.locale", loc))
		}
		if key := rc.URLParam("key"); key != "" {
			span.SetAttributes(attribute.String("content.key", key))
		}
	})
}
