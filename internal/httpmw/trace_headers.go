package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

const (
	TraceIDHeader = "X-Trace-Id"
	SpanIDHeader  = "X-Span-Id"
)

// TraceHeaders echoes the trace and span ids of sampled requests so a bad
// translation report can be matched to its trace. Unsampled ids are not
// echoed since nothing was exported under them.
func TraceHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() && sc.IsSampled() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
			w.Header().Set(SpanIDHeader, sc.SpanID().String())
		}
		next.ServeHTTP(w, r)
	})
}
