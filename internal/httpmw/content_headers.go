package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/cryptoutil"
)

// ContentInfo reports the identity of the active content store
type ContentInfo interface {
	ContentVersion() string
	ContentHash() string
}

// ContentHeaders sets X-Content-Version and X-Content-Hash on every response
// once a store is loaded, and tags the current span with the same values.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info != nil {
				v := info.ContentVersion()
				h := info.ContentHash()
				if v != "" {
					w.Header().Set("X-Content-Version", v)
				}
				if h != "" {
					// short hash is enough to tell deploys apart
					w.Header().Set("X-Content-Hash", cryptoutil.ShortHash(h, 12))
				}
				if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
					if v != "" {
						span.SetAttributes(attribute.String("content.version", v))
					}
					if h != "" {
						span.SetAttributes(attribute.String("content.hash", h))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
