package httpmw

import "net/http"

// CSRF protection is not implemented: the content API is stateless,
// cookie-free and GET only.

// SecurityHeaders sets response headers suited to a JSON-only API. Nothing
// served here is meant to be rendered or framed by a browser.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		// JSON responses load nothing
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		// site frontends on other origins fetch copy from here
		h.Set("Cross-Origin-Resource-Policy", "cross-origin")

		next.ServeHTTP(w, r)
	})
}
