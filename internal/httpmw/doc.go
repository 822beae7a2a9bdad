// Package httpmw provides HTTP middleware for the content API listener.
//
// httpserver.NewHandler composes them outermost first: recover, security
// headers, request ID, client IP, OTEL tracing, trace response headers,
// content version headers, metrics, request logger, access log, and the chi
// router.
//
// Request-supplied data (query strings, user agents, arbitrary headers) is
// kept out of logs.
package httpmw
