package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// NewHandler builds the public handler: content API routes plus middleware.
// main() owns shutdown through the stop func returned by Start.
func NewHandler(opts *Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	r := chi.NewRouter()

	// JSON compresses well, locale trees especially
	r.Use(middleware.Compress(5, "application/json"))

	// rename the span after the route pattern once chi has matched
	r.Use(httpmw.AnnotateHTTPRoute)

	r.Use(httpmw.AccessLog())

	if opts.Health != nil {
		r.Get("/-/healthy", health.HealthzHandler(opts.Health))
	}
	if opts.Readiness != nil {
		r.Get("/-/ready", health.ReadyzHandler(opts.Readiness))
	}

	if opts.APIRoutes != nil {
		opts.APIRoutes(r)
	}

	r.NotFound(jsonError(http.StatusNotFound, "not_found", "no such endpoint"))
	r.MethodNotAllowed(jsonError(http.StatusMethodNotAllowed, "method_not_allowed", "content api is read-only"))

	var contentHeaders func(http.Handler) http.Handler
	if opts.ContentInfo != nil {
		contentHeaders = httpmw.ContentHeaders(opts.ContentInfo)
	}

	// outermost first
	return httpmw.Chain(r,
		// security headers land on every response, panics included
		httpmw.SecurityHeaders,
		httpmw.When(opts.UseRecoverMW, httpmw.Recover(opts.Logger, opts.OnPanic)),
		httpmw.RequestID("X-Request-Id"),
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		traceMW,
		contentHeaders,
		httpmw.TraceHeaders,
		opts.MetricsMW,
		// inside metrics so 429s are counted, inside ClientIP so buckets key on the real client
		opts.RateLimitMW,
		httpmw.WithLogger(opts.Logger),
	)
}

func traceMW(next http.Handler) http.Handler {
	return otelhttp.NewHandler(
		next,
		"http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// health checks are too chatty to trace
			return r.URL.Path != "/-/healthy" && r.URL.Path != "/-/ready"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			// AnnotateHTTPRoute renames the span to the route pattern later
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(r *http.Request) bool { return true }),
	)
}

func jsonError(status int, code, msg string) http.HandlerFunc {
	body := fmt.Sprintf("{\"error\":%q,\"code\":%q}\n", msg, code)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// Server timeout defaults.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start the public HTTP server.
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts *Options) (func(context.Context) error, error) {
	port := opts.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)

	handler := NewHandler(opts)
	srv := NewServer(addr, handler)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp4", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen on %s", addr)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
