package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	Health       health.Checker
	Readiness    health.Checker
	ContentInfo  httpmw.ContentInfo // For X-Content-Version and X-Content-Hash headers
	ClientIPOpts httpmw.ClientIPOptions
	// APIRoutes registers the content endpoints on the router
	APIRoutes func(chi.Router)
}
