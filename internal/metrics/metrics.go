package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/version"
)

type ServerMetrics struct {
	reg            *prometheus.Registry
	handler        http.Handler
	inflight       prometheus.Gauge
	reqTotal       *prometheus.CounterVec
	reqDur         *prometheus.HistogramVec
	respBytes      *prometheus.HistogramVec
	httpPanicTotal prometheus.Counter
	buildInfo      *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec

	profilingActive prometheus.Gauge

	ratelimitDeniedTotal   prometheus.Counter
	ratelimitCapacityTotal prometheus.Counter

	// content store metrics
	contentSource          *prometheus.GaugeVec
	contentStoreInfo       *prometheus.GaugeVec
	contentLoadedTimestamp prometheus.Gauge
	contentLocales         prometheus.Gauge
	contentLookupsTotal    *prometheus.CounterVec
	contentFallbackTotal   *prometheus.CounterVec
}

// New returns a fresh registry + standard collectors + HTTP metrics
// safe labels only (method, route, code) to avoid path/cardinality explosions
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests",
		}),
		reqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency by method and route",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
		respBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response size by method and route",
			Buckets: []float64{64, 256, 1024, 4096, 16384, 65536},
		}, []string{"method", "route"}),
		httpPanicTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_panic_total",
			Help: "Total number of recovered httpserver panics",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total 5xx HTTP server errors by method and route (SLI)",
		}, []string{"method", "route"}),
		profilingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profiling_active",
			Help: "Whether continuous profiling is active (1) or disabled/failed (0)",
		}),
		ratelimitDeniedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_ratelimit_denied_total",
			Help: "Requests rejected by the per-client rate limiter",
		}),
		ratelimitCapacityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "http_ratelimit_capacity_total",
			Help: "New clients rejected because the rate limiter was tracking its maximum",
		}),
		contentSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_source_info",
			Help: "Current content source (label carries value, gauge is always 1)",
		}, []string{"source"}),
		contentStoreInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "content_store_info",
			Help: "Active content store identity (labels carry identity, value is always 1)",
		}, []string{"version", "sha256", "default_locale"}),
		contentLoadedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_loaded_timestamp_seconds",
			Help: "Unix timestamp of when the content store was built",
		}),
		contentLocales: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "content_locales",
			Help: "Number of locales with their own definitions",
		}),
		contentLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_lookups_total",
			Help: "Content lookups by kind (text, html, fragment, tree) and outcome",
		}, []string{"kind", "outcome"}),
		contentFallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "content_fallback_total",
			Help: "Lookups answered by the default locale, by serving locale",
		}, []string{"locale"}),
	}
	reg.MustRegister(
		m.inflight,
		m.reqTotal,
		m.reqDur,
		m.respBytes,
		m.httpPanicTotal,
		m.buildInfo,
		m.errorsTotal,
		m.profilingActive,
		m.ratelimitDeniedTotal,
		m.ratelimitCapacityTotal,
		m.contentSource,
		m.contentStoreInfo,
		m.contentLoadedTimestamp,
		m.contentLocales,
		m.contentLookupsTotal,
		m.contentFallbackTotal,
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg
	return m
}

func (m *ServerMetrics) IncHttpPanic() {
	m.httpPanicTotal.Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return m.handler
}

// set once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.With(prometheus.Labels{
		"app":         app,
		"component":   component,
		"version":     vi.Version,
		"commit":      vi.Commit,
		"commit_date": vi.CommitDate,
		"build_id":    vi.BuildId,
		"build_date":  vi.BuildDate,
		"go_version":  vi.GoVersion,
		"vcs_dirty":   dirty,
	}).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) {
	if active {
		m.profilingActive.Set(1)
	} else {
		m.profilingActive.Set(0)
	}
}

func (m *ServerMetrics) IncRateLimitDenied() {
	m.ratelimitDeniedTotal.Inc()
}

func (m *ServerMetrics) IncRateLimitCapacity() {
	m.ratelimitCapacityTotal.Inc()
}

func (m *ServerMetrics) SetContentSource(source string) {
	m.contentSource.Reset() // clear previous label value
	m.contentSource.WithLabelValues(source).Set(1)
}

// SetContentStore records the identity of the active store.
func (m *ServerMetrics) SetContentStore(version, sha256, defaultLocale string, locales int, loadedAt time.Time) {
	m.contentStoreInfo.Reset()
	m.contentStoreInfo.WithLabelValues(version, sha256, defaultLocale).Set(1)
	m.contentLocales.Set(float64(locales))
	m.contentLoadedTimestamp.Set(float64(loadedAt.Unix()))
}

// ObserveContentLookup implements contenthttp.Recorder.
func (m *ServerMetrics) ObserveContentLookup(kind, outcome string) {
	m.contentLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncContentFallback implements contenthttp.Recorder.
func (m *ServerMetrics) IncContentFallback(locale string) {
	m.contentFallbackTotal.WithLabelValues(locale).Inc()
}
