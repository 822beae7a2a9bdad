package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/content"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/contenthttp"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/health"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/prof"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/ratelimit"
	v "github.com/keithlinneman/linnemanlabs-sitecopy/internal/version"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/webassets"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion, checkOnly bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.BoolVar(&checkOnly, "check", false, "Load and validate the locale files, then exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			v.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "SITECOPY_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Commit:            vi.Commit,
		BuildId:           vi.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Short(),
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"default_locale", conf.DefaultLocale,
		"content_dir", conf.ContentDir,
		"allow_partial_fallback", conf.AllowPartialFallback,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"trusted_proxy_hops", conf.TrustedProxyHops,
		"drain_delay", conf.DrainDelay,
		"rate_limit_rps", conf.RateLimitRPS,
		"rate_limit_burst", conf.RateLimitBurst,
	)

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:    conf.EnableTracing,
		Endpoint:   conf.OTLPEndpoint,
		Insecure:   true,
		Sample:     conf.TraceSample,
		Service:    v.AppName,
		Component:  "server",
		Version:    vi.Version,
		Attributes: map[string]string{"content.default_locale": conf.DefaultLocale},
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Build the content store. A shape conflict or missing fallback is fatal.
	contentMgr := content.NewManager()
	store, err := loadContent(ctx, L, conf)
	if err != nil {
		problems := xerrors.Flatten(err)
		for _, p := range problems {
			L.Warn(ctx, "content problem", "problem", p.Error())
		}
		L.Error(ctx, err, "failed to build content store", "problems", len(problems))
		os.Exit(1)
	}
	contentMgr.Set(store)

	if checkOnly {
		L.Info(ctx, "content check passed", "locales", store.Locales())
		os.Exit(0)
	}

	// Setup pyroscope profiling
	tags := prof.DefaultTags(vi.Version, store.ContentVersion(), store.DefaultLocale())
	tags["app"] = v.AppName
	tags["component"] = "server"
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags:          tags,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Setup metrics
	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope && err == nil)
	meta := store.Meta()
	m.SetContentSource(string(meta.Source))
	m.SetContentStore(meta.Version, meta.SHA256, store.DefaultLocale(), len(store.Locales()), meta.LoadedAt)

	contentAPI := contenthttp.NewAPI(contentMgr, m, L)

	// setup toggle for server shutdown
	var gate health.ShutdownGate

	// readiness needs both an open gate and a loaded store
	readiness := health.All(
		health.Named("shutdown", &gate),
		health.CheckFunc(func(ctx context.Context) error {
			return contentMgr.ReadyErr()
		}),
	)

	// per-client limiter for content lookups, health endpoints are never limited
	var rateLimitMW func(http.Handler) http.Handler
	if conf.RateLimitRPS > 0 {
		limiter := ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			// once per client until its bucket is evicted
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
			ratelimit.WithOnCapacity(func() {
				m.IncRateLimitCapacity()
				L.Warn(ctx, "rate limit capacity reached, rejecting new clients until some are evicted")
			}),
		)
		rateLimitMW = limiter.Middleware
	}

	apiHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		APIRoutes:    contentAPI.RegisterRoutes,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		RateLimitMW:  rateLimitMW,
		ContentInfo:  contentMgr,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedProxyHops},
	})
	if err != nil {
		L.Error(ctx, err, "failed to start content http listener")
		os.Exit(1)
	}
	defer func() { _ = apiHTTPStop(context.Background()) }()

	// ops listener: metrics, health, content identity and pprof
	// requests from public addresses are rejected in case the port is ever exposed
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		ContentInfo: http.HandlerFunc(contentAPI.HandleLocales),
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "error", err)
	}

	// wait for ctrl+c / sigterm
	<-ctx.Done()
	stop()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness so the load balancer stops routing before we close
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining", "drain_delay", conf.DrainDelay)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainDelay):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "content http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
}

// loadContent builds the store from -content-dir when set, otherwise from
// the seed copy embedded in the binary.
func loadContent(ctx context.Context, L log.Logger, conf cfg.App) (*content.Store, error) {
	ctx, span := otelx.Tracer().Start(ctx, "content.load")
	defer span.End()

	var fsys fs.FS = webassets.LocalesFS()
	source := content.SourceSeed
	if conf.ContentDir != "" {
		fsys = os.DirFS(conf.ContentDir)
		source = content.SourceDisk
	}
	span.SetAttributes(
		attribute.String("content.source", string(source)),
		attribute.String("content.default_locale", conf.DefaultLocale),
	)

	loader, err := content.NewLoader(content.LoaderOptions{
		Logger:               L,
		FS:                   fsys,
		Source:               source,
		Version:              conf.ContentVersion,
		DefaultLocale:        conf.DefaultLocale,
		AllowPartialFallback: conf.AllowPartialFallback,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s, err := loader.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content store rejected")
		return nil, xerrors.Wrapf(err, "load %s content", source)
	}
	span.SetAttributes(attribute.String("content.hash", s.ContentHash()))
	return s, nil
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when started with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
