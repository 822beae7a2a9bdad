package cfg

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

type App struct {
	LogJSON              bool
	LogLevel             string
	HTTPPort             int
	AdminPort            int
	EnablePprof          bool
	EnablePyroscope      bool
	EnableTracing        bool
	PyroServer           string
	PyroTenantID         string
	OTLPEndpoint         string
	TraceSample          float64
	StacktraceLevel      string
	IncludeErrorLinks    bool
	MaxErrorLinks        int
	TrustedProxyHops     int
	DefaultLocale        string
	ContentDir           string
	ContentVersion       string
	AllowPartialFallback bool
	DrainDelay           time.Duration
	RateLimitRPS         float64
	RateLimitBurst       int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.IntVar(&c.TrustedProxyHops, "trusted-proxy-hops", 0, "reverse proxies in front of the server whose X-Forwarded-For is trusted (0..8)")
	fs.StringVar(&c.DefaultLocale, "default-locale", "en", "BCP 47 tag of the fallback locale; its file must exist")
	fs.StringVar(&c.ContentDir, "content-dir", "", "directory of locale files (en.yaml, ko.json, ...) replacing the embedded seed copy")
	fs.StringVar(&c.ContentVersion, "content-version", "", "version label for the content (defaults to a prefix of the content hash)")
	fs.DurationVar(&c.DrainDelay, "drain-delay", 60*time.Second, "time readiness stays failed before listeners close on shutdown (0..5m)")
	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 20, "content lookups per second per client, 0 disables limiting")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 60, "lookups a client may make at once before limiting applies")
	fs.BoolVar(&c.AllowPartialFallback, "allow-partial-fallback", false, "start even if a locale defines keys the default locale lacks")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
	}

	// Pyroscope tenant
	if c.EnablePyroscope {
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Error link limits
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	if c.TrustedProxyHops < 0 || c.TrustedProxyHops > 8 {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXY_HOPS must be 0..8 (got %d)", c.TrustedProxyHops))
	}

	if c.DrainDelay < 0 || c.DrainDelay > 5*time.Minute {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must be 0..5m (got %s)", c.DrainDelay))
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be >= 0 (got %v)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be >= 1 when rate limiting is enabled (got %d)", c.RateLimitBurst))
	}

	// Content
	if c.DefaultLocale == "" {
		errs = append(errs, fmt.Errorf("DEFAULT_LOCALE is required"))
	} else if _, err := language.Parse(strings.ReplaceAll(c.DefaultLocale, "_", "-")); err != nil {
		errs = append(errs, fmt.Errorf("invalid DEFAULT_LOCALE %q: %w", c.DefaultLocale, err))
	}
	if c.ContentDir != "" {
		if pathutil.HasDotSegments(filepath.ToSlash(c.ContentDir)) {
			errs = append(errs, fmt.Errorf("CONTENT_DIR must not contain . or .. segments (got %q)", c.ContentDir))
		} else if fi, err := os.Stat(c.ContentDir); err != nil {
			errs = append(errs, fmt.Errorf("CONTENT_DIR: %w", err))
		} else if !fi.IsDir() {
			errs = append(errs, fmt.Errorf("CONTENT_DIR %q is not a directory", c.ContentDir))
		}
	}

	return xerrors.Join(errs...)
}
