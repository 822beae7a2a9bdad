package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type slogLogger struct {
	h                 slog.Handler
	attrs             []slog.Attr
	includeErrorLinks bool
	maxErrorLinks     int
}

type hasPC interface {
	PC() uintptr
}

type hasStack interface {
	StackPCs() []uintptr
}

type hasJoined interface {
	Unwrap() []error
}

// fieldsError is implemented by errors that carry structured context, such
// as the locale and path of a content shape conflict.
type fieldsError interface {
	error
	LogFields() map[string]string
}

func newSlog(opts Options) (Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	// zero value means "unset", stacks only on errors
	if opts.StacktraceLevel == 0 {
		opts.StacktraceLevel = slog.LevelError
	}

	hopts := &slog.HandlerOptions{
		Level:       opts.Level,
		AddSource:   true,
		ReplaceAttr: shortSource,
	}

	// json or logfmt
	var h slog.Handler
	if opts.JsonFormat {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}

	h = otelHandler{next: h}
	h = stackHandler{next: h, level: opts.StacktraceLevel}

	// build identity goes on every line so a log search can be pinned to a deploy
	baseAttrs := []slog.Attr{slog.String("app", opts.App)}
	for _, kv := range [][2]string{
		{"version", opts.Version},
		{"commit", opts.Commit},
		{"build_id", opts.BuildId},
	} {
		if kv[1] != "" {
			baseAttrs = append(baseAttrs, slog.String(kv[0], kv[1]))
		}
	}

	if opts.MaxErrorLinks <= 0 {
		opts.MaxErrorLinks = 8
	}
	return &slogLogger{
		h:                 h,
		attrs:             baseAttrs,
		includeErrorLinks: opts.IncludeErrorLinks,
		maxErrorLinks:     opts.MaxErrorLinks,
	}, nil
}

// shortSource trims the source file to its parent dir and base name.
func shortSource(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey || len(groups) > 0 {
		return a
	}
	if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
		dir, file := filepath.Split(src.File)
		return slog.String(slog.SourceKey, fmt.Sprintf("%s/%s:%d", filepath.Base(dir), file, src.Line))
	}
	return a
}

func (s *slogLogger) With(kv ...any) Logger {
	add := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			add = append(add, slog.Any(k, kv[i+1]))
		}
	}
	// copy-on-write, children never share a backing array with the parent
	next := make([]slog.Attr, 0, len(s.attrs)+len(add))
	next = append(next, s.attrs...)
	next = append(next, add...)
	return &slogLogger{
		h:                 s.h,
		attrs:             next,
		includeErrorLinks: s.includeErrorLinks,
		maxErrorLinks:     s.maxErrorLinks,
	}
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.logWithPC(ctx, slog.LevelDebug, msg, kv...)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.logWithPC(ctx, slog.LevelInfo, msg, kv...)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.logWithPC(ctx, slog.LevelWarn, msg, kv...)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		kv = append(kv, s.errorKV(err)...)
	}
	s.logWithPC(ctx, slog.LevelError, msg, kv...)
}

// errorKV describes err: its types, its message chain, the number of joined
// problems, and the structured fields of the first error that offers them.
func (s *slogLogger) errorKV(err error) []any {
	surface, root := classifyTypes(err)
	kv := []any{"err", err, "error_type", surface, "cause_type", root}
	if chain := errorChain(err); len(chain) > 0 {
		kv = append(kv, "error_chain", chain)
	}
	if n := joinedCount(err); n > 1 {
		kv = append(kv, "error_count", n)
	}
	var fa fieldsError
	if errors.As(err, &fa) {
		fields := fa.LogFields()
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			kv = append(kv, "error."+k, fields[k])
		}
	}
	if s.includeErrorLinks {
		kv = append(kv, "error_links", chainLinks(err, s.maxErrorLinks))
	}
	return kv
}

func (s *slogLogger) Sync() error { return nil }

func (s *slogLogger) logWithPC(ctx context.Context, lvl slog.Level, msg string, kv ...any) {
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	// runtime.Callers, logWithPC, Debug/Info/Warn/Error
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
	r.AddAttrs(s.attrs...)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			r.AddAttrs(slog.Any(k, kv[i+1]))
		}
	}
	_ = s.h.Handle(ctx, r)
}

// otelHandler adds trace_id and span_id when ctx carries a span.
type otelHandler struct{ next slog.Handler }

func (h otelHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h otelHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return otelHandler{next: h.next.WithAttrs(attrs)}
}

func (h otelHandler) WithGroup(name string) slog.Handler {
	return otelHandler{next: h.next.WithGroup(name)}
}

// stackHandler adds a stack attr at or above level, preferring the stack
// captured on the logged error over the current one.
type stackHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h stackHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		var pcs []uintptr
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "err" {
				if hs, ok := a.Value.Any().(hasStack); ok && hs != nil {
					pcs = hs.StackPCs()
					return false
				}
			}
			return true
		})

		if len(pcs) == 0 {
			pcs = make([]uintptr, 64)
			// skip: runtime.Callers, stackHandler.Handle
			pcs = pcs[:runtime.Callers(2, pcs)]
		}
		r.AddAttrs(slog.String("stack", renderPCs(pcs)))
	}
	return h.next.Handle(ctx, r)
}

func (h stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stackHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h stackHandler) WithGroup(name string) slog.Handler {
	return stackHandler{next: h.next.WithGroup(name), level: h.level}
}

// internalFrame reports frames from the runtime, slog or this package.
func internalFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "log/slog.") ||
		strings.Contains(fn, "/internal/log.")
}

// renderPCs writes func and file:line pairs, starting at the first frame
// outside the logging machinery and stopping when the runtime is reached.
func renderPCs(pcs []uintptr) string {
	frames := runtime.CallersFrames(pcs)
	var b strings.Builder
	include := false
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if !include && !internalFrame(fr.Function) {
			include = true
		}
		if include {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// errorChain lists distinct messages down the unwrap chain. Joined errors,
// including joins nested in joins, contribute one entry per member.
func errorChain(err error) []string {
	out := make([]string, 0, 8)
	var prev string
	add := func(msg string) {
		if msg != prev {
			out = append(out, msg)
			prev = msg
		}
	}
	var walk func(error)
	walk = func(e error) {
		for ; e != nil; e = errors.Unwrap(e) {
			add(e.Error())
			if m, ok := e.(hasJoined); ok {
				for _, c := range m.Unwrap() {
					walk(c)
				}
				return
			}
		}
	}
	walk(err)
	return out
}

// joinedCount counts the leaf errors of a joined error; 1 for anything else.
func joinedCount(err error) int {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if m, ok := e.(hasJoined); ok {
			n := 0
			for _, c := range m.Unwrap() {
				n += joinedCount(c)
			}
			return n
		}
	}
	return 1
}

// chainLinks lists up to max links of the unwrap chain with the code
// position that created each one. The outermost link is always kept;
// deeper links only when a position is known.
func chainLinks(err error, max int) []map[string]any {
	links := make([]map[string]any, 0, 8)
	for depth, e := 0, err; e != nil && (max <= 0 || depth < max); depth, e = depth+1, errors.Unwrap(e) {
		fr, ok := errorFrame(e)
		switch {
		case ok:
			links = append(links, map[string]any{"msg": e.Error(), "func": fr.Function, "file": fr.File, "line": fr.Line})
		case depth == 0:
			links = append(links, map[string]any{"msg": e.Error()})
		}
	}
	return links
}

// errorFrame prefers the single PC recorded by Wrap, then the first frame
// of a captured stack that is outside logging and xerrors.
func errorFrame(e error) (runtime.Frame, bool) {
	if hp, ok := e.(hasPC); ok {
		return frameFromPC(hp.PC())
	}
	if hs, ok := e.(hasStack); ok {
		return firstExtFrame(hs.StackPCs())
	}
	return runtime.Frame{}, false
}

func frameFromPC(pc uintptr) (runtime.Frame, bool) {
	if pc == 0 {
		return runtime.Frame{}, false
	}
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return fr, true
}

func firstExtFrame(pcs []uintptr) (runtime.Frame, bool) {
	if len(pcs) == 0 {
		return runtime.Frame{}, false
	}
	frames := runtime.CallersFrames(pcs)
	for more := true; more; {
		var fr runtime.Frame
		fr, more = frames.Next()
		if !internalFrame(fr.Function) && !strings.Contains(fr.Function, "/internal/xerrors.") {
			return fr, true
		}
	}
	return runtime.Frame{}, false
}

// classifyTypes returns the first type in the chain that is not a bare
// wrapper (xerrors or fmt %w), and the type of the innermost error.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface == "" && !wrapperType(e) {
			surface = fmt.Sprintf("%T", e)
		}
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

func wrapperType(e error) bool {
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.HasSuffix(t.PkgPath(), "/internal/xerrors") || (t.PkgPath() == "fmt" && t.Name() == "wrapError")
}
