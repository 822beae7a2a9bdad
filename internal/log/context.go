package log

import (
	"context"
)

type ctxKey struct{}

// WithContext stores l in ctx. Request middleware uses it to hand each
// handler a logger already carrying request id and client ip.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx, or Nop when there is none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return Nop()
}

// With returns ctx carrying the context logger extended with kv.
func With(ctx context.Context, kv ...any) context.Context {
	if len(kv) == 0 {
		return ctx
	}
	return WithContext(ctx, FromContext(ctx).With(kv...))
}
