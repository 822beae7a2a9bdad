package log

import "context"

var _ Logger = nopLogger{}

// nopLogger drops everything. FromContext falls back to it so handlers
// never nil-check their logger.
type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any)        {}
func (nopLogger) Info(context.Context, string, ...any)         {}
func (nopLogger) Warn(context.Context, string, ...any)         {}
func (nopLogger) Error(context.Context, error, string, ...any) {}
func (nopLogger) Sync() error                                  { return nil }
func (n nopLogger) With(...any) Logger                         { return n }

// Nop returns a Logger that discards all records.
func Nop() Logger { return nopLogger{} }
