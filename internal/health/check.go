package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// Checker is evaluated on every health request. A nil error means pass;
// the error text is the reason reported to the caller.
type Checker interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Checker.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes when every non-nil check passes. Checks run in order and the
// first failure is returned.
func All(ps ...Checker) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Named prefixes p's failures with name so a failed readiness response
// says which check tripped.
func Named(name string, p Checker) CheckFunc {
	return func(ctx context.Context) error {
		if p == nil {
			return nil
		}
		return xerrors.Wrap(p.Check(ctx), name)
	}
}

// ShutdownGate fails readiness once shutdown begins so load balancers
// drain the instance before listeners close.
type ShutdownGate struct {
	reason atomic.Pointer[string]
}

// Set closes the gate. An empty reason reads as "draining".
func (g *ShutdownGate) Set(reason string) {
	if reason == "" {
		reason = "draining"
	}
	g.reason.Store(&reason)
}

// Clear reopens the gate.
func (g *ShutdownGate) Clear() { g.reason.Store(nil) }

// Draining reports whether the gate is closed.
func (g *ShutdownGate) Draining() bool { return g.reason.Load() != nil }

// Check fails with the drain reason once the gate is closed.
func (g *ShutdownGate) Check(context.Context) error {
	if r := g.reason.Load(); r != nil {
		return xerrors.New(*r)
	}
	return nil
}
