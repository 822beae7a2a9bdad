package httpmw

import (
	"net/http"
)

// Middleware is the shape every function in this package returns.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h so the first middleware is outermost. Nil entries are
// skipped, which lets callers pass optional middleware inline.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// When returns mw if on, nil otherwise. Use it inside Chain.
func When(on bool, mw Middleware) Middleware {
	if !on {
		return nil
	}
	return mw
}
