package httpmw

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/xerrors"
)

// Recover turns a handler panic into a 500 and an error log line.
// onPanic, when set, runs after logging (typically a metrics counter).
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// let net/http abort the response as it would without us
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}
				logger.Error(r.Context(), xerrors.Wrap(err, "panic in http handler"), "recovered from panic",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()),
				)
				if onPanic != nil {
					onPanic()
				}

				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal error","code":"internal"}` + "\n"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
