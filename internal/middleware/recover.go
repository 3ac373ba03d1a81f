package middleware

import (
	"net/http"
	"runtime/debug"

	"video-cleaner/internal/logging"
	"video-cleaner/internal/metrics"
)

// Recover turns a handler panic into a 500 and a CRITICAL log line. When the
// response is already committed only the log line is written.
func Recover() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newResponseWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				metrics.HTTPPanicsTotal.Inc()
				logging.Critical("panic serving %s %s: %v\n%s",
					sanitizeLogField(r.Method), sanitizeLogField(r.URL.Path), rec, debug.Stack())

				if !wrapped.wroteHeader {
					wrapped.Header().Set("Content-Type", "application/json")
					wrapped.WriteHeader(http.StatusInternalServerError)
					_, _ = wrapped.Write([]byte(`{"error":"INTERNAL_ERROR","details":"internal server error"}` + "\n"))
				}
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
