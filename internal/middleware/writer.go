package middleware

import "net/http"

// StatusClientClosed is recorded for a request whose client went away
// before any response was written. It is never sent on the wire.
const StatusClientClosed = 499

// responseWriter records the status and size of a response for the
// logging, metrics and recovery middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// status is the status to record for r. A handler that wrote nothing for
// a canceled request reports StatusClientClosed instead of the implicit 200.
func (rw *responseWriter) status(r *http.Request) int {
	if !rw.wroteHeader && r.Context().Err() != nil {
		return StatusClientClosed
	}
	return rw.statusCode
}

// Unwrap lets http.ResponseController reach the connection.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
