package logger

import (
	"net/http"
	"time"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMiddleware returns chi-compatible middleware that logs each request and
// its response. Probe traffic is logged at debug level to keep the ops log quiet.
func HTTPMiddleware(l Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			r, correlationID := EnsureHTTPCorrelationID(r)

			requestLogger := l.WithFields(
				StringField("client_ip", r.RemoteAddr),
				StringField("http_method", r.Method),
				StringField("http_path", r.URL.Path),
				CorrelationIDField(correlationID),
			)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			fields := []LogField{
				IntField("http_status", wrapped.statusCode),
				IntField("response_bytes", wrapped.bytesWritten),
				DurationField("duration", time.Since(start)),
			}
			if wrapped.statusCode >= http.StatusInternalServerError {
				requestLogger.Warn("HTTP response sent", fields...)
				return
			}
			requestLogger.Debug("HTTP response sent", fields...)
		})
	}
}
