package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// quietPrefixes are not logged: health checks, scrapes and widget assets.
var quietPrefixes = []string{"/health", "/metrics", "/widget/", "/files/"}

// redactedParams hold secrets or what a visitor typed or where they are.
var redactedParams = map[string]bool{
	"token":        true,
	"key":          true,
	"secret":       true,
	"api_key":      true,
	"access_token": true,
	"q":            true,
	"search":       true,
	"address":      true,
	"origin":       true,
	"lat":          true,
	"lng":          true,
}

// RequestLoggingMiddleware writes one line per request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger}
}

// Handler logs method, redacted path, status, duration, client IP and
// response size. Server errors are logged at WARN; the handler that failed
// has already logged the cause.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isQuiet(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"bytes", rec.bytes,
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			attrs = append(attrs, "origin", origin)
		}

		level := slog.LevelInfo
		if rec.statusCode >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		m.logger.Log(r.Context(), level, "request", attrs...)
	})
}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sanitizePath appends the query with redacted values replaced. Parameters
// without a value are dropped. The raw order is kept.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		name, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if redactedParams[strings.ToLower(name)] {
			part = name + "=[REDACTED]"
		}
		kept = append(kept, part)
	}
	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
