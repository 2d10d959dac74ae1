package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/storefinder/internal/handler"
)

// MetricsAuthMiddleware guards the Prometheus scrape endpoint with basic auth.
// With neither a username nor a password configured it lets everything through.
type MetricsAuthMiddleware struct {
	credentials [sha256.Size]byte
	open        bool
	logger      *slog.Logger
}

func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	open := username == "" && password == ""
	if open {
		logger.Warn("metrics endpoint is unauthenticated")
	}
	return &MetricsAuthMiddleware{
		credentials: scrapeDigest(username, password),
		open:        open,
		logger:      logger,
	}
}

// scrapeDigest hashes the pair so the comparison does not leak either length.
func scrapeDigest(username, password string) [sha256.Size]byte {
	return sha256.Sum256([]byte(username + "\x00" + password))
}

func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.open || m.authorized(r) {
			next.ServeHTTP(w, r)
			return
		}
		m.logger.Debug("metrics scrape rejected", "ip", getClientIP(r))
		w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
		handler.UnauthorizedResponse(w, r, m.logger)
	})
}

func (m *MetricsAuthMiddleware) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	got := scrapeDigest(user, pass)
	return subtle.ConstantTimeCompare(got[:], m.credentials[:]) == 1
}
