// Package middleware contains HTTP middleware for the storefinder API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler
// and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuth guards the admin API with a single bearer token whose bcrypt
// hash is configured at startup.
type AdminAuth struct {
	tokenHash []byte
	limiter   *RateLimiter
	logger    *slog.Logger
}

// NewAdminAuth creates the admin guard. An empty hash disables the check,
// which config only permits in development. Failed attempts are counted per
// client IP in limiter; a nil limiter disables the lockout.
func NewAdminAuth(tokenHash string, limiter *RateLimiter, logger *slog.Logger) *AdminAuth {
	if tokenHash == "" {
		logger.Warn("admin API is unauthenticated, set ADMIN_TOKEN_HASH")
	}
	return &AdminAuth{
		tokenHash: []byte(tokenHash),
		limiter:   limiter,
		logger:    logger,
	}
}

// Require rejects requests without a valid "Authorization: Bearer" token.
//
// Flow:
//
//	Request -> Require -> Handler
//	           |
//	           +-> locked out: 429
//	           +-> missing or wrong token: count failure, 401
//	           +-> valid token: reset failures, call next handler
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.tokenHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := getClientIP(r)
		if a.limiter != nil && a.limiter.Blocked(clientIP) {
			a.logger.Warn("admin auth locked out", "ip", clientIP, "path", r.URL.Path)
			tooManyRequests(w, r, a.logger, a.limiter.TimeUntilReset(clientIP))
			return
		}

		token, ok := bearerToken(r)
		if !ok || bcrypt.CompareHashAndPassword(a.tokenHash, []byte(token)) != nil {
			if a.limiter != nil {
				a.limiter.RecordFailure(clientIP)
			}
			a.logger.Info("admin auth failed", "ip", clientIP, "path", r.URL.Path, "token_present", ok)
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			handler.UnauthorizedResponse(w, r, a.logger)
			return
		}

		if a.limiter != nil {
			a.limiter.Reset(clientIP)
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HashToken returns the bcrypt hash to configure as ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", domain.Invalid("middleware.HashToken", "Token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", domain.Internal(err, "middleware.HashToken", "failed to hash token")
	}
	return string(hash), nil
}

// Stack composes multiple middleware into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	admin := Stack(cors.Handler, adminAuth.Require)
//	mux.Handle("GET /api/locations", admin(listHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&AdminAuth{}).Require
	_ func(http.Handler) http.Handler = (&RateLimitMiddleware{}).Limit
)
