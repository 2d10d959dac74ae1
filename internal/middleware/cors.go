package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// CORS opens the public widget endpoints to any origin. The widget runs on
// third-party pages and only ever reads, so no credentials are allowed.
type CORS struct {
	maxAge time.Duration
}

// NewCORS creates the CORS middleware. maxAge controls how long browsers
// may cache a preflight answer.
func NewCORS(maxAge time.Duration) *CORS {
	return &CORS{maxAge: maxAge}
}

// Handler sets the CORS headers and answers preflight requests itself.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Accept, Accept-Language, Content-Type")
			if c.maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(int(c.maxAge.Seconds())))
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
