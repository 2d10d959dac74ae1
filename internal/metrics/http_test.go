package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByMatchedPattern(t *testing.T) {
	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/locations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		seen = routeLabel(r)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/locations/7f0c2a52-43a4-4d8e-9a0e-5d2b1c3e4f60", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "/api/locations/{id}", seen)
}

func TestRouteLabel(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/wp-login.php", nil)
	assert.Equal(t, "unmatched", routeLabel(r))

	r.Pattern = "/files/"
	assert.Equal(t, "/files/", routeLabel(r))

	r.Pattern = "PUT /api/import/sessions/{id}/mappings"
	assert.Equal(t, "/api/import/sessions/{id}/mappings", routeLabel(r))
}

func TestStatusRecorder_KeepsFirstStatus(t *testing.T) {
	rw := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusNotFound, rw.status)
}
