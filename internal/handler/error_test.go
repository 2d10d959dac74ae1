package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) JSONError {
	t.Helper()
	var body JSONError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestErrorResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"invalid", domain.Invalid("op", "No rows to import"), http.StatusBadRequest, domain.EINVALID, "No rows to import"},
		{"validation reports first violation", func() error {
			ve := domain.NewValidationError("LocationService.Create", "name", "Name is required")
			domain.AddFieldError(ve, "phone", "Phone is required")
			return ve
		}(), http.StatusBadRequest, domain.EINVALID, "Name is required"},
		{"unauthorized", domain.Unauthorized("op", "Authentication required"), http.StatusUnauthorized, domain.EUNAUTHORIZED, "Authentication required"},
		{"not found", domain.NotFound("op", "location", "x"), http.StatusNotFound, domain.ENOTFOUND, ""},
		{"conflict", domain.Conflict("op", "An import is already in progress"), http.StatusConflict, domain.ECONFLICT, "An import is already in progress"},
		{"too large", domain.TooLarge("op", "File is too large"), http.StatusRequestEntityTooLarge, domain.ETOOLARGE, "File is too large"},
		{"rate limit", domain.RateLimit("op"), http.StatusTooManyRequests, domain.ERATELIMIT, ""},
		{"store passes message through", domain.Store(errors.New(`duplicate key value violates unique constraint "service_types_name_key"`), "op"), http.StatusInternalServerError, domain.ESTORE, `duplicate key value violates unique constraint "service_types_name_key"`},
		{"upstream", domain.Unavailable(errors.New("dial tcp"), "op", "Routing service is unavailable"), http.StatusBadGateway, domain.EUNAVAILABLE, "Routing service is unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/api/locations", nil), testLogger(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Error.Message)
			}
		})
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	for _, err := range []error{
		errors.New("pq: password authentication failed for user admin"),
		domain.Internal(errors.New("open /etc/secret: permission denied"), "ImageService.Upload", "failed to store image"),
	} {
		rec := httptest.NewRecorder()
		ErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/api/locations", nil), testLogger(), err)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.NotContains(t, rec.Body.String(), "/etc/secret")
		assert.NotContains(t, rec.Body.String(), "ImageService")
		assert.Equal(t, "An internal error occurred. Please try again later.", decodeError(t, rec).Error.Message)
	}
}

func TestErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	ve := domain.NewValidationError("ServiceTypeService.Create", "name", "Name is required")
	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest(http.MethodPost, "/api/service-types", nil), testLogger(), ve)

	assert.NotContains(t, rec.Body.String(), "ServiceTypeService")
}
