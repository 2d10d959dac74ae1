package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_FindsWrappedError(t *testing.T) {
	err := fmt.Errorf("commit import: %w", Conflict("ImportService.Import", "An import is already in progress"))

	assert.Equal(t, ECONFLICT, ErrorCode(err))
	assert.Equal(t, "An import is already in progress", ErrorMessage(err))
	assert.Equal(t, "ImportService.Import", ErrorOp(err))
}

func TestErrorCode_PlainErrorIsInternal(t *testing.T) {
	err := errors.New("connection reset by peer")

	assert.Equal(t, EINTERNAL, ErrorCode(err))
	assert.Equal(t, "An internal error occurred. Please try again later.", ErrorMessage(err))
	assert.Empty(t, ErrorOp(err))
	assert.Empty(t, ErrorCode(nil))
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause, "ImageService.Upload", "failed to store image")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "An internal error occurred. Please try again later.", ErrorMessage(err))
}

func TestAddFieldError_KeepsFirstOrder(t *testing.T) {
	ve := NewValidationError("op", "name", "Name is required")
	AddFieldError(ve, "city", "City is required")
	AddFieldError(ve, "name", "Name must be 200 characters or less")

	assert.Equal(t, []string{"name", "city"}, ve.Order)
	assert.Equal(t, "Name must be 200 characters or less", ve.First())
	assert.Equal(t, EINVALID, ErrorCode(ve))
}
