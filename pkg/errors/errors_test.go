package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("db connection lost")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withInner.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "item not found"}
	assert.Equal(t, "NOT_FOUND: item not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestNotFound(t *testing.T) {
	err := NotFound("catalog item", int64(42))
	assert.Equal(t, "catalog item with id 42 not found", err.Message)
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestServiceUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ServiceUnavailable("postgres", cause)
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
	assert.True(t, errors.Is(err, ErrServiceUnavail))
	assert.True(t, errors.Is(err, cause))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", InvalidInput("bad"), http.StatusBadRequest},
		{"wrapped sentinel", fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"already exists", ErrAlreadyExists, http.StatusConflict},
		{"wrapped app error", Wrap(InvalidInput("x"), "decode"), http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "INVALID_INPUT", Code(InvalidInput("bad")))
	assert.Equal(t, "NOT_FOUND", Code(fmt.Errorf("x: %w", ErrNotFound)))
	assert.Equal(t, "INTERNAL_ERROR", Code(errors.New("boom")))
	assert.Equal(t, "INTERNAL_ERROR", Code(Internal(errors.New("boom"))))
}
