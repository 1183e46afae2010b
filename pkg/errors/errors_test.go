package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("track x: %w", ErrNotFound), http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"timeout", fmt.Errorf("search: %w", ErrTimeout), http.StatusGatewayTimeout},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"corpus", ErrMalformedCorpus, http.StatusInternalServerError},
		{"app error wins", New(ErrNotFound, http.StatusTeapot, "odd"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrMalformedWeights, http.StatusInternalServerError, "line %d", 7)
	assert.True(t, Is(err, ErrMalformedWeights))
	assert.Equal(t, "malformed weight table: line 7", err.Error())

	var appErr *AppError
	assert.True(t, As(fmt.Errorf("wrapped: %w", err), &appErr))
	assert.Equal(t, "line 7", appErr.Message)
}
