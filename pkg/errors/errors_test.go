package errors

import (
	"context"
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
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"wrapped invalid input", fmt.Errorf("parsing letters: %w", ErrInvalidInput), http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"deadline", fmt.Errorf("scan: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"cancelled", context.Canceled, http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "letters must have %d unique characters", 7)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: letters must have 7 unique characters", err.Error())
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "prefix too long", PublicMessage(New(ErrInvalidInput, http.StatusBadRequest, "prefix too long")))
	assert.Equal(t, "letters: invalid input", PublicMessage(fmt.Errorf("letters: %w", ErrInvalidInput)))
	assert.Equal(t, "Internal Server Error", PublicMessage(fmt.Errorf("dial tcp 10.0.0.1:6379: refused")))
	assert.Equal(t, "Gateway Timeout", PublicMessage(context.DeadlineExceeded))
}
