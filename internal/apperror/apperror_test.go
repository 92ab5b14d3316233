package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindPersistence, "insert failed")
	wrapped := fmt.Errorf("create recipe: %w", err)

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestRetriable(t *testing.T) {
	assert.True(t, Retriable(New(KindNetwork, "timeout")))
	assert.True(t, Retriable(RateLimit("slow down", 2*time.Second)))
	assert.False(t, Retriable(New(KindAuthentication, "bad key")))
	assert.False(t, Retriable(New(KindResponseFormat, "schema mismatch")))
	assert.False(t, Retriable(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindAuthentication: http.StatusUnauthorized,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindRateLimit:      http.StatusTooManyRequests,
		KindPersistence:    http.StatusInternalServerError,
		KindProvider:       http.StatusBadGateway,
	}
	for kind, want := range cases {
		assert.Equal(t, want, New(kind, "x").HTTPStatus(), string(kind))
	}
}

func TestRateLimitCarriesRetryAfter(t *testing.T) {
	err := RateLimit("throttled", 7*time.Second)
	ae, ok := As(fmt.Errorf("enrichment: %w", err))
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, ae.RetryAfter)
	assert.Equal(t, "rate_limited", ae.Code())
}

func TestValidationDetails(t *testing.T) {
	err := Validation(map[string]string{"title": "must not be empty"})
	assert.Equal(t, "bad_request", err.Code())
	assert.Equal(t, "must not be empty", err.Details["title"])
}
