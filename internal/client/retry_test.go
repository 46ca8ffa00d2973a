package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearBackoff(t *testing.T) {
	assert.Equal(t, time.Second, linearBackoff(time.Second, 0, 0, nil))
	assert.Equal(t, 2*time.Second, linearBackoff(time.Second, 0, 1, nil))
	assert.Equal(t, time.Duration(0), linearBackoff(0, 0, 1, nil))
}

func TestCheckRetry(t *testing.T) {
	ctx := context.Background()
	respond := func(status int, header ...string) *http.Response {
		resp := &http.Response{StatusCode: status, Header: http.Header{}}
		if len(header) == 1 {
			resp.Header.Set(HeaderOfflineQueued, header[0])
		}
		return resp
	}

	tests := []struct {
		name  string
		resp  *http.Response
		retry bool
	}{
		{"server error", respond(http.StatusInternalServerError), true},
		{"bad gateway", respond(http.StatusBadGateway), true},
		{"request timeout", respond(http.StatusRequestTimeout), false},
		{"too many requests", respond(http.StatusTooManyRequests), false},
		{"bad request", respond(http.StatusBadRequest), false},
		{"success", respond(http.StatusOK), false},
		{"queued", respond(http.StatusServiceUnavailable, QueuedOffline), false},
		{"rejected", respond(http.StatusBadGateway, QueuedRejected), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, err := checkRetry(ctx, tt.resp, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.retry, retry)
		})
	}

	retry, err := checkRetry(ctx, nil, errors.New("connection refused"))
	require.NoError(t, err)
	assert.True(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = checkRetry(cancelled, respond(http.StatusInternalServerError), nil)
	assert.False(t, retry)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClientAttempts(t *testing.T) {
	c := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}.httpClient(&http.Client{}, nil)
	assert.Equal(t, 2, c.RetryMax)

	c = RetryPolicy{}.httpClient(&http.Client{}, nil)
	assert.Equal(t, 0, c.RetryMax)
}
