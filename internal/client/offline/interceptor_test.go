package offline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/client"
)

func newInterceptorFixture() (*Interceptor, *Queue, *fakeTransport) {
	transport := &fakeTransport{respond: respondStatus(http.StatusOK, `{"success":true}`)}
	queue := NewQueue(NewMemoryStore(), transport, nil)
	return NewInterceptor(transport, queue, nil), queue, transport
}

func roundTrip(t *testing.T, rt http.RoundTripper, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, "http://localhost:5000"+path, reader)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func pendingCount(t *testing.T, q *Queue) int {
	t.Helper()
	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	return len(pending)
}

func TestInterceptorQueuesWhenUnreachable(t *testing.T) {
	interceptor, queue, transport := newInterceptorFixture()
	transport.setRespond(respondError(errConnRefused))

	resp := roundTrip(t, interceptor, http.MethodPost, "/api/tasks", `{"title":"offline"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, client.QueuedOffline, resp.Header.Get(client.HeaderOfflineQueued))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, true, body["offline"])

	pending, err := queue.Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, `{"title":"offline"}`, string(pending[0].Body))
}

func TestInterceptorQueuesRejectedWrites(t *testing.T) {
	interceptor, queue, transport := newInterceptorFixture()
	transport.setRespond(respondStatus(http.StatusInternalServerError, `{"success":false,"message":"Internal server error"}`))

	resp := roundTrip(t, interceptor, http.MethodPatch, "/api/tasks/1", `{"title":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, client.QueuedRejected, resp.Header.Get(client.HeaderOfflineQueued))
	assert.Contains(t, readBody(t, resp), "Internal server error")
	assert.Equal(t, 1, pendingCount(t, queue))
}

func TestInterceptorPassesSuccessfulWrites(t *testing.T) {
	interceptor, queue, transport := newInterceptorFixture()

	resp := roundTrip(t, interceptor, http.MethodPost, "/api/tasks", `{"title":"online"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(client.HeaderOfflineQueued))
	assert.Equal(t, `{"title":"online"}`, transport.bodies[0])
	assert.Equal(t, 0, pendingCount(t, queue))
}

func TestInterceptorNeverQueuesAuth(t *testing.T) {
	interceptor, queue, transport := newInterceptorFixture()
	transport.setRespond(respondError(errConnRefused))

	req, err := http.NewRequest(http.MethodPost, "http://localhost:5000/api/auth/login", strings.NewReader(`{"password":"secret1"}`))
	require.NoError(t, err)
	_, err = interceptor.RoundTrip(req)
	assert.ErrorIs(t, err, errConnRefused)
	assert.Equal(t, 0, pendingCount(t, queue))
}

func TestInterceptorServesCachedGets(t *testing.T) {
	interceptor, _, transport := newInterceptorFixture()
	transport.setRespond(respondStatus(http.StatusOK, `{"success":true,"total":1}`))

	resp := roundTrip(t, interceptor, http.MethodGet, "/api/tasks?limit=5", "")
	assert.Equal(t, `{"success":true,"total":1}`, readBody(t, resp))
	assert.Empty(t, resp.Header.Get(HeaderOfflineCache))

	transport.setRespond(respondError(errConnRefused))
	resp = roundTrip(t, interceptor, http.MethodGet, "/api/tasks?limit=5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get(HeaderOfflineCache))
	assert.Equal(t, `{"success":true,"total":1}`, readBody(t, resp))

	req, err := http.NewRequest(http.MethodGet, "http://localhost:5000/api/tasks/stats", nil)
	require.NoError(t, err)
	_, err = interceptor.RoundTrip(req)
	assert.ErrorIs(t, err, errConnRefused, "nothing cached for this url")
}

func TestClientOverInterceptor(t *testing.T) {
	interceptor, queue, transport := newInterceptorFixture()
	transport.setRespond(respondError(errConnRefused))

	c := client.New(client.Options{
		BaseURL:   "http://localhost:5000",
		Transport: interceptor,
		Retry:     client.RetryPolicy{Attempts: 3},
	})
	_, err := c.UpdateProgress(context.Background(), "4b5c1a7e-0000-4000-8000-000000000001", 30, "")

	require.Error(t, err)
	assert.Equal(t, client.KindOffline, err.(*client.APIError).Kind)
	assert.Len(t, transport.seen(), 1, "queued writes are not retried")
	assert.Equal(t, 1, pendingCount(t, queue))
}
