package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/taskmaster/tracker/internal/client"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

// HeaderOfflineCache is set to "hit" on GET responses served from the
// offline cache
const HeaderOfflineCache = "X-Offline-Cache"

const offlineMessage = "You are offline. The change was saved and will be sent when the connection returns."

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// Interceptor is an http.RoundTripper placed under the client. GET requests
// to the API go to the network first and fall back to the last good response.
// Writes that fail, or that the server rejects, are queued for replay. Auth
// endpoints are passed through untouched.
type Interceptor struct {
	next   http.RoundTripper
	queue  *Queue
	logger *logger.Logger

	mu    sync.RWMutex
	cache map[string]cachedResponse
}

// NewInterceptor wraps next. A nil next means http.DefaultTransport.
func NewInterceptor(next http.RoundTripper, queue *Queue, log *logger.Logger) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Interceptor{
		next:   next,
		queue:  queue,
		logger: log.WithComponent("offline"),
		cache:  make(map[string]cachedResponse),
	}
}

// RoundTrip implements http.RoundTripper
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	// credentials are never written to the queue
	if !strings.HasPrefix(req.URL.Path, "/api/") || strings.HasPrefix(req.URL.Path, "/api/auth/") {
		return i.next.RoundTrip(req)
	}
	if req.Method == http.MethodGet {
		return i.get(req)
	}
	return i.write(req)
}

func (i *Interceptor) get(req *http.Request) (*http.Response, error) {
	key := req.URL.String()

	resp, err := i.next.RoundTrip(req)
	if err != nil {
		i.mu.RLock()
		cached, ok := i.cache[key]
		i.mu.RUnlock()
		if !ok {
			return nil, err
		}
		i.logger.Debugw("Serving cached response", "url", key, "error", err)
		header := cached.header.Clone()
		header.Set(HeaderOfflineCache, "hit")
		return newResponse(req, cached.status, header, cached.body), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	i.cache[key] = cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}
	i.mu.Unlock()

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (i *Interceptor) write(req *http.Request) (*http.Response, error) {
	// the body is needed again if the request has to be queued
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))

	resp, err := i.next.RoundTrip(out)
	if err != nil {
		if _, qerr := i.queue.enqueue(context.WithoutCancel(req.Context()), req, body); qerr != nil {
			return nil, fmt.Errorf("%w (queueing failed: %v)", err, qerr)
		}
		return offlineResponse(req), nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}

	if _, qerr := i.queue.enqueue(context.WithoutCancel(req.Context()), req, body); qerr != nil {
		i.logger.Warnw("Failed to queue rejected request", "method", req.Method, "url", req.URL.String(), "error", qerr)
		return resp, nil
	}
	resp.Header.Set(client.HeaderOfflineQueued, client.QueuedRejected)
	return resp, nil
}

func offlineResponse(req *http.Request) *http.Response {
	body, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"offline": true,
		"message": offlineMessage,
	})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set(client.HeaderOfflineQueued, client.QueuedOffline)
	return newResponse(req, http.StatusServiceUnavailable, header, body)
}

func newResponse(req *http.Request, status int, header http.Header, body []byte) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
