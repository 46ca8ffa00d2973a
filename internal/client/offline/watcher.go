package offline

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

// Watcher polls the server's health endpoint and replays the queue when the
// server becomes reachable after being unreachable.
type Watcher struct {
	healthURL string
	http      *http.Client
	queue     *Queue
	logger    *logger.Logger

	mu     sync.Mutex
	online bool
}

// NewWatcher creates a watcher. The health check uses transport directly so it is
// never intercepted. The initial state is offline.
func NewWatcher(baseURL string, transport http.RoundTripper, queue *Queue, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Watcher{
		healthURL: strings.TrimRight(baseURL, "/") + "/health",
		http:      &http.Client{Transport: transport, Timeout: 5 * time.Second},
		queue:     queue,
		logger:    log.WithComponent("watcher"),
	}
}

// Online reports the state seen by the last health check
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Check polls the server once. Coming back online triggers a replay pass.
func (w *Watcher) Check(ctx context.Context) bool {
	online := w.ping(ctx)

	w.mu.Lock()
	cameOnline := online && !w.online
	if w.online != online {
		w.logger.Infow("Connectivity changed", "online", online)
	}
	w.online = online
	w.mu.Unlock()

	if cameOnline && w.queue != nil {
		result, err := w.queue.Sync(ctx)
		if err != nil {
			w.logger.Warnw("Queue replay failed", "error", err)
		} else {
			w.logger.Infow("Queue replayed", "replayed", result.Replayed, "failed", result.Failed, "remaining", result.Remaining)
		}
	}
	return online
}

// Run polls every interval until ctx is done
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

func (w *Watcher) ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := w.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
