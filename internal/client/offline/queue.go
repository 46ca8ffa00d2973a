package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

// SyncResult reports one replay pass over the queue
type SyncResult struct {
	Replayed  int `json:"replayed" yaml:"replayed"`
	Failed    int `json:"failed" yaml:"failed"`
	Remaining int `json:"remaining" yaml:"remaining"`
}

// Queue stores failed writes and replays them in the order they were made
type Queue struct {
	store     Store
	transport http.RoundTripper
	logger    *logger.Logger
	now       func() time.Time

	// one replay pass at a time
	syncMu sync.Mutex
}

// NewQueue creates a queue replaying through transport. A nil transport
// means http.DefaultTransport.
func NewQueue(store Store, transport http.RoundTripper, log *logger.Logger) *Queue {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Queue{
		store:     store,
		transport: transport,
		logger:    log.WithComponent("offline-queue"),
		now:       time.Now,
	}
}

// Enqueue stores a request for later replay. The request body is consumed.
func (q *Queue) Enqueue(ctx context.Context, req *http.Request) (Entry, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return Entry{}, fmt.Errorf("read request body: %w", err)
		}
	}
	return q.enqueue(ctx, req, body)
}

func (q *Queue) enqueue(ctx context.Context, req *http.Request, body []byte) (Entry, error) {
	entry, err := q.store.Append(ctx, Entry{
		Method:    req.Method,
		URL:       req.URL.String(),
		Header:    req.Header.Clone(),
		Body:      body,
		CreatedAt: q.now(),
	})
	if err != nil {
		return Entry{}, err
	}

	q.logger.Infow("Request queued for replay", "id", entry.ID, "method", entry.Method, "url", entry.URL)
	return entry, nil
}

// Pending lists queued entries, oldest first
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	return q.store.List(ctx)
}

// Sync replays every queued entry once, oldest first. Successful entries are
// removed. A failed entry stays queued with its attempt count raised and does
// not stop later entries from being tried.
func (q *Queue) Sync(ctx context.Context) (SyncResult, error) {
	q.syncMu.Lock()
	defer q.syncMu.Unlock()

	entries, err := q.store.List(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list queue: %w", err)
	}

	var result SyncResult
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			result.Remaining = len(entries) - result.Replayed
			return result, err
		}

		if replayErr := q.replay(ctx, entry); replayErr != nil {
			entry.Attempts++
			entry.LastError = replayErr.Error()
			if err := q.store.Update(ctx, entry); err != nil {
				return result, fmt.Errorf("update queue entry %d: %w", entry.ID, err)
			}
			result.Failed++
			q.logger.Warnw("Replay failed", "id", entry.ID, "method", entry.Method, "url", entry.URL,
				"attempts", entry.Attempts, "error", replayErr)
			continue
		}

		if err := q.store.Delete(ctx, entry.ID); err != nil {
			return result, fmt.Errorf("delete queue entry %d: %w", entry.ID, err)
		}
		result.Replayed++
		q.logger.Infow("Replayed queued request", "id", entry.ID, "method", entry.Method, "url", entry.URL)
	}

	result.Remaining = len(entries) - result.Replayed
	return result, nil
}

func (q *Queue) replay(ctx context.Context, entry Entry) error {
	req, err := http.NewRequestWithContext(ctx, entry.Method, entry.URL, bytes.NewReader(entry.Body))
	if err != nil {
		return err
	}
	req.Header = entry.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}

	resp, err := q.transport.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server responded %s", resp.Status)
	}
	return nil
}
