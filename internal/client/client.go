// Package client is the data layer used by the command line client. It wraps
// the REST API with a short-lived response cache and bounded retries.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/taskmaster/tracker/internal/domain/analytics"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// HeaderOfflineQueued marks a response produced after the request was put on
// the offline queue. Such responses are final and never retried. The value is
// QueuedOffline when no response arrived at all.
const (
	HeaderOfflineQueued = "X-Offline-Queued"
	QueuedOffline       = "offline"
	QueuedRejected      = "rejected"
)

// Options configures a Client
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Retry     RetryPolicy
	CacheTTL  time.Duration
	Logger    *logger.Logger
}

// Client talks to the tracker API
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	cache   *responseCache
	logger  *logger.Logger

	mu        sync.RWMutex
	token     string
	lastKnown []*entities.Task
}

// New creates a client. Zero options fall back to a 30 second timeout, three
// attempts with one second linear backoff and a five minute cache.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cache:   newResponseCache(opts.CacheTTL),
		logger:  opts.Logger.WithComponent("client"),
	}
	base := &http.Client{Timeout: opts.Timeout, Transport: opts.Transport}
	c.http = opts.Retry.httpClient(base, func(req *http.Request, attempt int) {
		c.logger.Warnw("Request failed, retrying", "method", req.Method, "path", req.URL.Path, "attempt", attempt)
	})
	return c
}

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// LastKnownTasks returns the task list from the most recent successful list
// call, for use when the server cannot be reached.
func (c *Client) LastKnownTasks() []*entities.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*entities.Task(nil), c.lastKnown...)
}

// RestoreLastKnownTasks seeds the fallback task list, typically from a saved session
func (c *Client) RestoreLastKnownTasks(tasks []*entities.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKnown = append([]*entities.Task(nil), tasks...)
}

// TaskList is the body of GET /tasks
type TaskList struct {
	Tasks []*entities.Task `json:"tasks"`
	Total int              `json:"total"`
}

// ListQuery holds the list endpoint's filters
type ListQuery struct {
	Status    []string
	Priority  string
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
}

// Values encodes the query. Encoding sorts keys so equal queries share a cache key.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	if len(q.Status) > 0 {
		v.Set("status", strings.Join(q.Status, ","))
	}
	if q.Priority != "" {
		v.Set("priority", q.Priority)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.SortBy != "" {
		v.Set("sortBy", q.SortBy)
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", q.SortOrder)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Register creates an account and keeps the returned token
func (c *Client) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	var out ports.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	c.cache.clear()
	return &out, nil
}

// Login signs in and keeps the returned token
func (c *Client) Login(ctx context.Context, email, password string) (*ports.AuthResponse, error) {
	var out ports.AuthResponse
	req := ports.LoginRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	c.cache.clear()
	return &out, nil
}

// Refresh exchanges a refresh token for a new pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*ports.AuthResponse, error) {
	var out ports.AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh", ports.RefreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout revokes refreshToken on the server and forgets the access token
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	err := c.call(ctx, http.MethodPost, "/api/auth/logout", ports.RefreshRequest{RefreshToken: refreshToken}, nil)
	c.SetToken("")
	c.cache.clear()
	return err
}

// Profile returns the signed-in user
func (c *Client) Profile(ctx context.Context) (*entities.User, error) {
	var out struct {
		User *entities.User `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/auth/profile", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

// ListTasks returns the filtered task list, served from cache while fresh
func (c *Client) ListTasks(ctx context.Context, q ListQuery) (*TaskList, error) {
	values := q.Values()
	key := "tasks?" + values.Encode()
	path := "/api/tasks"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var out TaskList
	hit, err := c.cachedGet(ctx, key, path, &out, func() []string {
		ids := make([]string, 0, len(out.Tasks))
		for _, task := range out.Tasks {
			ids = append(ids, task.ID.String())
		}
		return ids
	})
	if err != nil {
		return nil, err
	}

	if !hit && len(values) == 0 {
		c.mu.Lock()
		c.lastKnown = append([]*entities.Task(nil), out.Tasks...)
		c.mu.Unlock()
	}
	return &out, nil
}

// GetTask returns one task, served from cache while fresh
func (c *Client) GetTask(ctx context.Context, id string) (*entities.Task, error) {
	var out struct {
		Task *entities.Task `json:"task"`
	}
	if _, err := c.cachedGet(ctx, taskKey(id), "/api/tasks/"+url.PathEscape(id), &out, nil); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// CreateTask creates a task and clears the cache
func (c *Client) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	task, err := c.taskCall(ctx, http.MethodPost, "/api/tasks", req)
	c.invalidateAll(err)
	return task, err
}

// UpdateTask applies a partial update
func (c *Client) UpdateTask(ctx context.Context, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	task, err := c.taskCall(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), req)
	c.invalidateTask(id, err)
	return task, err
}

// DeleteTask removes a task and clears the cache
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	err := c.call(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
	c.invalidateAll(err)
	return err
}

// UpdateProgress records today's progress
func (c *Client) UpdateProgress(ctx context.Context, id string, progress int, note string) (*entities.Task, error) {
	req := ports.ProgressUpdateRequest{Progress: &progress, Note: note}
	task, err := c.taskCall(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id)+"/progress", req)
	c.invalidateTask(id, err)
	return task, err
}

// AddTimeEntry records today's hours
func (c *Client) AddTimeEntry(ctx context.Context, id string, hours float64, description string) (*entities.Task, error) {
	req := ports.TimeEntryRequest{Hours: &hours, Description: description}
	task, err := c.taskCall(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/time", req)
	c.invalidateTask(id, err)
	return task, err
}

// AddDailyUpdate records today's daily update
func (c *Client) AddDailyUpdate(ctx context.Context, id string, req ports.DailyUpdateRequest) (*entities.Task, error) {
	task, err := c.taskCall(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/daily-update", req)
	c.invalidateTask(id, err)
	return task, err
}

// Stats returns the signed-in user's statistics
func (c *Client) Stats(ctx context.Context) (*analytics.Stats, error) {
	var out struct {
		Stats *analytics.Stats `json:"stats"`
	}
	if _, err := c.cachedGet(ctx, statsKey, "/api/tasks/stats", &out, nil); err != nil {
		return nil, err
	}
	return out.Stats, nil
}

// Analytics returns the progress rollup, for one task when taskID is set
func (c *Client) Analytics(ctx context.Context, taskID string) (*analytics.ProgressAnalytics, error) {
	path := "/api/tasks/analytics"
	key := analyticsKeyPrefix
	if taskID != "" {
		path += "?taskId=" + url.QueryEscape(taskID)
		key += ":" + taskID
	}

	var out struct {
		Analytics *analytics.ProgressAnalytics `json:"analytics"`
	}
	if _, err := c.cachedGet(ctx, key, path, &out, nil); err != nil {
		return nil, err
	}
	return out.Analytics, nil
}

func (c *Client) taskCall(ctx context.Context, method, path string, body interface{}) (*entities.Task, error) {
	var out struct {
		Task *entities.Task `json:"task"`
	}
	if err := c.call(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return out.Task, nil
}

// invalidateAll clears the cache after a create or delete. A queued offline
// write counts as a change too.
func (c *Client) invalidateAll(err error) {
	if err == nil || isQueued(err) {
		c.cache.clear()
	}
}

func (c *Client) invalidateTask(id string, err error) {
	if err == nil || isQueued(err) {
		c.cache.invalidateTask(id)
	}
}

func isQueued(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Queued
}

// cachedGet serves key from cache or performs the GET and caches the body.
// ids extracts the task ids a list body mentions.
func (c *Client) cachedGet(ctx context.Context, key, path string, out interface{}, ids func() []string) (bool, error) {
	if body, ok := c.cache.get(key); ok {
		return true, json.Unmarshal(body, out)
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}

	var taskIDs []string
	if ids != nil {
		taskIDs = ids()
	}
	c.cache.set(key, body, taskIDs...)
	return false, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do performs one logical call with retries and returns the response body
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody interface{}
	if payload != nil {
		reqBody = payload
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var envelope struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &envelope)
	if envelope.Message == "" {
		envelope.Message = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: envelope.Message, Kind: kindForStatus(resp.StatusCode)}
	switch resp.Header.Get(HeaderOfflineQueued) {
	case QueuedOffline:
		apiErr.Kind = KindOffline
		apiErr.Queued = true
	case QueuedRejected:
		apiErr.Queued = true
	}
	return nil, apiErr
}
