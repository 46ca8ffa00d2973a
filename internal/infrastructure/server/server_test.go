package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := config.Default()
	cfg.JWT.Secret = "test-secret"

	srv, err := New(cfg, NewMemoryBackend(), logger.NewNop())
	require.NoError(t, err)
	return &testAPI{t: t, handler: srv.Handler()}
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (a *testAPI) register(email string) string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret1",
	})
	require.Equal(a.t, http.StatusCreated, code, body)
	return body["token"].(string)
}

func (a *testAPI) createTask(token string, fields map[string]interface{}) string {
	a.t.Helper()
	code, body := a.do(http.MethodPost, "/api/tasks", token, fields)
	require.Equal(a.t, http.StatusCreated, code, body)
	return body["task"].(map[string]interface{})["id"].(string)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["storage"])

	code, body = api.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body["status"])
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(config.Default(), NewMemoryBackend(), logger.NewNop())
	assert.Error(t, err)
}

func TestRegisterLoginProfile(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "Jane@Example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["refreshToken"])
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "jane@example.com", user["email"])
	assert.Equal(t, "jane", user["name"])
	assert.NotContains(t, user, "passwordHash")

	code, body = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "jane@example.com",
		"password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "User already exists with this email", body["message"])

	code, body = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid email or password", body["message"])

	code, body = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "JANE@example.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, code)
	token := body["token"].(string)

	code, body = api.do(http.MethodGet, "/api/auth/profile", token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "jane@example.com", body["user"].(map[string]interface{})["email"])
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": "123",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "password must be at least 6 characters long", body["message"])

	code, _ = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegisterRejectsLongPassword(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": strings.Repeat("p", 80),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "password cannot exceed 72 characters", body["message"])

	// under 72 characters but over 72 bytes
	code, body = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": strings.Repeat("€", 30),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Password cannot exceed 72 bytes", body["message"])
}

func TestRefreshAndLogout(t *testing.T) {
	api := newTestAPI(t)

	_, body := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "a@x.com",
		"password": "secret1",
	})
	refresh := body["refreshToken"].(string)

	code, body := api.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, code)
	rotated := body["refreshToken"].(string)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["user"])

	code, _ = api.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodPost, "/api/auth/logout", "", map[string]string{"refreshToken": rotated})
	assert.Equal(t, http.StatusOK, code)

	code, body = api.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": rotated})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestTasksRequireToken(t *testing.T) {
	api := newTestAPI(t)

	code, body := api.do(http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Access token required", body["message"])

	code, body = api.do(http.MethodGet, "/api/tasks", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid or expired token", body["message"])
}

func TestTaskLifecycle(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("a@x.com")

	code, body := api.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{
		"title":    "Write proposal",
		"priority": "high",
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Task created successfully", body["message"])
	task := body["task"].(map[string]interface{})
	id := task["id"].(string)
	assert.Equal(t, "pending", task["status"])
	assert.Equal(t, "high", task["priority"])

	code, body = api.do(http.MethodPatch, "/api/tasks/"+id+"/progress", token, map[string]interface{}{
		"progress": 40,
		"note":     "started",
	})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 40, body["task"].(map[string]interface{})["progress"])

	code, _ = api.do(http.MethodPost, "/api/tasks/"+id+"/time", token, map[string]interface{}{"hours": 1})
	require.Equal(t, http.StatusOK, code)
	code, body = api.do(http.MethodPost, "/api/tasks/"+id+"/time", token, map[string]interface{}{"hours": 2})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["task"].(map[string]interface{})["totalTimeSpent"])

	code, body = api.do(http.MethodPost, "/api/tasks/"+id+"/daily-update", token, map[string]interface{}{
		"workedOn":        true,
		"accomplishments": []string{"outline"},
	})
	require.Equal(t, http.StatusOK, code)
	updates := body["task"].(map[string]interface{})["dailyUpdates"].([]interface{})
	require.Len(t, updates, 1)
	assert.Equal(t, "neutral", updates[0].(map[string]interface{})["mood"])

	code, body = api.do(http.MethodGet, "/api/tasks/"+id+"/progress", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["progressHistory"], 1)

	code, body = api.do(http.MethodGet, "/api/tasks/stats", token, nil)
	require.Equal(t, http.StatusOK, code)
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 40, stats["averageProgress"])
	assert.EqualValues(t, 0, stats["overdue"])

	code, body = api.do(http.MethodGet, "/api/tasks/analytics?taskId="+id, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["analytics"].(map[string]interface{})["totalTasks"])

	code, body = api.do(http.MethodPut, "/api/tasks/"+id, token, map[string]interface{}{"status": "completed"})
	require.Equal(t, http.StatusOK, code)
	task = body["task"].(map[string]interface{})
	assert.EqualValues(t, 100, task["progress"])
	assert.NotEmpty(t, task["completedAt"])
	assert.Equal(t, "Write proposal", task["title"])

	code, body = api.do(http.MethodDelete, "/api/tasks/"+id, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Task deleted successfully", body["message"])

	code, body = api.do(http.MethodGet, "/api/tasks/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Task not found", body["message"])
}

func TestTaskValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("a@x.com")
	id := api.createTask(token, map[string]interface{}{"title": "t"})

	code, body := api.do(http.MethodPost, "/api/tasks", token, map[string]interface{}{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "title is required", body["message"])

	code, _ = api.do(http.MethodPatch, "/api/tasks/"+id+"/progress", token, map[string]interface{}{"progress": 150})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/tasks/"+id+"/time", token, map[string]interface{}{"hours": 25})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/tasks/"+id+"/time", token, map[string]interface{}{"hours": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(http.MethodGet, "/api/tasks?limit=zero", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid limit parameter", body["message"])

	code, _ = api.do(http.MethodGet, "/api/tasks/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestForeignTaskIsNotFound(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register("alice@x.com")
	bob := api.register("bob@x.com")
	id := api.createTask(alice, map[string]interface{}{"title": "Alice's"})

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, "/api/tasks/" + id, nil},
		{http.MethodPatch, "/api/tasks/" + id, map[string]interface{}{"title": "Bob's"}},
		{http.MethodPatch, "/api/tasks/" + id + "/progress", map[string]interface{}{"progress": 10}},
		{http.MethodDelete, "/api/tasks/" + id, nil},
		{http.MethodGet, "/api/tasks/" + uuid.NewString(), nil},
	} {
		code, body := api.do(tc.method, tc.path, bob, tc.body)
		assert.Equal(t, http.StatusNotFound, code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Task not found", body["message"])
	}

	code, body := api.do(http.MethodGet, "/api/tasks", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["total"])
}

func TestListTasksQuery(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("a@x.com")

	api.createTask(token, map[string]interface{}{"title": "Buy milk", "status": "pending"})
	api.createTask(token, map[string]interface{}{"title": "Ship release", "status": "completed", "priority": "high"})
	api.createTask(token, map[string]interface{}{"title": "Review", "description": "the MILK budget", "status": "in-progress"})

	code, body := api.do(http.MethodGet, "/api/tasks?status=pending,completed", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["total"])

	_, body = api.do(http.MethodGet, "/api/tasks?search=milk", token, nil)
	assert.EqualValues(t, 2, body["total"])

	_, body = api.do(http.MethodGet, "/api/tasks?priority=high", token, nil)
	assert.EqualValues(t, 1, body["total"])

	_, body = api.do(http.MethodGet, "/api/tasks?sortBy=title&sortOrder=asc&limit=2", token, nil)
	assert.EqualValues(t, 3, body["total"])
	tasks := body["tasks"].([]interface{})
	require.Len(t, tasks, 2)
	assert.Equal(t, "Buy milk", tasks[0].(map[string]interface{})["title"])
	assert.Equal(t, "Review", tasks[1].(map[string]interface{})["title"])
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("a@x.com")
	api.createTask(token, map[string]interface{}{"title": "counted"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), `tracker_task_events_total{event="task.created",result="ok"} 1`)
}
