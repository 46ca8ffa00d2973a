package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TaskHandler handles task-related requests. Every route runs behind the
// auth middleware and is scoped to the authenticated user.
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// ListTasks handles listing the user's tasks
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param status query string false "Comma separated statuses"
// @Param priority query string false "Priority"
// @Param search query string false "Substring of title or description"
// @Param sortBy query string false "Field to sort by" default(createdAt)
// @Param sortOrder query string false "asc or desc" default(desc)
// @Param limit query int false "Maximum number of tasks"
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}

	filter, err := parseTaskFilter(c)
	if err != nil {
		return err
	}

	tasks, total, err := h.taskService.List(c.Request().Context(), user.ID, filter)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Tasks retrieved successfully", echo.Map{
		"tasks": tasks,
		"total": total,
	})
}

func parseTaskFilter(c echo.Context) (ports.TaskFilter, error) {
	filter := ports.TaskFilter{
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}

	for _, raw := range strings.Split(c.QueryParam("status"), ",") {
		if status := strings.TrimSpace(raw); status != "" {
			filter.Statuses = append(filter.Statuses, entities.TaskStatus(status))
		}
	}

	if raw := strings.TrimSpace(c.QueryParam("priority")); raw != "" {
		priority := entities.Priority(raw)
		filter.Priority = &priority
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, entities.NewValidationError("limit", "Invalid limit parameter")
		}
		filter.Limit = limit
	}

	return filter, nil
}

// GetStats handles the per-user statistics summary
// @Summary Task statistics
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Router /tasks/stats [get]
func (h *TaskHandler) GetStats(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}

	stats, err := h.taskService.GetStats(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Statistics retrieved successfully", echo.Map{"stats": stats})
}

// GetAnalytics handles the progress analytics rollup
// @Summary Progress analytics
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param taskId query string false "Limit the rollup to one task"
// @Router /tasks/analytics [get]
func (h *TaskHandler) GetAnalytics(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}

	var taskID *uuid.UUID
	if raw := c.QueryParam("taskId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return entities.ErrTaskNotFound
		}
		taskID = &id
	}

	result, err := h.taskService.GetProgressAnalytics(c.Request().Context(), user.ID, taskID)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Analytics retrieved successfully", echo.Map{"analytics": result})
}

// CreateTask handles task creation
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ports.CreateTaskRequest true "Task"
// @Failure 400 {object} ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}

	var req ports.CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.Create(c.Request().Context(), user.ID, req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "Task created successfully", echo.Map{"task": task})
}

// GetTask handles fetching one task
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.Get(c.Request().Context(), id, user.ID)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Task retrieved successfully", echo.Map{"task": task})
}

// UpdateTask handles PUT and PATCH; both apply only the fields present
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body ports.UpdateTaskRequest true "Fields to change"
// @Router /tasks/{id} [put]
// @Router /tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.Update(c.Request().Context(), id, user.ID, req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Task updated successfully", echo.Map{"task": task})
}

// DeleteTask handles task removal
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	if _, err := h.taskService.Delete(c.Request().Context(), id, user.ID); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Task deleted successfully", nil)
}

// UpdateProgress handles a progress report for today
// @Summary Update progress
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body ports.ProgressUpdateRequest true "Progress"
// @Router /tasks/{id}/progress [patch]
func (h *TaskHandler) UpdateProgress(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ports.ProgressUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.AddProgressUpdate(c.Request().Context(), id, user.ID, req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Progress updated successfully", echo.Map{"task": task})
}

// GetProgressHistory returns the task's progress history
// @Summary Progress history
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Router /tasks/{id}/progress [get]
func (h *TaskHandler) GetProgressHistory(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.Get(c.Request().Context(), id, user.ID)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Progress history retrieved successfully", echo.Map{
		"progress":        task.Progress,
		"progressHistory": task.ProgressHistory,
	})
}

// AddTimeEntry handles logging hours for today
// @Summary Log time
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body ports.TimeEntryRequest true "Hours"
// @Router /tasks/{id}/time [post]
func (h *TaskHandler) AddTimeEntry(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ports.TimeEntryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.AddTimeEntry(c.Request().Context(), id, user.ID, req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Time entry added successfully", echo.Map{"task": task})
}

// AddDailyUpdate handles today's daily update
// @Summary Daily update
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body ports.DailyUpdateRequest true "Daily update"
// @Router /tasks/{id}/daily-update [post]
func (h *TaskHandler) AddDailyUpdate(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := taskIDParam(c)
	if err != nil {
		return err
	}

	var req ports.DailyUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.AddDailyUpdate(c.Request().Context(), id, user.ID, req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Daily update added successfully", echo.Map{"task": task})
}
