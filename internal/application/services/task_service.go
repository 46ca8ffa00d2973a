package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmaster/tracker/internal/domain/analytics"
	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// TaskService handles task-related operations. Every call is scoped to the
// owner; tasks of other users behave as missing.
type TaskService struct {
	taskRepo ports.TaskRepository
	events   ports.EventPublisher
	logger   *logger.Logger
	now      func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, events ports.EventPublisher, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		events:   events,
		logger:   logger.WithComponent("tasks"),
		now:      time.Now,
	}
}

var _ ports.TaskService = (*TaskService)(nil)

// Create creates a new task with default status, priority and empty history
func (s *TaskService) Create(ctx context.Context, ownerID uuid.UUID, req ports.CreateTaskRequest) (*entities.Task, error) {
	patch := entities.TaskPatch{
		Description:    &req.Description,
		Progress:       req.Progress,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
	}
	if req.Status != "" {
		patch.Status = &req.Status
	}
	if req.Priority != "" {
		patch.Priority = &req.Priority
	}
	if req.DueDate != nil {
		due := req.DueDate.Time
		patch.DueDate = &due
	}

	now := s.now()
	task := entities.NewTask(ownerID, req.Title, now)
	if err := task.ApplyPatch(patch, now); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Infow("Task created", "task_id", task.ID, "owner_id", ownerID, "title", task.Title)
	s.publish(ctx, ports.EventTaskCreated, task)

	return task, nil
}

// List returns the owner's tasks after filtering, sorting and limiting. The
// count is taken before the limit is applied.
func (s *TaskService) List(ctx context.Context, ownerID uuid.UUID, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks = FilterTasks(tasks, filter)
	SortTasks(tasks, filter.SortBy, filter.SortOrder)
	total := len(tasks)

	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}

	return tasks, total, nil
}

// Get retrieves one of the owner's tasks
func (s *TaskService) Get(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error) {
	return s.taskRepo.GetForOwner(ctx, id, ownerID)
}

// Update applies a partial update. Only present fields change.
func (s *TaskService) Update(ctx context.Context, id, ownerID uuid.UUID, req ports.UpdateTaskRequest) (*entities.Task, error) {
	var wasCompleted bool
	task, err := s.taskRepo.UpdateFunc(ctx, id, ownerID, func(task *entities.Task) error {
		wasCompleted = task.CompletedAt != nil
		return task.ApplyPatch(req.Patch(), s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task updated", "task_id", id, "owner_id", ownerID)
	s.publishUpdate(ctx, task, wasCompleted)

	return task, nil
}

// Delete removes one of the owner's tasks
func (s *TaskService) Delete(ctx context.Context, id, ownerID uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.Delete(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Task deleted", "task_id", id, "owner_id", ownerID)
	s.publish(ctx, ports.EventTaskDeleted, task)

	return task, nil
}

// AddProgressUpdate sets the progress and records today's history entry
func (s *TaskService) AddProgressUpdate(ctx context.Context, id, ownerID uuid.UUID, req ports.ProgressUpdateRequest) (*entities.Task, error) {
	if req.Progress == nil {
		return nil, entities.NewValidationError("progress", "Progress is required")
	}

	var wasCompleted bool
	task, err := s.taskRepo.UpdateFunc(ctx, id, ownerID, func(task *entities.Task) error {
		wasCompleted = task.CompletedAt != nil
		return task.RecordProgress(*req.Progress, req.Note, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Progress updated", "task_id", id, "owner_id", ownerID, "progress", task.Progress)
	s.publishUpdate(ctx, task, wasCompleted)

	return task, nil
}

// AddTimeEntry records today's hours and recomputes the total time spent
func (s *TaskService) AddTimeEntry(ctx context.Context, id, ownerID uuid.UUID, req ports.TimeEntryRequest) (*entities.Task, error) {
	if req.Hours == nil {
		return nil, entities.NewValidationError("hours", "Hours is required")
	}

	task, err := s.taskRepo.UpdateFunc(ctx, id, ownerID, func(task *entities.Task) error {
		return task.LogTime(*req.Hours, req.Description, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Time logged", "task_id", id, "owner_id", ownerID, "hours", *req.Hours, "total", task.TotalTimeSpent)
	s.publish(ctx, ports.EventTaskUpdated, task)

	return task, nil
}

// AddDailyUpdate records today's daily update
func (s *TaskService) AddDailyUpdate(ctx context.Context, id, ownerID uuid.UUID, req ports.DailyUpdateRequest) (*entities.Task, error) {
	task, err := s.taskRepo.UpdateFunc(ctx, id, ownerID, func(task *entities.Task) error {
		return task.RecordDailyUpdate(req.Input(), s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Daily update recorded", "task_id", id, "owner_id", ownerID)
	s.publish(ctx, ports.EventTaskUpdated, task)

	return task, nil
}

// GetStats summarises the owner's tasks
func (s *TaskService) GetStats(ctx context.Context, ownerID uuid.UUID) (*analytics.Stats, error) {
	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	stats := analytics.ComputeStats(tasks, s.now())
	return &stats, nil
}

// GetProgressAnalytics aggregates history for one task when taskID is given,
// otherwise for all of the owner's tasks.
func (s *TaskService) GetProgressAnalytics(ctx context.Context, ownerID uuid.UUID, taskID *uuid.UUID) (*analytics.ProgressAnalytics, error) {
	var tasks []*entities.Task
	if taskID != nil {
		task, err := s.taskRepo.GetForOwner(ctx, *taskID, ownerID)
		if err != nil {
			return nil, err
		}
		tasks = []*entities.Task{task}
	} else {
		all, err := s.taskRepo.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load tasks: %w", err)
		}
		tasks = all
	}

	result := analytics.ComputeProgress(tasks)
	return &result, nil
}

func (s *TaskService) publishUpdate(ctx context.Context, task *entities.Task, wasCompleted bool) {
	if !wasCompleted && task.CompletedAt != nil {
		s.publish(ctx, ports.EventTaskCompleted, task)
		return
	}
	s.publish(ctx, ports.EventTaskUpdated, task)
}

// publish is best effort; the mutation has already been stored.
func (s *TaskService) publish(ctx context.Context, eventType string, task *entities.Task) {
	event := ports.TaskEvent{
		Type:       eventType,
		TaskID:     task.ID,
		OwnerID:    task.OwnerID,
		Status:     task.Status,
		Progress:   task.Progress,
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, eventType, event); err != nil {
		s.logger.Warnw("Failed to publish task event", "event", eventType, "task_id", task.ID, "error", err)
	}
}
