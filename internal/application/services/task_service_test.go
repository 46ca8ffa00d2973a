package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/ports"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func statusPtr(v entities.TaskStatus) *entities.TaskStatus { return &v }

func TestTaskServiceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.users.Create(ctx, "a@x.com", "secret1", "")
	require.NoError(t, err)

	task, err := f.tasks.Create(ctx, user.ID, ports.CreateTaskRequest{Title: "Write proposal", Priority: entities.PriorityHigh})
	require.NoError(t, err)

	_, err = f.tasks.AddProgressUpdate(ctx, task.ID, user.ID, ports.ProgressUpdateRequest{Progress: intPtr(40), Note: "started"})
	require.NoError(t, err)
	task, err = f.tasks.AddTimeEntry(ctx, task.ID, user.ID, ports.TimeEntryRequest{Hours: floatPtr(2)})
	require.NoError(t, err)

	assert.Equal(t, 40, task.Progress)
	assert.Equal(t, 2.0, task.TotalTimeSpent)

	stats, err := f.tasks.GetStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 40.0, stats.AverageProgress)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Overdue)

	assert.Equal(t, []string{ports.EventTaskCreated, ports.EventTaskUpdated, ports.EventTaskUpdated}, f.events.Types())
}

func TestTaskServiceCreateDefaults(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	task, err := f.tasks.Create(context.Background(), owner, ports.CreateTaskRequest{Title: "Plain"})
	require.NoError(t, err)

	assert.Equal(t, entities.TaskStatusPending, task.Status)
	assert.Equal(t, entities.PriorityMedium, task.Priority)
	assert.Zero(t, task.Progress)
	assert.Equal(t, owner, task.OwnerID)

	_, err = f.tasks.Create(context.Background(), owner, ports.CreateTaskRequest{Title: "  "})
	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestTaskServiceCreateCompleted(t *testing.T) {
	f := newFixture(t)

	task, err := f.tasks.Create(context.Background(), uuid.New(), ports.CreateTaskRequest{
		Title:  "Already done",
		Status: entities.TaskStatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, task.Progress)
	assert.NotNil(t, task.CompletedAt)
}

func TestTaskServiceTimeEntrySameDayReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "Timed"})
	require.NoError(t, err)

	_, err = f.tasks.AddTimeEntry(ctx, task.ID, owner, ports.TimeEntryRequest{Hours: floatPtr(1)})
	require.NoError(t, err)
	task, err = f.tasks.AddTimeEntry(ctx, task.ID, owner, ports.TimeEntryRequest{Hours: floatPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3.0, task.TotalTimeSpent)

	f.clock.advance(24 * time.Hour)
	task, err = f.tasks.AddTimeEntry(ctx, task.ID, owner, ports.TimeEntryRequest{Hours: floatPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, task.TotalTimeSpent)

	_, err = f.tasks.AddTimeEntry(ctx, task.ID, owner, ports.TimeEntryRequest{Hours: floatPtr(0)})
	assert.ErrorIs(t, err, entities.ErrValidation)
	_, err = f.tasks.AddTimeEntry(ctx, task.ID, owner, ports.TimeEntryRequest{})
	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestTaskServiceProgressValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "Progress"})
	require.NoError(t, err)

	_, err = f.tasks.AddProgressUpdate(ctx, task.ID, owner, ports.ProgressUpdateRequest{Progress: intPtr(101)})
	assert.ErrorIs(t, err, entities.ErrValidation)
	_, err = f.tasks.AddProgressUpdate(ctx, task.ID, owner, ports.ProgressUpdateRequest{})
	assert.ErrorIs(t, err, entities.ErrValidation)

	stored, err := f.tasks.Get(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Empty(t, stored.ProgressHistory)
}

func TestTaskServiceCompletionEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "Finish me"})
	require.NoError(t, err)

	task, err = f.tasks.Update(ctx, task.ID, owner, ports.UpdateTaskRequest{Status: statusPtr(entities.TaskStatusCompleted)})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	completedAt := *task.CompletedAt
	assert.Equal(t, 100, task.Progress)

	f.clock.advance(time.Hour)
	task, err = f.tasks.Update(ctx, task.ID, owner, ports.UpdateTaskRequest{Status: statusPtr(entities.TaskStatusPending)})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt, "completedAt is never cleared")
	assert.Equal(t, completedAt, *task.CompletedAt)

	assert.Equal(t, []string{ports.EventTaskCreated, ports.EventTaskCompleted, ports.EventTaskUpdated}, f.events.Types())
}

func TestTaskServicePartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{
		Title:       "Original",
		Description: "keep me",
		Priority:    entities.PriorityLow,
	})
	require.NoError(t, err)
	createdAt := task.CreatedAt

	f.clock.advance(time.Minute)
	task, err = f.tasks.Update(ctx, task.ID, owner, ports.UpdateTaskRequest{Title: strPtr("Renamed")})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", task.Title)
	assert.Equal(t, "keep me", task.Description)
	assert.Equal(t, entities.PriorityLow, task.Priority)
	assert.Equal(t, createdAt, task.CreatedAt)
	assert.True(t, task.UpdatedAt.After(createdAt))
}

func TestTaskServiceForeignOwnerIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	task, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "Private"})
	require.NoError(t, err)

	_, err = f.tasks.Get(ctx, task.ID, stranger)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	_, err = f.tasks.Update(ctx, task.ID, stranger, ports.UpdateTaskRequest{Title: strPtr("mine now")})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	_, err = f.tasks.AddTimeEntry(ctx, task.ID, stranger, ports.TimeEntryRequest{Hours: floatPtr(1)})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	_, err = f.tasks.Delete(ctx, task.ID, stranger)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
	_, err = f.tasks.GetProgressAnalytics(ctx, stranger, &task.ID)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)

	deleted, err := f.tasks.Delete(ctx, task.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "Private", deleted.Title)
	_, err = f.tasks.Get(ctx, task.ID, owner)
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestTaskServiceDailyUpdateAndAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	worked := true

	a, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "A", EstimatedHours: floatPtr(5)})
	require.NoError(t, err)
	b, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "B"})
	require.NoError(t, err)

	a, err = f.tasks.AddDailyUpdate(ctx, a.ID, owner, ports.DailyUpdateRequest{
		WorkedOn:        &worked,
		Accomplishments: []string{"drafted"},
	})
	require.NoError(t, err)
	update, ok := a.DailyUpdates.Get("2024-05-06")
	require.True(t, ok)
	assert.Equal(t, entities.MoodNeutral, update.Mood)
	assert.Empty(t, update.Blockers)

	_, err = f.tasks.AddTimeEntry(ctx, b.ID, owner, ports.TimeEntryRequest{Hours: floatPtr(1.5)})
	require.NoError(t, err)

	all, err := f.tasks.GetProgressAnalytics(ctx, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, all.TotalTasks)
	assert.Equal(t, 5.0, all.TotalEstimatedHours)
	assert.Equal(t, 1.5, all.TimeByDay["2024-05-06"])
	require.Contains(t, all.ProductivityByDay, "2024-05-06")
	assert.Equal(t, 1, all.ProductivityByDay["2024-05-06"].TasksWorkedOn)

	one, err := f.tasks.GetProgressAnalytics(ctx, owner, &b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, one.TotalTasks)
	assert.Empty(t, one.ProductivityByDay)
}

func TestTaskServiceStatsEmpty(t *testing.T) {
	f := newFixture(t)

	stats, err := f.tasks.GetStats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AverageProgress)
}

func TestTaskServiceListFilterSortLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	for _, title := range []string{"first", "second", "third"} {
		_, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: title})
		require.NoError(t, err)
		f.clock.advance(time.Minute)
	}

	tasks, total, err := f.tasks.List(ctx, owner, ports.TaskFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "total counts before the limit")
	require.Len(t, tasks, 2)
	assert.Equal(t, "third", tasks[0].Title, "newest first by default")
	assert.Equal(t, "second", tasks[1].Title)
}

func TestTaskServiceProgressTo100KeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	task, err := f.tasks.Create(ctx, owner, ports.CreateTaskRequest{Title: "Almost"})
	require.NoError(t, err)

	task, err = f.tasks.AddProgressUpdate(ctx, task.ID, owner, ports.ProgressUpdateRequest{Progress: intPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStatusPending, task.Status)
	assert.NotNil(t, task.CompletedAt)

	stats, err := f.tasks.GetStats(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, []string{ports.EventTaskCreated, ports.EventTaskCompleted}, f.events.Types())
}
