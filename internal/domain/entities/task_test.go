package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestTask(t *testing.T) *Task {
	t.Helper()
	return NewTask(uuid.New(), "  Write report  ", day1)
}

func TestNewTaskDefaults(t *testing.T) {
	task := newTestTask(t)

	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Zero(t, task.Progress)
	assert.Zero(t, task.TotalTimeSpent)
	assert.Empty(t, task.ProgressHistory)
	assert.Empty(t, task.TimeEntries)
	assert.Empty(t, task.DailyUpdates)
	assert.Nil(t, task.CompletedAt)
	assert.NoError(t, task.Validate())
}

func TestRecordProgressUpsertsPerDay(t *testing.T) {
	task := newTestTask(t)

	require.NoError(t, task.RecordProgress(30, "started", day1))
	require.NoError(t, task.RecordProgress(45, "more", day1.Add(3*time.Hour)))
	require.NoError(t, task.RecordProgress(60, "", day1.AddDate(0, 0, 1)))

	require.Len(t, task.ProgressHistory, 2)
	entries := task.ProgressHistory.Entries()
	assert.Equal(t, ProgressEntry{Date: "2024-03-01", Progress: 45, Note: "more"}, entries[0])
	assert.Equal(t, "2024-03-02", entries[1].Date)
	assert.Equal(t, 60, task.Progress)
	assert.Nil(t, task.CompletedAt)
}

func TestRecordProgressRejectsOutOfRange(t *testing.T) {
	task := newTestTask(t)

	for _, p := range []int{-1, 101} {
		err := task.RecordProgress(p, "", day1)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Empty(t, task.ProgressHistory)
}

func TestRecordProgressAt100SetsCompletedAt(t *testing.T) {
	task := newTestTask(t)

	require.NoError(t, task.RecordProgress(100, "done", day1))
	assert.Equal(t, TaskStatusPending, task.Status, "status is left alone")
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, day1, *task.CompletedAt)
}

func TestCompletedAtIsSetOnce(t *testing.T) {
	task := newTestTask(t)
	completed := TaskStatusCompleted
	pending := TaskStatusPending

	require.NoError(t, task.ApplyPatch(TaskPatch{Status: &completed}, day1))
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, 100, task.Progress)
	first := *task.CompletedAt

	require.NoError(t, task.ApplyPatch(TaskPatch{Status: &pending}, day1.Add(time.Hour)))
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, first, *task.CompletedAt)

	require.NoError(t, task.RecordProgress(100, "", day1.Add(48*time.Hour)))
	assert.Equal(t, first, *task.CompletedAt)

	// reopen, then complete again with an explicit progress
	reopened := 30
	require.NoError(t, task.ApplyPatch(TaskPatch{Status: &pending, Progress: &reopened}, day1.Add(72*time.Hour)))
	assert.Equal(t, 30, task.Progress)

	partial := 50
	require.NoError(t, task.ApplyPatch(TaskPatch{Status: &completed, Progress: &partial}, day1.Add(96*time.Hour)))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, 50, task.Progress, "only the first completion forces 100")
	assert.Equal(t, first, *task.CompletedAt)
}

func TestFirstCompletionForcesFullProgress(t *testing.T) {
	task := newTestTask(t)
	completed := TaskStatusCompleted
	partial := 50

	require.NoError(t, task.ApplyPatch(TaskPatch{Status: &completed, Progress: &partial}, day1))
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.CompletedAt)
}

func TestLogTimeReplacesSameDay(t *testing.T) {
	task := newTestTask(t)

	require.NoError(t, task.LogTime(1, "first", day1))
	require.NoError(t, task.LogTime(3, "second", day1.Add(2*time.Hour)))
	assert.Len(t, task.TimeEntries, 1)
	assert.Equal(t, 3.0, task.TotalTimeSpent)

	require.NoError(t, task.LogTime(2.5, "", day1.AddDate(0, 0, 1)))
	assert.Equal(t, 5.5, task.TotalTimeSpent)
}

func TestLogTimeBounds(t *testing.T) {
	task := newTestTask(t)

	assert.ErrorIs(t, task.LogTime(0, "", day1), ErrValidation)
	assert.ErrorIs(t, task.LogTime(24.5, "", day1), ErrValidation)
	assert.NoError(t, task.LogTime(24, "", day1))
}

func TestRecordDailyUpdateDefaults(t *testing.T) {
	task := newTestTask(t)
	worked := true

	require.NoError(t, task.RecordDailyUpdate(DailyUpdateInput{WorkedOn: &worked}, day1))

	update, ok := task.DailyUpdates.Get("2024-03-01")
	require.True(t, ok)
	assert.True(t, update.WorkedOn)
	assert.Equal(t, MoodNeutral, update.Mood)
	assert.Equal(t, TaskStatusPending, update.Status)
	assert.NotNil(t, update.Accomplishments)

	bad := Mood("ecstatic")
	assert.ErrorIs(t, task.RecordDailyUpdate(DailyUpdateInput{Mood: &bad}, day1), ErrValidation)
}

func TestApplyPatchValidates(t *testing.T) {
	task := newTestTask(t)
	empty := "   "
	long := make([]byte, MaxTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}
	longTitle := string(long)

	assert.ErrorIs(t, task.ApplyPatch(TaskPatch{Title: &empty}, day1), ErrValidation)

	task = newTestTask(t)
	assert.ErrorIs(t, task.ApplyPatch(TaskPatch{Title: &longTitle}, day1), ErrValidation)
}

func TestLastWorkedOn(t *testing.T) {
	task := newTestTask(t)
	assert.Nil(t, task.LastWorkedOn())

	require.NoError(t, task.LogTime(1, "", day1))
	require.NotNil(t, task.LastWorkedOn())
	assert.Equal(t, "2024-03-01", *task.LastWorkedOn())

	worked := true
	require.NoError(t, task.RecordDailyUpdate(DailyUpdateInput{WorkedOn: &worked}, day1.AddDate(0, 0, 2)))
	assert.Equal(t, "2024-03-03", *task.LastWorkedOn())
}

func TestCloneDoesNotAlias(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.RecordProgress(10, "", day1))

	clone := task.Clone()
	require.NoError(t, clone.RecordProgress(20, "", day1.AddDate(0, 0, 1)))

	assert.Len(t, task.ProgressHistory, 1)
	assert.Len(t, clone.ProgressHistory, 2)
}

func TestTaskJSONHistoryIsDateOrderedArray(t *testing.T) {
	task := newTestTask(t)
	require.NoError(t, task.LogTime(2, "", day1.AddDate(0, 0, 1)))
	require.NoError(t, task.LogTime(1, "", day1))

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded struct {
		TimeEntries  []TimeEntry `json:"timeEntries"`
		LastWorkedOn string      `json:"lastWorkedOn"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.TimeEntries, 2)
	assert.Equal(t, "2024-03-01", decoded.TimeEntries[0].Date)
	assert.Equal(t, "2024-03-02", decoded.LastWorkedOn)

	var back Task
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 3.0, back.TotalTimeSpent)
	assert.Len(t, back.TimeEntries, 2)
}
