package dashboard

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/taskmaster/tracker/internal/client"
	"github.com/taskmaster/tracker/internal/domain/analytics"
	"github.com/taskmaster/tracker/internal/domain/entities"
)

var day1 = time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC)

type fakeSource struct {
	tasks     []*entities.Task
	lastKnown []*entities.Task
	err       error
}

func (f *fakeSource) Stats(ctx context.Context) (*analytics.Stats, error) {
	if f.err != nil {
		return nil, f.err
	}
	stats := analytics.ComputeStats(f.tasks, day1)
	return &stats, nil
}

func (f *fakeSource) Analytics(ctx context.Context, taskID string) (*analytics.ProgressAnalytics, error) {
	if f.err != nil {
		return nil, f.err
	}
	progress := analytics.ComputeProgress(f.tasks)
	return &progress, nil
}

func (f *fakeSource) ListTasks(ctx context.Context, q client.ListQuery) (*client.TaskList, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &client.TaskList{Tasks: f.tasks, Total: len(f.tasks)}, nil
}

func (f *fakeSource) LastKnownTasks() []*entities.Task { return f.lastKnown }

func sampleTasks(t *testing.T) []*entities.Task {
	t.Helper()
	owner := uuid.New()
	day2 := day1.AddDate(0, 0, 1)
	worked := true

	a := entities.NewTask(owner, "Write report", day1)
	require.NoError(t, a.RecordProgress(40, "", day1))
	require.NoError(t, a.LogTime(2, "", day1))
	require.NoError(t, a.RecordDailyUpdate(entities.DailyUpdateInput{WorkedOn: &worked, Accomplishments: []string{"outline"}}, day1))
	require.NoError(t, a.LogTime(1.5, "", day2))

	b := entities.NewTask(owner, "Ship release", day1)
	completed := entities.TaskStatusCompleted
	require.NoError(t, b.RecordProgress(100, "done", day2))
	require.NoError(t, b.ApplyPatch(entities.TaskPatch{Status: &completed}, day2))
	require.NoError(t, b.RecordDailyUpdate(entities.DailyUpdateInput{WorkedOn: &worked, Blockers: []string{"ci"}}, day2))

	c := entities.NewTask(owner, "Someday", day1)
	return []*entities.Task{a, b, c}
}

func TestBuildFromRemote(t *testing.T) {
	source := &fakeSource{tasks: sampleTasks(t)}

	dash, err := build(context.Background(), source, day1)
	require.NoError(t, err)
	assert.False(t, dash.Degraded)
	assert.Equal(t, 3, dash.Stats.Total)
	assert.Equal(t, 33.33, dash.CompletionRate)

	counts := map[string]int{}
	for _, b := range dash.Buckets {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{"0%": 1, "1-25%": 0, "26-50%": 1, "51-75%": 0, "76-99%": 0, "100%": 1}, counts)

	require.Len(t, dash.RecentActivity, 2)
	assert.Equal(t, "Ship release", dash.RecentActivity[0].Title)
	assert.Equal(t, "2024-05-07", dash.RecentActivity[0].LastWorkedOn)

	assert.Equal(t, []DayValue{{Date: "2024-05-06", Value: 2}, {Date: "2024-05-07", Value: 1.5}}, dash.TimeByDay)
	require.Len(t, dash.Productivity, 2)
	assert.Equal(t, "2024-05-06", dash.Productivity[0].Date)
	assert.Equal(t, 40, dash.Productivity[0].TotalProgress)
	assert.Equal(t, 1, dash.Productivity[0].Accomplishments)
	assert.Equal(t, 1, dash.Productivity[1].Blockers)
}

func TestBuildFallsBackToLastKnownTasks(t *testing.T) {
	offline := &client.APIError{Kind: client.KindNetwork, Message: "connection refused"}
	source := &fakeSource{err: offline, lastKnown: sampleTasks(t)}

	dash, err := build(context.Background(), source, day1)
	assert.True(t, errors.Is(err, offline))
	require.NotNil(t, dash)
	assert.True(t, dash.Degraded)
	assert.Equal(t, 3, dash.Stats.Total)
	assert.Equal(t, 1, dash.Stats.Completed)
}

func TestBuildWithNothingKnown(t *testing.T) {
	source := &fakeSource{err: errors.New("offline")}

	dash, err := build(context.Background(), source, day1)
	assert.Error(t, err)
	assert.True(t, dash.Degraded)
	assert.Equal(t, 0, dash.Stats.Total)
	assert.Zero(t, dash.CompletionRate)
	assert.Empty(t, dash.RecentActivity)
}

func TestRenderText(t *testing.T) {
	dash := FromTasks(sampleTasks(t), day1)

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, dash))
	out := buf.String()

	assert.Contains(t, out, "SUMMARY")
	assert.Contains(t, out, "Completion rate   33.3%")
	assert.Contains(t, out, "RECENT ACTIVITY")
	assert.Contains(t, out, "Ship release")
	assert.Contains(t, out, "2024-05-07")
	assert.Contains(t, out, "####################")
	assert.NotContains(t, out, "offline")
}

func TestRenderTextDegradedAndEmpty(t *testing.T) {
	dash := FromTasks(nil, day1)
	dash.Degraded = true

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, dash))
	assert.Contains(t, buf.String(), "offline: computed from the last known task list")
	assert.Contains(t, buf.String(), "No activity yet")
}

func TestRenderYAML(t *testing.T) {
	dash := FromTasks(sampleTasks(t), day1)

	var buf bytes.Buffer
	require.NoError(t, RenderYAML(&buf, dash))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, false, decoded["degraded"])
	assert.Equal(t, 33.33, decoded["completionRate"])

	productivity := decoded["productivity"].([]interface{})
	first := productivity[0].(map[string]interface{})
	assert.Equal(t, "2024-05-06", first["date"])
	assert.Equal(t, 1, first["tasksWorkedOn"])
}
