// Package dashboard turns task statistics and history into the views shown
// by the dashboard command.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/taskmaster/tracker/internal/client"
	"github.com/taskmaster/tracker/internal/domain/analytics"
	"github.com/taskmaster/tracker/internal/domain/entities"
)

// RecentActivityLimit is the length of the recent activity list
const RecentActivityLimit = 10

// Source is the part of the API client the dashboard reads from
type Source interface {
	Stats(ctx context.Context) (*analytics.Stats, error)
	Analytics(ctx context.Context, taskID string) (*analytics.ProgressAnalytics, error)
	ListTasks(ctx context.Context, q client.ListQuery) (*client.TaskList, error)
	LastKnownTasks() []*entities.Task
}

// DayValue is one point of a per-day series
type DayValue struct {
	Date  string  `json:"date" yaml:"date"`
	Value float64 `json:"value" yaml:"value"`
}

// DayActivity is one point of the productivity series
type DayActivity struct {
	Date                      string `json:"date" yaml:"date"`
	analytics.DayProductivity `yaml:",inline"`
}

// Dashboard holds every widget. Degraded is set when the numbers were
// computed locally from the last known task list.
type Dashboard struct {
	GeneratedAt         time.Time            `json:"generatedAt" yaml:"generatedAt"`
	Degraded            bool                 `json:"degraded" yaml:"degraded"`
	CompletionRate      float64              `json:"completionRate" yaml:"completionRate"`
	Stats               analytics.Stats      `json:"stats" yaml:"stats"`
	Buckets             []analytics.Bucket   `json:"buckets" yaml:"buckets"`
	RecentActivity      []analytics.Activity `json:"recentActivity" yaml:"recentActivity"`
	TotalEstimatedHours float64              `json:"totalEstimatedHours" yaml:"totalEstimatedHours"`
	TimeByDay           []DayValue           `json:"timeByDay" yaml:"timeByDay"`
	Productivity        []DayActivity        `json:"productivity" yaml:"productivity"`
}

// Build fetches stats, analytics and the task list. If any call fails the
// dashboard is computed from the client's last known tasks instead and the
// first error is returned alongside it. The error is nil when the remote
// data was used.
func Build(ctx context.Context, source Source) (*Dashboard, error) {
	return build(ctx, source, time.Now())
}

func build(ctx context.Context, source Source, now time.Time) (*Dashboard, error) {
	stats, progress, tasks, err := fetch(ctx, source)
	if err != nil {
		tasks = source.LastKnownTasks()
		s := analytics.ComputeStats(tasks, now)
		p := analytics.ComputeProgress(tasks)
		dash := assemble(s, p, tasks, now)
		dash.Degraded = true
		return dash, err
	}
	return assemble(*stats, *progress, tasks, now), nil
}

func fetch(ctx context.Context, source Source) (*analytics.Stats, *analytics.ProgressAnalytics, []*entities.Task, error) {
	stats, err := source.Stats(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	progress, err := source.Analytics(ctx, "")
	if err != nil {
		return nil, nil, nil, err
	}
	list, err := source.ListTasks(ctx, client.ListQuery{})
	if err != nil {
		return nil, nil, nil, err
	}
	return stats, progress, list.Tasks, nil
}

// FromTasks computes a dashboard locally from tasks
func FromTasks(tasks []*entities.Task, now time.Time) *Dashboard {
	return assemble(analytics.ComputeStats(tasks, now), analytics.ComputeProgress(tasks), tasks, now)
}

func assemble(stats analytics.Stats, progress analytics.ProgressAnalytics, tasks []*entities.Task, now time.Time) *Dashboard {
	dash := &Dashboard{
		GeneratedAt:         now,
		CompletionRate:      analytics.CompletionRate(stats),
		Stats:               stats,
		Buckets:             analytics.ProgressBuckets(tasks),
		RecentActivity:      analytics.RecentActivity(tasks, RecentActivityLimit),
		TotalEstimatedHours: progress.TotalEstimatedHours,
	}

	for day, hours := range progress.TimeByDay {
		dash.TimeByDay = append(dash.TimeByDay, DayValue{Date: day, Value: hours})
	}
	sort.Slice(dash.TimeByDay, func(i, j int) bool { return dash.TimeByDay[i].Date < dash.TimeByDay[j].Date })

	for day, p := range progress.ProductivityByDay {
		if p == nil {
			continue
		}
		dash.Productivity = append(dash.Productivity, DayActivity{Date: day, DayProductivity: *p})
	}
	sort.Slice(dash.Productivity, func(i, j int) bool { return dash.Productivity[i].Date < dash.Productivity[j].Date })

	return dash
}
